package motion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVariant(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Variant
		wantErr bool
	}{
		{"empty defaults", "", VariantVox256, false},
		{"vox-256", "vox-256", VariantVox256, false},
		{"vox-adv-256", "vox-adv-256", VariantVoxAdv256, false},
		{"unknown", "vox-512", "", true},
		{"case sensitive", "VOX-256", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVariant(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownVariant)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVariants(t *testing.T) {
	for _, v := range Variants() {
		assert.True(t, v.IsValid(), "variant %s", v)
	}
	assert.False(t, Variant("").IsValid())
}

func TestNewTools_Defaults(t *testing.T) {
	tools := NewTools(Config{})
	assert.Equal(t, DefaultConfig().Python, tools.cfg.Python)
	assert.Equal(t, "checkpoints/vox-cpk.pth.tar", tools.cfg.Checkpoint)
	assert.Equal(t, "config/vox-adv-256.yaml", tools.ConfigPath(VariantVoxAdv256))
}

func TestSuggestCommand(t *testing.T) {
	t.Run("cpu", func(t *testing.T) {
		tools := NewTools(DefaultConfig())
		line := tools.SuggestCommand("b.mp4")
		assert.Equal(t, `python crop-video.py --inp "b.mp4" --cpu`, line.String())
	})

	t.Run("gpu in model dir", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.CPU = false
		cfg.Dir = "/opt/first-order-model"
		cfg.Python = "python3"
		line := NewTools(cfg).SuggestCommand("/videos/my clip.mp4")
		assert.Equal(t, `python3 crop-video.py --inp "/videos/my clip.mp4"`, line.String())
		assert.Equal(t, "/opt/first-order-model", line.Dir)
	})
}

func TestInferenceCommand(t *testing.T) {
	tools := NewTools(DefaultConfig())

	t.Run("without relative flag", func(t *testing.T) {
		line := tools.InferenceCommand(InferenceOptions{
			SourceImage:  "a.png",
			DrivingVideo: "b_cropped.mp4",
			Variant:      VariantVox256,
			Result:       "out.mp4",
		})
		assert.Equal(t,
			`python demo.py --config "config/vox-256.yaml" --driving_video "b_cropped.mp4" --source_image "a.png" --checkpoint "checkpoints/vox-cpk.pth.tar" --adapt_scale --cpu --result_video "out.mp4"`,
			line.String(),
		)
		assert.NotContains(t, line.Args(), "--relative")
	})

	t.Run("with relative flag and adversarial model", func(t *testing.T) {
		line := tools.InferenceCommand(InferenceOptions{
			SourceImage:  "a.png",
			DrivingVideo: "b_cropped.mp4",
			Variant:      VariantVoxAdv256,
			Relative:     true,
			Result:       "out.mp4",
		})
		assert.Contains(t, line.String(), `--config "config/vox-adv-256.yaml"`)
		assert.Contains(t, line.Args(), "--relative")
	})

	t.Run("empty result and variant use defaults", func(t *testing.T) {
		line := tools.InferenceCommand(InferenceOptions{SourceImage: "a.png", DrivingVideo: "b_cropped.mp4"})
		assert.Contains(t, line.String(), `--result_video "output.mp4"`)
		assert.Contains(t, line.String(), `--config "config/vox-256.yaml"`)
	})

	t.Run("optional switches off", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.CPU = false
		cfg.AdaptScale = false
		line := NewTools(cfg).InferenceCommand(InferenceOptions{SourceImage: "a.png", DrivingVideo: "b.mp4"})
		assert.NotContains(t, line.Args(), "--cpu")
		assert.NotContains(t, line.Args(), "--adapt_scale")
	})
}
