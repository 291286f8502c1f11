// Package motion composes invocations of the motion-transfer model tools: the
// face-crop suggestion script and the inference (demo) script.
package motion

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/maauso/motiontransfer/internal/command"
)

// ErrUnknownVariant is returned when a model variant is not supported.
var ErrUnknownVariant = errors.New("unknown model variant")

// Variant selects the pretrained model configuration.
type Variant string

const (
	// VariantVox256 is the keypoint model trained on VoxCeleb at 256x256.
	VariantVox256 Variant = "vox-256"
	// VariantVoxAdv256 is the adversarially trained VoxCeleb model at 256x256.
	VariantVoxAdv256 Variant = "vox-adv-256"
)

// DefaultVariant is used when no variant is requested.
const DefaultVariant = VariantVox256

// Variants lists the supported variants in display order.
func Variants() []Variant {
	return []Variant{VariantVox256, VariantVoxAdv256}
}

// IsValid returns true if the variant is supported.
func (v Variant) IsValid() bool {
	return v == VariantVox256 || v == VariantVoxAdv256
}

// ParseVariant converts a user-supplied name into a Variant.
// An empty name yields DefaultVariant.
func ParseVariant(name string) (Variant, error) {
	if name == "" {
		return DefaultVariant, nil
	}
	v := Variant(name)
	if !v.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownVariant, name)
	}
	return v, nil
}

// DefaultOutputName is the result video name used when none is given.
const DefaultOutputName = "output.mp4"

// Config locates the model tools.
type Config struct {
	// Python is the interpreter used to run the scripts. Defaults to "python".
	Python string
	// Dir is the working directory of the scripts (the model checkout).
	Dir string
	// CropScript is the suggestion script, relative to Dir.
	CropScript string
	// DemoScript is the inference script, relative to Dir.
	DemoScript string
	// ConfigDir holds one <variant>.yaml per model variant.
	ConfigDir string
	// Checkpoint is the pretrained weights file.
	Checkpoint string
	// CPU forces CPU execution in both scripts.
	CPU bool
	// AdaptScale scales keypoint movement to the source face.
	AdaptScale bool
}

// DefaultConfig returns the layout of a stock model checkout.
func DefaultConfig() Config {
	return Config{
		Python:     "python",
		CropScript: "crop-video.py",
		DemoScript: "demo.py",
		ConfigDir:  "config",
		Checkpoint: "checkpoints/vox-cpk.pth.tar",
		CPU:        true,
		AdaptScale: true,
	}
}

// InferenceOptions are the per-run inference settings.
type InferenceOptions struct {
	SourceImage  string
	DrivingVideo string
	Variant      Variant
	Relative     bool
	Result       string
}

// Tools builds model tool command lines.
type Tools struct {
	cfg Config
}

// NewTools creates Tools, filling empty config fields from DefaultConfig.
func NewTools(cfg Config) *Tools {
	def := DefaultConfig()
	if cfg.Python == "" {
		cfg.Python = def.Python
	}
	if cfg.CropScript == "" {
		cfg.CropScript = def.CropScript
	}
	if cfg.DemoScript == "" {
		cfg.DemoScript = def.DemoScript
	}
	if cfg.ConfigDir == "" {
		cfg.ConfigDir = def.ConfigDir
	}
	if cfg.Checkpoint == "" {
		cfg.Checkpoint = def.Checkpoint
	}
	return &Tools{cfg: cfg}
}

// SuggestCommand builds the face-crop suggestion command for a driving video:
//
//	python crop-video.py --inp "<video>" --cpu
func (t *Tools) SuggestCommand(video string) *command.Line {
	line := command.New(t.cfg.Python).
		InDir(t.cfg.Dir).
		Arg(t.cfg.CropScript).
		QuotedFlag("--inp", video)
	if t.cfg.CPU {
		line.Arg("--cpu")
	}
	return line
}

// ConfigPath returns the model configuration file for a variant.
func (t *Tools) ConfigPath(v Variant) string {
	return filepath.ToSlash(filepath.Join(t.cfg.ConfigDir, string(v)+".yaml"))
}

// InferenceCommand builds the motion-transfer command:
//
//	python demo.py --config "<cfg>" --driving_video "<video>" --source_image "<image>" --checkpoint "<ckpt>" [--relative] --adapt_scale --cpu --result_video "<out>"
//
// An empty Result falls back to DefaultOutputName.
func (t *Tools) InferenceCommand(opts InferenceOptions) *command.Line {
	result := opts.Result
	if result == "" {
		result = DefaultOutputName
	}
	variant := opts.Variant
	if variant == "" {
		variant = DefaultVariant
	}

	line := command.New(t.cfg.Python).
		InDir(t.cfg.Dir).
		Arg(t.cfg.DemoScript).
		QuotedFlag("--config", t.ConfigPath(variant)).
		QuotedFlag("--driving_video", opts.DrivingVideo).
		QuotedFlag("--source_image", opts.SourceImage).
		QuotedFlag("--checkpoint", t.cfg.Checkpoint)
	if opts.Relative {
		line.Arg("--relative")
	}
	if t.cfg.AdaptScale {
		line.Arg("--adapt_scale")
	}
	if t.cfg.CPU {
		line.Arg("--cpu")
	}
	return line.QuotedFlag("--result_video", result)
}
