package crop

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   Suggestion
	}{
		{
			name:   "single line",
			output: `ffmpeg -ss 00:00:01 -t 00:00:05 -filter:v "crop=300:300:10:10"`,
			want:   Suggestion{Start: "00:00:01", Duration: "00:00:05", Filter: "crop=300:300:10:10"},
		},
		{
			name:   "tool format with input, scale and output",
			output: "ffmpeg -i driving.mp4 -ss 0.0 -t 12.48 -filter:v \"crop=412:412:190:32, scale=256:256\" crop.mp4\n",
			want:   Suggestion{Start: "0.0", Duration: "12.48", Filter: "crop=412:412:190:32, scale=256:256"},
		},
		{
			name: "only the first line counts",
			output: "ffmpeg -ss 1 -t 2 -filter:v \"crop=1:1:0:0\" a.mp4\n" +
				"ffmpeg -ss 9 -t 9 -filter:v \"crop=9:9:9:9\" a.mp4\n",
			want: Suggestion{Start: "1", Duration: "2", Filter: "crop=1:1:0:0"},
		},
		{
			name:   "windows line endings",
			output: "ffmpeg -ss 3.5 -t 4 -filter:v \"crop=10:10:1:1\" out.mp4\r\n",
			want:   Suggestion{Start: "3.5", Duration: "4", Filter: "crop=10:10:1:1"},
		},
		{
			name:   "marker inside the input name",
			output: `ffmpeg -i clip-filter:v"1".mp4 -ss 0 -t 3 -filter:v "crop=1:1:0:0" out.mp4`,
			want:   Suggestion{Start: "0", Duration: "3", Filter: "crop=1:1:0:0"},
		},
		{
			name:   "flags in any order",
			output: `ffmpeg -filter:v "crop=5:5:0:0" -t 7 -i x.mp4 -ss 2`,
			want:   Suggestion{Start: "2", Duration: "7", Filter: "crop=5:5:0:0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.output)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name      string
		output    string
		wantKind  error
		wantField string
	}{
		{"empty output", "", ErrEmptyOutput, ""},
		{"whitespace only", " \n\t\n", ErrEmptyOutput, ""},
		{"missing -ss", `ffmpeg -t 5 -filter:v "crop=1:1:0:0"`, ErrMissingField, FieldStart},
		{"-ss is last token", `ffmpeg -t 5 -filter:v "crop=1:1:0:0" -ss`, ErrMissingField, FieldStart},
		{"missing -t", `ffmpeg -ss 1 -filter:v "crop=1:1:0:0"`, ErrMissingField, FieldDuration},
		{"-t is last token", `ffmpeg -ss 1 -filter:v "crop=1:1:0:0" -t`, ErrMissingField, FieldDuration},
		{"missing filter marker", `ffmpeg -ss 1 -t 5 -vf "crop=1:1:0:0"`, ErrMissingCropFilter, ""},
		{"unquoted filter", `ffmpeg -ss 1 -t 5 -filter:v crop=1:1:0:0`, ErrMissingCropFilter, ""},
		{"unterminated quote", `ffmpeg -ss 1 -t 5 -filter:v "crop=1:1:0:0`, ErrMissingCropFilter, ""},
		{"empty quoted filter", `ffmpeg -ss 1 -t 5 -filter:v ""`, ErrMissingCropFilter, ""},
		{"quote only before marker", `ffmpeg -i "a.mp4" -ss 1 -t 5 -filter:v`, ErrMissingCropFilter, ""},
		{"good line not first", "Processing...\nffmpeg -ss 1 -t 5 -filter:v \"crop=1:1:0:0\"", ErrMissingField, FieldStart},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.output)
			require.Error(t, err)
			assert.Equal(t, Suggestion{}, got)
			assert.ErrorIs(t, err, tt.wantKind)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.wantField, perr.Field)
		})
	}
}

func TestParseError_Error(t *testing.T) {
	err := &ParseError{Kind: ErrMissingField, Field: FieldDuration}
	assert.Equal(t, "missing field in crop suggestion: duration", err.Error())

	err = &ParseError{Kind: ErrEmptyOutput}
	assert.Equal(t, "no crop suggestions received", err.Error())
}

func TestParseAll(t *testing.T) {
	t.Run("collects every parsable line", func(t *testing.T) {
		output := "ffmpeg -ss 0.0 -t 4.0 -filter:v \"crop=100:100:0:0, scale=256:256\" crop.mp4\n" +
			"\n" +
			"warning: face lost\n" +
			"ffmpeg -ss 6.1 -t 2.5 -filter:v \"crop=90:90:5:5, scale=256:256\" crop.mp4\n"

		got, err := ParseAll(output)
		require.NoError(t, err)
		assert.Equal(t, []Suggestion{
			{Start: "0.0", Duration: "4.0", Filter: "crop=100:100:0:0, scale=256:256"},
			{Start: "6.1", Duration: "2.5", Filter: "crop=90:90:5:5, scale=256:256"},
		}, got)
	})

	t.Run("empty output", func(t *testing.T) {
		_, err := ParseAll("")
		assert.ErrorIs(t, err, ErrEmptyOutput)
	})

	t.Run("nothing parses returns first error", func(t *testing.T) {
		_, err := ParseAll("no faces\nffmpeg -ss 1 -filter:v \"crop=1:1:0:0\"\n")
		assert.ErrorIs(t, err, ErrMissingField)
	})
}
