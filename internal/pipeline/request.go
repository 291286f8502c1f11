package pipeline

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/maauso/motiontransfer/internal/media"
	"github.com/maauso/motiontransfer/internal/motion"
)

// Static errors for request validation.
var (
	// ErrMissingInput is returned when the source image or driving video is not set.
	ErrMissingInput = errors.New("please select both source image and driving video")
	// ErrInvalidInput is returned when an option is out of range.
	ErrInvalidInput = errors.New("invalid pipeline option")
)

// Request holds the inputs of one pipeline run. It is built once per run and
// not modified while the run executes.
type Request struct {
	// SourceImagePath is the still image to animate.
	SourceImagePath string `json:"source_image_path" validate:"notblank"`
	// DrivingVideoPath is the video whose motion is transferred.
	DrivingVideoPath string `json:"driving_video_path" validate:"notblank"`
	// Quality is the x264 constant rate factor of the cropped video (0-51, lower is better).
	Quality int `json:"quality" validate:"crf"`
	// Model selects the model configuration. Empty means motion.DefaultVariant.
	Model motion.Variant `json:"model" validate:"omitempty,variant"`
	// Relative maps driving motion relative to the first frame.
	Relative bool `json:"relative"`
	// OutputName is the result video path. Empty means motion.DefaultOutputName.
	OutputName string `json:"output_name"`
}

// Output returns the effective result video path.
func (r Request) Output() string {
	if r.OutputName == "" {
		return motion.DefaultOutputName
	}
	return r.OutputName
}

// Variant returns the effective model variant.
func (r Request) Variant() motion.Variant {
	if r.Model == "" {
		return motion.DefaultVariant
	}
	return r.Model
}

// ValidationError reports a request field that failed validation.
type ValidationError struct {
	// Kind is ErrMissingInput or ErrInvalidInput.
	Kind error
	// Field is the JSON name of the offending field.
	Field string
	// Rule is the failed validation rule.
	Rule string
}

func (e *ValidationError) Error() string {
	if errors.Is(e.Kind, ErrMissingInput) {
		return fmt.Sprintf("%v (%s is empty)", e.Kind, e.Field)
	}
	return fmt.Sprintf("%v: %s fails %s", e.Kind, e.Field, e.Rule)
}

// Unwrap allows errors.Is against the Kind sentinels.
func (e *ValidationError) Unwrap() error {
	return e.Kind
}

// RegisterValidations adds the "variant" (supported model variant) and "crf"
// (x264 quality range) tags to v.
func RegisterValidations(v *validator.Validate) error {
	if err := v.RegisterValidation("variant", func(fl validator.FieldLevel) bool {
		return motion.Variant(fl.Field().String()).IsValid()
	}); err != nil {
		return err
	}
	return v.RegisterValidation("crf", func(fl validator.FieldLevel) bool {
		return media.ValidQuality(int(fl.Field().Int()))
	})
}

// newValidator creates the request validator. Field names in errors are the
// JSON names so they read the same in the CLI and the HTTP API.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	_ = RegisterValidations(v)
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// validate checks the request and returns the first failure as a
// *ValidationError. Missing paths take precedence over bad options.
func validate(v *validator.Validate, req Request) error {
	err := v.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	for _, fe := range fieldErrs {
		if fe.Tag() == "notblank" || fe.Tag() == "required" {
			return &ValidationError{Kind: ErrMissingInput, Field: fe.Field(), Rule: fe.Tag()}
		}
	}
	fe := fieldErrs[0]
	rule := fe.Tag()
	if fe.Param() != "" {
		rule += "=" + fe.Param()
	}
	return &ValidationError{Kind: ErrInvalidInput, Field: fe.Field(), Rule: rule}
}
