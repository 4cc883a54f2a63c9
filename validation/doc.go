// Package validation provides configuration validation for fwaudio.
//
// It supports both struct tag validation (using the validator library) and
// programmatic validation with error collection. Both return an
// errors.AppError with per-field details.
//
// # Struct Tag Validation
//
//	type Config struct {
//	    BeamSize int `mapstructure:"beam_size" validate:"gte=1"`
//	}
//	err := validation.Struct(cfg)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.Required("whisper.url", cfg.URL)
//	err := v.Err()
package validation
