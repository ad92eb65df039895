package config

import (
	"fmt"
	"net/url"
	"strings"

	"coherence/pkg/logging"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// Validate checks a loaded configuration for values the runner cannot use.
func Validate(cfg CoherenceConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.PollInterval <= 0 {
		errs.Add("pollInterval", "must be positive", cfg.PollInterval)
	}
	if cfg.DefaultTimeout < 0 {
		errs.Add("defaultTimeout", "must not be negative", cfg.DefaultTimeout)
	}
	if cfg.Parallel < 1 {
		errs.Add("parallel", "must be at least 1", cfg.Parallel)
	}
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		errs.Add("logLevel", err.Error(), cfg.LogLevel)
	}
	if cfg.LogFormat != "" && cfg.LogFormat != string(logging.FormatText) && cfg.LogFormat != string(logging.FormatJSON) {
		errs.Add("logFormat", "must be text or json", cfg.LogFormat)
	}
	if cfg.NotifyWebhook != "" {
		u, err := url.Parse(cfg.NotifyWebhook)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs.Add("notifyWebhook", "must be an absolute http(s) URL", cfg.NotifyWebhook)
		}
	}

	return errs
}
