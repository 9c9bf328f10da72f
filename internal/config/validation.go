// Package config handles configuration loading, validation, and management for kolom.
package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ValidateConfig performs comprehensive validation of the configuration.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	if fontErrs := validateFont(&c.Font); len(fontErrs) > 0 {
		errs = append(errs, fontErrs...)
	}
	if colorErrs := validateColors(&c.Colors); len(colorErrs) > 0 {
		errs = append(errs, colorErrs...)
	}
	if engineErrs := validateEngine(&c.Engine); len(engineErrs) > 0 {
		errs = append(errs, engineErrs...)
	}
	if historyErrs := validateHistory(&c.History); len(historyErrs) > 0 {
		errs = append(errs, historyErrs...)
	}
	if loggingErrs := validateLogging(&c.Logging); len(loggingErrs) > 0 {
		errs = append(errs, loggingErrs...)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateFont(f *FontConfig) ValidationErrors {
	var errs ValidationErrors

	if f.Family == "" {
		errs = append(errs, ValidationError{
			Field:   "font.family",
			Message: "must not be empty",
		})
	}
	if f.PointSize < 6 || f.PointSize > 96 {
		errs = append(errs, ValidationError{
			Field:   "font.point_size",
			Message: fmt.Sprintf("%.1f out of range [6, 96]", f.PointSize),
		})
	}

	return errs
}

func validateColors(c *ColorsConfig) ValidationErrors {
	var errs ValidationErrors

	fields := []struct {
		name  string
		value string
	}{
		{"colors.candidate", c.Candidate},
		{"colors.index", c.Index},
		{"colors.background", c.Background},
		{"colors.clip", c.Clip},
		{"colors.highlight", c.Highlight},
		{"colors.highlighted", c.Highlighted},
	}

	for _, f := range fields {
		// Highlighted may be empty: it is derived from the highlight fill.
		if f.value == "" && f.name == "colors.highlighted" {
			continue
		}
		if _, err := ParseColor(f.value); err != nil {
			errs = append(errs, ValidationError{
				Field:   f.name,
				Message: err.Error(),
			})
		}
	}

	return errs
}

func validateEngine(e *EngineConfig) ValidationErrors {
	var errs ValidationErrors

	if e.BusName == "" {
		errs = append(errs, ValidationError{
			Field:   "engine.bus_name",
			Message: "must not be empty",
		})
	} else if !strings.Contains(e.BusName, ".") || strings.ContainsAny(e.BusName, " /") {
		errs = append(errs, ValidationError{
			Field:   "engine.bus_name",
			Message: fmt.Sprintf("%q is not a well-known bus name", e.BusName),
		})
	}

	if e.ObjectPath == "" || !strings.HasPrefix(e.ObjectPath, "/") {
		errs = append(errs, ValidationError{
			Field:   "engine.object_path",
			Message: fmt.Sprintf("%q must be an absolute object path", e.ObjectPath),
		})
	}

	if e.CallTimeoutMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "engine.call_timeout_ms",
			Message: "must not be negative",
		})
	}

	return errs
}

func validateHistory(h *HistoryConfig) ValidationErrors {
	var errs ValidationErrors

	if h.Enabled && h.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "history.path",
			Message: "must be set when history is enabled",
		})
	}
	if h.RetainDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "history.retain_days",
			Message: "must not be negative",
		})
	}

	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "warning", "error", "":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown level %q", l.Level),
		})
	}

	switch strings.ToLower(l.Format) {
	case "text", "json", "":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("unknown format %q", l.Format),
		})
	}

	switch strings.ToLower(l.Output) {
	case "stdout", "stderr", "file", "both", "":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("unknown output %q", l.Output),
		})
	}

	if strings.ToLower(l.Output) == "file" || strings.ToLower(l.Output) == "both" {
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: "must be set for file output",
			})
		}
	}

	if l.MaxSizeMB < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "must not be negative",
		})
	}

	return errs
}
