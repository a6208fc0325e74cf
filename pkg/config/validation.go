package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for field '%s': %s", e.Field, e.Message)
}

// ValidationResult collects every problem found in a configuration.
type ValidationResult struct {
	Errors []ValidationError
}

func (r *ValidationResult) add(field, format string, args ...any) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// IsValid returns true if there are no errors
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// CombinedError returns all errors as a single error
func (r *ValidationResult) CombinedError() error {
	if len(r.Errors) == 0 {
		return nil
	}
	messages := make([]string, len(r.Errors))
	for i, err := range r.Errors {
		messages[i] = err.Error()
	}
	return fmt.Errorf("configuration validation failed:\n%s", strings.Join(messages, "\n"))
}

// Validate checks enumerations and ranges.
func (cfg *Config) Validate() *ValidationResult {
	r := &ValidationResult{}
	switch cfg.Planner.Strategy {
	case "sorted", "reasoning":
	default:
		r.add("planner.strategy", "unknown strategy %q (want sorted or reasoning)", cfg.Planner.Strategy)
	}
	switch cfg.Generator.Provider {
	case ProviderOllama, ProviderStub:
	default:
		r.add("generator.provider", "unknown provider %q (want ollama or stub)", cfg.Generator.Provider)
	}
	if cfg.Planner.Strategy == "reasoning" && cfg.Generator.Provider != ProviderOllama {
		r.add("planner.strategy", "reasoning strategy requires the ollama generator provider")
	}
	switch cfg.Research.Provider {
	case ProviderJina, ProviderNone:
	default:
		r.add("research.provider", "unknown provider %q (want jina or none)", cfg.Research.Provider)
	}
	if cfg.DiffContext != nil && *cfg.DiffContext < 0 {
		r.add("diff_context", "must not be negative")
	}
	if cfg.Generator.Temperature < 0 || cfg.Generator.Temperature > 2 {
		r.add("generator.temperature", "must be within [0, 2]")
	}
	if cfg.Generator.MaxRetries != nil && *cfg.Generator.MaxRetries < 0 {
		r.add("generator.max_retries", "must not be negative")
	}
	for ext, argv := range cfg.Formatters {
		if !strings.HasPrefix(ext, ".") {
			r.add("formatters", "extension %q must start with a dot", ext)
		}
		if len(argv) == 0 {
			r.add("formatters", "extension %q has an empty command", ext)
		}
	}
	return r
}
