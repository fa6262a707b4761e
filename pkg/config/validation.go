package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Log level normalization is handled in ApplyDefaults; validation accepts
// both uppercase and lowercase log levels.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	r := cfg.Directory.Replication
	if r.Candidates < r.Replicas {
		return fmt.Errorf("directory.replication: candidates (%d) must be >= replicas (%d)",
			r.Candidates, r.Replicas)
	}

	seen := make(map[string]bool, len(cfg.Directory.FilesBackends))
	for i, b := range cfg.Directory.FilesBackends {
		if seen[b] {
			return fmt.Errorf("directory.files_backends[%d]: duplicate backend %q", i, b)
		}
		seen[b] = true
	}

	// All services may run in one process (dittodir cluster).
	ports := map[int]string{cfg.Directory.Port: "directory.port"}
	for _, p := range []struct {
		name string
		port int
	}{
		{"files.port", cfg.Files.Port},
		{"users.port", cfg.Users.Port},
	} {
		if other, ok := ports[p.port]; ok {
			return fmt.Errorf("%s: port %d already used by %s", p.name, p.port, other)
		}
		ports[p.port] = p.name
	}
	if cfg.Server.Metrics.Enabled {
		if other, ok := ports[cfg.Server.Metrics.Port]; ok {
			return fmt.Errorf("server.metrics.port: port %d already used by %s", cfg.Server.Metrics.Port, other)
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			value := e.Value()
			if e.StructField() == "Secret" {
				value = "<redacted>"
			}
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), value)
		}
	}
	return err
}
