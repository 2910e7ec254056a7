package config

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// Config holds the full server configuration, merged from an optional config
// file and command-line flags.
type Config struct {
	ListenAddr string            `mapstructure:"listen"`
	APIAddr    string            `mapstructure:"api"`
	StorePath  string            `mapstructure:"store"`
	BatchSize  int               `mapstructure:"batch_size"`
	RateLimit  float64           `mapstructure:"rate_limit"`
	RateBurst  int               `mapstructure:"rate_burst"`
	Refresh    time.Duration     `mapstructure:"refresh"`
	Dashboard  bool              `mapstructure:"dashboard"`
	JSONOutput bool              `mapstructure:"json_output"`
	LogErrors  bool              `mapstructure:"log_errors"`
	Categories map[string]string `mapstructure:"categories"`
	Tracing    TracingConfig     `mapstructure:"tracing"`
	ConfigFile string            `mapstructure:"-"`

	// One-shot store maintenance, flag-only: ImportPath seeds the store
	// before serving, ExportPath writes the list and exits.
	ImportPath string `mapstructure:"-"`
	ExportPath string `mapstructure:"-"`
}

// TracingConfig configures the optional OTLP trace exporter for the admin
// surface. The hot UDP path is never traced.
type TracingConfig struct {
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// Enabled reports whether an exporter endpoint has been configured.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

// ValidationError aggregates every configuration issue found.
type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

// Issues returns a copy of the individual validation messages.
func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Validate checks the configuration and returns a ValidationError listing
// every problem found.
func (c Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.ListenAddr) == "" {
		issues = append(issues, "listen address is required")
	} else if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		issues = append(issues, fmt.Sprintf("listen address %q is not host:port", c.ListenAddr))
	}

	if addr := strings.TrimSpace(c.APIAddr); addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			issues = append(issues, fmt.Sprintf("api address %q is not host:port", c.APIAddr))
		}
	}

	if strings.TrimSpace(c.StorePath) == "" {
		issues = append(issues, "store path is required")
	}
	if c.BatchSize < 1 {
		issues = append(issues, "batch_size must be >= 1")
	}
	if c.RateLimit < 0 {
		issues = append(issues, "rate_limit must be >= 0")
	}
	if c.RateBurst < 0 {
		issues = append(issues, "rate_burst must be >= 0")
	}
	if c.Refresh <= 0 {
		issues = append(issues, "refresh must be > 0")
	}
	if c.Dashboard && c.JSONOutput {
		issues = append(issues, "dashboard and json-output are mutually exclusive")
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1.0 {
		issues = append(issues, "tracing sample_rate must be between 0.0 and 1.0")
	}
	if c.Tracing.Enabled() {
		switch strings.ToLower(strings.TrimSpace(c.Tracing.Protocol)) {
		case "", "grpc", "http":
		default:
			issues = append(issues, fmt.Sprintf("tracing protocol %q is not supported", c.Tracing.Protocol))
		}
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}
