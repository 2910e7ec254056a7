package config

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and an optional config file into a
// Config. Flag values override file values.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	// Category prefixes like "203.0.113." are map keys with literal
	// dots; viper's default "." delimiter would explode them into
	// nested maps, so use a delimiter that cannot appear in a key.
	cfgViper := viper.NewWithOptions(viper.KeyDelimiter("::"))
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		ListenAddr: "0.0.0.0:27010",
		StorePath:  "servers.yaml",
		BatchSize:  64,
		RateBurst:  5,
		Refresh:    time.Second,
		ConfigFile: configPath,
	}

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.ListenAddr = strings.TrimSpace(cfg.ListenAddr)
	cfg.APIAddr = strings.TrimSpace(cfg.APIAddr)
	cfg.StorePath = strings.TrimSpace(cfg.StorePath)

	return cfg, nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "listen"); ok {
		val, err := asString(raw)
		if err != nil {
			return wrapSetting("listen", err)
		}
		cfg.ListenAddr = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "api"); ok {
		val, err := asString(raw)
		if err != nil {
			return wrapSetting("api", err)
		}
		cfg.APIAddr = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "store"); ok {
		val, err := asString(raw)
		if err != nil {
			return wrapSetting("store", err)
		}
		cfg.StorePath = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "batchsize", "batch_size", "batch-size"); ok {
		val, err := asInt(raw)
		if err != nil {
			return wrapSetting("batch_size", err)
		}
		cfg.BatchSize = val
	}

	if raw, ok := lookupSetting(settings, "ratelimit", "rate_limit", "rate-limit"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return wrapSetting("rate_limit", err)
		}
		cfg.RateLimit = val
	}

	if raw, ok := lookupSetting(settings, "rateburst", "rate_burst", "rate-burst"); ok {
		val, err := asInt(raw)
		if err != nil {
			return wrapSetting("rate_burst", err)
		}
		cfg.RateBurst = val
	}

	if raw, ok := lookupSetting(settings, "refresh"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return wrapSetting("refresh", err)
		}
		cfg.Refresh = dur
	}

	if raw, ok := lookupSetting(settings, "dashboard"); ok {
		val, err := asBool(raw)
		if err != nil {
			return wrapSetting("dashboard", err)
		}
		cfg.Dashboard = val
	}

	if raw, ok := lookupSetting(settings, "jsonoutput", "json_output", "json-output"); ok {
		val, err := asBool(raw)
		if err != nil {
			return wrapSetting("jsonOutput", err)
		}
		cfg.JSONOutput = val
	}

	if raw, ok := lookupSetting(settings, "logerrors", "log_errors", "log-errors"); ok {
		val, err := asBool(raw)
		if err != nil {
			return wrapSetting("logErrors", err)
		}
		cfg.LogErrors = val
	}

	if raw, ok := lookupSetting(settings, "categories"); ok {
		table, err := asStringMap(raw)
		if err != nil {
			return wrapSetting("categories", err)
		}
		cfg.Categories = table
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tracing, err := parseTracing(raw)
		if err != nil {
			return wrapSetting("tracing", err)
		}
		cfg.Tracing = tracing
	}

	return nil
}

func parseTracing(value interface{}) (TracingConfig, error) {
	if value == nil {
		return TracingConfig{}, nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return TracingConfig{}, err
	}

	var tracing TracingConfig
	if raw, ok := lookupSetting(entry, "servicename", "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, wrapSetting("service_name", err)
		}
		tracing.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, wrapSetting("endpoint", err)
		}
		tracing.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, wrapSetting("protocol", err)
		}
		tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(entry, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, wrapSetting("insecure", err)
		}
		tracing.Insecure = val
	}
	if raw, ok := lookupSetting(entry, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return TracingConfig{}, wrapSetting("sample_rate", err)
		}
		tracing.SampleRate = val
	}
	return tracing, nil
}
