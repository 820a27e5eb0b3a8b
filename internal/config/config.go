package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Scan      ScanConfig      `mapstructure:"scan"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Lang      LangConfig      `mapstructure:"lang"`
	Report    ReportConfig    `mapstructure:"report"`
	Graph     GraphConfig     `mapstructure:"graph"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Otel      OtelConfig      `mapstructure:"otel"`
	Baseline  BaselineConfig  `mapstructure:"baseline"`
	Log       LogConfig       `mapstructure:"log"`
}

type ScanConfig struct {
	Exclude     []string `mapstructure:"exclude"`
	Extensions  []string `mapstructure:"extensions"`
	Concurrency int      `mapstructure:"concurrency"`
}

// AnalysisConfig tunes coupling thresholds and the layer model. Layer
// rules are ordered; the first matching pattern classifies a module.
type AnalysisConfig struct {
	HighCouplingThreshold  int                 `mapstructure:"high_coupling_threshold"`
	TotalCouplingThreshold int                 `mapstructure:"total_coupling_threshold"`
	Layers                 []LayerRuleConfig   `mapstructure:"layers"`
	AllowedLayers          map[string][]string `mapstructure:"allowed_layers"`
}

type LayerRuleConfig struct {
	Pattern string `mapstructure:"pattern"`
	Layer   string `mapstructure:"layer"`
}

// LangConfig carries extra import patterns per language family,
// keyed by family name (e.g. "javascript").
type LangConfig struct {
	Patterns map[string][]string `mapstructure:"patterns"`
}

type ReportConfig struct {
	Format          string `mapstructure:"format"`
	MaxMermaidNodes int    `mapstructure:"max_mermaid_nodes"`
}

type GraphConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

type VectorConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	APIKey     string `mapstructure:"api_key"`
	Collection string `mapstructure:"collection"`
}

type TemporalConfig struct {
	Host      string `mapstructure:"host"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// WorkerConfig covers the worker process. HealthAddr is where it serves
// its liveness and readiness probes.
type WorkerConfig struct {
	HealthAddr string `mapstructure:"health_addr"`
}

type DashboardConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

type OtelConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
	// SampleRatio overrides the head-sampling rate when positive.
	// Zero keeps the default of sampling everything; an empty endpoint
	// disables tracing regardless.
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type BaselineConfig struct {
	Dir string `mapstructure:"dir"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var reportFormats = map[string]bool{
	"":        true,
	"text":    true,
	"json":    true,
	"mermaid": true,
	"dot":     true,
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if c.Scan.Concurrency < 0 {
		warnings = append(warnings, fmt.Sprintf("scan concurrency %d is negative", c.Scan.Concurrency))
	}

	if c.Analysis.HighCouplingThreshold < 0 {
		warnings = append(warnings, fmt.Sprintf("high_coupling_threshold %d is negative", c.Analysis.HighCouplingThreshold))
	}
	if c.Analysis.TotalCouplingThreshold < 0 {
		warnings = append(warnings, fmt.Sprintf("total_coupling_threshold %d is negative", c.Analysis.TotalCouplingThreshold))
	}
	if c.Analysis.HighCouplingThreshold > 0 && c.Analysis.TotalCouplingThreshold > 0 &&
		c.Analysis.HighCouplingThreshold > c.Analysis.TotalCouplingThreshold {
		warnings = append(warnings, fmt.Sprintf("high_coupling_threshold %d exceeds total_coupling_threshold %d",
			c.Analysis.HighCouplingThreshold, c.Analysis.TotalCouplingThreshold))
	}
	for i, rule := range c.Analysis.Layers {
		if rule.Pattern == "" || rule.Layer == "" {
			warnings = append(warnings, fmt.Sprintf("layer rule %d is missing a pattern or layer name", i))
		}
	}

	for family, patterns := range c.Lang.Patterns {
		for _, p := range patterns {
			if _, err := regexp.Compile(p); err != nil {
				warnings = append(warnings, fmt.Sprintf("lang pattern %q for family '%s' does not compile: %v", p, family, err))
			}
		}
	}

	if !reportFormats[c.Report.Format] {
		warnings = append(warnings, fmt.Sprintf("report format '%s' is not one of text, json, mermaid, dot", c.Report.Format))
	}
	if c.Report.MaxMermaidNodes < 0 {
		warnings = append(warnings, fmt.Sprintf("max_mermaid_nodes %d is negative", c.Report.MaxMermaidNodes))
	}

	if c.Graph.URI != "" && c.Graph.Username == "" {
		warnings = append(warnings, fmt.Sprintf("graph uri '%s' is configured but username is empty", c.Graph.URI))
	}

	if c.Vector.Port < 0 || c.Vector.Port > 65535 {
		warnings = append(warnings, fmt.Sprintf("vector port %d is outside valid range [0, 65535]", c.Vector.Port))
	}

	if c.Otel.SampleRatio < 0 || c.Otel.SampleRatio > 1 {
		warnings = append(warnings, fmt.Sprintf("otel sample_ratio %g is outside [0, 1]", c.Otel.SampleRatio))
	}

	return warnings
}

// Load reads configuration from file and environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("STRATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Validate configuration and print warnings
	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}
