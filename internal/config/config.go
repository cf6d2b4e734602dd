package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingRequired is returned when a mandatory input is not set.
var ErrMissingRequired = errors.New("required input not set")

// Sections toggles the blocks of the generated report.
type Sections struct {
	Timezone        bool `mapstructure:"show_timezone"`
	Projects        bool `mapstructure:"show_projects"`
	Editors         bool `mapstructure:"show_editors"`
	OS              bool `mapstructure:"show_os"`
	Commit          bool `mapstructure:"show_commit"`
	DaysOfWeek      bool `mapstructure:"show_days_of_week"`
	Language        bool `mapstructure:"show_language"`
	ShortInfo       bool `mapstructure:"show_short_info"`
	LocChart        bool `mapstructure:"show_loc_chart"`
	ProfileViews    bool `mapstructure:"show_profile_views"`
	TotalCodeTime   bool `mapstructure:"show_total_code_time"`
	LinesOfCode     bool `mapstructure:"show_lines_of_code"`
	LanguagePerRepo bool `mapstructure:"show_language_per_repo"`
	UpdatedDate     bool `mapstructure:"show_updated_date"`
}

type Config struct {
	GHToken        string `mapstructure:"gh_token"`
	WakatimeAPIKey string `mapstructure:"wakatime_api_key"`

	SectionName    string `mapstructure:"section_name"`
	ReadmePath     string `mapstructure:"readme_path"`
	PullBranchName string `mapstructure:"pull_branch_name"`
	PushBranchName string `mapstructure:"push_branch_name"`

	Sections Sections `mapstructure:",squash"`

	CommitByMe     bool   `mapstructure:"commit_by_me"`
	CommitMessage  string `mapstructure:"commit_message"`
	CommitUsername string `mapstructure:"commit_username"`
	CommitEmail    string `mapstructure:"commit_email"`
	CommitSingle   bool   `mapstructure:"commit_single"`

	Locale            string   `mapstructure:"locale"`
	UpdatedDateFormat string   `mapstructure:"updated_date_format"`
	IgnoredRepos      []string `mapstructure:"-"`
	SymbolVersion     int      `mapstructure:"symbol_version"`

	DebugLogging bool   `mapstructure:"debug_logging"`
	DebugRun     bool   `mapstructure:"debug_run"`
	LogLevel     string `mapstructure:"log_level"`

	UseCache       bool   `mapstructure:"use_cache"`
	CacheTTLDays   int    `mapstructure:"cache_ttl_days"`
	CachePath      string `mapstructure:"cache_path"`
	MaxConcurrency int    `mapstructure:"max_concurrency"`

	WakatimeAPIURL string `mapstructure:"wakatime_api_url"`
	GitHubAPIURL   string `mapstructure:"github_api_url"`

	Store Store `mapstructure:",squash"`

	ReportPath      string `mapstructure:"report_path"`
	MetricsTextfile string `mapstructure:"metrics_textfile"`
}

// Store selects the document storage driver.
type Store struct {
	Driver     string `mapstructure:"store_driver"`
	Root       string `mapstructure:"store_root"`
	S3Bucket   string `mapstructure:"s3_bucket"`
	S3Region   string `mapstructure:"s3_region"`
	S3Endpoint string `mapstructure:"s3_endpoint"`
	S3Prefix   string `mapstructure:"s3_prefix"`
	PathStyle  bool   `mapstructure:"s3_path_style"`
}

var defaults = map[string]any{
	"section_name":           "waka",
	"readme_path":            "README.md",
	"pull_branch_name":       "",
	"push_branch_name":       "",
	"show_timezone":          true,
	"show_projects":          true,
	"show_editors":           true,
	"show_os":                true,
	"show_commit":            true,
	"show_days_of_week":      true,
	"show_language":          true,
	"show_short_info":        true,
	"show_loc_chart":         true,
	"show_profile_views":     true,
	"show_total_code_time":   true,
	"show_lines_of_code":     false,
	"show_language_per_repo": true,
	"show_updated_date":      true,
	"commit_by_me":           false,
	"commit_message":         "Updated with Dev Metrics",
	"commit_username":        "",
	"commit_email":           "",
	"commit_single":          false,
	"locale":                 "en",
	"updated_date_format":    "02/01/2006 15:04:05 MST",
	"ignored_repos":          "",
	"symbol_version":         1,
	"debug_logging":          false,
	"debug_run":              false,
	"log_level":              "info",
	"use_cache":              true,
	"cache_ttl_days":         1,
	"cache_path":             ".cache/wakareadme.db",
	"max_concurrency":        4,
	"wakatime_api_url":       "https://wakatime.com/api/v1",
	"github_api_url":         "https://api.github.com",
	"store_driver":           "fs",
	"store_root":             ".",
	"s3_bucket":              "",
	"s3_region":              "us-east-1",
	"s3_endpoint":            "",
	"s3_prefix":              "",
	"s3_path_style":          false,
	"report_path":            "",
	"metrics_textfile":       "",
}

// LoadConfig reads .env (if any), the optional YAML file at path and INPUT_*
// environment variables, in increasing order of precedence.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetDefault("gh_token", "")
	v.SetDefault("wakatime_api_key", "")

	// 2. Load YAML config
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	// 3. Environment variables as published by the action runner
	v.SetEnvPrefix("INPUT")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.IgnoredRepos = splitList(v.GetString("ignored_repos"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required inputs and clamps numeric settings.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.GHToken) == "" {
		return fmt.Errorf("GH_TOKEN: %w", ErrMissingRequired)
	}
	if strings.TrimSpace(c.WakatimeAPIKey) == "" {
		return fmt.Errorf("WAKATIME_API_KEY: %w", ErrMissingRequired)
	}
	if c.SymbolVersion < 1 || c.SymbolVersion > 3 {
		c.SymbolVersion = 1
	}
	if c.MaxConcurrency < 1 {
		c.MaxConcurrency = 1
	}
	if c.CacheTTLDays < 0 {
		c.CacheTTLDays = 0
	}
	if c.SectionName == "" {
		c.SectionName = "waka"
	}
	return nil
}

// IsIgnored reports whether repo is listed in IGNORED_REPOS.
func (c *Config) IsIgnored(repo string) bool {
	for _, r := range c.IgnoredRepos {
		if r == repo {
			return true
		}
	}
	return false
}

func splitList(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
