package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete peopledex configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Summary    SummaryConfig    `yaml:"summary" json:"summary"`
	Server     ServerConfig     `yaml:"server" json:"server"`
	Watch      WatchConfig      `yaml:"watch" json:"watch"`
}

// StorageConfig configures where the directory keeps its data.
type StorageConfig struct {
	// DataDir holds the people database, lexical index, and vector snapshot.
	// Relative paths are resolved against the project root.
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// CorpusPath is the default corpus file for `peopledex load`.
	CorpusPath string `yaml:"corpus_path" json:"corpus_path"`
}

// SearchConfig configures search behavior.
type SearchConfig struct {
	// LexicalBackend selects the lexical index backend.
	// Options: "sqlite" (default, concurrent access) or "bleve" (single-process).
	// SQLite FTS5 with WAL mode enables concurrent multi-process access.
	LexicalBackend string `yaml:"lexical_backend" json:"lexical_backend"`

	// ResultCap bounds lexical search results (default: 100).
	ResultCap int `yaml:"result_cap" json:"result_cap"`

	// DefaultK is the default number of semantic search results (default: 10).
	DefaultK int `yaml:"default_k" json:"default_k"`
}

// EmbeddingsConfig configures the embedding provider chain.
// API keys are never stored here; they come from VOYAGE_API_KEY and
// OPENAI_API_KEY environment variables.
type EmbeddingsConfig struct {
	// Provider selects the embedding provider.
	// Options: "voyage", "openai", "static", or empty for auto-detection
	// (voyage, then openai, then static, keyed on which API key is present).
	Provider string `yaml:"provider" json:"provider"`

	// Model overrides the provider's default embedding model.
	Model string `yaml:"model" json:"model"`

	// Dimensions overrides the embedding dimension (0 = provider default).
	Dimensions int `yaml:"dimensions" json:"dimensions"`

	// BatchSize is the number of texts per embedding request (default: 32).
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// Workers bounds parallel embedding batches during index builds.
	Workers int `yaml:"workers" json:"workers"`

	// CacheSize is the LRU embedding cache capacity (default: 1000).
	CacheSize int `yaml:"cache_size" json:"cache_size"`

	// MaxChars truncates text before submission to a provider (default: 32000).
	MaxChars int `yaml:"max_chars" json:"max_chars"`

	// RequestTimeout is the per-request timeout (default: 30s).
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`

	// VoyageBaseURL is the Voyage AI endpoint (OpenAI-compatible).
	VoyageBaseURL string `yaml:"voyage_base_url" json:"voyage_base_url"`

	// OpenAIBaseURL overrides the OpenAI endpoint (empty = api.openai.com).
	OpenAIBaseURL string `yaml:"openai_base_url" json:"openai_base_url"`
}

// SummaryConfig configures AI summaries for semantic search.
type SummaryConfig struct {
	// Enabled toggles summaries (default: true; still requires an API key).
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Model is the chat model used for summaries (default: gpt-4o-mini).
	Model string `yaml:"model" json:"model"`
	// BaseURL overrides the chat completion endpoint (empty = api.openai.com).
	BaseURL string `yaml:"base_url" json:"base_url"`
	// MaxTokens caps the summary length (default: 256).
	MaxTokens int `yaml:"max_tokens" json:"max_tokens"`
	// Temperature is the sampling temperature (default: 0.7).
	Temperature float64 `yaml:"temperature" json:"temperature"`
	// BioLimit truncates each bio in the summary context (default: 300 chars).
	BioLimit int `yaml:"bio_limit" json:"bio_limit"`
	// MaxProfiles bounds how many results feed the summary (default: 5).
	MaxProfiles int `yaml:"max_profiles" json:"max_profiles"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// WatchConfig configures corpus file watching.
type WatchConfig struct {
	// Debounce coalesces rapid file events (default: 500ms).
	Debounce string `yaml:"debounce" json:"debounce"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Storage: StorageConfig{
			DataDir:    ".peopledex",
			CorpusPath: "people.json",
		},
		Search: SearchConfig{
			// SQLite FTS5 is default for concurrent multi-process access
			LexicalBackend: "sqlite",
			ResultCap:      100,
			DefaultK:       10,
		},
		Embeddings: EmbeddingsConfig{
			Provider:       "", // Empty triggers auto-detection: Voyage -> OpenAI -> Static
			Model:          "", // Empty uses the provider default
			Dimensions:     0,  // Auto-detect from provider
			BatchSize:      32,
			Workers:        runtime.NumCPU(),
			CacheSize:      1000,
			MaxChars:       32000,
			RequestTimeout: 30 * time.Second,
			VoyageBaseURL:  "https://api.voyageai.com/v1",
			OpenAIBaseURL:  "", // Empty uses default api.openai.com
		},
		Summary: SummaryConfig{
			Enabled:     true,
			Model:       "gpt-4o-mini",
			BaseURL:     "", // Empty uses default api.openai.com
			MaxTokens:   256,
			Temperature: 0.7,
			BioLimit:    300,
			MaxProfiles: 5,
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "debug", // Debug by default to aid troubleshooting
		},
		Watch: WatchConfig{
			Debounce: "500ms",
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/peopledex/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/peopledex/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "peopledex", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback - should rarely happen
		return filepath.Join(os.TempDir(), ".config", "peopledex", "config.yaml")
	}
	return filepath.Join(home, ".config", "peopledex", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist (that's OK).
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()

	// Check if file exists
	if !fileExists(configPath) {
		return nil, nil // No user config is fine
	}

	// Load the config
	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}

	return cfg, nil
}

// Load loads configuration from the specified directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/peopledex/config.yaml)
//  3. Project config (.peopledex.yaml in project root)
//  4. Environment variables (PEOPLEDEX_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	// Step 1: Load user/global config (if exists)
	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	// Step 2: Load project config (overrides user config)
	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	// Step 3: Apply environment variable overrides (highest precedence)
	cfg.applyEnvOverrides()

	// Step 4: Validate the final configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .peopledex.yaml or .peopledex.yml.
func (c *Config) loadFromFile(dir string) error {
	// Try .yaml first (takes precedence)
	yamlPath := filepath.Join(dir, ".peopledex.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	// Try .yml as fallback
	ymlPath := filepath.Join(dir, ".peopledex.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	// No config file is fine - use defaults
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Use a temporary struct for parsing to detect type errors
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// Merge parsed values with defaults (only non-zero values)
	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	// Storage
	if other.Storage.DataDir != "" {
		c.Storage.DataDir = other.Storage.DataDir
	}
	if other.Storage.CorpusPath != "" {
		c.Storage.CorpusPath = other.Storage.CorpusPath
	}

	// Search
	if other.Search.LexicalBackend != "" {
		c.Search.LexicalBackend = other.Search.LexicalBackend
	}
	if other.Search.ResultCap != 0 {
		c.Search.ResultCap = other.Search.ResultCap
	}
	if other.Search.DefaultK != 0 {
		c.Search.DefaultK = other.Search.DefaultK
	}

	// Embeddings
	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.Workers != 0 {
		c.Embeddings.Workers = other.Embeddings.Workers
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}
	if other.Embeddings.MaxChars != 0 {
		c.Embeddings.MaxChars = other.Embeddings.MaxChars
	}
	if other.Embeddings.RequestTimeout != 0 {
		c.Embeddings.RequestTimeout = other.Embeddings.RequestTimeout
	}
	if other.Embeddings.VoyageBaseURL != "" {
		c.Embeddings.VoyageBaseURL = other.Embeddings.VoyageBaseURL
	}
	if other.Embeddings.OpenAIBaseURL != "" {
		c.Embeddings.OpenAIBaseURL = other.Embeddings.OpenAIBaseURL
	}

	// Summary
	// Enabled is boolean - only merge when the section was visibly set
	if other.Summary.Model != "" || other.Summary.MaxTokens != 0 ||
		other.Summary.Temperature != 0 || other.Summary.BioLimit != 0 {
		c.Summary.Enabled = other.Summary.Enabled
	}
	if other.Summary.Model != "" {
		c.Summary.Model = other.Summary.Model
	}
	if other.Summary.BaseURL != "" {
		c.Summary.BaseURL = other.Summary.BaseURL
	}
	if other.Summary.MaxTokens != 0 {
		c.Summary.MaxTokens = other.Summary.MaxTokens
	}
	if other.Summary.Temperature != 0 {
		c.Summary.Temperature = other.Summary.Temperature
	}
	if other.Summary.BioLimit != 0 {
		c.Summary.BioLimit = other.Summary.BioLimit
	}
	if other.Summary.MaxProfiles != 0 {
		c.Summary.MaxProfiles = other.Summary.MaxProfiles
	}

	// Server
	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}

	// Watch
	if other.Watch.Debounce != "" {
		c.Watch.Debounce = other.Watch.Debounce
	}
}

// applyEnvOverrides applies PEOPLEDEX_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PEOPLEDEX_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("PEOPLEDEX_CORPUS"); v != "" {
		c.Storage.CorpusPath = v
	}

	if v := os.Getenv("PEOPLEDEX_LEXICAL_BACKEND"); v != "" {
		c.Search.LexicalBackend = v
	}
	if v := os.Getenv("PEOPLEDEX_RESULT_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.ResultCap = n
		}
	}

	if v := os.Getenv("PEOPLEDEX_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	// PEOPLEDEX_EMBEDDER is an alias for PEOPLEDEX_EMBEDDINGS_PROVIDER
	if v := os.Getenv("PEOPLEDEX_EMBEDDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("PEOPLEDEX_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("PEOPLEDEX_VOYAGE_BASE_URL"); v != "" {
		c.Embeddings.VoyageBaseURL = v
	}
	if v := os.Getenv("PEOPLEDEX_OPENAI_BASE_URL"); v != "" {
		c.Embeddings.OpenAIBaseURL = v
	}

	if v := os.Getenv("PEOPLEDEX_SUMMARY_ENABLED"); v != "" {
		c.Summary.Enabled = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("PEOPLEDEX_SUMMARY_MODEL"); v != "" {
		c.Summary.Model = v
	}
	if v := os.Getenv("PEOPLEDEX_SUMMARY_BASE_URL"); v != "" {
		c.Summary.BaseURL = v
	}
	if v := os.Getenv("PEOPLEDEX_SUMMARY_TEMPERATURE"); v != "" {
		if t, err := parseFloat64(v); err == nil && t >= 0 && t <= 2 {
			c.Summary.Temperature = t
		}
	}

	if v := os.Getenv("PEOPLEDEX_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("PEOPLEDEX_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
}

// parseFloat64 parses a string to float64, used for config parsing.
func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

// ResolveDataDir resolves the data directory against the project root.
func (c *Config) ResolveDataDir(root string) string {
	if filepath.IsAbs(c.Storage.DataDir) {
		return c.Storage.DataDir
	}
	return filepath.Join(root, c.Storage.DataDir)
}

// ResolveCorpusPath resolves the corpus path against the project root.
func (c *Config) ResolveCorpusPath(root string) string {
	if filepath.IsAbs(c.Storage.CorpusPath) {
		return c.Storage.CorpusPath
	}
	return filepath.Join(root, c.Storage.CorpusPath)
}

// DebounceDuration parses the watch debounce with a safe fallback.
func (c *Config) DebounceDuration() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

// FindProjectRoot finds the project root directory.
// It looks for .git directory or .peopledex.yaml/.yml file by walking up the
// directory tree.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		// Check for .git directory
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}

		// Check for .peopledex.yaml or .peopledex.yml
		if fileExists(filepath.Join(currentDir, ".peopledex.yaml")) ||
			fileExists(filepath.Join(currentDir, ".peopledex.yml")) {
			return currentDir, nil
		}

		// Move up one directory
		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root, return original directory
			return absDir, nil
		}
		currentDir = parentDir
	}
}

// DiscoverCorpusFile looks for a corpus file under common names in dir.
// Returns the first match and true, or "" and false.
func DiscoverCorpusFile(dir string) (string, bool) {
	candidates := []string{
		"people.json",
		"corpus.json",
		"directory.json",
		filepath.Join("data", "people.json"),
	}

	for _, name := range candidates {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return path, true
		}
	}

	return "", false
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// dirExists checks if a directory exists.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	// Validate lexical backend
	validBackends := map[string]bool{"sqlite": true, "bleve": true}
	if !validBackends[strings.ToLower(c.Search.LexicalBackend)] {
		return fmt.Errorf("search.lexical_backend must be 'sqlite' or 'bleve', got %s", c.Search.LexicalBackend)
	}

	// Validate result bounds
	if c.Search.ResultCap <= 0 {
		return fmt.Errorf("search.result_cap must be positive, got %d", c.Search.ResultCap)
	}
	if c.Search.DefaultK <= 0 {
		return fmt.Errorf("search.default_k must be positive, got %d", c.Search.DefaultK)
	}

	// Validate provider (empty string allowed for auto-detection)
	if c.Embeddings.Provider != "" {
		validProviders := map[string]bool{"voyage": true, "openai": true, "static": true}
		if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
			return fmt.Errorf("embeddings.provider must be 'voyage', 'openai', 'static', or empty (auto-detect), got %s", c.Embeddings.Provider)
		}
	}
	if c.Embeddings.Dimensions < 0 {
		return fmt.Errorf("embeddings.dimensions must be non-negative, got %d", c.Embeddings.Dimensions)
	}
	if c.Embeddings.BatchSize <= 0 {
		return fmt.Errorf("embeddings.batch_size must be positive, got %d", c.Embeddings.BatchSize)
	}
	if c.Embeddings.MaxChars <= 0 {
		return fmt.Errorf("embeddings.max_chars must be positive, got %d", c.Embeddings.MaxChars)
	}

	// Validate summary settings
	if c.Summary.Temperature < 0 || c.Summary.Temperature > 2 {
		return fmt.Errorf("summary.temperature must be between 0 and 2, got %f", c.Summary.Temperature)
	}
	if c.Summary.MaxTokens <= 0 {
		return fmt.Errorf("summary.max_tokens must be positive, got %d", c.Summary.MaxTokens)
	}

	// Validate transport
	if strings.ToLower(c.Server.Transport) != "stdio" {
		return fmt.Errorf("server.transport must be 'stdio', got %s", c.Server.Transport)
	}

	// Validate log level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// MergeNewDefaults adds new default fields while preserving existing values.
// Returns a list of field names that were added with their default values.
func (c *Config) MergeNewDefaults() []string {
	defaults := NewConfig()
	var added []string

	// Search bounds
	if c.Search.ResultCap == 0 {
		c.Search.ResultCap = defaults.Search.ResultCap
		added = append(added, "search.result_cap")
	}
	if c.Search.DefaultK == 0 {
		c.Search.DefaultK = defaults.Search.DefaultK
		added = append(added, "search.default_k")
	}

	// Embeddings cache and truncation
	if c.Embeddings.CacheSize == 0 {
		c.Embeddings.CacheSize = defaults.Embeddings.CacheSize
		added = append(added, "embeddings.cache_size")
	}
	if c.Embeddings.MaxChars == 0 {
		c.Embeddings.MaxChars = defaults.Embeddings.MaxChars
		added = append(added, "embeddings.max_chars")
	}

	// Summary section
	if c.Summary.Model == "" {
		c.Summary.Model = defaults.Summary.Model
		added = append(added, "summary.model")
	}
	if c.Summary.MaxTokens == 0 {
		c.Summary.MaxTokens = defaults.Summary.MaxTokens
		added = append(added, "summary.max_tokens")
	}
	if c.Summary.Temperature == 0 {
		c.Summary.Temperature = defaults.Summary.Temperature
		added = append(added, "summary.temperature")
	}
	if c.Summary.BioLimit == 0 {
		c.Summary.BioLimit = defaults.Summary.BioLimit
		added = append(added, "summary.bio_limit")
	}
	if c.Summary.MaxProfiles == 0 {
		c.Summary.MaxProfiles = defaults.Summary.MaxProfiles
		added = append(added, "summary.max_profiles")
	}
	// enabled is boolean - can't distinguish "not set" from "set to false"
	// so we don't auto-migrate this field

	// Watch debounce
	if c.Watch.Debounce == "" {
		c.Watch.Debounce = defaults.Watch.Debounce
		added = append(added, "watch.debounce")
	}

	return added
}
