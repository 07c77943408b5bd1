// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Provider-specific configuration lookup
//
// Load() additionally overlays an optional YAML file on top of the environment.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/richinex/patchscout/history"
	"github.com/richinex/patchscout/llm"
)

// Settings holds all application configuration.
type Settings struct {
	LLM      LLMConfig
	Analysis AnalysisConfig
	Repo     RepoConfig
	Cache    history.CacheConfig
	Storage  StorageConfig
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Provider    string
	Model       string
	BaseURL     string
	MaxTokens   uint32
	Temperature float64
	// PromptTokenBudget is the estimated prompt size above which old tool
	// results are elided. Zero disables elision.
	PromptTokenBudget int
}

// AnalysisConfig holds conversation driver configuration.
type AnalysisConfig struct {
	PageSize       int
	MaxRounds      int
	CommandTimeout time.Duration
}

// RepoConfig locates the Chromium checkout and the product patches.
type RepoConfig struct {
	ChromiumRoot string
	OutDir       string
	PatchesDir   string
}

// StorageConfig holds session persistence configuration.
type StorageConfig struct {
	Path string
}

// providerInfo holds configuration for a specific LLM provider.
type providerInfo struct {
	modelEnv     string
	defaultModel string
	apiKeyEnv    string
	baseURLEnv   string
}

// Supported providers and their configuration.
var providers = map[string]providerInfo{
	"openai":    {"OPENAI_MODEL", llm.ModelOpenAIGPT4o, "OPENAI_API_KEY", "OPENAI_BASE_URL"},
	"anthropic": {"ANTHROPIC_MODEL", llm.ModelAnthropicClaudeSonnet4, "ANTHROPIC_API_KEY", "ANTHROPIC_BASE_URL"},
	"deepseek":  {"DEEPSEEK_MODEL", llm.ModelDeepSeekChat, "DEEPSEEK_API_KEY", "DEEPSEEK_BASE_URL"},
	"gemini":    {"GEMINI_MODEL", llm.ModelGeminiFlash25, "GEMINI_API_KEY", ""},
}

// Provider aliases map to canonical names.
var providerAliases = map[string]string{
	"claude": "anthropic",
	"google": "gemini",
	"gpt":    "openai",
}

// DefaultProvider is used when neither the caller nor PATCHSCOUT_PROVIDER
// names one.
const DefaultProvider = "openai"

// New creates settings for the specified provider, loading values from environment variables.
// An empty provider falls back to PATCHSCOUT_PROVIDER, then DefaultProvider.
// Returns an error if the provider is unknown or environment variables contain invalid values.
func New(provider string) (Settings, error) {
	if provider == "" {
		provider = os.Getenv("PATCHSCOUT_PROVIDER")
	}
	if provider == "" {
		provider = DefaultProvider
	}
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return Settings{}, err
	}

	maxTokens, err := getEnvUint32("LLM_MAX_TOKENS", 4096)
	if err != nil {
		return Settings{}, err
	}

	temperature, err := getEnvFloat64("LLM_TEMPERATURE", 0.2)
	if err != nil {
		return Settings{}, err
	}

	budget, err := getEnvInt("LLM_PROMPT_TOKEN_BUDGET", 100000)
	if err != nil {
		return Settings{}, err
	}

	pageSize, err := getEnvInt("PATCHSCOUT_PAGE_SIZE", 25)
	if err != nil {
		return Settings{}, err
	}

	maxRounds, err := getEnvInt("PATCHSCOUT_MAX_ROUNDS", 25)
	if err != nil {
		return Settings{}, err
	}

	timeout, err := getEnvDuration("PATCHSCOUT_COMMAND_TIMEOUT", 60*time.Second)
	if err != nil {
		return Settings{}, err
	}

	caches := history.DefaultCacheConfig()
	if caches.DetailBytes, err = getEnvInt("PATCHSCOUT_CACHE_DETAIL_BYTES", caches.DetailBytes); err != nil {
		return Settings{}, err
	}
	if caches.DiffBytes, err = getEnvInt("PATCHSCOUT_CACHE_DIFF_BYTES", caches.DiffBytes); err != nil {
		return Settings{}, err
	}
	if caches.LogBytes, err = getEnvInt("PATCHSCOUT_CACHE_LOG_BYTES", caches.LogBytes); err != nil {
		return Settings{}, err
	}
	if caches.LogMaxEntries, err = getEnvInt("PATCHSCOUT_CACHE_LOG_ENTRIES", caches.LogMaxEntries); err != nil {
		return Settings{}, err
	}

	// Get model from environment or use default
	model := os.Getenv(info.modelEnv)
	if model == "" {
		model = info.defaultModel
	}

	var baseURL string
	if info.baseURLEnv != "" {
		baseURL = os.Getenv(info.baseURLEnv)
	}

	settings := Settings{
		LLM: LLMConfig{
			Provider:          provider,
			Model:             model,
			BaseURL:           baseURL,
			MaxTokens:         maxTokens,
			Temperature:       temperature,
			PromptTokenBudget: budget,
		},
		Analysis: AnalysisConfig{
			PageSize:       pageSize,
			MaxRounds:      maxRounds,
			CommandTimeout: timeout,
		},
		Repo: RepoConfig{
			ChromiumRoot: getEnvString("CHROMIUM_ROOT", "."),
			OutDir:       getEnvString("CHROMIUM_OUT_DIR", filepath.Join("out", "Default")),
			PatchesDir:   getEnvString("PATCHSCOUT_PATCHES_DIR", "patches"),
		},
		Cache:   caches,
		Storage: StorageConfig{Path: getEnvString("PATCHSCOUT_DB", defaultStoragePath())},
	}
	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// MustNew creates settings for the specified provider.
// Panics if the provider is unknown or environment variables are invalid.
// Use this only when configuration errors should be fatal.
func MustNew(provider string) Settings {
	settings, err := New(provider)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// Validate rejects settings the driver cannot run with.
func (s Settings) Validate() error {
	if s.Analysis.PageSize <= 0 {
		return fmt.Errorf("page size must be positive, got %d", s.Analysis.PageSize)
	}
	if s.Analysis.MaxRounds <= 0 {
		return fmt.Errorf("max rounds must be positive, got %d", s.Analysis.MaxRounds)
	}
	if s.LLM.Temperature < 0 || s.LLM.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %g", s.LLM.Temperature)
	}
	if s.LLM.PromptTokenBudget < 0 {
		return fmt.Errorf("prompt token budget must not be negative, got %d", s.LLM.PromptTokenBudget)
	}
	if s.Repo.ChromiumRoot == "" {
		return fmt.Errorf("chromium root is not set")
	}
	return nil
}

func defaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".patchscout", "sessions.db")
	}
	return filepath.Join(home, ".patchscout", "sessions.db")
}

// normalizeProvider converts provider aliases to canonical names.
func normalizeProvider(provider string) string {
	provider = strings.ToLower(provider)
	if canonical, ok := providerAliases[provider]; ok {
		return canonical
	}
	return provider
}

// getProviderInfo returns configuration for a provider.
func getProviderInfo(provider string) (providerInfo, error) {
	info, ok := providers[provider]
	if !ok {
		return providerInfo{}, fmt.Errorf("unknown provider: %q", provider)
	}
	return info, nil
}

// APIKeyFor returns the API key for a provider from environment variables.
func APIKeyFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	key := os.Getenv(info.apiKeyEnv)
	if key == "" {
		return "", fmt.Errorf("%s environment variable not set", info.apiKeyEnv)
	}
	return key, nil
}

// ModelFor returns the model for a provider, checking environment first.
func ModelFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	if val := os.Getenv(info.modelEnv); val != "" {
		return val, nil
	}
	return info.defaultModel, nil
}

// SupportedProviders returns the list of supported provider names.
func SupportedProviders() []string {
	result := make([]string, 0, len(providers))
	for name := range providers {
		result = append(result, name)
	}
	return result
}

// Environment variable helpers with proper error handling

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvUint32(key string, defaultVal uint32) (uint32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return uint32(i), nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}

// getEnvDuration accepts a Go duration ("90s") or a bare number of seconds.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return d, nil
}
