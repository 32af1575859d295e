// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/drawatale/drawatale-backend/internal/utils"
	"github.com/joho/godotenv"
)

// Default models used when no model is configured for a provider.
var DefaultModels = map[string]string{
	"openai":    "gpt-3.5-turbo",
	"anthropic": "claude-3-haiku-20240307",
	"google":    "gemini-2.0-flash",
}

// Config holds settings read from the environment at startup.
type Config struct {
	Port        string
	GinMode     string
	DataDir     string
	LogDir      string
	LogMode     string
	DebugMode   bool
	CORSOrigins []string

	SecretKey          string
	TokenExpireMinutes int
	// AdminToken guards runtime provider changes. Empty disables them.
	AdminToken string

	StorageDriver string
	DatabaseURL   string

	LLMProvider     string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GeminiAPIKey    string
	LLMModel        string
	LLMMaxTokens    int
	LLMTemperature  float64
	LLMTimeout      time.Duration

	HeuristicsFile string

	RateLimitPerMinute      int
	StoryRateLimitPerMinute int

	OTelEnabled     bool
	OTelSampleRatio float64
	OTelEndpoint    string
	OTelInsecure    bool

	EncryptionKey string
}

// Load reads configuration from the environment, after an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8001"),
		GinMode:     getEnv("GIN_MODE", "release"),
		DataDir:     getEnvPath("DATA_DIR", "data"),
		LogDir:      getEnvPath("LOG_DIR", "logs"),
		LogMode:     getEnv("LOG_MODE", "development"),
		DebugMode:   getEnvBool("DEBUG_MODE", false),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),

		SecretKey:          getEnv("SECRET_KEY", ""),
		TokenExpireMinutes: getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30),
		AdminToken:         getEnv("ADMIN_TOKEN", ""),

		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", "file")),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		LLMProvider:     strings.ToLower(getEnv("LLM_PROVIDER", "")),
		OpenAIAPIKey:    apiKey("OPENAI_API_KEY"),
		AnthropicAPIKey: apiKey("ANTHROPIC_API_KEY"),
		GeminiAPIKey:    apiKey("GEMINI_API_KEY"),
		LLMModel:        getEnv("LLM_MODEL", ""),
		LLMMaxTokens:    getEnvInt("LLM_MAX_TOKENS", 1000),
		LLMTemperature:  getEnvFloat("LLM_TEMPERATURE", 0.8),
		LLMTimeout:      time.Duration(getEnvInt("LLM_TIMEOUT_SECONDS", 0)) * time.Second,

		HeuristicsFile: getEnv("HEURISTICS_FILE", ""),

		RateLimitPerMinute:      getEnvInt("RATE_LIMIT_PER_MINUTE", 100),
		StoryRateLimitPerMinute: getEnvInt("STORY_RATE_LIMIT_PER_MINUTE", 10),

		OTelEnabled:     getEnvBool("OTEL_ENABLED", false),
		OTelSampleRatio: getEnvFloat("OTEL_SAMPLER_RATIO", 1.0),
		OTelEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTelInsecure:    getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", false),

		EncryptionKey: getEnv("CONFIG_ENCRYPTION_KEY", ""),
	}

	switch cfg.StorageDriver {
	case "file", "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}
	if cfg.StorageDriver == "postgres" && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for the postgres driver")
	}
	if cfg.StorageDriver == "sqlite" && cfg.DatabaseURL == "" {
		cfg.DatabaseURL = filepath.Join(cfg.DataDir, "drawatale.db")
	}

	if cfg.OpenAIAPIKey == "" && cfg.AnthropicAPIKey == "" && cfg.GeminiAPIKey == "" {
		utils.GetLogger().Warn("no LLM API key configured, stories will use the template generator", nil)
	}

	return cfg, nil
}

// DetectLLM picks the provider, key and model to start with. An explicit
// LLM_PROVIDER wins; otherwise the first configured key in OpenAI,
// Anthropic, Gemini order is used. It returns an empty provider when no
// key is available.
func (c *Config) DetectLLM() (provider, key, model string) {
	keys := map[string]string{
		"openai":    c.OpenAIAPIKey,
		"anthropic": c.AnthropicAPIKey,
		"google":    c.GeminiAPIKey,
	}

	if c.LLMProvider != "" {
		provider = c.LLMProvider
		key = keys[provider]
		if key == "" {
			// OpenAI-compatible gateways reuse the OpenAI key slot.
			key = c.OpenAIAPIKey
		}
	} else {
		for _, name := range []string{"openai", "anthropic", "google"} {
			if keys[name] != "" {
				provider, key = name, keys[name]
				break
			}
		}
	}
	if provider == "" || key == "" {
		return "", "", ""
	}

	model = c.LLMModel
	if model == "" {
		model = DefaultModels[provider]
	}
	return provider, key, model
}

// IsPlaceholderKey reports values copied verbatim from sample env files.
func IsPlaceholderKey(value string) bool {
	return strings.Contains(strings.ToLower(value), "placeholder")
}

func apiKey(name string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if IsPlaceholderKey(v) {
		return ""
	}
	return v
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath returns a directory path from the environment and makes sure it exists.
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			utils.GetLogger().Warn("failed to create directory", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
		}
	}
	return path
}

func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes" || value == "on"
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// AppConfig is the runtime configuration persisted to data/config.json.
type AppConfig struct {
	LLMProvider string            `json:"llm_provider"`
	LLMConfig   map[string]string `json:"llm_config"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// RuntimeConfig guards the persisted AppConfig. API keys are encrypted on
// disk when an encryption key is set.
type RuntimeConfig struct {
	mu            sync.RWMutex
	current       *AppConfig
	configFile    string
	encryptionKey string
}

// InitConfig loads data/config.json, seeding it from base when absent.
// Saved LLM settings take precedence over the environment.
func InitConfig(dataDir string, base *Config) (*RuntimeConfig, error) {
	rc := &RuntimeConfig{
		configFile:    filepath.Join(dataDir, "config.json"),
		encryptionKey: base.EncryptionKey,
	}

	provider, key, model := base.DetectLLM()
	rc.current = &AppConfig{
		LLMProvider: provider,
		LLMConfig: map[string]string{
			"api_key":       key,
			"default_model": model,
		},
	}

	if data, err := os.ReadFile(rc.configFile); err == nil {
		var saved AppConfig
		if err := json.Unmarshal(data, &saved); err != nil {
			return nil, fmt.Errorf("parse %s: %w", rc.configFile, err)
		}
		if saved.LLMConfig == nil {
			saved.LLMConfig = map[string]string{}
		}
		plain, err := utils.DecryptSecret(saved.LLMConfig["api_key"], rc.encryptionKey)
		if err != nil {
			return nil, fmt.Errorf("decrypt saved api key: %w", err)
		}
		saved.LLMConfig["api_key"] = plain
		if saved.LLMProvider != "" && plain != "" {
			rc.current = &saved
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc, rc.saveLocked()
}

// Get returns a copy of the current runtime config.
func (rc *RuntimeConfig) Get() AppConfig {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	out := *rc.current
	out.LLMConfig = make(map[string]string, len(rc.current.LLMConfig))
	for k, v := range rc.current.LLMConfig {
		out.LLMConfig[k] = v
	}
	return out
}

// UpdateLLMConfig switches the provider settings and persists them.
func (rc *RuntimeConfig) UpdateLLMConfig(provider string, settings map[string]string) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	copied := make(map[string]string, len(settings))
	for k, v := range settings {
		copied[k] = v
	}
	rc.current.LLMProvider = provider
	rc.current.LLMConfig = copied
	return rc.saveLocked()
}

func (rc *RuntimeConfig) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(rc.configFile), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	onDisk := *rc.current
	onDisk.UpdatedAt = time.Now().UTC()
	onDisk.LLMConfig = make(map[string]string, len(rc.current.LLMConfig))
	for k, v := range rc.current.LLMConfig {
		onDisk.LLMConfig[k] = v
	}
	sealed, err := utils.EncryptSecret(onDisk.LLMConfig["api_key"], rc.encryptionKey)
	if err != nil {
		return fmt.Errorf("encrypt api key: %w", err)
	}
	if sealed != "" {
		onDisk.LLMConfig["api_key"] = sealed
	}

	data, err := json.MarshalIndent(onDisk, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(rc.configFile, data, 0600)
}
