// internal/services/llm_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/drawatale/drawatale-backend/internal/config"
	"github.com/drawatale/drawatale-backend/internal/llm"
	"github.com/drawatale/drawatale-backend/internal/utils"
)

var ErrLLMNotReady = errors.New("llm service not ready")

// LLMStatus is the public view of the active provider.
type LLMStatus struct {
	Ready    bool   `json:"ready"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	State    string `json:"state"`
}

// LLMService owns the active text generation provider. The provider can be
// swapped at runtime; callers always see a consistent provider and model.
type LLMService struct {
	providerMutex      sync.RWMutex
	provider           llm.Provider
	providerName       string
	isReady            bool
	readyState         string
	activeDefaultModel string

	runtime *config.RuntimeConfig
	metrics *utils.AppMetrics
}

// NewLLMService initialises the provider saved in the runtime config. A
// missing key or a failed initialisation leaves the service in standby;
// it never returns an unusable value.
func NewLLMService(runtime *config.RuntimeConfig, metrics *utils.AppMetrics) *LLMService {
	s := &LLMService{
		readyState: "Uninitialized",
		runtime:    runtime,
		metrics:    metrics,
	}
	if runtime == nil {
		s.readyState = "Standby: no runtime configuration"
		return s
	}

	cfg := runtime.Get()
	if cfg.LLMProvider == "" || cfg.LLMConfig["api_key"] == "" {
		s.readyState = "API key not configured"
		return s
	}

	provider, err := llm.GetProvider(cfg.LLMProvider, cfg.LLMConfig)
	if err != nil {
		s.readyState = fmt.Sprintf("Initialization failed: %v", err)
		utils.GetLogger().Warn("llm provider initialization failed", map[string]interface{}{
			"provider": cfg.LLMProvider,
			"error":    err.Error(),
		})
		return s
	}

	s.provider = provider
	s.providerName = cfg.LLMProvider
	s.activeDefaultModel = extractDefaultModel(cfg.LLMConfig)
	s.isReady = true
	s.readyState = "Ready"
	return s
}

// IsReady reports whether a provider is initialised.
func (s *LLMService) IsReady() bool {
	if s == nil {
		return false
	}
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.provider != nil && s.isReady
}

func (s *LLMService) GetReadyState() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.readyState
}

// GetProviderStatus returns readiness and a readable description.
func (s *LLMService) GetProviderStatus() (bool, string) {
	if s == nil {
		return false, "LLM service not initialized"
	}
	if s.IsReady() {
		return true, "Ready"
	}
	return false, s.GetReadyState()
}

func (s *LLMService) Status() LLMStatus {
	ready, state := s.GetProviderStatus()
	status := LLMStatus{Ready: ready, State: state}
	if ready {
		status.Provider = s.GetProviderName()
		status.Model = s.GetDefaultModel()
	}
	return status
}

// UpdateProvider switches to providerName. An empty api_key keeps the key
// of the currently configured provider when the name is unchanged. The
// new settings are persisted only after the provider initialises.
func (s *LLMService) UpdateProvider(providerName string, settings map[string]string) error {
	providerName = strings.ToLower(strings.TrimSpace(providerName))
	if providerName == "" {
		return fmt.Errorf("provider name is required")
	}

	merged := make(map[string]string, len(settings)+2)
	for k, v := range settings {
		if v != "" {
			merged[k] = v
		}
	}
	if merged["api_key"] == "" && s.runtime != nil {
		current := s.runtime.Get()
		if current.LLMProvider == providerName {
			merged["api_key"] = current.LLMConfig["api_key"]
		}
	}
	if merged["default_model"] == "" {
		merged["default_model"] = config.DefaultModels[providerName]
	}

	provider, err := llm.GetProvider(providerName, merged)
	if err != nil {
		// A provider that is already serving keeps its state.
		s.providerMutex.Lock()
		if s.provider == nil || !s.isReady {
			s.readyState = fmt.Sprintf("Configuration failed: %v", err)
		}
		s.providerMutex.Unlock()
		return err
	}

	if s.runtime != nil {
		if err := s.runtime.UpdateLLMConfig(providerName, merged); err != nil {
			return fmt.Errorf("persist llm config: %w", err)
		}
	}

	s.providerMutex.Lock()
	defer s.providerMutex.Unlock()

	s.provider = provider
	s.providerName = providerName
	s.activeDefaultModel = extractDefaultModel(merged)
	s.isReady = true
	s.readyState = "Ready"

	utils.GetLogger().Info("llm provider updated", map[string]interface{}{
		"provider": providerName,
		"model":    s.activeDefaultModel,
	})
	return nil
}

// Complete sends one request to the active provider. There is no retry.
func (s *LLMService) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.providerMutex.RLock()
	if !s.isReady || s.provider == nil {
		state := s.readyState
		s.providerMutex.RUnlock()
		return nil, fmt.Errorf("%w: %s", ErrLLMNotReady, state)
	}
	provider := s.provider
	providerName := s.providerName
	s.providerMutex.RUnlock()

	req.Model = s.resolveModel(req.Model)

	start := time.Now()
	resp, err := provider.CompleteText(ctx, req)
	if s.metrics != nil {
		tokens := 0
		if resp != nil {
			tokens = resp.TokensUsed
		}
		s.metrics.RecordLLMRequest(providerName, tokens, time.Since(start), err != nil)
	}
	if err != nil {
		return nil, err
	}
	if resp.ProviderName == "" {
		resp.ProviderName = providerName
	}
	return resp, nil
}

func (s *LLMService) GetProviderName() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.providerName
}

// GetDefaultModel returns the model used when a request names none.
func (s *LLMService) GetDefaultModel() string {
	return s.resolveModel("")
}

func (s *LLMService) resolveModel(requestedModel string) string {
	if trimmed := strings.TrimSpace(requestedModel); trimmed != "" {
		return trimmed
	}

	s.providerMutex.RLock()
	provider := s.provider
	providerName := s.providerName
	activeDefault := s.activeDefaultModel
	s.providerMutex.RUnlock()

	if activeDefault != "" {
		return activeDefault
	}
	if model := config.DefaultModels[providerName]; model != "" {
		return model
	}
	if provider != nil {
		if models := provider.GetSupportedModels(); len(models) > 0 {
			return models[0]
		}
	}
	return ""
}

func extractDefaultModel(cfg map[string]string) string {
	if cfg == nil {
		return ""
	}
	if model := strings.TrimSpace(cfg["default_model"]); model != "" {
		return model
	}
	return strings.TrimSpace(cfg["model"])
}

var jsonNoiseReplacer = strings.NewReplacer(
	"\ufeff", "",
	"\u00a0", " ",
	"\u2028", "\n",
	"\u2029", "\n",
)

var fencedBlock = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")

var quotePairs = map[rune]rune{
	'“': '”',
	'”': '”',
	'„': '”',
	'‟': '”',
}

// normalizeJSONStructure turns typographic quotes outside strings into
// plain ones and drops stray non-ASCII symbols between tokens.
func normalizeJSONStructure(s string) string {
	var builder strings.Builder
	builder.Grow(len(s))
	inString := false
	escaped := false
	currentClosing := '"'

	for _, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == currentClosing || r == '"':
				inString = false
				currentClosing = '"'
				builder.WriteRune('"')
				continue
			}
			builder.WriteRune(r)
			continue
		}

		if closing, ok := quotePairs[r]; ok {
			inString = true
			currentClosing = closing
			builder.WriteRune('"')
			continue
		}
		if r == '"' {
			inString = true
			currentClosing = '"'
		} else if r > unicode.MaxASCII && !unicode.IsSpace(r) {
			continue
		}
		builder.WriteRune(r)
	}
	return builder.String()
}

// stripCodeFences returns the body of the first markdown code block, or
// the whole reply when there is none. Invisible characters are dropped.
// Nothing else is removed, so surrounding prose keeps a reply from
// parsing as JSON.
func stripCodeFences(s string) string {
	if m := fencedBlock.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	s = jsonNoiseReplacer.Replace(s)
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\u2060':
			return -1
		}
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
