package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/dataherd/dataherd/internal/rules"
	"github.com/dataherd/dataherd/internal/types"
)

const defaultLLMTimeout = 30 * time.Second

const systemPrompt = `You are an expert data cleaning specialist for cattle lot management systems.
Your task is to convert natural language data cleaning rules into structured JSON.

Context: you are working with cattle data that typically includes:
- lot_id: unique identifier for each animal
- weight: animal weight in pounds (typical range 400-1500 lbs)
- breed: cattle breed (Angus, Hereford, Holstein, etc.)
- birth_date: date of birth in YYYY-MM-DD format
- other fields like health_status, feed_type, etc.

Common data quality issues:
- Weight errors: missing digits, decimal point errors, unrealistic values
- Breed standardization: case mismatches, abbreviations, misspellings
- Date validation: invalid formats, future dates, unrealistic ages
- Missing values: null or empty critical fields

Return a JSON array. Each element is one rule:
{
  "name": "short rule name",
  "description": "human readable description",
  "conditions": [{"field": "field_name", "operator": "lt|gt|eq|neq|contains|not_contains", "value": <scalar>}],
  "action": {"kind": "flag|delete|modify|ready", "target_field": "field for modify", "target_value": <scalar for modify>},
  "confidence": 0.0-1.0
}

Conditions form an else-if chain: the first satisfied condition triggers the
action. Numeric thresholds use lt/gt with a numeric value. Be specific and
actionable. Return only the JSON array, no additional text.`

// LLMTranslator asks a chat model to structure rule text. Responses are
// parsed leniently (code fences stripped, JSON array located) but validated
// strictly before anything is returned.
type LLMTranslator struct {
	model   llms.Model
	timeout time.Duration
	log     *slog.Logger
}

// LLMConfig carries the settings needed to reach the model provider.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewLLMTranslator builds an OpenAI-compatible translator. BaseURL covers
// proxy deployments that front the same chat API.
func NewLLMTranslator(cfg LLMConfig, log *slog.Logger) (*LLMTranslator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm translator requires an API key")
	}
	opts := []openai.Option{openai.WithToken(cfg.APIKey)}
	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultLLMTimeout
	}
	return &LLMTranslator{model: model, timeout: timeout, log: log}, nil
}

// newWithModel is the test seam: inject any llms.Model.
func newWithModel(model llms.Model, log *slog.Logger) *LLMTranslator {
	return &LLMTranslator{model: model, timeout: defaultLLMTimeout, log: log}
}

// Translate sends the rule text to the model and decodes the structured
// rules. Transport failures, timeouts, and unusable responses all surface as
// ErrTranslationUnavailable so the caller can decide whether to fall back.
func (t *LLMTranslator) Translate(ctx context.Context, ruleText, clientContext string) ([]types.Rule, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	userPrompt := fmt.Sprintf("Convert this data cleaning rule into structured JSON format:\n\nRule: %s", ruleText)
	if clientContext != "" {
		userPrompt += fmt.Sprintf("\n\nClient Context: %s\nConsider any client-specific requirements or data patterns.", clientContext)
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	response, err := t.model.GenerateContent(ctx, messages, llms.WithTemperature(0.1))
	if err != nil {
		return nil, errors.Join(types.ErrTranslationUnavailable, fmt.Errorf("generate: %w", err))
	}
	if len(response.Choices) == 0 {
		return nil, errors.Join(types.ErrTranslationUnavailable, errors.New("empty model response"))
	}

	parsed, err := decodeRules(response.Choices[0].Content, clientContext)
	if err != nil {
		t.log.Warn("model returned unusable rules", "error", err)
		return nil, errors.Join(types.ErrTranslationUnavailable, err)
	}
	return parsed, nil
}

// llmRule is the wire shape the prompt asks for.
type llmRule struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Conditions  []types.Condition `json:"conditions"`
	Action      types.Action      `json:"action"`
	Confidence  float64           `json:"confidence"`
}

// decodeRules extracts the JSON array from a model response and converts it
// into validated rules. Models wrap output in prose or code fences often
// enough that bare json.Unmarshal on the raw text is not an option.
func decodeRules(response, clientContext string) ([]types.Rule, error) {
	payload, err := extractJSONArray(response)
	if err != nil {
		return nil, err
	}

	var raw []llmRule
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("decode rule array: %w", err)
	}
	if len(raw) == 0 {
		return nil, errors.New("model returned no rules")
	}

	out := make([]types.Rule, 0, len(raw))
	for i, r := range raw {
		confidence := r.Confidence
		if confidence <= 0 || confidence > 1 {
			confidence = 0.8
		}
		rule := types.Rule{
			RuleID:        types.NewRuleID(),
			Name:          r.Name,
			Description:   r.Description,
			Scope:         scopeFor(clientContext),
			ClientContext: clientContext,
			Conditions:    r.Conditions,
			Action:        r.Action,
			IsActive:      true,
			Confidence:    confidence,
		}
		if rule.Name == "" {
			rule.Name = fmt.Sprintf("translated rule %d", i+1)
		}
		if err := rules.Validate(&rule); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
		out = append(out, rule)
	}
	return out, nil
}

// extractJSONArray locates the outermost JSON array in free-form model
// output, stripping markdown code fences first.
func extractJSONArray(s string) (string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end <= start {
		return "", errors.New("no JSON array in response")
	}
	return s[start : end+1], nil
}
