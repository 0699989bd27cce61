// Package translate turns natural-language cleaning rules into structured
// rule definitions. The primary path asks an LLM; a deterministic pattern
// parser covers common cattle-data phrasings when the model is unreachable
// or returns garbage. Every rule crossing this boundary is revalidated, so
// nothing downstream trusts model output.
package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dataherd/dataherd/internal/types"
)

// Translator converts one natural-language rule text into zero or more
// structured rules scoped to the given client context.
type Translator interface {
	Translate(ctx context.Context, ruleText, clientContext string) ([]types.Rule, error)
}

// Service is the translation entry point: primary translator with pattern
// fallback. primary may be nil when no LLM is configured, in which case the
// pattern parser is the only path.
type Service struct {
	primary  Translator
	fallback *PatternTranslator
	log      *slog.Logger
}

func NewService(primary Translator, log *slog.Logger) *Service {
	return &Service{
		primary:  primary,
		fallback: NewPatternTranslator(),
		log:      log,
	}
}

// Translate validates the input and runs the primary translator, falling
// back to pattern parsing when the primary is absent or fails. The fallback
// always produces at least one rule, so a non-nil error here means the input
// itself was rejected.
func (s *Service) Translate(ctx context.Context, ruleText, clientContext string) ([]types.Rule, error) {
	trimmed := strings.TrimSpace(ruleText)
	if trimmed == "" {
		return nil, types.Validation(errors.New("empty rule text"))
	}
	if len(trimmed) > types.MaxRuleTextLength {
		return nil, types.Validation(fmt.Errorf("rule text of %d bytes exceeds limit of %d", len(trimmed), types.MaxRuleTextLength))
	}

	if s.primary != nil {
		rules, err := s.primary.Translate(ctx, trimmed, clientContext)
		if err == nil {
			return rules, nil
		}
		if !errors.Is(err, types.ErrTranslationUnavailable) {
			return nil, err
		}
		s.log.Warn("primary translation failed, using pattern fallback", "error", err)
	}

	return s.fallback.Translate(ctx, trimmed, clientContext)
}

// scopeFor assigns rule scope from the request's client context.
func scopeFor(clientContext string) types.Scope {
	if clientContext != "" {
		return types.ScopeClient
	}
	return types.ScopeGlobal
}
