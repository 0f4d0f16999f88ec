package health

import (
	"context"
	"errors"

	"github.com/sony/gobreaker"
)

var (
	// ErrLexicalIndexEmpty is reported before the first index build.
	ErrLexicalIndexEmpty = errors.New("lexical index is empty")
	// ErrLexicalBreakerOpen is reported while the lexical circuit is open.
	ErrLexicalBreakerOpen = errors.New("lexical circuit breaker is open")
)

// LexicalIndex reports the number of indexed documents.
type LexicalIndex interface {
	Len() int
}

// BreakerState reports the lexical circuit breaker state.
type BreakerState interface {
	State() gobreaker.State
}

// LexicalChecker reports whether hybrid search has a lexical signal. Hybrid
// search degrades to semantic-only results without one, so callers usually
// register it as non-critical.
type LexicalChecker struct {
	index   LexicalIndex
	breaker BreakerState
}

// NewLexicalChecker creates a lexical checker. breaker may be nil.
func NewLexicalChecker(index LexicalIndex, breaker BreakerState) *LexicalChecker {
	return &LexicalChecker{index: index, breaker: breaker}
}

// HealthCheck fails when the index is empty or the breaker is open.
func (l *LexicalChecker) HealthCheck(_ context.Context) error {
	if l.index == nil || l.index.Len() == 0 {
		return ErrLexicalIndexEmpty
	}
	if l.breaker != nil && l.breaker.State() == gobreaker.StateOpen {
		return ErrLexicalBreakerOpen
	}
	return nil
}
