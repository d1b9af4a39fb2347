package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewModelIsAvailable(t *testing.T) {
	cb := NewCircuitBreaker()
	assert.True(t, cb.IsAvailable("model_a"))
}

func TestFailureMakesModelUnavailable(t *testing.T) {
	cb := NewCircuitBreaker()
	cb.RecordFailure("model_a", RateLimited)
	assert.False(t, cb.IsAvailable("model_a"))
}

func TestSuccessClearsCooldown(t *testing.T) {
	cb := NewCircuitBreaker()
	cb.RecordFailure("model_a", ServerError)
	assert.False(t, cb.IsAvailable("model_a"))
	cb.RecordSuccess("model_a")
	assert.True(t, cb.IsAvailable("model_a"))
}

func TestFirstAvailablePicksNonCooledModel(t *testing.T) {
	cb := NewCircuitBreaker()
	chain := []string{"a", "b", "c"}

	alias, ok := cb.FirstAvailable(chain)
	assert.True(t, ok)
	assert.Equal(t, "a", alias)

	cb.RecordFailure("a", RateLimited)
	alias, ok = cb.FirstAvailable(chain)
	assert.True(t, ok)
	assert.Equal(t, "b", alias)

	cb.RecordFailure("b", ServerError)
	alias, ok = cb.FirstAvailable(chain)
	assert.True(t, ok)
	assert.Equal(t, "c", alias)
}

func TestAllModelsExhaustedReturnsFalse(t *testing.T) {
	cb := NewCircuitBreaker()
	chain := []string{"a", "b"}

	cb.RecordFailure("a", RateLimited)
	cb.RecordFailure("b", RateLimited)

	_, ok := cb.FirstAvailable(chain)
	assert.False(t, ok)
}

func TestCooldownReasonReportedCorrectly(t *testing.T) {
	cb := NewCircuitBreaker()
	_, ok := cb.CooldownReasonFor("a")
	assert.False(t, ok)

	cb.RecordFailure("a", RateLimited)
	reason, ok := cb.CooldownReasonFor("a")
	assert.True(t, ok)
	assert.Equal(t, RateLimited, reason)

	cb.RecordSuccess("a")
	_, ok = cb.CooldownReasonFor("a")
	assert.False(t, ok)
}

func TestDifferentModelsAreIndependent(t *testing.T) {
	cb := NewCircuitBreaker()
	cb.RecordFailure("a", ServerError)
	assert.False(t, cb.IsAvailable("a"))
	assert.True(t, cb.IsAvailable("b"))
}
