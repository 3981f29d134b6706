package resilience

import (
	"errors"
	"testing"
	"time"
)

var errBackend = errors.New("backend unavailable")

func tripBreaker(cb *CircuitBreaker, failures int) {
	for i := 0; i < failures; i++ {
		_ = cb.Execute(func() error { return errBackend })
	}
}

func TestCircuitBreakerDefaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "whisper"})
	if cb.maxFailures != 5 {
		t.Errorf("maxFailures = %d, want 5", cb.maxFailures)
	}
	if cb.resetTimeout != 30*time.Second {
		t.Errorf("resetTimeout = %v, want 30s", cb.resetTimeout)
	}
	if cb.halfOpenMax != 3 {
		t.Errorf("halfOpenMax = %d, want 3", cb.halfOpenMax)
	}
	if got := cb.State(); got != StateClosed {
		t.Errorf("initial State() = %v, want closed", got)
	}
}

func TestCircuitBreakerClosedForwardsCalls(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "whisper", MaxFailures: 3})

	called := false
	if err := cb.Execute(func() error { called = true; return nil }); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !called {
		t.Fatal("fn was not called in closed state")
	}
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name: "whisper", MaxFailures: 3, ResetTimeout: time.Hour,
	})

	tripBreaker(cb, 3)
	if got := cb.State(); got != StateOpen {
		t.Fatalf("State() = %v, want open after 3 failures", got)
	}

	if err := cb.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Execute while open = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "whisper", MaxFailures: 3})

	tripBreaker(cb, 2)
	_ = cb.Execute(func() error { return nil })
	tripBreaker(cb, 2)

	if got := cb.State(); got != StateClosed {
		t.Fatalf("State() = %v, want closed (success must clear the failure streak)", got)
	}
}

func TestCircuitBreakerHalfOpenAfterCoolDown(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name: "whisper", MaxFailures: 2, ResetTimeout: 10 * time.Millisecond, HalfOpenMax: 2,
	})

	tripBreaker(cb, 2)
	if got := cb.State(); got != StateOpen {
		t.Fatalf("State() = %v, want open", got)
	}

	time.Sleep(15 * time.Millisecond)
	if got := cb.State(); got != StateHalfOpen {
		t.Fatalf("State() = %v, want half-open after cool-down", got)
	}
}

func TestCircuitBreakerClosesAfterSuccessfulProbes(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name: "whisper", MaxFailures: 2, ResetTimeout: 10 * time.Millisecond, HalfOpenMax: 2,
	})

	tripBreaker(cb, 2)
	time.Sleep(15 * time.Millisecond)

	for i := 0; i < 2; i++ {
		if err := cb.Execute(func() error { return nil }); err != nil {
			t.Fatalf("probe %d: %v", i, err)
		}
	}
	if got := cb.State(); got != StateClosed {
		t.Fatalf("State() = %v, want closed after successful probes", got)
	}
}

func TestCircuitBreakerReopensOnFailedProbe(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name: "whisper", MaxFailures: 2, ResetTimeout: 10 * time.Millisecond, HalfOpenMax: 3,
	})

	tripBreaker(cb, 2)
	time.Sleep(15 * time.Millisecond)

	if err := cb.Execute(func() error { return errBackend }); err == nil {
		t.Fatal("failing probe returned nil error")
	}

	cb.mu.Lock()
	got := cb.state
	cb.mu.Unlock()
	if got != StateOpen {
		t.Fatalf("stored state = %v, want open after failed probe", got)
	}
}

func TestCircuitBreakerManualReset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name: "whisper", MaxFailures: 2, ResetTimeout: time.Hour,
	})

	tripBreaker(cb, 2)
	cb.Reset()

	if got := cb.State(); got != StateClosed {
		t.Fatalf("State() = %v, want closed after Reset", got)
	}
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("Execute after Reset: %v", err)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
