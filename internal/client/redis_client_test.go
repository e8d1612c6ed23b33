package client

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newBreakerClient(minRequests uint64) *RedisClient {
	return &RedisClient{
		cb: &circuitBreaker{
			state:        "closed",
			failureRatio: 0.5,
			recoveryTime: time.Minute,
			minRequests:  minRequests,
		},
	}
}

func TestCircuitOpensOnFailureRatio(t *testing.T) {
	c := newBreakerClient(4)
	boom := errors.New("connection refused")

	for i := 0; i < 4; i++ {
		if err := c.Do(context.Background(), func(ctx context.Context) error {
			return boom
		}); !errors.Is(err, boom) {
			t.Fatalf("Do returned %v, want %v", err, boom)
		}
	}

	if got := c.CircuitBreakerState(); got != "open" {
		t.Fatalf("state after %d failures = %q, want open", 4, got)
	}
}

func TestOpenCircuitShortCircuits(t *testing.T) {
	c := newBreakerClient(4)
	c.cb.state = "open"
	c.cb.lastFailure = time.Now()

	called := false
	err := c.Do(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	if err == nil {
		t.Fatal("Do on an open circuit returned nil error")
	}
	if called {
		t.Fatal("fn was invoked while the circuit was open")
	}
}

func TestCircuitRecoversThroughHalfOpen(t *testing.T) {
	c := newBreakerClient(4)
	c.cb.state = "open"
	c.cb.lastFailure = time.Now().Add(-2 * time.Minute)

	// Past the recovery window the next call runs in half-open.
	if err := c.Do(context.Background(), func(ctx context.Context) error {
		return nil
	}); err != nil {
		t.Fatalf("half-open call failed: %v", err)
	}

	if got := c.CircuitBreakerState(); got != "half-open" && got != "closed" {
		t.Fatalf("state after recovery window = %q, want half-open or closed", got)
	}

	// Enough successes close it again.
	for i := 0; i < 4; i++ {
		if err := c.Do(context.Background(), func(ctx context.Context) error {
			return nil
		}); err != nil {
			t.Fatalf("success %d failed: %v", i, err)
		}
	}
	if got := c.CircuitBreakerState(); got != "closed" {
		t.Fatalf("state after successes = %q, want closed", got)
	}
}

func TestHalfOpenReopensOnFailure(t *testing.T) {
	c := newBreakerClient(4)
	c.cb.state = "half-open"

	boom := errors.New("still down")
	if err := c.Do(context.Background(), func(ctx context.Context) error {
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("Do returned %v, want %v", err, boom)
	}
	if got := c.CircuitBreakerState(); got != "open" {
		t.Fatalf("state after half-open failure = %q, want open", got)
	}
}

func TestDoWithoutBreakerPassesThrough(t *testing.T) {
	c := &RedisClient{}
	called := false
	if err := c.Do(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	}); err != nil {
		t.Fatalf("Do returned %v", err)
	}
	if !called {
		t.Fatal("fn was not invoked")
	}
	if got := c.CircuitBreakerState(); got != "disabled" {
		t.Fatalf("state without breaker = %q, want disabled", got)
	}
}

func TestParseURLEnablesBreaker(t *testing.T) {
	cfg, err := ParseURL("redis://:secret@cache.internal:6380/2")
	if err != nil {
		t.Fatalf("ParseURL: %v", err)
	}
	if cfg.Address != "cache.internal:6380" {
		t.Errorf("Address = %q, want cache.internal:6380", cfg.Address)
	}
	if cfg.Password != "secret" {
		t.Errorf("Password = %q, want secret", cfg.Password)
	}
	if cfg.DB != 2 {
		t.Errorf("DB = %d, want 2", cfg.DB)
	}
	if !cfg.CircuitBreaker.Enabled {
		t.Error("CircuitBreaker.Enabled = false, want true")
	}
	if cfg.CircuitBreaker.MinRequests == 0 {
		t.Error("CircuitBreaker.MinRequests = 0, want a positive default")
	}

	if _, err := ParseURL("not-a-url"); err == nil {
		t.Error("ParseURL accepted a malformed URL")
	}
}
