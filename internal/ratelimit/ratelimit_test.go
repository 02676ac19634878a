package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterSuppressesWithinWindow(t *testing.T) {
	l := New(50 * time.Millisecond)

	if !l.Allow("a") {
		t.Fatal("first Allow for a new key should return true")
	}
	if l.Allow("a") {
		t.Fatal("second Allow within window should return false")
	}
	if !l.Allow("b") {
		t.Fatal("different key should not be suppressed")
	}

	time.Sleep(70 * time.Millisecond)
	if !l.Allow("a") {
		t.Fatal("Allow after window expiry should return true again")
	}
}

func TestLimiterZeroWindowDisablesSuppression(t *testing.T) {
	l := New(0)
	for i := 0; i < 3; i++ {
		if !l.Allow("a") {
			t.Fatal("zero window limiter should never suppress")
		}
	}
}

func TestSourceKeyIsStablePerSource(t *testing.T) {
	if SourceKey(1) == SourceKey(2) {
		t.Fatal("SourceKey should differ across source ids")
	}
	if SourceKey(1) != SourceKey(1) {
		t.Fatal("SourceKey should be stable for the same source id")
	}
}
