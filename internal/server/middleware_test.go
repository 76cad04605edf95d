package server

import (
	"testing"
	"time"
)

func TestRateLimiter_Allow(t *testing.T) {
	limiter := NewRateLimiter(10, time.Second)
	connID := "conn-1"

	for i := 0; i < 10; i++ {
		if !limiter.Allow(connID) {
			t.Errorf("request %d should be allowed", i+1)
		}
	}

	if limiter.Allow(connID) {
		t.Error("request over the limit should be denied")
	}
}

func TestRateLimiter_WindowReset(t *testing.T) {
	limiter := NewRateLimiter(2, 100*time.Millisecond)
	connID := "conn-2"

	if !limiter.Allow(connID) {
		t.Error("first request should be allowed")
	}
	if !limiter.Allow(connID) {
		t.Error("second request should be allowed")
	}
	if limiter.Allow(connID) {
		t.Error("third request should be denied")
	}

	time.Sleep(150 * time.Millisecond)

	if !limiter.Allow(connID) {
		t.Error("request after window reset should be allowed")
	}
}

func TestRateLimiter_PerConnection(t *testing.T) {
	limiter := NewRateLimiter(5, time.Second)

	for i := 0; i < 5; i++ {
		limiter.Allow("conn-1")
	}
	if limiter.Allow("conn-1") {
		t.Error("conn-1 should be rate limited")
	}

	// A different connection has its own budget
	for i := 0; i < 5; i++ {
		if !limiter.Allow("conn-2") {
			t.Errorf("conn-2 request %d should be allowed", i+1)
		}
	}
}

func TestRateLimiter_RemoveConnection(t *testing.T) {
	limiter := NewRateLimiter(1, time.Hour)

	limiter.Allow("conn-1")
	if limiter.Allow("conn-1") {
		t.Error("should be limited before removal")
	}

	limiter.RemoveConnection("conn-1")

	if !limiter.Allow("conn-1") {
		t.Error("removal should reset the budget")
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	limiter := NewRateLimiter(1, 50*time.Millisecond)

	limiter.Allow("conn-1")
	time.Sleep(80 * time.Millisecond)
	limiter.Cleanup()

	if !limiter.Allow("conn-1") {
		t.Error("cleanup should drop expired windows")
	}
}
