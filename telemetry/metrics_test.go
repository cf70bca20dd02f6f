package telemetry

import (
	"context"
	"testing"
	"time"
)

func TestInitIdempotent(t *testing.T) {
	Init()
	Init() // second call must not panic on duplicate registration

	if WebhookEvents == nil {
		t.Error("WebhookEvents not initialized")
	}
	if MatchesCreated == nil {
		t.Error("MatchesCreated not initialized")
	}
	if MatchFetchDuration == nil {
		t.Error("MatchFetchDuration not initialized")
	}
	if PendingVerificationsGauge == nil {
		t.Error("PendingVerificationsGauge not initialized")
	}
}

func TestCountWebhookDoesNotPanic(t *testing.T) {
	Init()
	for _, result := range []string{"success", "ignored", "rejected", "error"} {
		CountWebhook(result)
	}
}

func TestTimeFuncRecordsDuration(t *testing.T) {
	Init()
	d := TimeFunc(MatchFetchDuration, func() { time.Sleep(5 * time.Millisecond) })
	if d < 5*time.Millisecond {
		t.Errorf("TimeFunc duration = %v, want >= 5ms", d)
	}
	// nil observer is allowed
	if d := TimeFunc(nil, func() {}); d < 0 {
		t.Error("negative duration")
	}
}

func TestCorrelation(t *testing.T) {
	ctx := context.Background()
	if GetCorrelation(ctx) != "" {
		t.Error("empty context should carry no correlation id")
	}
	ctx = WithCorrelation(ctx, "abc-123")
	if got := GetCorrelation(ctx); got != "abc-123" {
		t.Errorf("GetCorrelation = %q, want abc-123", got)
	}
	if LoggerWithCorr(ctx) == nil {
		t.Error("LoggerWithCorr returned nil")
	}
}
