package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSendRefreshAlertGeneric(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewAlerter(AlertConfig{
		WebhookURL:             srv.URL,
		WebhookType:            "generic",
		Enabled:                true,
		MinFailuresBeforeAlert: 1,
		Timeout:                5 * time.Second,
	})

	alert := RefreshAlert{
		JobName:      "price-refresh",
		TotalCount:   3,
		SuccessCount: 2,
		FailedCount:  1,
		Duration:     2 * time.Second,
		FailedDetails: []RegionFailure{
			{Region: "tx-hou", Error: "source unavailable", Attempts: 3},
		},
		Timestamp: time.Now(),
	}

	if err := a.SendRefreshAlert(context.Background(), alert); err != nil {
		t.Fatalf("SendRefreshAlert failed: %v", err)
	}
	if got["alert_type"] != "refresh_job_failure" {
		t.Errorf("alert_type: got %v", got["alert_type"])
	}
	if got["failed_count"] != float64(1) {
		t.Errorf("failed_count: got %v", got["failed_count"])
	}
}

func TestSendRefreshAlertBelowThreshold(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	a := NewAlerter(AlertConfig{
		WebhookURL:             srv.URL,
		WebhookType:            "generic",
		Enabled:                true,
		MinFailuresBeforeAlert: 5,
		Timeout:                5 * time.Second,
	})

	if err := a.SendRefreshAlert(context.Background(), RefreshAlert{FailedCount: 1}); err != nil {
		t.Fatalf("SendRefreshAlert failed: %v", err)
	}
	if called {
		t.Error("webhook should not fire below the failure threshold")
	}
}

func TestSendBreakerAlert(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
	}))
	defer srv.Close()

	a := NewAlerter(AlertConfig{
		WebhookURL:  srv.URL,
		WebhookType: "generic",
		Enabled:     true,
		Timeout:     5 * time.Second,
	})

	if err := a.SendBreakerAlert(context.Background(), "tx-hou", 3); err != nil {
		t.Fatalf("SendBreakerAlert failed: %v", err)
	}
	if got["alert_type"] != "breaker_open" || got["region"] != "tx-hou" {
		t.Errorf("unexpected payload: %v", got)
	}
}

func TestAlertsDisabled(t *testing.T) {
	a := NewAlerter(AlertConfig{Enabled: false})
	if err := a.SendRefreshAlert(context.Background(), RefreshAlert{FailedCount: 10}); err != nil {
		t.Errorf("disabled alerter should no-op, got %v", err)
	}
	if err := a.SendBreakerAlert(context.Background(), "tx-hou", 3); err != nil {
		t.Errorf("disabled alerter should no-op, got %v", err)
	}
}
