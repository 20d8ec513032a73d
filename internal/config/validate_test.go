package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		DatabaseURL:        "postgres://localhost/finbeat",
		RunSchedule:        "5 0 * * *",
		DebtScanSchedule:   "0 8 * * *",
		AlertCooldownStr:   "24h",
		ReconcileThreshold: 20 * time.Minute,
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Errorf("valid config should not return error, got: %v", err)
	}
}

func TestValidate_MissingDatabaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.DatabaseURL = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for missing DATABASE_URL")
	}

	if !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("error should mention DATABASE_URL: %q", err.Error())
	}
}

func TestValidate_InvalidCronSpecs(t *testing.T) {
	tests := []struct {
		name  string
		spec  string
		field string
	}{
		{"garbage run schedule", "not a cron", "RUN_SCHEDULE"},
		{"too few fields", "* *", "RUN_SCHEDULE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.RunSchedule = tt.spec

			err := Validate(cfg)
			if err == nil {
				t.Fatalf("expected error for schedule %q", tt.spec)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q should mention %s", err.Error(), tt.field)
			}
		})
	}
}

func TestValidate_InvalidAlertCooldown(t *testing.T) {
	tests := []struct {
		name     string
		cooldown string
		wantErr  string
	}{
		{"non-parseable", "invalid", "invalid duration"},
		{"negative", "-1h", "must be positive"},
		{"zero", "0s", "must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.AlertCooldownStr = tt.cooldown

			err := Validate(cfg)
			if err == nil {
				t.Fatalf("expected error for alert_cooldown=%q", tt.cooldown)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidate_ReconcileThresholdTooSmall(t *testing.T) {
	cfg := validConfig()
	cfg.ReconcileEnabled = true
	cfg.ReconcileThreshold = time.Minute

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for threshold inside the retry window")
	}
	if !strings.Contains(err.Error(), "RECONCILE_THRESHOLD") {
		t.Errorf("error should mention RECONCILE_THRESHOLD: %q", err.Error())
	}
}

func TestValidate_WebhookURLWithoutSecret(t *testing.T) {
	cfg := validConfig()
	cfg.NotifyWebhookURL = "https://hooks.example.com/notify"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for webhook URL without secret")
	}
	if !strings.Contains(err.Error(), "NOTIFY_WEBHOOK_SECRET") {
		t.Errorf("error should mention NOTIFY_WEBHOOK_SECRET: %q", err.Error())
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.DatabaseURL = ""
	cfg.AlertCooldownStr = "invalid"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected errors")
	}

	errs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}

	if len(errs) != 2 {
		t.Errorf("expected 2 validation errors, got %d: %v", len(errs), errs)
	}
}

func TestValidationError_Format(t *testing.T) {
	err := ValidationError{Field: "DATABASE_URL", Message: "required"}
	got := err.Error()
	want := "DATABASE_URL: required"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestValidationErrors_Format(t *testing.T) {
	// Single error
	single := ValidationErrors{{Field: "F1", Message: "M1"}}
	if single.Error() != "F1: M1" {
		t.Errorf("single error = %q, want 'F1: M1'", single.Error())
	}

	// Multiple errors
	multi := ValidationErrors{
		{Field: "F1", Message: "M1"},
		{Field: "F2", Message: "M2"},
	}
	got := multi.Error()
	if !strings.Contains(got, "2 validation errors") {
		t.Errorf("multi error should contain '2 validation errors': %q", got)
	}
	if !strings.Contains(got, "F1: M1") || !strings.Contains(got, "F2: M2") {
		t.Errorf("multi error should contain both errors: %q", got)
	}

	// Empty
	empty := ValidationErrors{}
	if empty.Error() != "" {
		t.Errorf("empty errors should return empty string, got %q", empty.Error())
	}
}
