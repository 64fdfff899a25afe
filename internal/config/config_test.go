package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dropDatabas3/dramgate/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.App.Env != "dev" {
		t.Errorf("App.Env = %s", cfg.App.Env)
	}
	if cfg.Storage.Driver != "memory" || cfg.Cache.Kind != "memory" {
		t.Errorf("backends = %s/%s, want memory/memory", cfg.Storage.Driver, cfg.Cache.Kind)
	}
	if cfg.Security.PasswordPolicy.MinLength != 8 {
		t.Errorf("MinLength = %d, want 8", cfg.Security.PasswordPolicy.MinLength)
	}
	if cfg.SessionTimeout() <= 0 {
		t.Error("SessionTimeout must have a positive default")
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
app:
  env: prod
security:
  password_policy:
    min_length: 12
    complexity_required: true
    require_uppercase: true
mfa:
  enabled: true
  issuer: acme
  window: 2
session:
  timeout_hours: 4
  warning_window: 10m
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Env != "prod" {
		t.Errorf("App.Env = %s", cfg.App.Env)
	}
	if cfg.Security.PasswordPolicy.MinLength != 12 {
		t.Errorf("MinLength = %d", cfg.Security.PasswordPolicy.MinLength)
	}
	if !cfg.MFA.Enabled || cfg.MFA.Issuer != "acme" || cfg.MFA.Window != 2 {
		t.Errorf("MFA = %+v", cfg.MFA)
	}
	if cfg.SessionTimeout() != 4*time.Hour {
		t.Errorf("SessionTimeout = %v", cfg.SessionTimeout())
	}
	if cfg.SessionWarningWindow() != 10*time.Minute {
		t.Errorf("SessionWarningWindow = %v", cfg.SessionWarningWindow())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DRAMGATE_ENV", "staging")
	t.Setenv("DRAMGATE_PASSWORD_MIN_LENGTH", "14")
	t.Setenv("DRAMGATE_MFA_ENABLED", "true")
	t.Setenv("DRAMGATE_SESSION_TIMEOUT_HOURS", "2")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Env != "staging" {
		t.Errorf("App.Env = %s", cfg.App.Env)
	}
	if cfg.Security.PasswordPolicy.MinLength != 14 {
		t.Errorf("MinLength = %d", cfg.Security.PasswordPolicy.MinLength)
	}
	if !cfg.MFA.Enabled {
		t.Error("MFA.Enabled should be true")
	}
	if cfg.SessionTimeout() != 2*time.Hour {
		t.Errorf("SessionTimeout = %v", cfg.SessionTimeout())
	}
}

func TestLoad_RejectsIncoherentPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	yaml := `
security:
  password_policy:
    min_length: 20
    max_length: 10
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error for max_length < min_length")
	}
}

func TestSessionWarningWindow_DerivedDefault(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// Sin warning explícito: 1/12 del timeout.
	if got, want := cfg.SessionWarningWindow(), cfg.SessionTimeout()/12; got != want {
		t.Fatalf("SessionWarningWindow = %v, want %v", got, want)
	}
}

func TestSessionPollInterval_Floor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
session:
  poll_interval: 10s
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SessionPollInterval() != 5*time.Minute {
		t.Fatalf("SessionPollInterval = %v, want the 5m floor", cfg.SessionPollInterval())
	}
}
