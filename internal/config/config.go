// Package config carga la configuración desde YAML con overrides por entorno.
//
// La configuración se carga una vez en main y se pasa explícitamente a los
// services; no hay estado global mutable, lo que permite inyectar políticas
// arbitrarias en tests.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	} `yaml:"server"`

	Storage struct {
		// memory | postgres
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MaxIdleConns    int    `yaml:"max_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	Security struct {
		PasswordPolicy PasswordPolicy `yaml:"password_policy"`
	} `yaml:"security"`

	MFA struct {
		// Enabled es el switch a nivel deployment. Cuando está apagado se
		// rechazan los enrollments nuevos y el login no exige segundo factor,
		// pero las cuentas ya enroladas no se tocan.
		Enabled      bool   `yaml:"enabled"`
		Issuer       string `yaml:"issuer"`
		Window       int    `yaml:"window"` // pasos de 30s de tolerancia (±)
		ChallengeTTL string `yaml:"challenge_ttl"`
	} `yaml:"mfa"`

	Session struct {
		TimeoutHours  int    `yaml:"timeout_hours"`
		WarningWindow string `yaml:"warning_window"`
		IdleTimeout   string `yaml:"idle_timeout"`
		PollInterval  string `yaml:"poll_interval"`
	} `yaml:"session"`

	SMTP struct {
		Enabled   bool   `yaml:"enabled"`
		Host      string `yaml:"host"`
		Port      int    `yaml:"port"`
		FromEmail string `yaml:"from_email"`
		Username  string `yaml:"username"`
		Password  string `yaml:"password"`
		TLSMode   string `yaml:"tls_mode"` // "auto" | "starttls" | "ssl" | "none"
	} `yaml:"smtp"`
}

// PasswordPolicy es la política de passwords expuesta públicamente
// (el frontend la consulta para validar en vivo).
type PasswordPolicy struct {
	MinLength          int    `yaml:"min_length" json:"min_length"`
	MaxLength          int    `yaml:"max_length" json:"max_length,omitempty"`
	ComplexityRequired bool   `yaml:"complexity_required" json:"complexity_required"`
	RequireUpper       bool   `yaml:"require_uppercase" json:"require_uppercase"`
	RequireLower       bool   `yaml:"require_lowercase" json:"require_lowercase"`
	RequireDigit       bool   `yaml:"require_numbers" json:"require_numbers"`
	RequireSymbol      bool   `yaml:"require_special_chars" json:"require_special_chars"`
	AllowedSymbols     string `yaml:"allowed_special_chars" json:"allowed_special_chars,omitempty"`
	PreventIdentity    bool   `yaml:"prevent_identity_in_password" json:"prevent_identity_in_password"`
}

// Load lee el YAML (si existe) y aplica defaults + overrides de entorno.
// Un path vacío carga solo defaults + entorno.
func Load(path string) (*Config, error) {
	c := &Config{}

	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	c.applyDefaults()
	c.applyEnv()

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8084"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "5m"
	}
	if c.Security.PasswordPolicy.MinLength == 0 {
		c.Security.PasswordPolicy.MinLength = 8
	}
	if c.MFA.Issuer == "" {
		c.MFA.Issuer = "DramGate"
	}
	if c.MFA.Window == 0 {
		c.MFA.Window = 1
	}
	if c.MFA.ChallengeTTL == "" {
		c.MFA.ChallengeTTL = "5m"
	}
	if c.Session.TimeoutHours == 0 {
		c.Session.TimeoutHours = 24
	}
	if c.Session.IdleTimeout == "" {
		c.Session.IdleTimeout = "30m"
	}
	if c.Session.PollInterval == "" {
		c.Session.PollInterval = "5m"
	}
	if c.SMTP.TLSMode == "" {
		c.SMTP.TLSMode = "auto"
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DRAMGATE_ENV"); v != "" {
		c.App.Env = v
	}
	if v := os.Getenv("DRAMGATE_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("DRAMGATE_STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("DRAMGATE_STORAGE_DSN"); v != "" {
		c.Storage.DSN = v
	}
	if v := os.Getenv("DRAMGATE_CACHE_KIND"); v != "" {
		c.Cache.Kind = v
	}
	if v := os.Getenv("DRAMGATE_REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v, ok := envInt("DRAMGATE_PASSWORD_MIN_LENGTH"); ok {
		c.Security.PasswordPolicy.MinLength = v
	}
	if v, ok := envInt("DRAMGATE_PASSWORD_MAX_LENGTH"); ok {
		c.Security.PasswordPolicy.MaxLength = v
	}
	if v, ok := envBool("DRAMGATE_PASSWORD_COMPLEXITY"); ok {
		c.Security.PasswordPolicy.ComplexityRequired = v
	}
	if v, ok := envBool("DRAMGATE_PASSWORD_REQUIRE_UPPER"); ok {
		c.Security.PasswordPolicy.RequireUpper = v
	}
	if v, ok := envBool("DRAMGATE_PASSWORD_REQUIRE_LOWER"); ok {
		c.Security.PasswordPolicy.RequireLower = v
	}
	if v, ok := envBool("DRAMGATE_PASSWORD_REQUIRE_DIGIT"); ok {
		c.Security.PasswordPolicy.RequireDigit = v
	}
	if v, ok := envBool("DRAMGATE_PASSWORD_REQUIRE_SYMBOL"); ok {
		c.Security.PasswordPolicy.RequireSymbol = v
	}
	if v, ok := envBool("DRAMGATE_PASSWORD_PREVENT_IDENTITY"); ok {
		c.Security.PasswordPolicy.PreventIdentity = v
	}
	if v, ok := envBool("DRAMGATE_MFA_ENABLED"); ok {
		c.MFA.Enabled = v
	}
	if v := os.Getenv("DRAMGATE_MFA_ISSUER"); v != "" {
		c.MFA.Issuer = v
	}
	if v, ok := envInt("DRAMGATE_MFA_WINDOW"); ok && v >= 0 && v <= 3 {
		c.MFA.Window = v
	}
	if v, ok := envInt("DRAMGATE_SESSION_TIMEOUT_HOURS"); ok && v > 0 {
		c.Session.TimeoutHours = v
	}
	if v := os.Getenv("DRAMGATE_SESSION_WARNING_WINDOW"); v != "" {
		c.Session.WarningWindow = v
	}
	if v := os.Getenv("DRAMGATE_SESSION_IDLE_TIMEOUT"); v != "" {
		c.Session.IdleTimeout = v
	}
}

func (c *Config) validate() error {
	if c.Security.PasswordPolicy.MinLength < 1 {
		return fmt.Errorf("config: password_policy.min_length debe ser >= 1")
	}
	if max := c.Security.PasswordPolicy.MaxLength; max > 0 && max < c.Security.PasswordPolicy.MinLength {
		return fmt.Errorf("config: password_policy.max_length < min_length")
	}
	if c.Session.TimeoutHours < 1 {
		return fmt.Errorf("config: session.timeout_hours debe ser >= 1")
	}
	return nil
}

// SessionTimeout retorna la vida máxima de una sesión.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.Session.TimeoutHours) * time.Hour
}

// SessionWarningWindow retorna la ventana de aviso de expiración.
// Si no está configurada se deriva del timeout (1/12 de la vida total).
func (c *Config) SessionWarningWindow() time.Duration {
	if d, err := time.ParseDuration(c.Session.WarningWindow); err == nil && d > 0 {
		return d
	}
	return c.SessionTimeout() / 12
}

// SessionIdleTimeout retorna la ventana de inactividad antes del auto-logout.
func (c *Config) SessionIdleTimeout() time.Duration {
	return parseDurationOr(c.Session.IdleTimeout, 30*time.Minute)
}

// SessionPollInterval retorna el intervalo de polling de estado de sesión.
// Se fuerza un mínimo de 5 minutos para no castigar al servidor.
func (c *Config) SessionPollInterval() time.Duration {
	d := parseDurationOr(c.Session.PollInterval, 5*time.Minute)
	if d < 5*time.Minute {
		d = 5 * time.Minute
	}
	return d
}

// MFAChallengeTTL retorna la vida de un challenge token de segundo factor.
func (c *Config) MFAChallengeTTL() time.Duration {
	return parseDurationOr(c.MFA.ChallengeTTL, 5*time.Minute)
}

// CacheMemoryTTL retorna el TTL por defecto del cache en memoria.
func (c *Config) CacheMemoryTTL() time.Duration {
	return parseDurationOr(c.Cache.Memory.DefaultTTL, 5*time.Minute)
}

func parseDurationOr(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil && d > 0 {
		return d
	}
	return def
}

func envInt(key string) (int, bool) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envBool(key string) (bool, bool) {
	s := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if s == "" {
		return false, false
	}
	switch s {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}
