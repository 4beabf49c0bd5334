package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// NodeConfig points the gateway at the curiod JSON-RPC endpoint.
type NodeConfig struct {
	URL          string        `yaml:"url"`
	AuthToken    string        `yaml:"authToken"`
	AuthTokenEnv string        `yaml:"authTokenEnv"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Token resolves the bearer token, preferring the literal value over the
// environment indirection.
func (n NodeConfig) Token() string {
	if tok := strings.TrimSpace(n.AuthToken); tok != "" {
		return tok
	}
	if env := strings.TrimSpace(n.AuthTokenEnv); env != "" {
		return strings.TrimSpace(os.Getenv(env))
	}
	return ""
}

type RateLimitConfig struct {
	ID                string  `yaml:"id"`
	RequestsPerMinute float64 `yaml:"requestsPerMinute"`
	Burst             int     `yaml:"burst"`
}

type ObservabilityConfig struct {
	ServiceName   string `yaml:"serviceName"`
	Metrics       bool   `yaml:"metrics"`
	Tracing       bool   `yaml:"tracing"`
	LogRequests   bool   `yaml:"logRequests"`
	MetricsPrefix string `yaml:"metricsPrefix"`
	OTLPEndpoint  string `yaml:"otlpEndpoint"`
	OTLPInsecure  bool   `yaml:"otlpInsecure"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// StoreConfig locates the sqlite database backing idempotency keys, audit
// entries and webhook subscriptions.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// NotifierConfig tunes the outbound webhook pipeline: the bbolt queue file,
// the node event poll cadence and the delivery retry policy.
type NotifierConfig struct {
	Path            string        `yaml:"path"`
	PollInterval    time.Duration `yaml:"pollInterval"`
	FetchLimit      int           `yaml:"fetchLimit"`
	MaxAttempts     int           `yaml:"maxAttempts"`
	DeliveryTimeout time.Duration `yaml:"deliveryTimeout"`
}

type SecurityConfig struct {
	AutoUpgradeHTTP bool   `yaml:"autoUpgradeHTTP"`
	TLSCertFile     string `yaml:"tlsCertFile"`
	TLSKeyFile      string `yaml:"tlsKeyFile"`
}

type Config struct {
	ListenAddress string              `yaml:"listen"`
	ReadTimeout   time.Duration       `yaml:"readTimeout"`
	WriteTimeout  time.Duration       `yaml:"writeTimeout"`
	IdleTimeout   time.Duration       `yaml:"idleTimeout"`
	Node          NodeConfig          `yaml:"node"`
	Auth          AuthConfig          `yaml:"auth"`
	RateLimits    []RateLimitConfig   `yaml:"rateLimits"`
	Observability ObservabilityConfig `yaml:"observability"`
	Log           LogConfig           `yaml:"log"`
	Store         StoreConfig         `yaml:"store"`
	Notifier      NotifierConfig      `yaml:"notifier"`
	Security      SecurityConfig      `yaml:"security"`
}

type AuthConfig struct {
	Enabled           bool          `yaml:"enabled"`
	HMACSecret        string        `yaml:"hmacSecret"`
	Issuer            string        `yaml:"issuer"`
	Audience          string        `yaml:"audience"`
	ScopeClaim        string        `yaml:"scopeClaim"`
	OptionalPaths     []string      `yaml:"optionalPaths"`
	AllowAnonymous    bool          `yaml:"allowAnonymous"`
	ClockSkew         time.Duration `yaml:"clockSkew"`
	allowAnonymousSet bool          `yaml:"-"`
	enabledSet        bool          `yaml:"-"`
}

func (a *AuthConfig) UnmarshalYAML(node *yaml.Node) error {
	type rawAuthConfig struct {
		Enabled        *bool         `yaml:"enabled"`
		HMACSecret     string        `yaml:"hmacSecret"`
		Issuer         string        `yaml:"issuer"`
		Audience       string        `yaml:"audience"`
		ScopeClaim     string        `yaml:"scopeClaim"`
		OptionalPaths  []string      `yaml:"optionalPaths"`
		AllowAnonymous *bool         `yaml:"allowAnonymous"`
		ClockSkew      time.Duration `yaml:"clockSkew"`
	}
	var raw rawAuthConfig
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.Enabled != nil {
		a.Enabled = *raw.Enabled
		a.enabledSet = true
	} else {
		a.Enabled = false
		a.enabledSet = false
	}
	a.HMACSecret = raw.HMACSecret
	a.Issuer = raw.Issuer
	a.Audience = raw.Audience
	a.ScopeClaim = raw.ScopeClaim
	a.OptionalPaths = raw.OptionalPaths
	if raw.AllowAnonymous != nil {
		a.AllowAnonymous = *raw.AllowAnonymous
		a.allowAnonymousSet = true
	} else {
		a.AllowAnonymous = false
		a.allowAnonymousSet = false
	}
	a.ClockSkew = raw.ClockSkew
	return nil
}

// Load reads the gateway configuration, falling back to defaults when path is
// empty. The zero configuration targets a local curiod with auth disabled so
// the binary is useful out of the box; deployments that enable auth must also
// provide the HMAC secret.
func Load(path string) (Config, error) {
	cfg := Config{
		ListenAddress: ":8080",
		ReadTimeout:   30 * time.Second,
		WriteTimeout:  30 * time.Second,
		IdleTimeout:   120 * time.Second,
		Node: NodeConfig{
			URL:          "http://localhost:8545",
			AuthTokenEnv: "CURIO_RPC_TOKEN",
			Timeout:      15 * time.Second,
		},
		Observability: ObservabilityConfig{
			ServiceName:   "curio-gateway",
			Metrics:       true,
			Tracing:       true,
			LogRequests:   true,
			MetricsPrefix: "gateway",
		},
		Auth: AuthConfig{
			Enabled:        false,
			ScopeClaim:     "scope",
			AllowAnonymous: false,
			ClockSkew:      2 * time.Minute,
		},
		Store: StoreConfig{Path: "curio-gateway.db"},
		Notifier: NotifierConfig{
			Path:            "curio-gateway-notify.db",
			PollInterval:    5 * time.Second,
			FetchLimit:      100,
			MaxAttempts:     5,
			DeliveryTimeout: 10 * time.Second,
		},
	}
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := yaml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("decode config: %w", err)
		}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg == nil {
		return
	}
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8080"
	}
	if cfg.Node.Timeout <= 0 {
		cfg.Node.Timeout = 15 * time.Second
	}
	if cfg.Auth.ClockSkew <= 0 {
		cfg.Auth.ClockSkew = 2 * time.Minute
	}
	if cfg.Auth.ScopeClaim == "" {
		cfg.Auth.ScopeClaim = "scope"
	}
	if !cfg.Auth.allowAnonymousSet {
		cfg.Auth.AllowAnonymous = false
	}
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "curio-gateway"
	}
	if cfg.Observability.MetricsPrefix == "" {
		cfg.Observability.MetricsPrefix = "gateway"
	}
	if cfg.Notifier.PollInterval <= 0 {
		cfg.Notifier.PollInterval = 5 * time.Second
	}
	if cfg.Notifier.FetchLimit <= 0 {
		cfg.Notifier.FetchLimit = 100
	}
	if cfg.Notifier.MaxAttempts <= 0 {
		cfg.Notifier.MaxAttempts = 5
	}
	if cfg.Notifier.DeliveryTimeout <= 0 {
		cfg.Notifier.DeliveryTimeout = 10 * time.Second
	}
}

var (
	ErrAuthSecretMissing        = errors.New("auth.hmacSecret must be set when auth.enabled is true")
	ErrAuthEnabledNotConfigured = errors.New("auth.enabled must be explicitly set for sensitive deployments")
)

func (cfg *Config) Validate() error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(cfg.Node.URL) == "" {
		return fmt.Errorf("node.url is required")
	}
	if _, err := url.Parse(cfg.Node.URL); err != nil {
		return fmt.Errorf("parse node.url: %w", err)
	}
	if cfg.isSensitiveDeployment() && !cfg.Auth.enabledSet {
		return ErrAuthEnabledNotConfigured
	}
	if cfg.Auth.Enabled && strings.TrimSpace(cfg.Auth.HMACSecret) == "" {
		return ErrAuthSecretMissing
	}
	if (cfg.Security.TLSCertFile == "") != (cfg.Security.TLSKeyFile == "") {
		return fmt.Errorf("security.tlsCertFile and security.tlsKeyFile must be set together")
	}
	if cfg.Auth.AllowAnonymous && !cfg.Auth.allowAnonymousSet {
		return fmt.Errorf("auth.allowAnonymous must be explicitly set to true to enable anonymous access")
	}
	trimmed := make([]string, len(cfg.Auth.OptionalPaths))
	for i, path := range cfg.Auth.OptionalPaths {
		trimmedPath := strings.TrimSpace(path)
		if trimmedPath == "" {
			return fmt.Errorf("auth.optionalPaths[%d] cannot be empty", i)
		}
		if !strings.HasPrefix(trimmedPath, "/") {
			return fmt.Errorf("auth.optionalPaths[%d] must start with '/'", i)
		}
		trimmed[i] = trimmedPath
	}
	cfg.Auth.OptionalPaths = trimmed
	if cfg.Auth.Enabled && cfg.Auth.AllowAnonymous && len(cfg.Auth.OptionalPaths) == 0 {
		return fmt.Errorf("auth.optionalPaths must list at least one entry when auth.allowAnonymous is true")
	}
	seen := make(map[string]struct{}, len(cfg.RateLimits))
	for i, limit := range cfg.RateLimits {
		id := strings.TrimSpace(limit.ID)
		if id == "" {
			return fmt.Errorf("rateLimits[%d].id is required", i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("rateLimits[%d].id %q duplicated", i, id)
		}
		seen[id] = struct{}{}
		if limit.RequestsPerMinute <= 0 {
			return fmt.Errorf("rateLimits[%d].requestsPerMinute must be positive", i)
		}
	}
	if strings.TrimSpace(cfg.Store.Path) == "" {
		return fmt.Errorf("store.path is required")
	}
	if strings.TrimSpace(cfg.Notifier.Path) == "" {
		return fmt.Errorf("notifier.path is required")
	}
	return nil
}

// NodeURL parses the configured node endpoint, upgrading plaintext HTTP to
// HTTPS outside dev environments when autoUpgradeHTTP is set.
func (cfg Config) NodeURL(env string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(cfg.Node.URL))
	if err != nil {
		return nil, fmt.Errorf("parse node.url: %w", err)
	}
	secured, _, err := EnforceSecureScheme(env, parsed, cfg.Security.AutoUpgradeHTTP)
	if err != nil {
		return nil, err
	}
	return secured, nil
}

// EnforceSecureScheme ensures the supplied URL uses HTTPS outside of the dev
// environment. If autoUpgrade is enabled, insecure HTTP URLs are transparently
// upgraded to HTTPS. The returned boolean indicates whether an upgrade
// occurred.
func EnforceSecureScheme(env string, target *url.URL, autoUpgrade bool) (*url.URL, bool, error) {
	if target == nil {
		return nil, false, fmt.Errorf("target URL is nil")
	}
	scheme := strings.ToLower(strings.TrimSpace(target.Scheme))
	switch scheme {
	case "https":
		return target, false, nil
	case "http":
		if IsDevEnv(env) {
			return target, false, nil
		}
		if autoUpgrade {
			upgraded := *target
			upgraded.Scheme = "https"
			return &upgraded, true, nil
		}
		return nil, false, fmt.Errorf("plaintext HTTP endpoints are not permitted for environment %s", env)
	case "":
		return nil, false, fmt.Errorf("URL scheme is required")
	default:
		return nil, false, fmt.Errorf("unsupported URL scheme %q", target.Scheme)
	}
}

func (cfg *Config) isSensitiveDeployment() bool {
	if cfg == nil {
		return false
	}
	if cfg.Security.AutoUpgradeHTTP {
		return true
	}
	if strings.TrimSpace(cfg.Security.TLSCertFile) != "" {
		return true
	}
	return strings.TrimSpace(cfg.Security.TLSKeyFile) != ""
}

// IsDevEnv reports whether the environment name counts as a development
// deployment. An unset environment defaults to dev so local tooling works
// without ceremony.
func IsDevEnv(env string) bool {
	trimmed := strings.TrimSpace(env)
	return trimmed == "" || strings.EqualFold(trimmed, "dev") || strings.EqualFold(trimmed, "local")
}
