package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ModeRemote = "remote"
	ModeSample = "sample"
	ModeLocal  = "local"
)

// Config holds every runtime setting of the server and its tools.
type Config struct {
	Environment string
	Port        string
	DatabaseURL string

	JWTSecret    string
	JWTExpiresIn time.Duration
	CookieSecure bool
	AdminSecret  string

	CacheTTLMinutes     int
	OpportunitySource   string
	SamplePath          string
	SourcesPath         string
	FetchTimeout        time.Duration
	AllowPrivateSources bool

	AnalyticsProvider   string
	PlausibleDomain     string
	PlausibleScriptHost string
	CloudflareToken     string

	EnableCompression  bool
	StaticCacheSeconds int
	PublicDir          string
	CORSOrigins        []string
}

// Load reads the configuration from the environment, falling back to
// defaults for anything unset or unparseable.
func Load() Config {
	env := firstNonEmpty(os.Getenv("APP_ENV"), os.Getenv("NODE_ENV"), "development")

	cfg := Config{
		Environment:         strings.ToLower(env),
		Port:                envString("PORT", "3000"),
		DatabaseURL:         envString("DATABASE_URL", "sqlite://data/volunteermd.sqlite"),
		JWTSecret:           strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTExpiresIn:        envDuration("JWT_EXPIRES_IN", 7*24*time.Hour),
		CookieSecure:        envBool("COOKIE_SECURE", false),
		AdminSecret:         strings.TrimSpace(os.Getenv("ADMIN_SECRET")),
		CacheTTLMinutes:     envInt("OPPORTUNITY_CACHE_TTL_MINUTES", 30),
		OpportunitySource:   strings.ToLower(envString("OPPORTUNITY_SOURCE", ModeRemote)),
		SamplePath:          envString("OPPORTUNITY_SAMPLE_PATH", "data/sample-opportunities.csv"),
		SourcesPath:         envString("OPPORTUNITY_SOURCES_PATH", "config/spreadsheets.json"),
		FetchTimeout:        time.Duration(envInt("OPPORTUNITY_FETCH_TIMEOUT_SECONDS", 15)) * time.Second,
		AllowPrivateSources: envBool("OPPORTUNITY_ALLOW_PRIVATE_SOURCES", false),
		AnalyticsProvider:   strings.ToLower(strings.TrimSpace(os.Getenv("ANALYTICS_PROVIDER"))),
		PlausibleDomain:     strings.TrimSpace(os.Getenv("PLAUSIBLE_DOMAIN")),
		PlausibleScriptHost: strings.TrimSuffix(envString("PLAUSIBLE_SCRIPT_HOST", "https://plausible.io"), "/"),
		CloudflareToken:     strings.TrimSpace(os.Getenv("CLOUDFLARE_BEACON_TOKEN")),
		StaticCacheSeconds:  envInt("STATIC_CACHE_MAX_AGE_SECONDS", 60*60*24),
		PublicDir:           envString("PUBLIC_DIR", "public"),
	}
	cfg.EnableCompression = envBool("ENABLE_COMPRESSION", cfg.IsProduction())

	if cfg.StaticCacheSeconds < 0 {
		cfg.StaticCacheSeconds = 0
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 15 * time.Second
	}

	for _, o := range strings.Split(os.Getenv("CORS_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c Config) IsSampleMode() bool {
	return c.OpportunitySource == ModeSample || c.OpportunitySource == ModeLocal
}

// CacheTTL is the configured cache lifetime, never shorter than a minute.
func (c Config) CacheTTL() time.Duration {
	minutes := c.CacheTTLMinutes
	if minutes < 1 {
		minutes = 1
	}
	return time.Duration(minutes) * time.Minute
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		if f, ferr := strconv.ParseFloat(raw, 64); ferr == nil {
			return int(f)
		}
		return fallback
	}
	return v
}

// ParseBool accepts 1/true/yes/on and 0/false/no/off.
func ParseBool(raw string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	return ParseBool(os.Getenv(key), fallback)
}

// ParseDuration understands Go durations plus a "d" suffix for days ("7d").
func ParseDuration(raw string) (time.Duration, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if strings.HasSuffix(raw, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(raw, "d"))
		if err != nil || days <= 0 {
			return 0, false
		}
		return time.Duration(days) * 24 * time.Hour, true
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if d, ok := ParseDuration(os.Getenv(key)); ok {
		return d
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
