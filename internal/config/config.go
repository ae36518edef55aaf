package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ace-status/internal/feed"
	"ace-status/internal/notify"
)

// Notification sinks.
const (
	SinkWebhook = "webhook"
	SinkNATS    = "nats"
)

// Stop sources.
const (
	StopsFromFeed = "feed"
	StopsFromDB   = "db"
)

type Config struct {
	FeedURL     string        `validate:"required,url"`
	Offline     bool          // serve feeds from the embedded seed fixtures
	CacheTTL    time.Duration `validate:"gt=0"`
	HTTPTimeout time.Duration `validate:"gte=0"`

	Destination string // optional destination stop name
	StopFilter  string // optional single-stop ETA filter

	NotifySink  string `validate:"oneof=webhook nats"`
	WebhookURL  string `validate:"required,url"`
	NotifyEvent string // checked when sending, not here
	NotifyKey   string
	NATSURL     string `validate:"required_if=NotifySink nats"`
	NATSSubject string

	// StopsSource "db" reads get_stops from a GTFS stops table instead of the
	// feed. StopsDatabaseURL is empty unless it is "db".
	StopsSource      string `validate:"oneof=feed db"`
	StopsDatabaseURL string `validate:"required_if=StopsSource db"`

	MetricsAddr string
	ListenAddr  string
	CORSOrigins []string
}

// fileConfig is the optional YAML file layout. Environment variables take
// precedence over anything set here.
type fileConfig struct {
	Feed struct {
		URL        string `yaml:"url"`
		CacheTTLMS int    `yaml:"cacheTTLMS"`
		TimeoutSec int    `yaml:"timeoutSec"`
		Offline    *bool  `yaml:"offline"`
	} `yaml:"feed"`
	Status struct {
		Destination string `yaml:"destination"`
		Stop        string `yaml:"stop"`
	} `yaml:"status"`
	Notify struct {
		Sink        string `yaml:"sink"`
		WebhookURL  string `yaml:"webhookURL"`
		Event       string `yaml:"event"`
		Key         string `yaml:"key"`
		NATSURL     string `yaml:"natsURL"`
		NATSSubject string `yaml:"natsSubject"`
	} `yaml:"notify"`
	StopsSource      string   `yaml:"stopsSource"`
	StopsDatabaseURL string   `yaml:"stopsDatabaseURL"`
	MetricsAddr      string   `yaml:"metricsAddr"`
	ListenAddr       string   `yaml:"listenAddr"`
	CORSOrigins      []string `yaml:"corsOrigins"`
}

func defaults() *Config {
	return &Config{
		FeedURL:     feed.DefaultBaseURL,
		CacheTTL:    feed.DefaultTTL,
		HTTPTimeout: 15 * time.Second,
		NotifySink:  SinkWebhook,
		StopsSource: StopsFromFeed,
		WebhookURL:  notify.DefaultWebhookBaseURL,
		NATSURL:     "nats://127.0.0.1:4222",
		NATSSubject: "ace.status",
		ListenAddr:  ":8080",
		CORSOrigins: []string{"*"},
	}
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := defaults()

	if path := os.Getenv("ACE_CONFIG_FILE"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv("ACE_FEED_URL"); v != "" {
		cfg.FeedURL = v
	}

	// Offline mode (seed fixtures)
	if v := os.Getenv("USE_SEED"); v != "" {
		cfg.Offline = parseBool(v)
	}

	if v := os.Getenv("FEED_CACHE_TTL_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return nil, fmt.Errorf("invalid FEED_CACHE_TTL_MS: %q", v)
		}
		cfg.CacheTTL = time.Duration(ms) * time.Millisecond
	}

	if v := os.Getenv("HTTP_TIMEOUT_SEC"); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil || sec < 0 {
			return nil, fmt.Errorf("invalid HTTP_TIMEOUT_SEC: %q", v)
		}
		cfg.HTTPTimeout = time.Duration(sec) * time.Second
	}

	if v := os.Getenv("ACE_DESTINATION"); v != "" {
		cfg.Destination = strings.TrimSpace(v)
	}
	if v := os.Getenv("ACE_STOP"); v != "" {
		cfg.StopFilter = strings.TrimSpace(v)
	}

	// IFTT_* are the historical names; IFTTT_* is accepted as well.
	if v := firstNonEmpty(os.Getenv("IFTT_KEY"), os.Getenv("IFTTT_KEY")); v != "" {
		cfg.NotifyKey = strings.TrimSpace(v)
	}
	if v := firstNonEmpty(os.Getenv("IFTT_EVENT"), os.Getenv("IFTTT_EVENT")); v != "" {
		cfg.NotifyEvent = strings.TrimSpace(v)
	}
	cfg.WebhookURL = getenvDefault("IFTTT_URL", cfg.WebhookURL)
	if v := os.Getenv("NOTIFY_SINK"); v != "" {
		cfg.NotifySink = strings.ToLower(strings.TrimSpace(v))
	}
	cfg.NATSURL = getenvDefault("NATS_URL", cfg.NATSURL)
	cfg.NATSSubject = getenvDefault("NATS_SUBJECT", cfg.NATSSubject)

	// Stops database: opt in with STOPS_SOURCE=db or an explicit STOPS_DATABASE_URL.
	// PG* vars only fill in the DSN once opted in.
	if v := os.Getenv("STOPS_DATABASE_URL"); v != "" {
		cfg.StopsDatabaseURL = v
		cfg.StopsSource = StopsFromDB
	}
	if v := os.Getenv("STOPS_SOURCE"); v != "" {
		cfg.StopsSource = strings.ToLower(strings.TrimSpace(v))
	}
	if cfg.StopsSource != StopsFromDB {
		cfg.StopsDatabaseURL = ""
	} else if cfg.StopsDatabaseURL == "" {
		if db := os.Getenv("PGDATABASE"); db != "" {
			cfg.StopsDatabaseURL = pgDSN(db)
		}
	}

	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = getenvDefault("METRICS_ADDR", cfg.MetricsAddr)
	cfg.ListenAddr = getenvDefault("LISTEN_ADDR", cfg.ListenAddr)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	setIf(&cfg.FeedURL, fc.Feed.URL)
	if fc.Feed.CacheTTLMS > 0 {
		cfg.CacheTTL = time.Duration(fc.Feed.CacheTTLMS) * time.Millisecond
	}
	if fc.Feed.TimeoutSec > 0 {
		cfg.HTTPTimeout = time.Duration(fc.Feed.TimeoutSec) * time.Second
	}
	if fc.Feed.Offline != nil {
		cfg.Offline = *fc.Feed.Offline
	}
	setIf(&cfg.Destination, fc.Status.Destination)
	setIf(&cfg.StopFilter, fc.Status.Stop)
	setIf(&cfg.NotifySink, strings.ToLower(fc.Notify.Sink))
	setIf(&cfg.WebhookURL, fc.Notify.WebhookURL)
	setIf(&cfg.NotifyEvent, fc.Notify.Event)
	setIf(&cfg.NotifyKey, fc.Notify.Key)
	setIf(&cfg.NATSURL, fc.Notify.NATSURL)
	setIf(&cfg.NATSSubject, fc.Notify.NATSSubject)
	setIf(&cfg.StopsDatabaseURL, fc.StopsDatabaseURL)
	if fc.StopsDatabaseURL != "" {
		cfg.StopsSource = StopsFromDB
	}
	setIf(&cfg.StopsSource, strings.ToLower(fc.StopsSource))
	setIf(&cfg.MetricsAddr, fc.MetricsAddr)
	setIf(&cfg.ListenAddr, fc.ListenAddr)
	if len(fc.CORSOrigins) > 0 {
		cfg.CORSOrigins = fc.CORSOrigins
	}
	return nil
}

func pgDSN(db string) string {
	host := getenvDefault("PGHOST", "127.0.0.1")
	port := getenvDefault("PGPORT", "5432")
	user := getenvDefault("PGUSER", "postgres")
	pass := os.Getenv("PGPASSWORD")
	sslmode := getenvDefault("PGSSLMODE", "disable")
	if pass != "" {
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
	}
	return fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func setIf(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
