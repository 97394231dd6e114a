package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jollygoodjacob/goes-fog-cover/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Run window and region.
	Region       domain.BBox
	Year         int
	StartMonth   time.Month
	WindowMonths int

	// Target grid: equirectangular cell size in degrees. 0.02 deg is
	// roughly the 2 km nominal resolution of the ABI IR bands.
	ResolutionDeg float64

	// Classifier configuration.
	Thresholds domain.Thresholds
	Bands      domain.BandSet

	// Pipeline behaviour.
	Workers           int
	KeepIntermediates bool

	// Imagery catalog.
	CatalogURL        string
	CatalogCollection string
	CatalogTimeout    time.Duration

	// Export destinations. Empty path disables the writer.
	OutputPNG  string
	OutputHTML string

	// Optional Kafka publishing of the run result.
	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaSinkTopic string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Window returns the half-open run interval [start, start+months).
func (c *Config) Window() (start, end time.Time) {
	start = time.Date(c.Year, c.StartMonth, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, c.WindowMonths, 0)
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	region, err := parseBBox(envOrDefault("REGION_BBOX", "-123.1,37.2,-121.5,38.6"))
	if err != nil {
		return nil, err
	}

	year, err := parseIntRange("YEAR", 2024, 2000, 2100)
	if err != nil {
		return nil, err
	}
	startMonth, err := parseIntRange("START_MONTH", 1, 1, 12)
	if err != nil {
		return nil, err
	}
	windowMonths, err := parseIntRange("WINDOW_MONTHS", 1, 1, 12)
	if err != nil {
		return nil, err
	}

	resolution, err := parseFloat("TARGET_RESOLUTION_DEG", 0.02)
	if err != nil {
		return nil, err
	}
	if resolution <= 0 {
		return nil, errors.New("TARGET_RESOLUTION_DEG must be positive")
	}

	thresholds, err := parseThresholds()
	if err != nil {
		return nil, err
	}

	workers, err := parseIntRange("WORKERS", 4, 1, 256)
	if err != nil {
		return nil, err
	}

	catalogTimeout, err := parseDuration("CATALOG_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	kafkaBrokers := splitList(envOrDefault("KAFKA_BROKERS", "localhost:9092"))
	kafkaEnabled := os.Getenv("KAFKA_ENABLED") == "true"

	cfg := &Config{
		Region:        region,
		Year:          year,
		StartMonth:    time.Month(startMonth),
		WindowMonths:  windowMonths,
		ResolutionDeg: resolution,
		Thresholds:    thresholds,
		Bands: domain.BandSet{
			CTT:    envOrDefault("BAND_CTT", domain.DefaultBandSet().CTT),
			BTDNum: envOrDefault("BAND_BTD_NUM", domain.DefaultBandSet().BTDNum),
			BTDDen: envOrDefault("BAND_BTD_DEN", domain.DefaultBandSet().BTDDen),
		},
		Workers:           workers,
		KeepIntermediates: os.Getenv("KEEP_INTERMEDIATES") == "true",

		CatalogURL:        envOrDefault("CATALOG_URL", "http://localhost:8081"),
		CatalogCollection: envOrDefault("CATALOG_COLLECTION", "goes18-abi-cmi"),
		CatalogTimeout:    catalogTimeout,

		OutputPNG:  envOrDefault("OUTPUT_PNG", "fog_percentage.png"),
		OutputHTML: os.Getenv("OUTPUT_HTML"),

		KafkaEnabled:   kafkaEnabled,
		KafkaBrokers:   kafkaBrokers,
		KafkaSinkTopic: envOrDefault("KAFKA_SINK_TOPIC", "fog-cover-results"),

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.CatalogURL == "" {
		return nil, errors.New("CATALOG_URL is required")
	}
	if cfg.CatalogCollection == "" {
		return nil, errors.New("CATALOG_COLLECTION is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.Bands.CTT == "" || cfg.Bands.BTDNum == "" || cfg.Bands.BTDDen == "" {
		return nil, errors.New("band names must not be empty")
	}

	return cfg, nil
}

// parseThresholds reads the classifier constants. WARM_K defaults to the
// effective COLD_CLOUD_K, keeping the shared 273 K boundary a single
// source of truth unless deliberately overridden.
func parseThresholds() (domain.Thresholds, error) {
	defaults := domain.DefaultThresholds()

	cold, err := parseFloat("COLD_CLOUD_K", defaults.ColdCloudK)
	if err != nil {
		return domain.Thresholds{}, err
	}
	btd, err := parseFloat("FOG_BTD_K", defaults.FogBTDK)
	if err != nil {
		return domain.Thresholds{}, err
	}
	warm, err := parseFloat("WARM_K", cold)
	if err != nil {
		return domain.Thresholds{}, err
	}

	return domain.Thresholds{ColdCloudK: cold, FogBTDK: btd, WarmK: warm}, nil
}

// parseBBox parses "west,south,east,north" in degrees.
func parseBBox(s string) (domain.BBox, error) {
	parts := splitList(s)
	if len(parts) != 4 {
		return domain.BBox{}, fmt.Errorf("REGION_BBOX wants west,south,east,north, got %q", s)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return domain.BBox{}, fmt.Errorf("REGION_BBOX component %q: %w", p, err)
		}
		vals[i] = v
	}
	box := domain.BBox{West: vals[0], South: vals[1], East: vals[2], North: vals[3]}
	if !box.Valid() {
		return domain.BBox{}, fmt.Errorf("REGION_BBOX %q is not a valid box", s)
	}
	return box, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseIntRange(key string, def, min, max int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < min || n > max {
		return 0, fmt.Errorf("invalid %s: %q (want %d..%d)", key, s, min, max)
	}
	return n, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return v, nil
}

func parseDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}
