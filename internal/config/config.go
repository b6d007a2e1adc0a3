// Package config reads the daemon's settings from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/GriffinCanCode/matchcore/internal/correlate"
	apperrors "github.com/GriffinCanCode/matchcore/internal/errors"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string
	LogLevel slog.Level

	TemplateDir     string
	TemplateScale   float64
	HealthTemplate  string
	EmptyTemplate   string
	RespawnTemplate string

	HealthThreshold  float64 // critical below this fraction
	BarThreshold     float64
	EmptyThreshold   float64
	RespawnThreshold float64
	MatchMethod      string
	MaxParallel      int // 0 = one thread per task

	MonitorEnabled  bool
	CaptureRate     float64 // Hz
	MaxHashDistance int     // pHash bits; frames closer than this are skipped
	BatchSize       int     // >1 routes frames through BatchProcess
	BatchFlushDelay time.Duration
	AlertCooldown   time.Duration
	HistorySize     int

	BenchmarkIterations int
	CORSOrigins         []string
	RateLimit           int // requests per second per client
}

func Load() *Config {
	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8000"),
		GRPCAddr: getEnv("GRPC_ADDR", ":50052"),
		LogLevel: getEnvLevel("LOG_LEVEL", slog.LevelInfo),

		TemplateDir:     getEnv("TEMPLATE_DIR", "templates"),
		TemplateScale:   getEnvFloat("TEMPLATE_SCALE", 1.0),
		HealthTemplate:  getEnv("HEALTH_TEMPLATE", "health_bar"),
		EmptyTemplate:   getEnv("EMPTY_TEMPLATE", "empty_health"),
		RespawnTemplate: getEnv("RESPAWN_TEMPLATE", "respawn_button"),

		HealthThreshold:  getEnvFloat("HEALTH_THRESHOLD", 0.3),
		BarThreshold:     getEnvFloat("BAR_THRESHOLD", 0.7),
		EmptyThreshold:   getEnvFloat("EMPTY_THRESHOLD", 0.8),
		RespawnThreshold: getEnvFloat("RESPAWN_THRESHOLD", 0.8),
		MatchMethod:      getEnv("MATCH_METHOD", correlate.DefaultMethod.String()),
		MaxParallel:      getEnvInt("MAX_PARALLEL", 0),

		MonitorEnabled:  getEnvBool("MONITOR_ENABLED", true),
		CaptureRate:     getEnvFloat("CAPTURE_RATE", 2.0),
		MaxHashDistance: getEnvInt("MAX_HASH_DISTANCE", 2),
		BatchSize:       getEnvInt("BATCH_SIZE", 1),
		BatchFlushDelay: getEnvDuration("BATCH_FLUSH_DELAY", 500*time.Millisecond),
		AlertCooldown:   getEnvDuration("ALERT_COOLDOWN", 1500*time.Millisecond),
		HistorySize:     getEnvInt("HISTORY_SIZE", 120),

		BenchmarkIterations: getEnvInt("BENCHMARK_ITERATIONS", 100),
		CORSOrigins:         getEnvList("CORS_ORIGINS", []string{"*"}),
		RateLimit:           getEnvInt("RATE_LIMIT", 30),
	}
}

// Method returns the parsed MatchMethod.
func (c *Config) Method() (correlate.Method, error) {
	return correlate.ParseMethod(c.MatchMethod)
}

// Validate reports every out-of-range setting in one CodeConfigInvalid error.
func (c *Config) Validate() error {
	var bad []string
	unit := func(name string, v float64) {
		if v < 0 || v > 1 {
			bad = append(bad, name+" must be in [0,1]")
		}
	}
	unit("HEALTH_THRESHOLD", c.HealthThreshold)
	unit("BAR_THRESHOLD", c.BarThreshold)
	unit("EMPTY_THRESHOLD", c.EmptyThreshold)
	unit("RESPAWN_THRESHOLD", c.RespawnThreshold)

	if c.TemplateScale <= 0 {
		bad = append(bad, "TEMPLATE_SCALE must be positive")
	}
	if _, err := c.Method(); err != nil {
		bad = append(bad, "MATCH_METHOD: "+err.Error())
	}
	if c.MaxParallel < 0 {
		bad = append(bad, "MAX_PARALLEL must be >= 0")
	}
	if c.CaptureRate <= 0 {
		bad = append(bad, "CAPTURE_RATE must be positive")
	}
	if c.MaxHashDistance < 0 {
		bad = append(bad, "MAX_HASH_DISTANCE must be >= 0")
	}
	if c.BatchSize < 1 {
		bad = append(bad, "BATCH_SIZE must be >= 1")
	}
	if c.HistorySize < 1 {
		bad = append(bad, "HISTORY_SIZE must be >= 1")
	}
	if c.BenchmarkIterations < 1 {
		bad = append(bad, "BENCHMARK_ITERATIONS must be >= 1")
	}
	if c.RateLimit < 1 {
		bad = append(bad, "RATE_LIMIT must be >= 1")
	}

	if len(bad) > 0 {
		return apperrors.New(apperrors.CodeConfigInvalid, strings.Join(bad, "; "))
	}
	return nil
}

// CaptureInterval is the tick period implied by CaptureRate.
func (c *Config) CaptureInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.CaptureRate)
}

// MatchesPerTick is how many correlations one monitor detection runs: the
// health bar, the empty bar and the respawn button.
const MatchesPerTick = 3

// CheckCadence reports CodeConfigInvalid when matchCost, the measured cost of
// one correlation, leaves a detection longer than the capture interval.
func (c *Config) CheckCadence(matchCost time.Duration) error {
	need := matchCost * MatchesPerTick
	if interval := c.CaptureInterval(); need > interval {
		return apperrors.Newf(apperrors.CodeConfigInvalid,
			"CAPTURE_RATE %.2f Hz allows %v per frame, detection needs about %v", c.CaptureRate, interval, need)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

// getEnvDuration accepts Go durations ("750ms") or plain seconds ("1.5").
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(f * float64(time.Second))
	}
	return def
}

// getEnvLevel accepts slog level names ("debug", "WARN", "info+2").
func getEnvLevel(key string, def slog.Level) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(os.Getenv(key))); err != nil {
		return def
	}
	return l
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}
