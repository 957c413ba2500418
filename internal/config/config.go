package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Vision   VisionConfig
	Camera   CameraConfig
	Matching MatchingConfig
	Database DatabaseConfig
	Roster   RosterConfig
	TimeZone string // IANA zone name for attendance days (e.g. "Europe/Prague"); empty means local time
}

type VisionConfig struct {
	URL     string        // face detection/encoding service base URL (e.g. http://localhost:8000)
	Timeout time.Duration // per-request timeout
}

type CameraConfig struct {
	URL         string        // snapshot URL of the camera (GET returns one JPEG frame)
	Interval    time.Duration // delay between frame grabs
	QueueSize   int           // bounded frame queue between camera and pipeline
	MaxFrameDim int           // frames are downscaled to this size before detection
}

type MatchingConfig struct {
	Tolerance    float64 // maximum distance at which a probe matches a reference (smaller = stricter)
	EmbeddingDim int     // dimension of reference/probe vectors
	UseHNSW      bool    // pre-select candidates with an in-memory HNSW index
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

// RosterConfig points at an external student information system for roster
// import. Read-only; facetrack never writes there.
type RosterConfig struct {
	DatabaseURL string // MySQL/MariaDB DSN (e.g. sis:sis@tcp(sis-db:3306)/sis)
}

// fileOverrides mirrors the optional facetrack.yml config file. Every field is
// a pointer so that an absent key leaves the env-derived value untouched.
type fileOverrides struct {
	Tolerance    *float64 `yaml:"tolerance"`
	EmbeddingDim *int     `yaml:"embedding_dim"`
	UseHNSW      *bool    `yaml:"use_hnsw"`
	TimeZone     *string  `yaml:"time_zone"`
	CameraURL    *string  `yaml:"camera_url"`
	VisionURL    *string  `yaml:"vision_url"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envDuration reads an environment variable and parses it as a duration.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

func Load() *Config {
	cfg := &Config{
		Vision: VisionConfig{
			URL:     os.Getenv("VISION_URL"),
			Timeout: envDuration("VISION_TIMEOUT", 10*time.Second),
		},
		Camera: CameraConfig{
			URL:         os.Getenv("CAMERA_URL"),
			Interval:    envDuration("CAMERA_INTERVAL", 250*time.Millisecond),
			QueueSize:   envInt("CAMERA_QUEUE_SIZE", 4),
			MaxFrameDim: envInt("CAMERA_MAX_FRAME_DIM", 640),
		},
		Matching: MatchingConfig{
			Tolerance:    envFloat("MATCH_TOLERANCE", 0.6),
			EmbeddingDim: envInt("EMBEDDING_DIM", 128),
			UseHNSW:      envBool("MATCH_USE_HNSW", false),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Roster: RosterConfig{
			DatabaseURL: os.Getenv("ROSTER_DATABASE_URL"),
		},
		TimeZone: os.Getenv("ATTENDANCE_TIME_ZONE"),
	}

	if err := cfg.applyFile("facetrack.yml"); err != nil {
		// Config file is optional; a broken one should be loud but not fatal.
		fmt.Fprintf(os.Stderr, "Warning: ignoring facetrack.yml: %v\n", err)
	}

	return cfg
}

// applyFile overlays values from a yaml config file onto the env-derived
// config. A missing file is not an error.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var o fileOverrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if o.Tolerance != nil && *o.Tolerance > 0 {
		c.Matching.Tolerance = *o.Tolerance
	}
	if o.EmbeddingDim != nil && *o.EmbeddingDim > 0 {
		c.Matching.EmbeddingDim = *o.EmbeddingDim
	}
	if o.UseHNSW != nil {
		c.Matching.UseHNSW = *o.UseHNSW
	}
	if o.TimeZone != nil {
		c.TimeZone = *o.TimeZone
	}
	if o.CameraURL != nil {
		c.Camera.URL = *o.CameraURL
	}
	if o.VisionURL != nil {
		c.Vision.URL = *o.VisionURL
	}
	return nil
}

// Location resolves the configured attendance time zone. Attendance days are
// calendar days in this zone; falling back to the process-local zone matches
// the behavior of a single-site deployment.
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid ATTENDANCE_TIME_ZONE %q: %w", c.TimeZone, err)
	}
	return loc, nil
}
