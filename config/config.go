package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable of the mapping service.
type Config struct {
	// Geometry
	PixelScale          float64 // metres per pixel used for polygon_area
	AreaScaleFromAffine bool    // take the scale from |pixel_width| instead
	CenterlineSimplify  float64 // Douglas-Peucker tolerance for centerlines, px
	CenterlineMinBranch float64 // spurs shorter than this are pruned, px
	CenterlineMaxCells  int     // raster budget per polygon

	// Stitching
	ProximityDivisor  float64
	DefaultTileHeight int
	ZigZagTolerance   float64
	SmoothingDensity  int

	// Output
	CollectionName   string
	CRSName          string
	CleanupEnabled   bool
	CleanupTolerance float64
	CleanupMaxCells  int // raster budget per merged cluster
	OutputDir        string
	LatestFile       string

	// Runtime
	Workers    int
	RunTimeout time.Duration
	HTTPAddr   string

	// Collaborators
	DatabaseURL   string
	RedisURL      string
	RedisQueue    string
	KafkaBrokers  string
	KafkaTopic    string
	TelegramToken string
}

func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{
		PixelScale:          getEnvAsFloatOrDefault("PIXEL_SCALE", 0.15),
		AreaScaleFromAffine: getEnvAsBoolOrDefault("AREA_SCALE_FROM_AFFINE", false),
		CenterlineSimplify:  getEnvAsFloatOrDefault("CENTERLINE_SIMPLIFY", 2),
		CenterlineMinBranch: getEnvAsFloatOrDefault("CENTERLINE_MIN_BRANCH", 5),
		CenterlineMaxCells:  getEnvAsIntOrDefault("CENTERLINE_MAX_CELLS", 250000),
		ProximityDivisor:    getEnvAsFloatOrDefault("PROXIMITY_DIVISOR", 30),
		DefaultTileHeight:   getEnvAsIntOrDefault("DEFAULT_TILE_HEIGHT", 640),
		ZigZagTolerance:     getEnvAsFloatOrDefault("ZIGZAG_TOLERANCE", 50),
		SmoothingDensity:    getEnvAsIntOrDefault("SMOOTHING_DENSITY", 4),
		CollectionName:      getEnvOrDefault("COLLECTION_NAME", "single-tree"),
		CRSName:             getEnvOrDefault("CRS_NAME", "urn:ogc:def:crs:EPSG::3857"),
		CleanupEnabled:      getEnvAsBoolOrDefault("CLEANUP_ENABLED", false),
		CleanupTolerance:    getEnvAsFloatOrDefault("CLEANUP_TOLERANCE", 10),
		CleanupMaxCells:     getEnvAsIntOrDefault("CLEANUP_MAX_CELLS", 1000000),
		OutputDir:           getEnvOrDefault("OUTPUT_DIR", "./results"),
		LatestFile:          getEnvOrDefault("LATEST_FILE", "./results/latest.geojson"),
		Workers:             getEnvAsIntOrDefault("WORKERS", 4),
		RunTimeout:          time.Duration(getEnvAsIntOrDefault("RUN_TIMEOUT", 300)) * time.Second,
		HTTPAddr:            getEnvOrDefault("HTTP_ADDR", ":8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            os.Getenv("REDIS_URL"),
		RedisQueue:          getEnvOrDefault("REDIS_QUEUE", "ortho:runs"),
		KafkaBrokers:        os.Getenv("KAFKA_BROKERS"),
		KafkaTopic:          getEnvOrDefault("KAFKA_TOPIC", "ortho.runs"),
		TelegramToken:       os.Getenv("TELEGRAM_TOKEN"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that numeric settings are usable.
func (c *Config) Validate() error {
	if c.PixelScale <= 0 {
		return fmt.Errorf("PIXEL_SCALE must be positive, got %v", c.PixelScale)
	}
	if c.ProximityDivisor <= 0 {
		return fmt.Errorf("PROXIMITY_DIVISOR must be positive, got %v", c.ProximityDivisor)
	}
	if c.DefaultTileHeight <= 0 {
		return fmt.Errorf("DEFAULT_TILE_HEIGHT must be positive, got %d", c.DefaultTileHeight)
	}
	if c.ZigZagTolerance < 0 {
		return fmt.Errorf("ZIGZAG_TOLERANCE must not be negative, got %v", c.ZigZagTolerance)
	}
	if c.SmoothingDensity < 1 {
		return fmt.Errorf("SMOOTHING_DENSITY must be at least 1, got %d", c.SmoothingDensity)
	}
	if c.CenterlineMaxCells < 16 {
		return fmt.Errorf("CENTERLINE_MAX_CELLS must be at least 16, got %d", c.CenterlineMaxCells)
	}
	if c.CleanupTolerance <= 0 {
		return fmt.Errorf("CLEANUP_TOLERANCE must be positive, got %v", c.CleanupTolerance)
	}
	if c.CleanupMaxCells < 16 {
		return fmt.Errorf("CLEANUP_MAX_CELLS must be at least 16, got %d", c.CleanupMaxCells)
	}
	if c.Workers < 1 || c.Workers > 256 {
		return fmt.Errorf("WORKERS must be between 1 and 256, got %d", c.Workers)
	}
	if c.RunTimeout <= 0 {
		return fmt.Errorf("RUN_TIMEOUT must be positive, got %v", c.RunTimeout)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}
