package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Library
	LibraryFile    string // flat CSV file the track library persists to
	WatchDir       string // directory auto-imported on file creation, empty disables
	SaveOnMutation bool   // save the library after every add/remove/clear

	// Decks
	SpeedMax     float64       // upper bound accepted by SetSpeed
	PositionPoll time.Duration // playhead polling interval for the position feed
	FFmpegPath   string        // used for formats beep cannot decode and for the mp3 monitor

	// Server
	Port int

	// Logging
	LogLevel      string
	LogFile       string
	LogMaxSize    int // megabytes
	LogMaxBackups int
	LogMaxAge     int // days
}

// Load reads configuration from environment variables with sane defaults.
// A .env file in the working directory is applied first; it never overrides
// variables that are already set.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		LibraryFile:    envStr("DJ_LIBRARY_FILE", "libraryTracks.csv"),
		WatchDir:       envStr("DJ_WATCH_DIR", ""),
		SaveOnMutation: envBool("DJ_SAVE_ON_MUTATION", false),

		SpeedMax:     envFloat("DJ_SPEED_MAX", 2.0),
		PositionPoll: time.Duration(envInt("DJ_POSITION_POLL", 100)) * time.Millisecond,
		FFmpegPath:   envStr("DJ_FFMPEG_PATH", "ffmpeg"),

		Port: envInt("DJ_PORT", 8080),

		LogLevel:      envStr("DJ_LOG_LEVEL", "info"),
		LogFile:       envStr("DJ_LOG_FILE", ""),
		LogMaxSize:    envInt("DJ_LOG_MAX_SIZE", 10),
		LogMaxBackups: envInt("DJ_LOG_MAX_BACKUPS", 3),
		LogMaxAge:     envInt("DJ_LOG_MAX_AGE", 28),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
