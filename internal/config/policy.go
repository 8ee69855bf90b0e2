package config

import (
	"os"
	"strconv"
	"time"

	imageApi "Unwarp/internal/api/image"
)

const (
	defaultProcessTimeout = 60 * time.Second
	defaultLockTTL        = 2 * time.Minute
	defaultPreviewMaxSize = 1024
	defaultSessionTTL     = 30 * time.Minute
)

// LoadPolicy reads the processing defaults from the environment. Unset or
// unparsable values fall back to the built-in defaults.
func LoadPolicy() imageApi.Policy {
	return imageApi.Policy{
		OutputWidth:    envInt("OUTPUT_WIDTH", 0),
		OutputHeight:   envInt("OUTPUT_HEIGHT", 0),
		EnhanceDefault: envBool("ENHANCE_DEFAULT", true),
		ProcessTimeout: envDuration("PROCESS_TIMEOUT", defaultProcessTimeout),
		LockTTL:        envDuration("PROCESS_LOCK_TTL", defaultLockTTL),
		PreviewMaxSize: envInt("PREVIEW_MAX_SIZE", defaultPreviewMaxSize),
	}
}

func SessionTTL() time.Duration {
	return envDuration("SESSION_TTL", defaultSessionTTL)
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func envBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
