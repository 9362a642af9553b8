// Package config loads runtime settings from the environment (and an
// optional .env file).
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/counterline/posledger/pos"
	"github.com/counterline/posledger/remote"
	"github.com/counterline/posledger/syncqueue"
)

type Config struct {
	ListenAddr      string
	DBPath          string
	RemoteURL       string
	SyncInterval    time.Duration
	SyncDebounce    time.Duration
	SyncTimeout     time.Duration
	SyncConcurrency int
	RemoteRPS       float64
	OrderRetention  int
	Location        *time.Location
}

// SyncEnabled reports whether a remote store is configured.
func (c Config) SyncEnabled() bool { return c.RemoteURL != "" }

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// Load reads .env if present, then the environment.
func Load() (Config, error) {
	_ = godotenv.Load() // load .env if it exists
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		ListenAddr: getenv("POS_LISTEN_ADDR", ":8080"),
		DBPath:     getenv("POS_DB_PATH", "posledger.db"),
		RemoteURL:  getenv("POS_REMOTE_URL", ""),
	}

	var err error
	if cfg.SyncInterval, err = durationEnv("POS_SYNC_INTERVAL", syncqueue.DefaultInterval); err != nil {
		return Config{}, err
	}
	if cfg.SyncDebounce, err = durationEnv("POS_SYNC_DEBOUNCE", syncqueue.DefaultDebounce); err != nil {
		return Config{}, err
	}
	if cfg.SyncTimeout, err = durationEnv("POS_SYNC_TIMEOUT", syncqueue.DefaultTimeout); err != nil {
		return Config{}, err
	}
	if cfg.SyncConcurrency, err = intEnv("POS_SYNC_CONCURRENCY", syncqueue.DefaultConcurrency); err != nil {
		return Config{}, err
	}
	if cfg.OrderRetention, err = intEnv("POS_ORDER_RETENTION", pos.DefaultOrderRetention); err != nil {
		return Config{}, err
	}
	rps := getenv("POS_REMOTE_RPS", strconv.Itoa(remote.DefaultRPS))
	if cfg.RemoteRPS, err = strconv.ParseFloat(rps, 64); err != nil {
		return Config{}, fmt.Errorf("POS_REMOTE_RPS: %w", err)
	}
	if cfg.Location, err = time.LoadLocation(getenv("POS_TIMEZONE", "Local")); err != nil {
		return Config{}, fmt.Errorf("POS_TIMEZONE: %w", err)
	}

	log.Printf("[config] POS_LISTEN_ADDR=%s", cfg.ListenAddr)
	log.Printf("[config] POS_DB_PATH=%s", cfg.DBPath)
	if cfg.SyncEnabled() {
		log.Printf("[config] POS_REMOTE_URL=%s interval=%v timeout=%v", cfg.RemoteURL, cfg.SyncInterval, cfg.SyncTimeout)
	} else {
		log.Printf("[config] POS_REMOTE_URL not set, sync disabled")
	}
	return cfg, nil
}

func durationEnv(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %s", k, v)
	}
	return d, nil
}

func intEnv(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %d", k, n)
	}
	return n, nil
}
