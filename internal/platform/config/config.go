package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"timetrack/internal/platform/logging"
)

const envPrefix = "TIMETRACK"

type Config struct {
	DataDir             string
	StorePath           string
	IndexPath           string
	ExportDir           string
	DetectorTimeout     time.Duration
	StopRunningActivity bool
	TrackInterval       time.Duration
	Log                 logging.Config
}

// Options carry command-line overrides; empty fields fall through to env, file and defaults.
type Options struct {
	DataDir    string
	ConfigFile string
	LogLevel   string
}

func Load(opts Options) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.DataDir != "" {
		v.Set("data_dir", opts.DataDir)
	}

	configFile := opts.ConfigFile
	if configFile == "" {
		candidate := filepath.Join(v.GetString("data_dir"), "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
		}
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}
	if opts.LogLevel != "" {
		v.Set("log.level", opts.LogLevel)
	}

	cfg := Config{
		DataDir:             v.GetString("data_dir"),
		DetectorTimeout:     v.GetDuration("detector.timeout"),
		StopRunningActivity: v.GetBool("session.stop_running_activity"),
		TrackInterval:       v.GetDuration("track.interval"),
		Log: logging.Config{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
		},
	}
	if cfg.DataDir == "" {
		return Config{}, errors.New("data dir is required")
	}
	cfg.StorePath = underDataDir(cfg.DataDir, v.GetString("store.file"))
	cfg.IndexPath = underDataDir(cfg.DataDir, v.GetString("index.file"))
	cfg.ExportDir = v.GetString("export.dir")
	if cfg.ExportDir == "" {
		cfg.ExportDir = filepath.Join(cfg.DataDir, "notes")
	}
	if file := v.GetString("log.file"); file != "" {
		cfg.Log.OutputPaths = []string{underDataDir(cfg.DataDir, file)}
	} else {
		cfg.Log.OutputPaths = []string{"stderr"}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.DetectorTimeout <= 0 {
		return fmt.Errorf("detector.timeout must be positive, got %s", c.DetectorTimeout)
	}
	if c.TrackInterval <= 0 {
		return fmt.Errorf("track.interval must be positive, got %s", c.TrackInterval)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("store.file", "sessions.json")
	v.SetDefault("index.file", "index.db")
	v.SetDefault("export.dir", "")
	v.SetDefault("detector.timeout", "2s")
	v.SetDefault("session.stop_running_activity", true)
	v.SetDefault("track.interval", "5s")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.development", false)
	v.SetDefault("log.file", "")
}

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "timetrack")
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "timetrack")
	}
	return ".timetrack"
}

func underDataDir(dataDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dataDir, path)
}
