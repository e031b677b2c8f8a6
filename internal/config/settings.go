package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Settings is the user-global configuration, loaded from
// ~/.modernize/config.yaml with MODERNIZE_* environment overrides.
// It covers where state lives and how the observer surface is exposed;
// what a batch does belongs to BatchConfig.
type Settings struct {
	DataDir     string `mapstructure:"data_dir"`
	DBPath      string `mapstructure:"db_path"`
	Port        int    `mapstructure:"port"`
	EventBuffer int    `mapstructure:"event_buffer"`
	StagingDir  string `mapstructure:"staging_dir"`
}

// ConfigDir returns the user-global configuration directory.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".modernize"
	}
	return filepath.Join(home, ".modernize")
}

// InitSettings wires viper's search paths, env handling, and defaults.
// Call once at process start, before LoadSettings.
func InitSettings() {
	dir := ConfigDir()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(dir)
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("MODERNIZE")

	viper.SetDefault("data_dir", dir)
	viper.SetDefault("db_path", filepath.Join(dir, "modernize.db"))
	viper.SetDefault("port", 8321)
	viper.SetDefault("event_buffer", 256)
	viper.SetDefault("staging_dir", os.TempDir())

	// Missing config file is fine; defaults and env cover everything.
	_ = viper.ReadInConfig()
}

// LoadSettings unmarshals the resolved settings.
func LoadSettings() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, err
	}
	return &s, nil
}
