package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// FileName is the configuration file looked up in the working directory.
const FileName = "apkgbuild"

// Config represents the apkgbuild configuration
type Config struct {
	SourceDir   string `mapstructure:"src_dir"`
	BuildDir    string `mapstructure:"build_dir"`
	DistDir     string `mapstructure:"dist_dir"`
	Definitions string `mapstructure:"definitions"`
	DeckFile    string `mapstructure:"deck_file"`
	APKGFile    string `mapstructure:"apkg_file"`
}

// Load loads the configuration from apkgbuild.yml or apkgbuild.yaml in the
// working directory, or from path when it is not empty. Environment variables
// prefixed with APKGBUILD_ override file values.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("src_dir", "src")
	v.SetDefault("build_dir", "build")
	v.SetDefault("dist_dir", "dist")
	v.SetDefault("definitions", "deck.yml")
	v.SetDefault("deck_file", filepath.Join("build", "collection.anki2"))
	v.SetDefault("apkg_file", filepath.Join("dist", "deck.apkg"))

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("APKGBUILD")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// InProject checks if the current directory holds a deck project
func InProject() bool {
	if _, err := os.Stat(FileName + ".yml"); err == nil {
		return true
	}
	if _, err := os.Stat(FileName + ".yaml"); err == nil {
		return true
	}
	if _, err := os.Stat("deck.yml"); err == nil {
		return true
	}
	return false
}

// GetProjectRoot walks up from the working directory to the first directory
// holding an apkgbuild config file or a deck.yml.
func GetProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		for _, marker := range []string{FileName + ".yml", FileName + ".yaml", "deck.yml"} {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a deck project (no %s.yml or deck.yml found)", FileName)
		}
		dir = parent
	}
}

// Resolve makes every relative path in the configuration relative to root.
func (c *Config) Resolve(root string) {
	for _, p := range []*string{&c.SourceDir, &c.BuildDir, &c.DistDir, &c.Definitions, &c.DeckFile, &c.APKGFile} {
		if !filepath.IsAbs(*p) {
			*p = filepath.Join(root, *p)
		}
	}
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	required := map[string]string{
		"src_dir":     cfg.SourceDir,
		"build_dir":   cfg.BuildDir,
		"dist_dir":    cfg.DistDir,
		"definitions": cfg.Definitions,
		"deck_file":   cfg.DeckFile,
		"apkg_file":   cfg.APKGFile,
	}
	for _, key := range []string{"src_dir", "build_dir", "dist_dir", "definitions", "deck_file", "apkg_file"} {
		if strings.TrimSpace(required[key]) == "" {
			return fmt.Errorf("%s must not be empty", key)
		}
	}

	if filepath.Ext(cfg.APKGFile) != ".apkg" {
		return fmt.Errorf("apkg_file must end with .apkg, got: %s", cfg.APKGFile)
	}
	if filepath.Clean(cfg.DeckFile) == filepath.Clean(cfg.APKGFile) {
		return fmt.Errorf("deck_file and apkg_file must differ, got: %s", cfg.DeckFile)
	}
	return nil
}
