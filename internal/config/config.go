// Package config holds trackport's viper-backed settings.
//
// Values come from, in increasing priority: built-in defaults, the first
// config file found, and TRACKPORT_* environment variables. Command-line
// flags override all of these in cmd/trackport.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var v *viper.Viper

// Config keys
const (
	KeyPrefix          = "prefix"
	KeyProject         = "project"
	KeySnapshot        = "snapshot"
	KeyUserMapping     = "user-mapping"
	KeyOutput          = "output"
	KeyOutputFormat    = "output-format"
	KeyStartNumber     = "start-number"
	KeySectionSuffix   = "section-suffix"
	KeySince           = "since"
	KeyEstimates       = "estimates"
	KeyTypeAttr        = "marker.type-attr"
	KeyIDAttr          = "marker.id-attr"
	KeyDownloadWorkers = "download.workers"
	KeyDownloadTimeout = "download.timeout"
	KeyDownloadSkip    = "download.skip"
	KeyLockWait        = "lock-wait"
)

// FileName is the base name searched for in the working directory.
const FileName = "trackport.yaml"

// Initialize sets up the viper configuration singleton. It is safe to call
// more than once; every call starts from a fresh instance.
func Initialize() error {
	return InitializeWithFile("")
}

// InitializeWithFile is Initialize with an explicit config file. An empty
// path searches the default locations; an explicit path must exist.
func InitializeWithFile(path string) error {
	v = viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TRACKPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	setDefaults()

	if path == "" {
		path = os.Getenv("TRACKPORT_CONFIG")
	}
	explicit := path != ""
	if !explicit {
		path = findConfigFile()
	}
	if path == "" {
		return nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !explicit && (errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return nil
		}
		return fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return nil
}

func setDefaults() {
	v.SetDefault(KeyPrefix, "")
	v.SetDefault(KeyProject, "")
	v.SetDefault(KeySnapshot, "")
	v.SetDefault(KeyUserMapping, "")
	v.SetDefault(KeyOutput, ".")
	v.SetDefault(KeyOutputFormat, "json")
	v.SetDefault(KeyStartNumber, 1)
	v.SetDefault(KeySectionSuffix, ":")
	v.SetDefault(KeySince, "")
	v.SetDefault(KeyEstimates, true)
	v.SetDefault(KeyTypeAttr, "data-asana-type")
	v.SetDefault(KeyIDAttr, "data-asana-gid")
	v.SetDefault(KeyDownloadWorkers, 4)
	v.SetDefault(KeyDownloadTimeout, "5m")
	v.SetDefault(KeyDownloadSkip, false)
	v.SetDefault(KeyLockWait, "0s")
}

// findConfigFile returns the first existing candidate: ./trackport.yaml,
// then $XDG_CONFIG_HOME/trackport/config.yaml, then
// ~/.config/trackport/config.yaml.
func findConfigFile() string {
	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, FileName))
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, "trackport", "config.yaml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "trackport", "config.yaml"))
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c
		}
	}
	return ""
}

// ConfigFileUsed returns the path of the loaded config file, or "".
func ConfigFileUsed() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// GetString retrieves a string configuration value
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration retrieves a duration configuration value
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// Set sets a configuration value. Used by tests and flag overrides.
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}

// AllSettings returns every resolved setting.
func AllSettings() map[string]interface{} {
	if v == nil {
		return map[string]interface{}{}
	}
	return v.AllSettings()
}

// ResetForTesting clears the singleton so tests start from defaults.
func ResetForTesting() {
	v = nil
}
