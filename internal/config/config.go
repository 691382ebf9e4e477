// Package config loads jirabot settings from defaults, an optional
// config.yaml and JIRABOT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, so slack.bot-token
// is read from JIRABOT_SLACK_BOT_TOKEN.
const EnvPrefix = "JIRABOT"

// EnvConfigPath names an explicit config file, bypassing the search path.
const EnvConfigPath = "JIRABOT_CONFIG"

var (
	v  *viper.Viper
	mu sync.Mutex
)

// Initialize builds the viper singleton. It is safe to call again; each call
// starts from a fresh instance.
func Initialize() error {
	nv := viper.New()
	nv.SetConfigType("yaml")

	if path := os.Getenv(EnvConfigPath); path != "" {
		nv.SetConfigFile(path)
	} else {
		nv.SetConfigName("config")
		for _, dir := range searchPaths() {
			nv.AddConfigPath(dir)
		}
	}

	nv.SetEnvPrefix(EnvPrefix)
	nv.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	nv.AutomaticEnv()

	for _, k := range Keys {
		if k.Default != nil {
			nv.SetDefault(k.Key, k.Default)
		}
		// AllSettings only reports env values for keys viper already knows.
		_ = nv.BindEnv(k.Key)
	}

	if err := nv.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	mu.Lock()
	v = nv
	mu.Unlock()
	return nil
}

// ResetForTesting drops the singleton so the next Initialize starts clean.
func ResetForTesting() {
	mu.Lock()
	v = nil
	mu.Unlock()
}

func searchPaths() []string {
	paths := []string{filepath.Join(".", ".jirabot")}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "jirabot"))
	}
	return paths
}

func instance() *viper.Viper {
	mu.Lock()
	defer mu.Unlock()
	return v
}

// GetString retrieves a string configuration value
func GetString(key string) string {
	if c := instance(); c != nil {
		return c.GetString(key)
	}
	return ""
}

// GetBool retrieves a boolean configuration value
func GetBool(key string) bool {
	if c := instance(); c != nil {
		return c.GetBool(key)
	}
	return false
}

// GetInt retrieves an integer configuration value
func GetInt(key string) int {
	if c := instance(); c != nil {
		return c.GetInt(key)
	}
	return 0
}

// GetDuration retrieves a duration configuration value
func GetDuration(key string) time.Duration {
	if c := instance(); c != nil {
		return c.GetDuration(key)
	}
	return 0
}

// GetStringSlice retrieves a string slice configuration value
func GetStringSlice(key string) []string {
	if c := instance(); c != nil {
		return c.GetStringSlice(key)
	}
	return nil
}

// Set overrides a value for the rest of the process. Command-line flags use
// it so they win over file and env.
func Set(key string, value interface{}) {
	if c := instance(); c != nil {
		c.Set(key, value)
	}
}

// IsSet reports whether key has a value from any source, defaults included.
func IsSet(key string) bool {
	if c := instance(); c != nil {
		return c.IsSet(key)
	}
	return false
}

// AllSettings returns the merged settings as a nested map.
func AllSettings() map[string]interface{} {
	if c := instance(); c != nil {
		return c.AllSettings()
	}
	return map[string]interface{}{}
}

// ConfigFileUsed returns the path of the loaded config.yaml, or "".
func ConfigFileUsed() string {
	if c := instance(); c != nil {
		return c.ConfigFileUsed()
	}
	return ""
}

// Watch calls onChange whenever the loaded config file is written. It is a
// no-op when no file was found.
func Watch(onChange func(fsnotify.Event)) {
	c := instance()
	if c == nil || c.ConfigFileUsed() == "" {
		return
	}
	c.OnConfigChange(onChange)
	c.WatchConfig()
}
