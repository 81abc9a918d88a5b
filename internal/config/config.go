// Package config persists local device settings, adapted from the
// teacher's internal/config/config.go (a JSON file under the user's home
// directory) to the fields an InterShare peer actually needs: an advertised
// device name, transport toggles, and the default landing directory for
// inbound transfers.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	petname "github.com/dustinkirkland/golang-petname"
)

// Config holds persistent local settings.
type Config struct {
	// DeviceName is advertised in every Device record this peer sends.
	// Defaults to a generated petname on first run, the way the teacher
	// defaults unset fields rather than requiring upfront configuration.
	DeviceName string `json:"deviceName"`
	// TCPPort, if non-zero, overrides the prioritized bind list in
	// internal/netengine.PreferredPorts.
	TCPPort int `json:"tcpPort,omitempty"`
	// BLEEnabled toggles the discovery transport's BLE scanner/server.
	BLEEnabled bool `json:"bleEnabled"`
	// AllowConvenienceShare gates whether send_to sessions render a
	// convenience link (spec.md §4.J).
	AllowConvenienceShare bool `json:"allowConvenienceShare"`
	// DownloadDir is where accepted file transfers are extracted by
	// default.
	DownloadDir string `json:"downloadDir,omitempty"`
}

// GetConfigPath returns ~/.intershare/config.json, creating the directory
// if necessary.
func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".intershare")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// Load reads the config file, returning sensible defaults if it doesn't
// exist yet.
func Load() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.DeviceName == "" {
		cfg.DeviceName = petname.Generate(2, "-")
	}
	return &cfg, nil
}

func defaultConfig() *Config {
	home, err := os.UserHomeDir()
	downloadDir := ""
	if err == nil {
		downloadDir = filepath.Join(home, "Downloads", "InterShare")
	}
	return &Config{
		DeviceName:            petname.Generate(2, "-"),
		BLEEnabled:            true,
		AllowConvenienceShare: true,
		DownloadDir:           downloadDir,
	}
}

// Save writes the config file.
func Save(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}
