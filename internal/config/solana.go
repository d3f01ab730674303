package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SolanaCLIConfig is the subset of the Solana CLI config file we read.
type SolanaCLIConfig struct {
	JSONRPCURL   string `yaml:"json_rpc_url"`
	WebsocketURL string `yaml:"websocket_url"`
	KeypairPath  string `yaml:"keypair_path"`
	Commitment   string `yaml:"commitment"`
}

// DefaultSolanaCLIConfigPath is ~/.config/solana/cli/config.yml, or "" when
// the home directory is unknown.
func DefaultSolanaCLIConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "solana", "cli", "config.yml")
}

// LoadSolanaCLIConfig reads the Solana CLI config at path. With an empty path
// the default location is used, and a missing file yields a zero config.
func LoadSolanaCLIConfig(path string) (SolanaCLIConfig, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultSolanaCLIConfigPath()
		if path == "" {
			return SolanaCLIConfig{}, nil
		}
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return SolanaCLIConfig{}, nil
		}
		return SolanaCLIConfig{}, fmt.Errorf("read solana config: %w", err)
	}

	var sc SolanaCLIConfig
	if err := yaml.Unmarshal(b, &sc); err != nil {
		return SolanaCLIConfig{}, fmt.Errorf("parse solana config %s: %w", path, err)
	}
	return sc, nil
}
