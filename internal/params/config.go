package params

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"nv/go-nv/internal/kdf"
	"nv/go-nv/internal/securestore"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

type FileConfig struct {
	KDF  KDFConfig  `yaml:"kdf"`
	Repo RepoConfig `yaml:"repo"`
}

type KDFConfig struct {
	Diff      *uint64     `yaml:"diff"`
	Round     *uint64     `yaml:"round"`
	SeedBytes *int        `yaml:"seedBytes"`
	OpsLimit  string      `yaml:"opsLimit"`
	MemLimit  string      `yaml:"memLimit"`
	Hash      *kdf.Params `yaml:"hash"`
}

type RepoConfig struct {
	Namespace string `yaml:"namespace"`
	URI       string `yaml:"uri"`
	Cipher    string `yaml:"cipher"`
}

// DefaultConfigPath is $HOME/.config/nv/config.yaml.
func DefaultConfigPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "nv", "config.yaml"), nil
}

// LoadFromPath reads a config file. An empty path means the default location;
// a missing default file yields an empty config. An explicitly named file
// must exist.
func LoadFromPath(configPath string) (FileConfig, error) {
	var cfg FileConfig
	explicit := configPath != ""
	if !explicit {
		p, err := DefaultConfigPath()
		if err != nil {
			return cfg, nil
		}
		configPath = p
	}
	expanded, err := homedir.Expand(configPath)
	if err != nil {
		return cfg, err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", expanded, err)
	}
	return cfg, nil
}

// Merge applies the set fields of src onto dst.
func Merge(dst *Params, src KDFConfig) error {
	if src.Diff != nil {
		dst.Diff = *src.Diff
	}
	if src.Round != nil {
		dst.Round = *src.Round
	}
	if src.SeedBytes != nil {
		dst.SeedBytes = *src.SeedBytes
	}
	if src.OpsLimit != "" {
		ops, err := securestore.ParseOpsLimit(src.OpsLimit)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidParams, err)
		}
		dst.OpsLimit = ops
	}
	if src.MemLimit != "" {
		mem, err := securestore.ParseMemLimit(src.MemLimit)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidParams, err)
		}
		dst.MemLimit = mem
	}
	if src.Hash != nil {
		dst.Hash = *src.Hash
	}
	return nil
}
