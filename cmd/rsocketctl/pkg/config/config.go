// Package config loads rsocketctl's operator-facing configuration: the
// SETUP parameters a dial or serve command negotiates with, overridable by
// flags at the command line.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the SETUP parameters rsocketctl negotiates with, plus the
// default listen/dial address.
type Config struct {
	Addr              string `yaml:"addr"`
	KeepaliveInterval int    `yaml:"keepalive_interval_ms"`
	MaxLifetime       int    `yaml:"max_lifetime_ms"`
	MetadataMimeType  string `yaml:"metadata_mime_type"`
	DataMimeType      string `yaml:"data_mime_type"`
	ResumeToken       string `yaml:"resume_token"`
	HonorsLease       bool   `yaml:"honors_lease"`
}

// DefaultPath returns ~/.rsocketctl/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".rsocketctl", "config.yaml")
	}
	return filepath.Join(home, ".rsocketctl", "config.yaml")
}

// Load reads the configuration from path. A missing file yields the
// defaults below with no error, the way a fresh install has no config yet.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Addr:              ":7878",
		KeepaliveInterval: 500,
		MaxLifetime:       5000,
		MetadataMimeType:  "application/octet-stream",
		DataMimeType:      "application/octet-stream",
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		fmt.Fprintf(os.Stderr,
			"warning: config file %s has permissions %04o — expected 0600. "+
				"A resume token may be exposed to other users.\n",
			path, perm)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
