package command

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	defaultHost = "localhost"
	defaultPort = 7000
)

// Profile is the CLI's saved state in ~/.rcs/config.toml.
type Profile struct {
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	OperatorID string `toml:"operator_id,omitempty"`
	Token      string `toml:"token,omitempty"`  // session token from the last login
	Legacy     bool   `toml:"legacy,omitempty"` // speak the deployed peers' tag names
}

func defaultProfile() Profile {
	return Profile{Host: defaultHost, Port: defaultPort}
}

func defaultProfilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".rcs", "config.toml")
	}
	return filepath.Join(home, ".rcs", "config.toml")
}

// loadProfile reads path over the defaults. A missing file is not an error.
func loadProfile(path string) (Profile, error) {
	p := defaultProfile()

	var raw Profile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return Profile{}, fmt.Errorf("load profile: %w", err)
	}

	if meta.IsDefined("host") {
		if host := strings.TrimSpace(raw.Host); host != "" {
			p.Host = host
		}
	}
	if meta.IsDefined("port") {
		if raw.Port < 1 || raw.Port > 65535 {
			return Profile{}, fmt.Errorf("load profile: port %d out of range", raw.Port)
		}
		p.Port = raw.Port
	}
	if meta.IsDefined("operator_id") {
		p.OperatorID = strings.TrimSpace(raw.OperatorID)
	}
	if meta.IsDefined("token") {
		p.Token = strings.TrimSpace(raw.Token)
	}
	if meta.IsDefined("legacy") {
		p.Legacy = raw.Legacy
	}
	return p, nil
}

func saveProfile(path string, p Profile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(p); err != nil {
		f.Close()
		return fmt.Errorf("save profile: %w", err)
	}
	return f.Close()
}
