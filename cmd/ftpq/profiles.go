package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Profile is one named server entry in the profiles file.
type Profile struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Active   bool   `yaml:"active"`
	ASCII    bool   `yaml:"ascii"`
}

// Profiles is the on-disk config file shape.
type Profiles struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

func profilesPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".ftpq.yaml")
}

// loadProfiles reads the profiles file. A missing file is not an error; it
// just yields an empty set.
func loadProfiles(path string) (*Profiles, error) {
	p := &Profiles{Profiles: map[string]Profile{}}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if p.Profiles == nil {
		p.Profiles = map[string]Profile{}
	}

	return p, nil
}

// lookup returns the named profile with defaults filled in.
func (p *Profiles) lookup(name string) (Profile, error) {
	prof, ok := p.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile %q in %s", name, profilesPath())
	}
	if prof.Port == 0 {
		prof.Port = 21
	}
	return prof, nil
}
