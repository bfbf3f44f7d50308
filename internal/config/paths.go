package config

import (
	"os"
	"path/filepath"
)

const defaultBaseDir = ".gerald"

// Paths holds resolved filesystem paths for Gerald data.
type Paths struct {
	Base   string // ~/.gerald
	Config string // ~/.gerald/config.yaml
	Logs   string // ~/.gerald/logs
	Sounds string // ~/.gerald/sounds
}

// ResolvePaths computes all standard paths from the home directory.
// If GERALD_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("GERALD_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	return Paths{
		Base:   base,
		Config: filepath.Join(base, "config.yaml"),
		Logs:   filepath.Join(base, "logs"),
		Sounds: filepath.Join(base, "sounds"),
	}, nil
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Base, p.Logs, p.Sounds} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}
