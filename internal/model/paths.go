package model

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ConfigEnv names the environment variable that pins the configuration
// file, bypassing discovery.
const ConfigEnv = "MAIL_NOTIFIER_CONFIG"

// NotFoundError is returned when no configuration file exists at any of
// the candidate paths.
type NotFoundError struct {
	Paths []string
}

func (e *NotFoundError) Error() string {
	return "no configuration file found, tried: " + strings.Join(e.Paths, ", ")
}

// ConfigPaths returns the candidate configuration files in lookup order.
func ConfigPaths() []string {
	if path := os.Getenv(ConfigEnv); path != "" {
		return []string{path}
	}

	var paths []string
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths,
			filepath.Join(dir, "mail-notifier", "config.yaml"),
			filepath.Join(dir, "mail-notifier.yaml"),
		)
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".mail-notifier.yaml"),
			filepath.Join(home, ".mail-notifier", "config.yaml"),
		)
	}
	return append(paths, filepath.Join("/etc", "mail-notifier", "config.yaml"))
}

// FindConfig returns the first candidate from ConfigPaths that exists.
func FindConfig() (string, error) {
	paths := ConfigPaths()
	for _, path := range paths {
		_, err := os.Stat(path)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("checking config %s: %w", path, err)
		}
	}
	return "", &NotFoundError{Paths: paths}
}
