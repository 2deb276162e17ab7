package config

import (
	"log/slog"
	"os"
)

// MustNonEmpty exits the process when a required setting is missing. Only
// called from config loaders at startup.
func MustNonEmpty(value, envName string) {
	if value == "" {
		missing(envName)
	}
}

func MustNonEmptyBytes(value []byte, envName string) {
	if len(value) == 0 {
		missing(envName)
	}
}

func missing(envName string) {
	slog.Error("missing required env", "env", envName)
	os.Exit(1)
}
