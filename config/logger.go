package config

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

// SetLogger configures the global logger. format is "text" or "json"; a
// non-empty filePath also appends every entry to that file.
func SetLogger(level, format, filePath string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)

	if format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	if filePath == "" {
		log.SetOutput(os.Stderr)
		return nil
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.SetOutput(os.Stderr)
		log.WithError(err).Error("Could not create file for logging")
		return nil
	}
	log.SetOutput(io.MultiWriter(os.Stderr, file))

	return nil
}
