package config

import (
	log "github.com/sirupsen/logrus"
)

// SetupLogging applies log.level and log.format to the standard logrus logger.
func (c *Config) SetupLogging() {
	if lvl, err := log.ParseLevel(c.Log.Level); err == nil {
		log.SetLevel(lvl)
	}
	if c.Log.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
		return
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}
