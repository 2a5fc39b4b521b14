package main

import (
	"errors"
)

type Config struct {
	ConfigPath   string
	UserID       string
	APIKey       string
	ShowAnalysis bool
	LogMode      string
}

func (c Config) Validate() error {
	if c.UserID == "" {
		return errors.New("missing -user")
	}
	switch c.LogMode {
	case "prod", "dev":
	default:
		return errors.New("log-mode must be prod or dev")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		UserID:  "default_user",
		LogMode: "prod",
	}
}
