package main

import (
	"errors"
)

type Config struct {
	ConfigPath string
	Addr       string
	APIKey     string
	LogMode    string
}

func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("missing -addr")
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
		Addr:    ":8080",
		LogMode: "prod",
	}
}
