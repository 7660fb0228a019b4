package main

import "errors"

type Config struct {
	DBPath string
	Limit  int
	// Kind is downloads, scripts or all.
	Kind string
	JSON bool
}

func (c Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("missing -db")
	}
	if c.Limit < 0 {
		return errors.New("limit must be >= 0")
	}
	switch c.Kind {
	case "downloads", "scripts", "all":
		return nil
	}
	return errors.New("kind must be downloads, scripts or all")
}

func defaultConfig() Config {
	return Config{Limit: 20, Kind: "all"}
}
