package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

type CoConConfig struct {
	Host string `json:"host" env:"COCON_HOST"`
	Port int    `json:"port" env:"COCON_PORT"`
}

type WebserverConfig struct {
	Host string `json:"host" env:"VOTEMON_HTTP_HOST"`
	Port int    `json:"port" env:"VOTEMON_HTTP_PORT"`
}

type Config struct {
	// RoomName is shown as the viewer page title.
	RoomName    string          `json:"roomName" env:"VOTEMON_ROOM_NAME"`
	ColumnLines int             `json:"columnLines" env:"VOTEMON_COLUMN_LINES"`
	LogDir      string          `json:"logDir" env:"VOTEMON_LOG_DIR"`
	LogLevel    string          `json:"logLevel" env:"VOTEMON_LOG_LEVEL"`
	CoCon       CoConConfig     `json:"cocon"`
	Webserver   WebserverConfig `json:"webserver"`
}

func Defaults() Config {
	home, _ := os.UserHomeDir()
	return Config{
		RoomName:    "ROOM 00",
		ColumnLines: 16,
		LogDir:      filepath.Join(home, ".votemon", "logs"),
		LogLevel:    "info",
		CoCon: CoConConfig{
			Host: "127.0.0.1",
			Port: 8890,
		},
		Webserver: WebserverConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
	}
}

func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".votemon", "config.json")
}

// Load builds the effective config: defaults, overlaid by the JSON file at
// path when it exists, overlaid by environment variables.
func Load(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, err
	}
	if err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
