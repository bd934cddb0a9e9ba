package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/ethiobingo/bingo-engine/internal/engine"
)

// ServerConfig represents the complete gateway configuration
type ServerConfig struct {
	Server ServerSettings  `hcl:"server,block"`
	Game   *GameSettings   `hcl:"game,block"`
	Wallet *WalletSettings `hcl:"wallet,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// GameSettings controls room timing and payout rules
type GameSettings struct {
	Stakes             []int `hcl:"stakes,optional"`
	CountdownSeconds   int   `hcl:"countdown_seconds,optional"`
	DrawIntervalMillis int   `hcl:"draw_interval_ms,optional"`
	WinMultiplier      int   `hcl:"win_multiplier,optional"`
	CartelaCount       int   `hcl:"cartela_count,optional"`
	RetireGraceSeconds int   `hcl:"retire_grace_seconds,optional"`
	Seed               int64 `hcl:"seed,optional"`
}

// WalletSettings points the engine at the platform wallet API. With an empty
// base URL the engine falls back to an in-memory wallet (development only).
type WalletSettings struct {
	BaseURL     string `hcl:"base_url,optional"`
	AdminSecret string `hcl:"admin_secret,optional"`
}

// DefaultServerConfig returns default gateway configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Game:   &GameSettings{},
		Wallet: &WalletSettings{},
	}
}

// LoadServerConfig loads gateway configuration from an HCL file
func LoadServerConfig(filename string) (*ServerConfig, error) {
	// Check if file exists
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultServerConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config ServerConfig
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	// Apply defaults for missing values
	if config.Server.Address == "" {
		config.Server.Address = "localhost"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = "info"
	}
	if config.Game == nil {
		config.Game = &GameSettings{}
	}
	if config.Wallet == nil {
		config.Wallet = &WalletSettings{}
	}

	return &config, nil
}

// Validate validates the gateway configuration
func (c *ServerConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	for _, stake := range c.Game.Stakes {
		if stake <= 0 {
			return fmt.Errorf("stake amounts must be positive, got %d", stake)
		}
	}
	if c.Game.CountdownSeconds < 0 {
		return fmt.Errorf("countdown_seconds must not be negative")
	}
	if c.Game.DrawIntervalMillis < 0 {
		return fmt.Errorf("draw_interval_ms must not be negative")
	}
	if c.Game.WinMultiplier < 0 {
		return fmt.Errorf("win_multiplier must not be negative")
	}
	if c.Game.CartelaCount < 0 {
		return fmt.Errorf("cartela_count must not be negative")
	}

	return nil
}

// GetServerAddress returns the full listen address
func (c *ServerConfig) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// EngineConfig maps the game block onto the engine's configuration. Zero
// values keep the engine defaults.
func (c *ServerConfig) EngineConfig() engine.Config {
	cfg := engine.Config{
		Stakes:           c.Game.Stakes,
		CountdownSeconds: c.Game.CountdownSeconds,
		WinMultiplier:    c.Game.WinMultiplier,
		CartelaCount:     c.Game.CartelaCount,
		Seed:             c.Game.Seed,
	}
	if c.Game.DrawIntervalMillis > 0 {
		cfg.DrawInterval = time.Duration(c.Game.DrawIntervalMillis) * time.Millisecond
	}
	if c.Game.RetireGraceSeconds > 0 {
		cfg.RetireGrace = time.Duration(c.Game.RetireGraceSeconds) * time.Second
	}
	return cfg
}
