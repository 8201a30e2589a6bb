package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/urfave/cli"
)

// Configuration - server configuration, from defaults, then an optional TOML
// file, then command line flags.
type Configuration struct {
	// BindAddress - TCP listen address
	BindAddress string `toml:"bind_address"`

	// WSAddress - WebSocket gateway listen address; empty disables the gateway
	WSAddress string `toml:"ws_address"`

	// HistoryGreets - num of recent messages replayed to a newly logged in
	// client; 0 disables the replay
	HistoryGreets int `toml:"history_greets"`

	// Debug - enable debug output
	Debug bool `toml:"debug"`
}

func defaultConfiguration() Configuration {
	return Configuration{
		BindAddress:   ":8080",
		HistoryGreets: 10,
	}
}

// LoadFromFile - overwrites configuration with values from a TOML file.
func (c *Configuration) LoadFromFile(filename string) error {
	if _, err := os.Stat(filename); err != nil {
		return fmt.Errorf("config file '%s' is not found", filename)
	}
	_, err := toml.DecodeFile(filename, c)
	return err
}

// LoadFromContext - overwrites configuration with flags the user set
// explicitly, so a flag always wins over the file.
func (c *Configuration) LoadFromContext(ctx *cli.Context) {
	if ctx.IsSet("address") {
		c.BindAddress = ctx.String("address")
	}
	if ctx.IsSet("ws-address") {
		c.WSAddress = ctx.String("ws-address")
	}
	if ctx.IsSet("history") {
		c.HistoryGreets = ctx.Int("history")
	}
	if ctx.Bool("debug") {
		c.Debug = true
	}
}

// Init - validates the assembled configuration.
func (c *Configuration) Init() error {
	if c.BindAddress == "" {
		return fmt.Errorf("parameter 'bind_address' required")
	}
	if c.HistoryGreets < 0 {
		return fmt.Errorf("parameter 'history_greets' (%d) must be greater or equal 0", c.HistoryGreets)
	}
	return nil
}
