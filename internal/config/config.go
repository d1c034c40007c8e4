// Package config defines the CLI structure and configuration for wiistream.
package config

import (
	"github.com/Alia5/wiistream/internal/cmd"
)

type Log struct {
	Level   string `help:"Log level: trace, debug, info, warn, error" default:"info" env:"WIISTREAM_LOG_LEVEL"`
	File    string `help:"Log file path (default: none; logs only to console)" env:"WIISTREAM_LOG_FILE"`
	RawFile string `help:"Raw frame log file path (default: none)" env:"WIISTREAM_LOG_RAW_FILE"`
	Format  string `help:"Log line format" enum:"text,json" default:"text" env:"WIISTREAM_LOG_FORMAT"`
}

// CLI is the root command structure for Kong CLI parsing.
type CLI struct {
	Config string `help:"Configuration file (json, yaml or toml)" type:"path" env:"WIISTREAM_CONFIG"`
	Log    `embed:"" prefix:"log."`

	Stream    cmd.Stream         `cmd:"" help:"Decode a single Wii Remote connection"`
	Serve     cmd.Serve          `cmd:"" help:"Run the frame bridge and decode every connection"`
	ConfigCmd cmd.ConfigCommand  `cmd:"" name:"config" help:"Configuration helpers"`
	Service   cmd.ServiceCommand `cmd:"" help:"Manage the bridge system service"`
}
