// Package cmd implements the kbdfw command line: the simulator run
// loop, descriptor inspection, trace replay, and configuration
// scaffolding.
package cmd

// LogConfig groups the logging flags shared by every command.
type LogConfig struct {
	Level   string `help:"Log level" enum:"trace,debug,info,warn,error" default:"info" env:"KBDFW_LOG_LEVEL"`
	File    string `help:"Write logs to this file instead of the console" env:"KBDFW_LOG_FILE"`
	RawFile string `help:"Write raw bus packet dumps to this file" env:"KBDFW_LOG_RAW_FILE"`
}

// CLI is the top-level command grammar.
type CLI struct {
	Log    LogConfig `embed:"" prefix:"log."`
	Config string    `help:"Path to a configuration file" env:"KBDFW_CONFIG"`

	Run         Run           `cmd:"" help:"Run the keyboard firmware against the simulated bus"`
	Descriptors Descriptors   `cmd:"" help:"Print the USB descriptors the firmware serves"`
	Replay      Replay        `cmd:"" help:"Replay a recorded bus trace against fresh firmware"`
	ConfigCmd   ConfigCommand `cmd:"" name:"config" help:"Configuration file utilities"`
}
