// Package base holds the flags and setup shared by scf subcommands.
package base

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/go-kratos/kratos/v2/config"
	"github.com/spf13/pflag"

	"github.com/go-lynx/scf/conf"
	"github.com/go-lynx/scf/log"
)

var (
	// ConfigPath is the --config flag.
	ConfigPath string
	// LogLevel is the --log-level flag; it overrides scf.log.level.
	LogLevel string

	source config.Config
	loaded *conf.Scf
)

// AddFlags registers the global flags.
func AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&ConfigPath, "config", "c", "", "configuration file or directory")
	fs.StringVar(&LogLevel, "log-level", "", "log level: error|warn|info|debug (overrides config)")
}

// Setup loads the configuration named by --config and initializes logging.
func Setup(version string) error {
	if ConfigPath != "" {
		cfg, err := conf.Open(ConfigPath)
		if err != nil {
			return err
		}
		source = cfg
	}
	c, err := conf.Load(source)
	if err != nil {
		return err
	}
	if LogLevel != "" {
		c.Log.Level = LogLevel
		if err := c.Validate(); err != nil {
			return err
		}
	}
	loaded = c
	return log.InitLogger(c.Name, version, c.Log)
}

// Teardown flushes logs and closes the configuration source.
func Teardown() {
	if err := log.Close(); err != nil {
		fmt.Println(Fail(err))
	}
	if source != nil {
		_ = source.Close()
		source = nil
	}
}

// Source returns the configuration source, nil without --config.
func Source() config.Config {
	return source
}

// Config returns the loaded configuration.
func Config() *conf.Scf {
	if loaded == nil {
		return conf.Default()
	}
	return loaded
}

// Fail formats err for the terminal.
func Fail(err error) string {
	return color.RedString("✗ ") + err.Error()
}
