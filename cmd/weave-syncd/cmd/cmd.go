// Package cmd implements the weave-syncd command tree. Grounded on the
// teacher's cmd/bee/cmd (command struct wrapping a cobra root plus a viper
// config, PersistentPreRunE loading config before any subcommand runs,
// config file resolved against $HOME with an env-var override layer).
package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	optionNameDataDir                  = "data-dir"
	optionNameListenAddr               = "listen-addr"
	optionNamePeers                    = "peer"
	optionNameStoreBlocksBehindCurrent = "store-blocks-behind-current"
	optionNameVerbosity                = "verbosity"
)

func init() {
	cobra.EnableCommandSorting = false
}

type command struct {
	root    *cobra.Command
	config  *viper.Viper
	cfgFile string
	homeDir string
}

type option func(*command)

func newCommand(opts ...option) (c *command, err error) {
	c = &command{
		root: &cobra.Command{
			Use:           "weave-syncd",
			Short:         "Weave data-sync daemon",
			SilenceErrors: true,
			SilenceUsage:  true,
			PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
				return c.initConfig()
			},
		},
	}

	for _, o := range opts {
		o(c)
	}

	if err := c.setHomeDir(); err != nil {
		return nil, err
	}

	c.initGlobalFlags()

	if err := c.initStartCmd(); err != nil {
		return nil, err
	}

	return c, nil
}

// Execute parses command line arguments and runs the appropriate command.
func Execute() error {
	c, err := newCommand()
	if err != nil {
		return err
	}
	return c.root.Execute()
}

func (c *command) initGlobalFlags() {
	globalFlags := c.root.PersistentFlags()
	globalFlags.StringVar(&c.cfgFile, "config", "", "config file (default is $HOME/.weave-syncd.yaml)")
}

func (c *command) initConfig() error {
	config := viper.New()
	configName := ".weave-syncd"
	if c.cfgFile != "" {
		config.SetConfigFile(c.cfgFile)
	} else {
		config.AddConfigPath(c.homeDir)
		config.SetConfigName(configName)
	}

	config.SetEnvPrefix("weave_syncd")
	config.AutomaticEnv()
	config.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if c.homeDir != "" && c.cfgFile == "" {
		c.cfgFile = filepath.Join(c.homeDir, configName+".yaml")
	}

	if err := config.ReadInConfig(); err != nil {
		var e viper.ConfigFileNotFoundError
		if !errors.As(err, &e) {
			return err
		}
	}
	c.config = config
	return nil
}

func (c *command) setHomeDir() error {
	if c.homeDir != "" {
		return nil
	}
	dir, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	c.homeDir = dir
	return nil
}
