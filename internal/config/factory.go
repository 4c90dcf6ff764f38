package config

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// FromCobraCmd creates a BCConfig instance from a cobra command object. It exits the process if the
// configuration cannot be loaded.
func FromCobraCmd(cmd *cobra.Command) *BCConfig {
	var flags *pflag.FlagSet
	if cmd.Name() == "buildctl" {
		flags = cmd.PersistentFlags()
	} else {
		flags = cmd.InheritedFlags()
	}

	flag := flags.Lookup("config")
	if flag != nil && flag.Changed {
		fileLoc, err := flags.GetString("config")
		if err != nil {
			log.Fatal().Err(err).Msg("Could not get file location")
		}

		conf, err := LoadConfig(fileLoc)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not load config file")
		}
		return conf
	}

	conf, err := LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Could not load config file")
	}
	return conf
}
