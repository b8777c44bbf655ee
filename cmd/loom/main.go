package main

import (
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/loom/cmd/loom/cmds"
)

var rootCmd = &cobra.Command{
	Use:   "loom",
	Short: "loom is a streaming LLM chat client with branching conversations",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// reinitialize the logger now that --log-level has been parsed
		initLogger()
	},
}

func initLogger() {
	level, err := zerolog.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if isatty.IsTerminal(os.Stderr.Fd()) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = log.Output(os.Stderr)
	}
}

func initViper() error {
	viper.SetEnvPrefix("loom")

	configPath := viper.GetString("config")
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.loom")

		if xdgConfigPath, err := os.UserConfigDir(); err == nil {
			viper.AddConfigPath(xdgConfigPath + "/loom")
		}
	}

	err := viper.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// no config file is fine
	} else if err != nil {
		return err
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return err
	}

	initLogger()

	log.Debug().
		Str("config", viper.ConfigFileUsed()).
		Msg("loaded configuration")

	return nil
}

func main() {
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("config", "", "config file path")
	rootCmd.PersistentFlags().String("settings", "", "settings file path")
	rootCmd.PersistentFlags().String("db", "", "conversation database path")
	rootCmd.PersistentFlags().String("anthropic-api-key", "", "Anthropic API key")
	rootCmd.PersistentFlags().String("openai-api-key", "", "OpenAI API key")

	cobra.CheckErr(initViper())

	rootCmd.AddCommand(
		cmds.NewChatCommand(),
		cmds.NewListCommand(),
		cmds.NewHistoryCommand(),
		cmds.NewBranchesCommand(),
		cmds.NewTokensCommand(),
		cmds.NewExportCommand(),
		cmds.NewDeleteCommand(),
	)

	cobra.CheckErr(rootCmd.Execute())
}
