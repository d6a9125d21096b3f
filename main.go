package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/openchami/node-waker/internal/config"
	"github.com/openchami/node-waker/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	v := config.New()
	var configFile string

	cmd := &cobra.Command{
		Use:           "node-waker",
		Short:         "Wake registered hosts on the local network",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ReadFile(v, configFile); err != nil {
				return err
			}
			if err := bindFlags(v, cmd.Flags()); err != nil {
				return err
			}
			return logging.Init(logging.Options{
				Level: v.GetString("log.level"),
				File:  v.GetString("log.file"),
			})
		},
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().String("log-file", "", "also write JSON logs to this file, rotated")

	cmd.AddCommand(serveCmd(v), schemasCmd(), resolveCmd(), wakeCmd(v))
	return cmd
}

// bindFlags maps every flag of the running command onto the config key of
// the same name, "log-level" to "log.level" and "put-url" to "storage.put_url".
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Name == "config" {
			return
		}
		if bindErr := v.BindPFlag(flagKey(f.Name), f); bindErr != nil {
			err = fmt.Errorf("binding flag --%s: %w", f.Name, bindErr)
		}
	})
	return err
}

var flagKeys = map[string]string{
	"file":          "storage.file",
	"url":           "storage.url",
	"put-url":       "storage.put_url",
	"token":         "storage.token",
	"timeout":       "storage.timeout",
	"retries":       "storage.retries",
	"probe-timeout": "probe.timeout",
	"wol-port":      "wol.port",
	"jwt-secret":    "auth.jwt_secret",
}

func flagKey(name string) string {
	if key, ok := flagKeys[name]; ok {
		return key
	}
	return strings.ReplaceAll(name, "-", ".")
}
