package main

import (
	"fmt"
	"time"

	"github.com/openchami/node-waker/internal/config"
	"github.com/openchami/node-waker/internal/wol"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func addWakeFlags(flags *pflag.FlagSet) {
	flags.String("interface", "", "network interface to send wake packets on")
	flags.Duration("probe-timeout", time.Second, "timeout of TCP availability checks")
	flags.Int("wol-port", wol.DefaultPort, "UDP port of wake packets")
}

func wakeCmd(v *viper.Viper) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "wake <name>",
		Short: "Wake a registered client unless it is already up",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			app, err := newApp(cfg)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			c, ok := app.Registry.Find(ctx, args[0])
			if !ok {
				return fmt.Errorf("unknown client %q", args[0])
			}

			if !force {
				up, err := app.Registry.Available(ctx, c)
				if err != nil {
					return err
				}
				if up {
					fmt.Fprintf(cmd.OutOrStdout(), "%s is already awake\n", c.Name)
					return nil
				}
			}

			iface, err := app.Topology.Select(cfg.Interface)
			if err != nil {
				return err
			}
			if err := app.Dispatcher.Wake(ctx, c.MAC, iface.Broadcast); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "magic packet sent to %s via %s (%s)\n", c.Name, iface.Name, iface.Broadcast)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&force, "force", false, "send the packet without checking the client first")
	addStorageFlags(flags)
	addWakeFlags(flags)
	return cmd
}
