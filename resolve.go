package main

import (
	"fmt"
	"net"

	"github.com/openchami/node-waker/internal/arp"
	"github.com/spf13/cobra"
)

func resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <ip>",
		Short: "Print the MAC address of a host on the local link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if net.ParseIP(args[0]).To4() == nil {
				return fmt.Errorf("%q is not an IPv4 address", args[0])
			}
			mac, err := arp.NewResolver().Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), mac)
			return nil
		},
	}
}
