package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/notehub/internal/credential"
)

func newLogoutCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session of the last signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if cfg.LastIdentity == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "not signed in")
				return nil
			}

			creds, err := credential.OpenKeyring()
			if err != nil {
				return err
			}
			if err := creds.Delete(cfg.LastIdentity.RecipientID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed out %s\n", cfg.LastIdentity.RecipientID)
			return nil
		},
	}
}
