package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"thirdcoast.systems/anyvid/internal/cookies"
)

func newCookiesCmd(svc func() *services) *cobra.Command {
	return &cobra.Command{
		Use:   "cookies FILE",
		Short: "Install a Netscape cookies.txt export for yt-dlp",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			sum := cookies.Inspect(string(content))
			if sum.Valid == 0 {
				return fmt.Errorf("no valid cookie lines in %s (first bad line: %q)", args[0], sum.FirstInvalid)
			}
			store := svc().cookies
			verb := "saved"
			if store.Exists() {
				verb = "replaced"
			}
			if err := store.Save(string(content)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d cookies at %s\n", verb, sum.Valid, store.Path())
			return nil
		},
	}
}
