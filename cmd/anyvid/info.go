package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"thirdcoast.systems/anyvid/internal/extraction"
)

func newInfoCmd(svc func() *services) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "info URL",
		Short: "Show the title and downloadable formats of a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			media, err := svc().gateway.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(media)
			}
			return printMedia(cmd.OutOrStdout(), media)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw API response")
	return cmd
}

func printMedia(w io.Writer, media *extraction.MediaInfo) error {
	fmt.Fprintf(w, "%s\n", media.Title)
	if media.Uploader != "" {
		fmt.Fprintf(w, "by %s", media.Uploader)
		if media.DurationString != "" {
			fmt.Fprintf(w, " · %s", media.DurationString)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tQUALITY\tEXT\tSIZE\tLABEL")
	for _, f := range media.Formats {
		size := f.DisplaySize
		if size == "" {
			size = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", f.FormatID, f.Quality, f.Extension, size, f.Label)
	}
	return tw.Flush()
}
