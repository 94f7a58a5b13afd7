package main

import (
	"fmt"
	"strings"

	"adgrid/internal/checkout"

	"github.com/spf13/cobra"
)

func boxesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "boxes",
		Short: "Show the grid with purchased boxes and their ads",
		RunE: func(cmd *cobra.Command, args []string) error {
			api := checkout.NewHTTPAPI(opts.server, opts.token, opts.user)

			grid, err := api.Grid(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Ad Grid")
			fmt.Fprintln(out, strings.Repeat("=", 40))
			for _, box := range grid {
				switch {
				case box.Ad != nil:
					fmt.Fprintf(out, "  [%2d] %s\n", box.Index, box.Ad.Heading)
				case box.Purchased:
					fmt.Fprintf(out, "  [%2d] (purchased)\n", box.Index)
				default:
					fmt.Fprintf(out, "  [%2d] available\n", box.Index)
				}
			}
			return nil
		},
	}
}
