package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xtding233/gacha-sim/internal/banner"
)

func newBannersCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "banners",
		Short: "List the banners under the config directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := newLoader().All()
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), params)
			}
			return writeBanners(cmd.OutOrStdout(), params)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the resolved banners as JSON")
	return cmd
}

func writeBanners(w io.Writer, params []banner.EngineParams) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTITLE\tWEAPONS\tRATE\tENDS")
	for _, s := range params {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			s.Banner.Name, s.Title, strings.Join(s.Banner.Weapons, ", "),
			s.Banner.NonFeaturedFiveStarRate.String(), s.EndDate)
	}
	return tw.Flush()
}
