package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newDriversCmd(root *rootOptions) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "drivers",
		Short: "List the registered drivers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := root.setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tMETER\tDETECTIONS\tFIELDS")
			for _, info := range a.registry.Drivers() {
				var dets []string
				for _, d := range info.Detections() {
					dets = append(dets, d.String())
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", info.Name(), info.MeterType(), strings.Join(dets, ","), len(info.Fields()))
				if !verbose {
					continue
				}
				for _, f := range info.Fields() {
					fmt.Fprintf(w, "  %s\t\t%s\t\n", f.Name, f.Matcher)
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "also list every field and its match criteria")
	return cmd
}
