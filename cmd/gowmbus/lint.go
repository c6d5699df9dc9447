package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLintCmd(root *rootOptions) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Check driver tables for unreachable or duplicated fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := root.setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			warnings := a.registry.Lint()
			for _, w := range warnings {
				fmt.Fprintln(cmd.OutOrStdout(), w.String())
			}
			if strict && len(warnings) > 0 {
				return fmt.Errorf("%d lint warnings", len(warnings))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit with an error when warnings are found")
	return cmd
}
