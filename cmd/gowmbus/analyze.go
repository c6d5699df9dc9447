package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/witoldo7/gowmbus/pkg/gowmbus"
)

type analyzeOptions struct {
	driver   string
	defaults bool
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze [hex]",
		Short: "Decode one telegram, or read telegrams from stdin",
		Long: "analyze decodes the hex telegram given as argument. Without an argument it " +
			"reads one telegram per line from stdin until EOF.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			analyzer := gowmbus.New(a.registry, gowmbus.WithLogger(a.log))
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				return runInteractive(cmd.Context(), analyzer, opts, cmd.InOrStdin(), out, a.log)
			}
			return runAnalyze(cmd.Context(), analyzer, opts, args[0], out)
		},
	}
	cmd.Flags().StringVar(&opts.driver, "driver", "", "decode with this driver instead of detecting one")
	cmd.Flags().BoolVar(&opts.defaults, "default-fields", false, "print only the driver's default fields")
	return cmd
}

func runInteractive(ctx context.Context, analyzer *gowmbus.Analyzer, opts *analyzeOptions, in io.Reader, out io.Writer, log logrus.FieldLogger) error {
	scanner := bufio.NewScanner(in)
	log.Info("gowmbus analyze mode. Paste a hex telegram and press Enter (Ctrl+D to exit).")
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := runAnalyze(ctx, analyzer, opts, line, out); err != nil {
			log.WithError(err).Error("failed to decode telegram")
		}
	}
	return scanner.Err()
}

func runAnalyze(ctx context.Context, analyzer *gowmbus.Analyzer, opts *analyzeOptions, hex string, out io.Writer) error {
	result, err := analyzer.AnalyzeHex(ctx, hex, gowmbus.AnalyzeOptions{Driver: opts.driver})
	if err != nil {
		return err
	}
	if !opts.defaults || result.Readout == nil {
		fmt.Fprintln(out, result.String())
		return nil
	}
	fields := result.DefaultFields()
	doc := make(map[string]any, len(fields))
	for _, f := range fields {
		doc[f.Name] = f.Value
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(data))
	return nil
}
