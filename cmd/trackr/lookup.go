package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cyber-trackr/cyber-trackr/internal/xref"
)

func newCCIsCmd(a *app) *cobra.Command {
	var (
		revision    int
		concurrency int
		delay       time.Duration
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "ccis CONTROL",
		Short: "Find the CCIs mapped to an RMF control",
		Long: "Scan every CCI and print those with an assessment procedure for CONTROL\n" +
			"at the given NIST 800-53 revision. This issues one request per CCI.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := xref.Config{
				Delay:       a.cfg.Fetch.CCIDelay,
				Concurrency: a.cfg.Fetch.CCIConcurrency,
				Logger:      a.logger,
			}
			if cmd.Flags().Changed("delay") {
				cfg.Delay = delay
			}
			if cmd.Flags().Changed("concurrency") {
				cfg.Concurrency = concurrency
			}

			res, err := xref.NewResolver(a.client, cfg).Resolve(cmd.Context(), args[0], revision)
			if err != nil {
				if res != nil && len(res.Skipped) > 0 {
					a.logger.Warnf("%d of %d CCIs were not scanned", len(res.Skipped), res.Scanned)
				}
				return err
			}
			if len(res.Failures) > 0 {
				a.logger.Warnf("%d of %d CCI details could not be fetched", len(res.Failures), res.Scanned)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			for _, id := range res.IDs() {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&revision, "revision", 5, "NIST 800-53 revision (4 or 5)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 1, "parallel CCI detail requests (default from config)")
	cmd.Flags().DurationVar(&delay, "delay", 0, "minimum spacing between CCI requests (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full resolution as JSON")
	return cmd
}

func newCCICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cci CCI-ID",
		Short: "Show one CCI with its assessment procedures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			detail, err := a.client.GetCCI(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), detail)
		},
	}
}

func newRMFCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rmf REVISION [CONTROL]",
		Short: "List RMF controls of a revision, or show one control",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			revision, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("revision must be a number: %q", args[0])
			}
			if len(args) == 2 {
				detail, err := a.client.GetRMFControl(cmd.Context(), revision, args[1])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), detail)
			}
			controls, err := a.client.ListRMFControls(cmd.Context(), revision)
			if err != nil {
				return err
			}
			return writeControls(cmd.OutOrStdout(), controls)
		},
	}
}

func writeControls(w io.Writer, controls map[string]string) error {
	ids := make([]string, 0, len(controls))
	for id := range controls {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CONTROL\tTITLE")
	for _, id := range ids {
		fmt.Fprintf(tw, "%s\t%s\n", id, controls[id])
	}
	return tw.Flush()
}
