package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cyber-trackr/cyber-trackr/internal/classify"
	"github.com/cyber-trackr/cyber-trackr/internal/compliance"
	"github.com/cyber-trackr/cyber-trackr/pkg/trackr"
)

func newListCmd(a *app) *cobra.Command {
	var (
		kindFlag string
		search   string
		scap     bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List STIGs and SRGs with their latest version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var kind *classify.Kind
			if kindFlag != "" && kindFlag != "all" {
				k, ok := classify.ParseKind(kindFlag)
				if !ok {
					return fmt.Errorf("unknown --type %q (want srg, stig or all)", kindFlag)
				}
				kind = &k
			}

			cat, err := a.catalog(cmd.Context(), scap)
			if err != nil {
				return err
			}
			cat = classify.Search(cat, search, kind)
			return writeCatalog(cmd.OutOrStdout(), cat)
		},
	}
	cmd.Flags().StringVar(&kindFlag, "type", "all", "document type: srg, stig or all")
	cmd.Flags().StringVar(&search, "search", "", "case-insensitive name filter")
	cmd.Flags().BoolVar(&scap, "scap", false, "list SCAP benchmarks instead of STIGs/SRGs")
	return cmd
}

func newLatestCmd(a *app) *cobra.Command {
	var scap bool
	cmd := &cobra.Command{
		Use:   "latest NAME",
		Short: "Show the latest published version of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.catalog(cmd.Context(), scap)
			if err != nil {
				return err
			}
			rec, ok := compliance.LatestFor(cat, args[0])
			if !ok {
				return fmt.Errorf("no published version of %s", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", rec.Key(args[0]).String(), rec.Date)
			return nil
		},
	}
	cmd.Flags().BoolVar(&scap, "scap", false, "look up a SCAP benchmark")
	return cmd
}

func (a *app) catalog(ctx context.Context, scap bool) (trackr.Catalog, error) {
	if scap {
		return a.client.ListSCAP(ctx)
	}
	return a.client.ListDocuments(ctx)
}

// latestKey resolves the newest published version of title.
func (a *app) latestKey(ctx context.Context, title string, scap bool) (trackr.DocumentKey, error) {
	cat, err := a.catalog(ctx, scap)
	if err != nil {
		return trackr.DocumentKey{}, err
	}
	key, ok := compliance.LatestKey(cat, title)
	if !ok {
		return trackr.DocumentKey{}, fmt.Errorf("no published version of %s", title)
	}
	return key, nil
}

func writeCatalog(w io.Writer, cat trackr.Catalog) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tLATEST\tDATE\tVERSIONS")
	for _, name := range cat.Names() {
		latest, ok := compliance.Latest(cat[name])
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\tv%sr%s\t%s\t%d\n",
			name, classify.ClassifyCatalogEntry(name), latest.Version, latest.Release, latest.Date, len(cat[name]))
	}
	return tw.Flush()
}
