package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cyber-trackr/cyber-trackr/internal/compliance"
	"github.com/cyber-trackr/cyber-trackr/internal/export"
	"github.com/cyber-trackr/cyber-trackr/pkg/manifest"
	"github.com/cyber-trackr/cyber-trackr/internal/store"
	"github.com/cyber-trackr/cyber-trackr/pkg/trackr"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		file     string
		out      string
		s3Bucket string
		delay    time.Duration
		noStore  bool
	)
	cmd := &cobra.Command{
		Use:   "export [TITLE:VERSION:RELEASE ...]",
		Short: "Fetch and write many complete documents",
		Long: "Fetch each document with all requirement details and write it as JSON to a\n" +
			"directory or an S3 bucket. Documents come from the arguments and/or a YAML\n" +
			"key list (--file). One failed document does not stop the batch.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			keys, err := a.exportKeys(ctx, args, file)
			if err != nil {
				return err
			}
			if len(keys) == 0 {
				return fmt.Errorf("no documents to export: pass keys or --file")
			}

			sink, err := a.exportSink(out, s3Bucket)
			if err != nil {
				return err
			}

			cfg := export.Config{Delay: a.cfg.Fetch.DocumentDelay, Logger: a.logger}
			if cmd.Flags().Changed("delay") {
				cfg.Delay = delay
			}
			if !noStore {
				st, err := a.openStore()
				if err != nil {
					return err
				}
				defer st.Close()
				cfg.Store = st
			}

			agg := compliance.NewAggregator(a.client, compliance.AggregatorConfig{
				Delay:  a.cfg.Fetch.RequirementDelay,
				Logger: a.logger,
			})
			report, err := export.NewExporter(agg, sink, cfg).Export(ctx, keys,
				func(index, total int, key trackr.DocumentKey, err error) {
					fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] %s\n", index, total, key.String())
				})
			if report != nil {
				writeReport(cmd.OutOrStdout(), report)
			}
			if err != nil {
				return err
			}
			if report.Failed > 0 {
				return fmt.Errorf("%d of %d documents failed", report.Failed, len(keys))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML key list of documents to export")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output directory (default from config)")
	cmd.Flags().StringVar(&s3Bucket, "s3-bucket", "", "upload to this S3 bucket instead of a directory")
	cmd.Flags().DurationVar(&delay, "delay", 0, "minimum spacing between documents (default from config)")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "do not record the run in the local store")
	return cmd
}

// exportKeys merges keys given as arguments with those of a key list,
// resolving list entries without a version against the catalog.
func (a *app) exportKeys(ctx context.Context, args []string, file string) ([]trackr.DocumentKey, error) {
	var keys []trackr.DocumentKey
	for _, arg := range args {
		key, err := trackr.ParseDocumentKey(arg)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if file == "" {
		return keys, nil
	}

	kl, err := export.LoadKeys(file)
	if err != nil {
		return nil, err
	}
	var (
		cat     trackr.Catalog
		listErr error
	)
	resolved, err := kl.Resolve(func(title string) (trackr.DocumentKey, bool) {
		if cat == nil && listErr == nil {
			cat, listErr = a.client.ListDocuments(ctx)
		}
		return compliance.LatestKey(cat, title)
	})
	if listErr != nil {
		return nil, fmt.Errorf("list documents: %w", listErr)
	}
	if err != nil {
		return nil, err
	}
	return append(keys, resolved...), nil
}

func (a *app) exportSink(out, s3Bucket string) (export.Sink, error) {
	s3 := a.cfg.Export.S3
	if s3Bucket != "" {
		s3.Bucket = s3Bucket
	}
	if s3Bucket != "" && !s3.Enabled() {
		return nil, fmt.Errorf("--s3-bucket needs export.s3.endpoint (or TRACKR_S3_ENDPOINT)")
	}
	if s3.Enabled() {
		return export.NewS3Sink(export.S3Options{
			Endpoint:  s3.Endpoint,
			Bucket:    s3.Bucket,
			Prefix:    s3.Prefix,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
			UseSSL:    s3.UseSSL,
		})
	}
	if out == "" {
		out = a.cfg.Export.Dir
	}
	return export.NewDirSink(out), nil
}

func writeReport(w io.Writer, r *export.Report) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DOCUMENT\tSTATUS\tLOCATION")
	for _, it := range r.Items {
		status := string(store.RunItemOK)
		switch {
		case it.Skipped:
			status = "skipped"
		case it.Error != "":
			status = string(store.RunItemFailed) + ": " + it.Error
		case it.Incomplete > 0:
			status = fmt.Sprintf("ok (%d incomplete)", it.Incomplete)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", it.Key.String(), status, it.Location)
	}
	tw.Flush()
	fmt.Fprintf(w, "%d succeeded, %d failed, %d skipped", r.Succeeded, r.Failed, r.Skipped)
	if r.RunID != "" {
		fmt.Fprintf(w, " (run %s)", r.RunID)
	}
	fmt.Fprintln(w)
}

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify DIR",
		Short: "Check exported files against the directory's manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bad, err := manifest.Verify(args[0])
			if err != nil {
				return err
			}
			for _, m := range bad {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", m.File, m.Reason)
			}
			if len(bad) > 0 {
				return fmt.Errorf("%d exported files do not match the manifest", len(bad))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "all files match")
			return nil
		},
	}
}
