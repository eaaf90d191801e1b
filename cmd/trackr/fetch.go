package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cyber-trackr/cyber-trackr/internal/classify"
	"github.com/cyber-trackr/cyber-trackr/internal/compliance"
	"github.com/cyber-trackr/cyber-trackr/internal/export"
	"github.com/cyber-trackr/cyber-trackr/internal/tui/status"
	"github.com/cyber-trackr/cyber-trackr/pkg/trackr"
)

// scapSource serves SCAP benchmarks through the document interface.
type scapSource struct{ c *trackr.Client }

func (s scapSource) GetDocument(ctx context.Context, key trackr.DocumentKey) (*trackr.DocumentSummary, error) {
	return s.c.GetSCAPDocument(ctx, key)
}

func (s scapSource) GetRequirement(ctx context.Context, key trackr.DocumentKey, vulnID string) (*trackr.RequirementDetail, error) {
	return s.c.GetSCAPRequirement(ctx, key, vulnID)
}

// documentFlags are shared by every command that names a document.
type documentFlags struct {
	scap   bool
	delay  time.Duration
	stored bool
}

func (f *documentFlags) register(cmd *cobra.Command, allowStored bool) {
	cmd.Flags().BoolVar(&f.scap, "scap", false, "treat TITLE as a SCAP benchmark")
	cmd.Flags().DurationVar(&f.delay, "delay", 0, "minimum spacing between requirement requests (default from config)")
	if allowStored {
		cmd.Flags().BoolVar(&f.stored, "stored", false, "read the document from the local store instead of fetching it")
	}
}

// documentKey builds a key from TITLE [VERSION RELEASE], resolving the
// latest version when only a title is given.
func (a *app) documentKey(ctx context.Context, args []string, scap bool) (trackr.DocumentKey, error) {
	if len(args) == 1 {
		return a.latestKey(ctx, args[0], scap)
	}
	key := trackr.NewDocumentKey(args[0], args[1], args[2])
	return key, key.Validate()
}

func (a *app) aggregator(f *documentFlags) *compliance.Aggregator {
	delay := f.delay
	if delay == 0 {
		delay = a.cfg.Fetch.RequirementDelay
	}
	var src compliance.DocumentSource = a.client
	if f.scap {
		src = scapSource{a.client}
	}
	return compliance.NewAggregator(src, compliance.AggregatorConfig{Delay: delay, Logger: a.logger})
}

// complete fetches a complete document, logging progress at debug level.
func (a *app) complete(ctx context.Context, key trackr.DocumentKey, f *documentFlags) (*compliance.CompleteDocument, error) {
	return a.aggregator(f).Complete(ctx, key, func(index, total int, vulnID string) {
		a.logger.WithField("doc", key.String()).Debugf("Fetched %s (%d/%d)", vulnID, index, total)
	})
}

// loadDocument returns a complete document from the store or the service.
func (a *app) loadDocument(ctx context.Context, args []string, f *documentFlags) (*compliance.CompleteDocument, error) {
	if f.stored {
		if len(args) != 3 {
			return nil, fmt.Errorf("--stored needs TITLE VERSION RELEASE")
		}
		key := trackr.NewDocumentKey(args[0], args[1], args[2])
		st, err := a.openStore()
		if err != nil {
			return nil, err
		}
		defer st.Close()
		return st.GetDocument(ctx, key)
	}

	key, err := a.documentKey(ctx, args, f.scap)
	if err != nil {
		return nil, err
	}
	return a.complete(ctx, key, f)
}

func newFetchCmd(a *app) *cobra.Command {
	var (
		f    documentFlags
		out  string
		tui  bool
		save bool
	)
	cmd := &cobra.Command{
		Use:   "fetch TITLE [VERSION RELEASE]",
		Short: "Fetch a document with every requirement detail",
		Long: "Fetch a document and the full detail of each of its requirements.\n" +
			"Without VERSION and RELEASE the latest published version is used.",
		Args: documentArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			key, err := a.documentKey(ctx, args, f.scap)
			if err != nil {
				return err
			}

			var doc *compliance.CompleteDocument
			if tui {
				doc, err = status.Run(ctx, key, cmd.ErrOrStderr(), func(ctx context.Context, onProgress compliance.ProgressFunc) (*compliance.CompleteDocument, error) {
					return a.aggregator(&f).Complete(ctx, key, onProgress)
				})
			} else {
				doc, err = a.complete(ctx, key, &f)
			}
			if err != nil {
				return err
			}

			sum := compliance.Summarize(doc)
			a.logger.WithField("doc", key.String()).Infof("Fetched %d requirements (%d incomplete)", sum.Total, sum.Incomplete)

			if save {
				st, err := a.openStore()
				if err != nil {
					return err
				}
				defer st.Close()
				if err := st.SaveDocument(ctx, doc); err != nil {
					return fmt.Errorf("save document: %w", err)
				}
			}
			return writeDocument(cmd.OutOrStdout(), out, doc)
		},
	}
	f.register(cmd, false)
	cmd.Flags().StringVarP(&out, "out", "o", "", "write JSON to this file instead of stdout")
	cmd.Flags().BoolVar(&tui, "tui", false, "show a progress view while fetching")
	cmd.Flags().BoolVar(&save, "save", false, "also save the document to the local store")
	return cmd
}

func newSummaryCmd(a *app) *cobra.Command {
	var f documentFlags
	cmd := &cobra.Command{
		Use:   "summary TITLE [VERSION RELEASE]",
		Short: "Count a document's requirements by severity",
		Args:  documentArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.loadDocument(cmd.Context(), args, &f)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), compliance.Summarize(doc))
		},
	}
	f.register(cmd, true)
	return cmd
}

func newControlsCmd(a *app) *cobra.Command {
	var (
		f        documentFlags
		severity string
	)
	cmd := &cobra.Command{
		Use:   "controls TITLE [VERSION RELEASE]",
		Short: "List a document's requirements, optionally of one severity",
		Args:  documentArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.loadDocument(cmd.Context(), args, &f)
			if err != nil {
				return err
			}
			var reqs []compliance.Requirement
			if severity != "" {
				reqs = compliance.FilterBySeverity(doc, compliance.NormalizeSeverity(severity))
			} else {
				for _, id := range doc.IDs() {
					reqs = append(reqs, doc.Requirements[id])
				}
			}
			return writeRequirements(cmd.OutOrStdout(), reqs)
		},
	}
	f.register(cmd, true)
	cmd.Flags().StringVar(&severity, "severity", "", "only requirements of this severity (high, medium, low)")
	return cmd
}

func newRequirementCmd(a *app) *cobra.Command {
	var scap bool
	cmd := &cobra.Command{
		Use:   "requirement TITLE VERSION RELEASE VULN-ID",
		Short: "Show one requirement with its classification",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := trackr.NewDocumentKey(args[0], args[1], args[2])
			get := a.client.GetRequirement
			if scap {
				get = a.client.GetSCAPRequirement
			}
			detail, err := get(cmd.Context(), key, args[3])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), struct {
				*trackr.RequirementDetail
				Classification string   `json:"classification"`
				CCIs           []string `json:"ccis,omitempty"`
			}{detail, classify.ClassifyDetail(*detail).String(), detail.CCIRefs()})
		},
	}
	cmd.Flags().BoolVar(&scap, "scap", false, "treat TITLE as a SCAP benchmark")
	return cmd
}

func documentArgs(cmd *cobra.Command, args []string) error {
	if len(args) != 1 && len(args) != 3 {
		return fmt.Errorf("%s takes TITLE or TITLE VERSION RELEASE", cmd.Name())
	}
	return nil
}

func writeDocument(stdout io.Writer, path string, doc *compliance.CompleteDocument) error {
	data, err := export.Encode(doc)
	if err != nil {
		return err
	}
	if path == "" {
		_, err = stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func writeRequirements(w io.Writer, reqs []compliance.Requirement) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSEVERITY\tRULE\tTITLE")
	for _, r := range reqs {
		title := r.Title
		if !r.Complete {
			title += " [incomplete]"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, compliance.NormalizeSeverity(r.Severity), r.Rule, title)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
