package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"seqtrack/internal/catalog"
	"seqtrack/internal/core"
)

const missing = "-"

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "seqtrack",
		Short: "Sample lifecycle dates, methods and metrics from the LIMS",
		Example: `  # Lifecycle dates and day spans
  $ seqtrack dates ACC1234A1

  # Archive trending reports for two samples
  $ seqtrack report ACC1234A1 ACC1234A2 --archive`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "configuration file (default ./seqtrack.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	root.AddCommand(
		newDatesCmd(a),
		newMethodCmd(a),
		newMetricsCmd(a),
		newReportCmd(a),
		newTransferCmd(a),
		newStatusCmd(a),
		newArchiveCmd(a),
		newCatalogCmd(a),
	)
	return root
}

func day(t *time.Time) string {
	if t == nil {
		return missing
	}
	return t.Format(time.DateOnly)
}

func days(n *int) string {
	if n == nil {
		return missing
	}
	return fmt.Sprint(*n)
}

func number(v *float64) string {
	if v == nil {
		return missing
	}
	return fmt.Sprint(*v)
}

func text(s string) string {
	if s == "" {
		return missing
	}
	return s
}

func newDatesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dates <sample-id>",
		Short: "Print the four lifecycle dates and the day spans between them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context(), false)
			if err != nil {
				return err
			}
			d, err := svc.Dates(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, ev := range catalog.Events {
				fmt.Fprintf(w, "%-24s %s\n", ev, day(d.At(ev)))
			}
			fmt.Fprintf(w, "%-24s %s\n", "received_to_prepped", days(d.Spans.ReceivedToPrepared))
			fmt.Fprintf(w, "%-24s %s\n", "prepped_to_sequenced", days(d.Spans.PreparedToSequenced))
			fmt.Fprintf(w, "%-24s %s\n", "sequenced_to_delivered", days(d.Spans.SequencedToDelivered))
			fmt.Fprintf(w, "%-24s %s\n", "received_to_delivered", days(d.Spans.ReceivedToDelivered))
			return nil
		},
	}
}

func newMethodCmd(a *app) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "method <sample-id>",
		Short: "Print the protocol method used for a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat := catalog.MethodCategory(category)
			known := false
			for _, c := range catalog.MethodCategories {
				known = known || c == cat
			}
			if !known {
				return fmt.Errorf("unknown method category %q", category)
			}
			svc, err := a.service(cmd.Context(), false)
			if err != nil {
				return err
			}
			m, err := svc.Method(cmd.Context(), args[0], cat)
			if err != nil {
				return err
			}
			if m == nil {
				fmt.Fprintln(cmd.OutOrStdout(), missing)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), m.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", string(catalog.MethodDelivery), "prep, sequencing or delivery")
	return cmd
}

func newMetricsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics <sample-id>",
		Short: "Print defrosts, amounts, library sizes and capture kit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context(), false)
			if err != nil {
				return err
			}
			m, err := svc.Metrics(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			writeMetrics(cmd.OutOrStdout(), m)
			return nil
		},
	}
}

func writeMetrics(w io.Writer, m core.SampleMetrics) {
	row := func(k, v string) { fmt.Fprintf(w, "%-32s %s\n", k, v) }
	row("application_tag", text(m.ApplicationTag))
	if m.Defrosts.Empty() {
		row("nr_defrosts", missing)
	} else {
		row("nr_defrosts", fmt.Sprint(m.Defrosts.Count))
	}
	row("nr_defrosts_concentration", number(m.Defrosts.Concentration))
	row("lotnr", text(m.Defrosts.LotNumber))
	row("amount", number(m.FinalAmount.Amount))
	row("amount_concentration", number(m.FinalAmount.Concentration))
	row("microbial_library_concentration", number(m.MicrobialConcentration))
	row("library_workflow", text(string(m.LibrarySize.Workflow)))
	row("library_size_pre_hyb", number(m.LibrarySize.PreHyb))
	row("library_size_post_hyb", number(m.LibrarySize.PostHyb))
	row("capture_kit", text(m.CaptureKit))
}

func newReportCmd(a *app) *cobra.Command {
	var archived bool
	cmd := &cobra.Command{
		Use:   "report <sample-id>...",
		Short: "Print trending reports as JSON lines, optionally archiving them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context(), archived)
			if err != nil {
				return err
			}
			if archived {
				exp, err := svc.ExportReports(cmd.Context(), args)
				if exp.Key != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "archived %d reports to %s\n", exp.Count, exp.Key)
				}
				return err
			}
			reports, err := svc.BuildReports(cmd.Context(), args)
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, r := range reports {
				if encErr := enc.Encode(r); encErr != nil {
					return encErr
				}
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&archived, "archive", false, "write the reports to the configured archive")
	return cmd
}

func newTransferCmd(a *app) *cobra.Command {
	events := make([]string, len(catalog.Events))
	for i, ev := range catalog.Events {
		events[i] = string(ev)
	}
	return &cobra.Command{
		Use:       fmt.Sprintf("transfer <%s> <sample-id>...", strings.Join(events, "|")),
		Short:     "Copy resolved dates into the status database",
		Args:      cobra.MinimumNArgs(2),
		ValidArgs: events,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context(), false)
			if err != nil {
				return err
			}
			res, err := svc.TransferDates(cmd.Context(), catalog.Event(args[0]), args[1:])
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "updated:   %s\n", text(strings.Join(res.Updated, " ")))
			fmt.Fprintf(w, "unchanged: %s\n", text(strings.Join(res.Unchanged, " ")))
			fmt.Fprintf(w, "missing:   %s\n", text(strings.Join(res.Missing, " ")))
			return err
		},
	}
}

func newCatalogCmd(a *app) *cobra.Command {
	var path string
	load := func() (*catalog.Catalog, error) {
		if path == "" && a.configPath != "" {
			cfg, err := a.config()
			if err != nil {
				return nil, err
			}
			path = cfg.Catalog.Path
		}
		return catalog.Load(path)
	}
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the step catalog",
	}
	cmd.PersistentFlags().StringVar(&path, "path", "", "catalog file (default: catalog.path, else built-in v1)")
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the catalog as JSON",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cat, err := load()
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cat)
			},
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Validate the catalog",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cat, err := load()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "catalog %s ok\n", cat.Version)
				return nil
			},
		},
	)
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <sample-id>",
		Short: "Print the dates stored for a sample in the status database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context(), false)
			if err != nil {
				return err
			}
			st, ok, err := svc.SampleStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no stored status for sample %s", args[0])
			}
			w := cmd.OutOrStdout()
			for _, ev := range catalog.Events {
				var at *time.Time
				if d, ok := st.Date(ev); ok {
					at = &d
				}
				fmt.Fprintf(w, "%-24s %s\n", ev, day(at))
			}
			fmt.Fprintf(w, "%-24s %s\n", "updated_at", st.UpdatedAt.Format(time.RFC3339))
			return nil
		},
	}
}

func newArchiveCmd(a *app) *cobra.Command {
	var expiry time.Duration
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect archived report batches",
	}
	urlCmd := &cobra.Command{
		Use:   "url <key>",
		Short: "Print a download URL for a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arc, err := a.reportArchive(cmd.Context())
			if err != nil {
				return err
			}
			u, err := arc.URL(cmd.Context(), args[0], expiry)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), u)
			return nil
		},
	}
	urlCmd.Flags().DurationVar(&expiry, "expiry", 15*time.Minute, "lifetime of signed URLs")
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list [YYYY/MM]",
			Short: "List archived batches, optionally for one month",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var month string
				if len(args) == 1 {
					month = strings.ReplaceAll(strings.Trim(args[0], "/"), "-", "/")
				}
				arc, err := a.reportArchive(cmd.Context())
				if err != nil {
					return err
				}
				batches, err := arc.Batches(cmd.Context(), month)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				for _, b := range batches {
					fmt.Fprintf(w, "%s %d %s\n", b.Key, b.Size, b.LastModified.UTC().Format(time.RFC3339))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "exports",
			Short: "List the batches recorded in the status database",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				svc, err := a.service(cmd.Context(), false)
				if err != nil {
					return err
				}
				exports, err := svc.Exports(cmd.Context())
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				for _, e := range exports {
					fmt.Fprintf(w, "%s %s %d %s %s\n", e.ID, e.Key, e.Count, text(e.CatalogVersion), e.CreatedAt.UTC().Format(time.RFC3339))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "show <key>",
			Short: "Print the reports of a batch as JSON lines",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				arc, err := a.reportArchive(cmd.Context())
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				return arc.Read(cmd.Context(), args[0], func(raw json.RawMessage) error {
					_, err := fmt.Fprintf(w, "%s\n", raw)
					return err
				})
			},
		},
		urlCmd,
	)
	return cmd
}
