package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"quizline/internal/buffer"
	"quizline/internal/config"
	"quizline/internal/fileutil"
	"quizline/internal/queue"
	"quizline/internal/textutil"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and plan the publish queue ledger",
	}
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueImportCommand(ctx))
	return queueCmd
}

type itemView struct {
	Row         int               `json:"row"`
	Topic       string            `json:"topic"`
	Status      queue.Status      `json:"status"`
	PublishedAt string            `json:"published_at,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var jsonOut bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List ledger items in order",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseStatusFilter(statusFlags)
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store queue.Store) error {
				ledger, err := store.LoadAll(cmd.Context())
				if err != nil {
					return err
				}
				views := make([]itemView, 0, len(ledger.Items))
				for idx, item := range ledger.Items {
					if len(filter) > 0 && !filter[item.Status] {
						continue
					}
					view := itemView{Row: idx + 1, Topic: item.Topic, Status: item.Status, Extra: item.Extra}
					if item.PublishedAt != nil {
						view.PublishedAt = item.PublishedAt.UTC().Format(time.RFC3339)
					}
					views = append(views, view)
				}
				if jsonOut {
					return writeJSON(cmd, views)
				}
				if len(views) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Ledger is empty")
					return nil
				}
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					rows = append(rows, []string{strconv.Itoa(v.Row), v.Topic, textutil.StatusLabel(string(v.Status)), v.PublishedAt})
				}
				fmt.Fprintln(cmd.OutOrStdout(), tableView{
					Headers: []string{"#", "Topic", "Status", "Published At"},
					Rows:    rows,
					Aligns:  []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
				}.render())
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print items as JSON")
	return cmd
}

func parseStatusFilter(values []string) (map[queue.Status]bool, error) {
	filter := make(map[queue.Status]bool, len(values))
	for _, raw := range values {
		status, ok := queue.ParseStatus(raw)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", raw)
		}
		filter[status] = true
	}
	return filter, nil
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show per-status counts and the READY buffer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store queue.Store) error {
				ledger, err := store.LoadAll(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader("Ledger", colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderStatusLine("Path", statusInfo, store.Path(), colorize))
				fmt.Fprintln(out, renderStatusLine("Backend", statusInfo, cfg.Ledger.Backend, colorize))
				fmt.Fprintln(out, countsTable(ledger.Counts()).render())

				decision := buffer.Check(ledger, cfg.Buffer.LowWatermark, cfg.Buffer.Target)
				kind := statusOK
				if decision.Refill {
					kind = statusWarn
				}
				fmt.Fprintln(out, renderStatusLine("READY buffer", kind, decision.Message(), colorize))
				return nil
			})
		},
	}
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var fields []string
	var threshold float64
	cmd := &cobra.Command{
		Use:   "add <topic>",
		Short: "Append a PLANNED topic to the ledger",
		Long: `Append a PLANNED topic to the ledger.

Topics that look like an existing one are reported as a warning; the topic
is still added.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item := queue.NewItem(args[0])
			if item.Topic == "" {
				return fmt.Errorf("topic must not be empty")
			}
			for _, kv := range fields {
				key, value, ok := strings.Cut(kv, "=")
				key = strings.TrimSpace(key)
				if !ok || key == "" {
					return fmt.Errorf("invalid --field %q (expected key=value)", kv)
				}
				switch key {
				case queue.ColumnTopic, queue.ColumnStatus, queue.ColumnPublishedAt:
					return fmt.Errorf("--field cannot set core column %q", key)
				}
				item.SetField(key, strings.TrimSpace(value))
			}
			return ctx.withStore(func(_ *config.Config, store queue.Store) error {
				ledger, err := store.LoadAll(cmd.Context())
				if err != nil {
					return err
				}
				warnSimilar(cmd, item.Topic, ledger, threshold)
				if err := store.Append(cmd.Context(), item); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %q as row %d (%s)\n", item.Topic, len(ledger.Items)+1, queue.StatusPlanned)
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVarP(&fields, "field", "f", nil, "Passthrough column as key=value (repeatable)")
	cmd.Flags().Float64Var(&threshold, "similarity", textutil.DefaultDuplicateThreshold, "Warn when an existing topic is at least this similar")
	return cmd
}

func warnSimilar(cmd *cobra.Command, topic string, ledger queue.Ledger, threshold float64) {
	existing := make([]string, 0, len(ledger.Items))
	for _, item := range ledger.Items {
		existing = append(existing, item.Topic)
	}
	matches := textutil.FindSimilar(topic, existing, threshold)
	if len(matches) == 0 {
		return
	}
	w := cmd.ErrOrStderr()
	colorize := shouldColorize(w)
	for _, m := range matches {
		fmt.Fprintln(w, paint(statusWarn, fmt.Sprintf("warning: %q resembles existing topic %q (%.0f%% similar)", topic, m.Topic, m.Similarity*100), colorize))
	}
}

func newQueueImportCommand(ctx *commandContext) *cobra.Command {
	var backup bool
	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Append rows from a ledger-formatted CSV file",
		Long: `Append rows from a ledger-formatted CSV file.

The file needs topic and status columns. Statuses and published_at values are
kept, so an existing CSV ledger can be moved to the sqlite backend. A CSV
ledger is copied to <ledger>.bak first unless --backup=false.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open import file: %w", err)
			}
			defer f.Close()
			incoming, err := queue.DecodeCSV(f)
			if err != nil {
				return fmt.Errorf("read import file %s: %w", path, err)
			}
			if len(incoming.Items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to import")
				return nil
			}
			return ctx.withStore(func(cfg *config.Config, store queue.Store) error {
				ledger, err := store.LoadAll(cmd.Context())
				if err != nil {
					return err
				}
				if backup && cfg.Ledger.Backend == queue.BackendCSV && len(ledger.Items) > 0 {
					dst := store.Path() + ".bak"
					if err := fileutil.CopyFile(store.Path(), dst); err != nil {
						return fmt.Errorf("back up ledger: %w", err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Backed up ledger to %s\n", dst)
				}
				for _, item := range incoming.Items {
					warnSimilar(cmd, item.Topic, ledger, textutil.DefaultDuplicateThreshold)
				}
				if err := store.Append(cmd.Context(), incoming.Items...); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d items from %s\n", len(incoming.Items), path)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&backup, "backup", true, "Copy a CSV ledger to <ledger>.bak before importing")
	return cmd
}
