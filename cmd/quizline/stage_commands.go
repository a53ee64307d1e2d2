package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"quizline/internal/queue"
	"quizline/internal/stage"
	"quizline/internal/textutil"
	"quizline/internal/timeparsing"
)

func newStageCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newSimpleStageCommand(ctx, "propose", stage.NameProposeTopic,
			"Ask for approval of the next PLANNED topic", true,
			func(c context.Context, r *stage.Runner) (stage.Outcome, error) { return r.Propose(c) }),
		newSimpleStageCommand(ctx, "enqueue", stage.NameQueueApproval,
			"Ask whether the first READY video should join the upload queue", true,
			func(c context.Context, r *stage.Runner) (stage.Outcome, error) { return r.Enqueue(c) }),
		newSimpleStageCommand(ctx, "publish", stage.NameUploadSchedule,
			"Upload the first IN_QUEUE video and mark it PUBLISHED", false,
			func(c context.Context, r *stage.Runner) (stage.Outcome, error) { return r.Publish(c) }),
		newBufferCheckCommand(ctx),
		newMarkReadyCommand(ctx),
		newAnalyticsCommand(ctx),
	}
}

type stageFunc func(context.Context, *stage.Runner) (stage.Outcome, error)

func newSimpleStageCommand(ctx *commandContext, use, name, short string, needsGateway bool, fn stageFunc) *cobra.Command {
	return &cobra.Command{
		Use:     use,
		Aliases: []string{name},
		Short:   short,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRunner(needsGateway, func(r *stage.Runner) error {
				out, err := fn(cmd.Context(), r)
				if err != nil {
					return err
				}
				printOutcome(cmd, out)
				return nil
			})
		},
	}
}

func printOutcome(cmd *cobra.Command, out stage.Outcome) {
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, renderOutcome(out, shouldColorize(w)))
}

func newBufferCheckCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:     "buffer-check",
		Aliases: []string{"buffer"},
		Short:   "Compare the READY count with the watermarks and request a refill when low",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRunner(true, func(r *stage.Runner) error {
				out, decision, err := r.BufferCheck(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, decision)
				}
				printOutcome(cmd, out)
				if decision.Misconfigured {
					fmt.Fprintln(cmd.OutOrStdout(), paint(statusWarn,
						fmt.Sprintf("target %d is below low watermark %d; check [buffer] settings", decision.Target, decision.LowWatermark),
						shouldColorize(cmd.OutOrStdout())))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the buffer decision as JSON")
	return cmd
}

func newMarkReadyCommand(ctx *commandContext) *cobra.Command {
	var topic string
	cmd := &cobra.Command{
		Use:   "mark-ready [topic]",
		Short: "Record that content for an approved topic has been generated",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				topic = args[0]
			}
			return ctx.withRunner(false, func(r *stage.Runner) error {
				out, err := r.MarkReady(cmd.Context(), topic)
				if err != nil {
					return err
				}
				printOutcome(cmd, out)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&topic, "topic", "t", "", "Topic to mark (default: first APPROVED_TOPIC item)")
	return cmd
}

func newAnalyticsCommand(ctx *commandContext) *cobra.Command {
	var since string
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Summarize published videos",
		Long: `Summarize published videos.

--since accepts a compact duration looking back from now (7d, 12h, 2w),
a date (2024-05-01), or natural language such as "last monday".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var from time.Time
			if strings.TrimSpace(since) != "" {
				ts, err := timeparsing.ParseSince(since, time.Now())
				if err != nil {
					return fmt.Errorf("parse --since: %w", err)
				}
				from = ts
			}
			return ctx.withRunner(false, func(r *stage.Runner) error {
				_, summary, err := r.Analytics(cmd.Context(), from)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, summary)
				}
				return printSummary(cmd, summary)
			})
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "Only include videos published at or after this time")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the summary as JSON")
	return cmd
}

func printSummary(cmd *cobra.Command, summary stage.Summary) error {
	out := cmd.OutOrStdout()
	if len(summary.Published) == 0 {
		fmt.Fprintln(out, summary.Text())
	} else {
		rows := make([][]string, 0, len(summary.Published))
		for i, p := range summary.Published {
			rows = append(rows, []string{strconv.Itoa(i + 1), p.Topic, p.PublishedAt.Format(time.RFC3339)})
		}
		title := "Published videos"
		if !summary.Since.IsZero() {
			title += " since " + summary.Since.UTC().Format(time.RFC3339)
		}
		fmt.Fprintln(out, tableView{
			Title:   title,
			Headers: []string{"#", "Topic", "Published At"},
			Rows:    rows,
			Aligns:  []columnAlignment{alignRight, alignLeft, alignLeft},
		}.render())
	}
	fmt.Fprintln(out, countsTable(summary.Counts).render())
	return nil
}

func countsTable(counts map[queue.Status]int) tableView {
	rows := make([][]string, 0, len(queue.AllStatuses()))
	total := 0
	for _, status := range queue.AllStatuses() {
		n := counts[status]
		total += n
		rows = append(rows, []string{textutil.StatusLabel(string(status)), strconv.Itoa(n)})
	}
	return tableView{
		Headers: []string{"Status", "Items"},
		Rows:    rows,
		Aligns:  []columnAlignment{alignLeft, alignRight},
		Footer:  []string{"Total", strconv.Itoa(total)},
	}
}
