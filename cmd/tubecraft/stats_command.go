package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"tubecraft/internal/api"
	"tubecraft/internal/episode"
)

func newStatsCommand(cmdCtx *commandContext) *cobra.Command {
	var recent int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withService(func(ctx context.Context, svc *api.Service) error {
				report, err := svc.Stats(ctx)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				styled := isTerminal(out)
				summary := report.Summary

				rows := [][]string{
					{"Draft", fmt.Sprintf("%d", summary.Draft)},
					{"Generating", fmt.Sprintf("%d", summary.Generating)},
					{"Completed", fmt.Sprintf("%d", summary.Completed)},
					{"Failed", fmt.Sprintf("%d", summary.Failed)},
					{"Cancelled", fmt.Sprintf("%d", summary.Cancelled)},
					{"Total", fmt.Sprintf("%d", summary.Total)},
				}
				fmt.Fprintln(out, renderTable(
					[]string{"PHASE", "EPISODES"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
					styled,
				))

				if len(report.ByStyle) > 0 {
					fmt.Fprintln(out)
					fmt.Fprintln(out, renderTable(
						[]string{"STYLE", "STATUS", "EPISODES"},
						styleRows(report.ByStyle),
						[]columnAlignment{alignLeft, alignLeft, alignRight},
						styled,
					))
				}

				if report.AverageGenerationSeconds > 0 {
					fmt.Fprintf(out, "\nAverage generation time: %s\n",
						(time.Duration(report.AverageGenerationSeconds * float64(time.Second))).Round(time.Second))
				}

				eps, err := svc.RecentEpisodes(ctx, recent)
				if err != nil {
					return err
				}
				if len(eps) > 0 {
					fmt.Fprintln(out)
					fmt.Fprintln(out, renderTable(
						[]string{"ID", "TITLE", "STATUS", "UPDATED", "GENERATION"},
						recentRows(eps),
						[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
						styled,
					))
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&recent, "recent", 5, "How many recently touched episodes to show")

	return cmd
}

func styleRows(byStyle map[episode.ContentStyle]map[episode.Status]int) [][]string {
	styles := make([]string, 0, len(byStyle))
	for style := range byStyle {
		styles = append(styles, string(style))
	}
	sort.Strings(styles)

	var rows [][]string
	for _, style := range styles {
		counts := byStyle[episode.ContentStyle(style)]
		statuses := make([]string, 0, len(counts))
		for status := range counts {
			statuses = append(statuses, string(status))
		}
		sort.Strings(statuses)
		for _, status := range statuses {
			rows = append(rows, []string{style, status, fmt.Sprintf("%d", counts[episode.Status(status)])})
		}
	}
	return rows
}

func recentRows(eps []*episode.Episode) [][]string {
	rows := make([][]string, 0, len(eps))
	for _, ep := range eps {
		generation := "-"
		if d, ok := ep.GenerationDuration(); ok {
			generation = d.Round(time.Second).String()
		}
		rows = append(rows, []string{
			shortEpisodeID(ep.ID),
			ep.Title,
			string(ep.Status),
			ep.UpdatedAt.Local().Format("2006-01-02 15:04"),
			generation,
		})
	}
	return rows
}
