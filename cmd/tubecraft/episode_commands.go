package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tubecraft/internal/api"
	"tubecraft/internal/episode"
)

func newEpisodeCommand(cmdCtx *commandContext) *cobra.Command {
	episodeCmd := &cobra.Command{
		Use:   "episode",
		Short: "Manage generation episodes",
	}

	episodeCmd.AddCommand(newEpisodeAddCommand(cmdCtx))
	episodeCmd.AddCommand(newEpisodeShowCommand(cmdCtx))
	episodeCmd.AddCommand(newEpisodeListCommand(cmdCtx))
	episodeCmd.AddCommand(newEpisodeCancelCommand(cmdCtx))
	episodeCmd.AddCommand(newEpisodeRetryCommand(cmdCtx))

	return episodeCmd
}

func newEpisodeAddCommand(cmdCtx *commandContext) *cobra.Command {
	var topic string
	var style string
	var duration int
	var tags []string

	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Submit a new episode draft",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var title string
			if len(args) > 0 {
				title = args[0]
			}
			return cmdCtx.withService(func(ctx context.Context, svc *api.Service) error {
				ep, err := svc.CreateEpisode(ctx, api.CreateEpisodeRequest{
					Title:                 title,
					Topic:                 topic,
					ContentStyle:          style,
					TargetDurationMinutes: duration,
					Tags:                  tags,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Episode %s queued (%s, %d min)\n",
					ep.ID, ep.ContentStyle, ep.TargetDurationMinutes)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&topic, "topic", "", "Topic the script is written about")
	cmd.Flags().StringVar(&style, "style", "", "Content style (educational, news, entertainment, podcast, tutorial, interview)")
	cmd.Flags().IntVar(&duration, "duration", 0, "Target episode length in minutes")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "Tag the episode (repeatable)")

	return cmd
}

func newEpisodeShowCommand(cmdCtx *commandContext) *cobra.Command {
	var showLogs bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one episode in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withService(func(ctx context.Context, svc *api.Service) error {
				ep, err := svc.GetEpisode(ctx, args[0])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:       %s\n", ep.ID)
				fmt.Fprintf(out, "Title:    %s\n", ep.Title)
				if ep.Topic != "" {
					fmt.Fprintf(out, "Topic:    %s\n", ep.Topic)
				}
				if len(ep.Tags) > 0 {
					fmt.Fprintf(out, "Tags:     %s\n", strings.Join(ep.Tags, ", "))
				}
				fmt.Fprintf(out, "Style:    %s\n", ep.ContentStyle)
				fmt.Fprintf(out, "Length:   %d min\n", ep.TargetDurationMinutes)
				fmt.Fprintf(out, "Status:   %s\n", ep.Status)
				if ep.RetryCount > 0 {
					fmt.Fprintf(out, "Retries:  %d\n", ep.RetryCount)
				}
				if ep.ErrorMessage != "" {
					fmt.Fprintf(out, "Error:    %s\n", ep.ErrorMessage)
				}
				if ep.AudioPath != "" {
					fmt.Fprintf(out, "Audio:    %s\n", ep.AudioPath)
				}
				if ep.VideoPath != "" {
					fmt.Fprintf(out, "Video:    %s\n", ep.VideoPath)
				}
				fmt.Fprintf(out, "Created:  %s\n", ep.CreatedAt.Local().Format(time.RFC1123))
				if ep.CompletedAt != nil {
					fmt.Fprintf(out, "Finished: %s\n", ep.CompletedAt.Local().Format(time.RFC1123))
				}

				if !showLogs {
					return nil
				}
				entries, err := svc.EpisodeLogs(ctx, ep.ID)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					rows = append(rows, []string{
						entry.CreatedAt.Local().Format("15:04:05"),
						entry.Stage,
						string(entry.EventType),
						fmt.Sprintf("%d", entry.Attempt),
						entry.Message,
					})
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderTable(
					[]string{"TIME", "STAGE", "EVENT", "ATTEMPT", "MESSAGE"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
					isTerminal(out),
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&showLogs, "logs", false, "Include the generation audit trail")

	return cmd
}

func newEpisodeListCommand(cmdCtx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List episodes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var statuses []episode.Status
			if statusFilter != "" {
				status, ok := episode.ParseStatus(statusFilter)
				if !ok {
					return fmt.Errorf("unknown status %q", statusFilter)
				}
				statuses = append(statuses, status)
			}

			return cmdCtx.withService(func(ctx context.Context, svc *api.Service) error {
				eps, err := svc.ListEpisodes(ctx, statuses...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(eps) == 0 {
					fmt.Fprintln(out, "No episodes found.")
					return nil
				}
				rows := make([][]string, 0, len(eps))
				for _, ep := range eps {
					rows = append(rows, []string{
						shortEpisodeID(ep.ID),
						ep.Title,
						string(ep.ContentStyle),
						string(ep.Status),
						fmt.Sprintf("%d", ep.RetryCount),
						ep.CreatedAt.Local().Format("2006-01-02 15:04"),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "TITLE", "STYLE", "STATUS", "RETRIES", "CREATED"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
					isTerminal(out),
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Only list episodes with this status")

	return cmd
}

func newEpisodeCancelCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a draft or generating episode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withService(func(ctx context.Context, svc *api.Service) error {
				ep, err := svc.CancelEpisode(ctx, args[0])
				if err != nil {
					return err
				}
				if ep.Status == episode.StatusCancelled {
					fmt.Fprintf(cmd.OutOrStdout(), "Episode %s cancelled\n", ep.ID)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(),
						"Episode %s flagged; it stops at the next stage boundary\n", ep.ID)
				}
				return nil
			})
		},
	}
}

func newEpisodeRetryCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Move failed episodes back to draft",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withService(func(ctx context.Context, svc *api.Service) error {
				count, err := svc.RetryEpisodes(ctx, args...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d episode(s)\n", count)
				return nil
			})
		},
	}
}

func shortEpisodeID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return strings.ToLower(id[:8])
}
