package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"redub/internal/jobstore"
	"redub/internal/language"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recent dubbing jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			jobs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No jobs recorded")
				return nil
			}
			fmt.Fprintln(out, renderJobsTable(jobs, time.Now()))
			return nil
		},
	}
	jobsCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs to show (0 for all)")

	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	return jobsCmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			job, err := store.FindByPrefix(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printJob(cmd.OutOrStdout(), job, time.Now())
			return nil
		},
	}
}

func renderJobsTable(jobs []jobstore.Job, now time.Time) string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			shortID(job.ID),
			string(job.Status),
			jobStage(job),
			strconv.Itoa(job.Clips),
			strconv.Itoa(job.Skipped),
			language.DisplayName(job.Language),
			filepath.Base(job.VideoPath),
			humanize.RelTime(job.CreatedAt, now, "ago", "from now"),
		})
	}
	return renderTable(
		[]string{"ID", "Status", "Stage", "Clips", "Skipped", "Language", "Video", "Started"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
	)
}

func jobStage(job jobstore.Job) string {
	switch job.Status {
	case jobstore.StatusRunning:
		return fmt.Sprintf("%s %3.0f%%", job.Stage, job.Progress*100)
	case jobstore.StatusFailed, jobstore.StatusCancelled:
		if job.ErrorStage != "" {
			return job.ErrorStage
		}
	}
	return "-"
}

func printJob(out io.Writer, job *jobstore.Job, now time.Time) {
	field := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			fmt.Fprintf(out, "%-16s %s\n", label+":", value)
		}
	}
	field("ID", job.ID)
	field("Status", string(job.Status))
	field("Video", job.VideoPath)
	field("Output", job.OutputPath)
	field("Language", language.DisplayName(job.Language))
	field("Segments", strconv.Itoa(job.Segments))
	if job.Status == jobstore.StatusCompleted {
		field("Clips", strconv.Itoa(job.Clips))
		field("Skipped", strconv.Itoa(job.Skipped))
		field("Speakers from", job.SpeakerSource)
		field("Background", job.BackgroundMode)
	}
	if job.Status == jobstore.StatusRunning {
		field("Stage", jobStage(*job))
		field("Message", job.Message)
	}
	field("Failed at", job.ErrorStage)
	field("Error", job.ErrorMessage)
	field("Started", fmt.Sprintf("%s (%s)", job.CreatedAt.Local().Format(time.DateTime), humanize.RelTime(job.CreatedAt, now, "ago", "from now")))
	if job.FinishedAt != nil {
		field("Took", job.FinishedAt.Sub(job.CreatedAt).Round(time.Second).String())
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
