package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"shipclass/internal/clix"
)

const timeLayout = "2006-01-02 15:04:05"

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the classification run ledger",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent classification runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		pagination, err := clix.ParsePagination(cmd.Flags())
		if err != nil {
			return fmt.Errorf("invalid pagination flags: %w", err)
		}

		runs, err := appInstance.RunService.ListRuns(cmd.Context(), pagination.Limit, pagination.Offset)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		if len(runs) == 0 {
			fmt.Println("No runs found.")
			return nil
		}

		table := newTable(os.Stdout, "ID", "Started", "Input", "Model", "Status", "Rows", "Error Rows", "Failed Batches")
		for _, r := range runs {
			table.Append([]string{
				r.ID.String(),
				r.StartedAt.Local().Format(timeLayout),
				r.InputPath,
				r.Model,
				statusColor(r.Status),
				strconv.Itoa(r.Rows),
				strconv.Itoa(r.ErrorRows),
				strconv.Itoa(r.FailedBatches),
			})
		}
		table.Render()
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one classification run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid run id %q: %w", args[0], err)
		}

		r, err := appInstance.RunService.GetRun(cmd.Context(), id)
		if err != nil {
			return err
		}

		finished := "-"
		if r.FinishedAt != nil {
			finished = r.FinishedAt.Local().Format(timeLayout)
		}
		fmt.Printf("Run:            %s\n", r.ID)
		fmt.Printf("Status:         %s\n", statusColor(r.Status))
		fmt.Printf("Input:          %s\n", r.InputPath)
		fmt.Printf("Output:         %s\n", r.OutputPath)
		fmt.Printf("Provider:       %s (%s)\n", r.Provider, r.Model)
		fmt.Printf("Rows:           %d (%d error rows)\n", r.Rows, r.ErrorRows)
		fmt.Printf("Batches:        %d (%d failed)\n", r.Batches, r.FailedBatches)
		fmt.Printf("Started:        %s\n", r.StartedAt.Local().Format(timeLayout))
		fmt.Printf("Finished:       %s\n", finished)
		fmt.Printf("Message:        %s\n", formatOptional(r.Message))
		return nil
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List background classify tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		pagination, err := clix.ParsePagination(cmd.Flags())
		if err != nil {
			return fmt.Errorf("invalid pagination flags: %w", err)
		}

		jobs, err := appInstance.RunService.ListJobs(cmd.Context(), pagination.Limit, pagination.Offset)
		if err != nil {
			return fmt.Errorf("failed to list jobs: %w", err)
		}
		if len(jobs) == 0 {
			fmt.Println("No background jobs found.")
			return nil
		}

		table := newTable(os.Stdout, "Job ID", "Type", "Queue", "Status", "Created", "Updated")
		for _, j := range jobs {
			table.Append([]string{
				j.JobID.String(),
				j.TaskType,
				j.Queue,
				statusColor(j.Status),
				j.CreatedAt.Local().Format(timeLayout),
				j.UpdatedAt.Local().Format(timeLayout),
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(jobsCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)

	clix.AddPaginationFlags(runsListCmd.Flags(), 20)
	clix.AddPaginationFlags(jobsCmd.Flags(), 20)
}
