package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// NewGenerateCmd creates the generate command
func NewGenerateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Run one assignment generation cycle now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			result, err := client.Generate()
			if err != nil {
				return err
			}

			if result.Success {
				out.Success(fmt.Sprintf("Generation cycle %s completed", result.CycleID))
			} else {
				out.Error("generation cycle did not run: " + result.Reason)
			}

			out.Print(
				[]string{"SUCCESS", "REASON", "CREATED", "WORKERS", "CYCLE"},
				[][]string{{
					strconv.FormatBool(result.Success),
					orDash(result.Reason),
					strconv.Itoa(result.AssignmentsCreated),
					strconv.Itoa(result.WorkersInvolved),
					orDash(result.CycleID),
				}},
				result,
			)
			return nil
		},
	}
}

// NewStatsCmd creates the stats command
func NewStatsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show assignment counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := clientFn().Stats()
			if err != nil {
				return err
			}

			outputFn().Print(
				[]string{"TOTAL", "ACTIVE", "COMPLETED", "EXPIRED"},
				[][]string{{
					strconv.FormatInt(stats.Total, 10),
					strconv.FormatInt(stats.Active, 10),
					strconv.FormatInt(stats.Completed, 10),
					strconv.FormatInt(stats.Expired, 10),
				}},
				stats,
			)
			return nil
		},
	}
}

// NewLeasesCmd creates the leases command
func NewLeasesCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var workerID string

	cmd := &cobra.Command{
		Use:   "leases",
		Short: "List open leases of a worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			if workerID == "" && client.identity == "" {
				return errors.New("either --worker or --identity is required")
			}

			leases, err := client.Leases(workerID)
			if err != nil {
				return err
			}

			rows := make([][]string, len(leases.Leases))
			for i, l := range leases.Leases {
				rows[i] = []string{
					l.TaskID,
					l.AssignedAt.Format(time.RFC3339),
					l.ExpiresAt.Format(time.RFC3339),
				}
			}

			outputFn().Print([]string{"TASK_ID", "ASSIGNED", "EXPIRES"}, rows, leases)
			return nil
		},
	}

	cmd.Flags().StringVar(&workerID, "worker", "", "Worker ID (defaults to the --identity worker)")

	return cmd
}

// NewChecksCmd creates the checks command
func NewChecksCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var taskID string
	var page, limit int

	cmd := &cobra.Command{
		Use:   "checks",
		Short: "Show check history of a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			checks, err := clientFn().Checks(taskID, page, limit)
			if err != nil {
				return err
			}

			rows := make([][]string, len(checks.Results))
			for i, c := range checks.Results {
				rows[i] = []string{c.ID, c.WorkerID, c.Status, strconv.FormatInt(c.LatencyMs, 10), c.Timestamp}
			}

			outputFn().Print([]string{"ID", "WORKER_ID", "STATUS", "LATENCY_MS", "TIMESTAMP"}, rows, checks)
			return nil
		},
	}

	cmd.Flags().StringVar(&taskID, "task", "", "Task ID")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&limit, "limit", 20, "Results per page (max 100)")
	cmd.MarkFlagRequired("task")

	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
