package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/paperledge/papi/pkg/papi"
)

// NewJobsCommand creates the jobs command group
func NewJobsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect asynchronous jobs",
	}

	cmd.AddCommand(newJobsGetCommand())
	cmd.AddCommand(newJobsWaitCommand())

	return cmd
}

func newJobsGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get JOB_ID",
		Short: "Show a job's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == "" {
				return ErrJobIDRequired
			}

			client, err := newClient()
			if err != nil {
				return err
			}

			job, err := client.Jobs().Get(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get job: %w", err)
			}

			fmt.Printf("Job %s: %s\n", job.ID, job.Status)

			for _, problem := range job.Errors {
				fmt.Printf("  error: %s\n", problem)
			}

			return nil
		},
	}

	return cmd
}

func newJobsWaitCommand() *cobra.Command {
	var (
		interval time.Duration
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "wait JOB_ID",
		Short: "Wait for a job to finish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}

			result, err := client.Jobs().WaitForCompletion(context.Background(), args[0], &papi.PollOptions{
				Interval: interval,
				Timeout:  timeout,
			})
			if err != nil {
				return fmt.Errorf("failed waiting for job: %w", err)
			}

			if !result.Success {
				return fmt.Errorf("job %s failed: %v", args[0], result.Errors)
			}

			fmt.Printf("Job %s finished\n", args[0])

			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval (default 2s)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "overall timeout (default 5m)")

	return cmd
}
