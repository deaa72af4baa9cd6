package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/coldrunhq/coldrun/pkg/resultstore"
	"github.com/coldrunhq/coldrun/pkg/schedule"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show an experiment's progress",
	Long: `Read the manifest header and result store in a results directory and report
how far the experiment has progressed. Read-only: inspecting an experiment
never mutates it.

Example:
  coldrun status --results-dir ./results
  coldrun status --results-dir ./results --jobs`,
	RunE: runStatus,
}

var (
	statusResultsDir string
	statusShowJobs   bool
)

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&statusResultsDir, "results-dir", "d", "", "Results directory (required)")
	_ = statusCmd.MarkFlagRequired("results-dir")
	statusCmd.Flags().BoolVar(&statusShowJobs, "jobs", false, "List every job row")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	hdr, err := schedule.Open(statusResultsDir)
	if err != nil {
		return exitError(foundry.ExitFileNotFound, "Cannot read manifest header", err)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "jobs total\t%d\n", hdr.NumJobs())
	fmt.Fprintf(w, "schedule cursor\t%d\n", hdr.NextIdx())
	fmt.Fprintf(w, "reboots consumed\t%d\n", hdr.NumReboots())
	if id, ok := hdr.NextJobID(); ok {
		fmt.Fprintf(w, "next job id\t%d\n", id)
	} else {
		fmt.Fprintf(w, "next job id\t(schedule exhausted)\n")
	}

	// The store lags the header by at most one job; it may also be missing
	// entirely if the process died before the first flush.
	dbPath := filepath.Join(statusResultsDir, resultstore.DBFileName)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Fprintf(w, "result store\t(not created yet)\n")
		return w.Flush()
	}

	store, err := resultstore.Open(ctx, resultstore.Config{Path: dbPath})
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Cannot open result store", err)
	}
	defer func() { _ = store.Close() }()

	meta, err := store.Meta(ctx)
	if err != nil {
		fmt.Fprintf(w, "result store\t(schema not initialized)\n")
		return w.Flush()
	}
	counts, err := store.StatusCounts(ctx)
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Cannot read job statuses", err)
	}

	fmt.Fprintf(w, "experiment id\t%s\n", meta.ExperimentID)
	fmt.Fprintf(w, "created\t%s\n", meta.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "pexecs\t%d\n", meta.Pexecs)
	fmt.Fprintf(w, "done\t%d\n", counts[schedule.StatusDone])
	fmt.Fprintf(w, "error\t%d\n", counts[schedule.StatusError])
	fmt.Fprintf(w, "outstanding\t%d\n", counts[schedule.StatusOutstanding])

	if statusShowJobs {
		jobs, err := store.Jobs(ctx)
		if err != nil {
			return exitError(foundry.ExitFileReadError, "Cannot list jobs", err)
		}
		fmt.Fprintf(w, "\nid\tstatus\tkey\n")
		for _, job := range jobs {
			fmt.Fprintf(w, "%d\t%s\t%s\n", job.ID, job.Status, job.Key)
		}
	}

	return w.Flush()
}
