package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/roadrisk/internal/model"
	"github.com/sells-group/roadrisk/internal/monitoring"
	"github.com/sells-group/roadrisk/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect pipeline run history",
	Long:  "Commands for listing, viewing, and summarizing pipeline runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pipeline runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		year, _ := cmd.Flags().GetInt("year")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(status),
			Year:   year,
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

// runDetail is a run with its stages and ranking.
type runDetail struct {
	*model.Run
	Stages   []model.RunPhase `json:"stages"`
	Hotspots []model.Hotspot  `json:"hotspots,omitempty"`
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		phases, err := st.ListPhases(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "runs show: phases")
		}
		hotspots, err := st.ListHotspots(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "runs show: hotspots")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runDetail{Run: run, Stages: phases, Hotspots: hotspots})
	},
}

// -- runs summary --

var runsSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize recent runs and model quality",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		since, _ := cmd.Flags().GetDuration("since")
		snap, err := monitoring.NewCollector(st).Collect(ctx, int(since.Hours()))
		if err != nil {
			return eris.Wrap(err, "runs summary")
		}

		formatRunSummary(os.Stdout, snap)
		formatAlerts(os.Stdout, monitoring.NewAlerter(cfg.Monitoring).Evaluate(snap))
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (queued, ingesting, training, complete, failed, ...)")
	runsListCmd.Flags().Int("year", 0, "filter by source year")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsSummaryCmd.Flags().Duration("since", 7*24*time.Hour, "time window for the summary (e.g. 24h, 168h; 0 for all runs)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsSummaryCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tYEAR\tSTATUS\tMODEL\tAUC\tROWS\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t-----\t---\t----\t-------\t--------")

	for _, r := range runs {
		dur := r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String()

		modelState, auc, rows := "-", "-", "-"
		if res := r.Result; res != nil {
			modelState = string(res.ModelState)
			rows = fmt.Sprintf("%d", res.RowsLoaded)
			if res.Metrics != nil && res.Metrics.AUCDefined {
				auc = fmt.Sprintf("%.3f", res.Metrics.AUC)
			}
		}

		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			r.Request.Year,
			r.Status,
			modelState,
			auc,
			rows,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// formatRunSummary writes aggregate run health to w.
func formatRunSummary(out io.Writer, s *monitoring.MetricsSnapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	window := "all time"
	if s.LookbackHours > 0 {
		window = fmt.Sprintf("last %dh", s.LookbackHours)
	}
	_, _ = fmt.Fprintf(w, "Window:\t%s\n", window)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.RunsTotal)
	_, _ = fmt.Fprintf(w, "Complete:\t%d\n", s.RunsComplete)
	_, _ = fmt.Fprintf(w, "Failed:\t%d (%.1f%%)\n", s.RunsFailed, s.FailRate*100)
	_, _ = fmt.Fprintf(w, "In progress:\t%d\n", s.RunsInProgress)
	_, _ = fmt.Fprintf(w, "Models trained:\t%d\n", s.ModelsTrained)
	_, _ = fmt.Fprintf(w, "  Insufficient data:\t%d\n", s.ModelsInsufficient)
	_, _ = fmt.Fprintf(w, "  Model failures:\t%d\n", s.ModelsFailed)
	if s.ModelsTrained > 0 {
		_, _ = fmt.Fprintf(w, "Latest AUC:\t%.3f\n", s.LatestAUC)
		_, _ = fmt.Fprintf(w, "Mean AUC:\t%.3f\n", s.AvgAUC)
	}
	if s.AvgRowsLoaded > 0 {
		_, _ = fmt.Fprintf(w, "Avg rows loaded:\t%d\n", s.AvgRowsLoaded)
	}

	conditions := make([]string, 0, len(s.Warnings))
	for c := range s.Warnings {
		conditions = append(conditions, string(c))
	}
	slices.Sort(conditions)
	for i, c := range conditions {
		label := ""
		if i == 0 {
			label = "Warnings:"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s: %d\n", label, c, s.Warnings[model.Condition(c)])
	}
	_ = w.Flush()
}

// formatAlerts lists the alerts a snapshot would raise while serving.
func formatAlerts(out io.Writer, alerts []monitoring.Alert) {
	if len(alerts) == 0 {
		return
	}
	_, _ = fmt.Fprintf(out, "\nAlerts (%d):\n", len(alerts))
	for _, a := range alerts {
		_, _ = fmt.Fprintf(out, "  [%s] %s: %s\n", a.Severity, a.Type, a.Message)
	}
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
