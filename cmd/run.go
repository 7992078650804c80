package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/roadrisk/internal/model"
	"github.com/sells-group/roadrisk/internal/pipeline"
	"github.com/sells-group/roadrisk/internal/scorer"
)

var (
	runYear       int
	runSourcesDir string
	runOutput     string
	runTopK       int
	runEnrichPath string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Train, score and rank one year of accident records",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		applyRunFlags()
		if err := cfg.Validate("run"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p := pipeline.New(cfg, st, initFetcher())
		rc, err := p.Run(ctx, model.RunRequest{Year: cfg.Sources.Year})
		if err != nil {
			return eris.Wrap(err, "run")
		}

		formatRunReport(os.Stdout, rc, cfg.Output.Path)
		return nil
	},
}

// applyRunFlags copies explicitly set flags over the loaded config.
func applyRunFlags() {
	if runYear > 0 {
		cfg.Sources.Year = runYear
	}
	if runSourcesDir != "" {
		cfg.Sources.Dir = runSourcesDir
	}
	if runOutput != "" {
		cfg.Output.Path = runOutput
	}
	if runTopK > 0 {
		cfg.Output.TopK = runTopK
	}
	if runEnrichPath != "" {
		cfg.Enrich.Path = runEnrichPath
	}
}

func init() {
	runCmd.Flags().IntVar(&runYear, "year", 0, "source year (default from config)")
	runCmd.Flags().StringVar(&runSourcesDir, "sources-dir", "", "directory holding the yearly source files")
	runCmd.Flags().StringVar(&runOutput, "output", "", "scored output path (default from config)")
	runCmd.Flags().IntVar(&runTopK, "top-k", 0, "number of records to rank (default from config)")
	runCmd.Flags().StringVar(&runEnrichPath, "enrich", "", "region aggregate table (.csv, .json, .xlsx or http(s) URL)")
	rootCmd.AddCommand(runCmd)
}

// formatRunReport writes a human-readable summary of a finished run to out.
func formatRunReport(out io.Writer, rc *pipeline.RunContext, outputPath string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Run:\t%s\n", rc.RunID)
	_, _ = fmt.Fprintf(w, "Year:\t%d\n", rc.Year)
	_, _ = fmt.Fprintf(w, "Rows loaded:\t%d\n", len(rc.Records))
	_, _ = fmt.Fprintf(w, "Rows scored:\t%d\n", rc.Scored)
	_, _ = fmt.Fprintf(w, "Features:\t%s\n", strings.Join(rc.Manifest.Features(), ", "))
	_, _ = fmt.Fprintf(w, "Model:\t%s\n", rc.Result(outputPath).ModelState)
	if m := rc.Metrics; m != nil {
		auc := "undefined"
		if m.AUCDefined {
			auc = fmt.Sprintf("%.3f", m.AUC)
		}
		_, _ = fmt.Fprintf(w, "  AUC:\t%s\n", auc)
		_, _ = fmt.Fprintf(w, "  Accuracy:\t%.3f\n", m.Accuracy)
		_, _ = fmt.Fprintf(w, "  Train/test rows:\t%d/%d\n", m.TrainRows, m.TestRows)
	}
	if outputPath != "" {
		_, _ = fmt.Fprintf(w, "Output:\t%s\n", outputPath)
	}
	_ = w.Flush()

	if len(rc.Warnings) > 0 {
		_, _ = fmt.Fprintf(out, "\nWarnings (%d):\n", len(rc.Warnings))
		for _, warn := range rc.Warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", warn)
		}
	}

	if len(rc.TopK) > 0 {
		_, _ = fmt.Fprintln(out, "\nTop accidents by injury risk:")
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "RANK\tSTATE\tROAD\tKM\tCAUSE\tRISK")
		for i, r := range rc.TopK {
			_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%.1f\t%s\t%s\n",
				i+1, r.StateCode, r.RoadID, r.KM, truncate(r.Cause, 40), scorer.FormatPercent(r.RiskScore))
		}
		_ = tw.Flush()
	}

	if len(rc.Segments) > 0 {
		_, _ = fmt.Fprintln(out, "\nCritical segments:")
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "SEGMENT\tACCIDENTS\tMEAN RISK\tMAX RISK")
		for _, s := range rc.Segments {
			_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n",
				s.Key(), s.Accidents, scorer.FormatPercent(s.MeanRisk), scorer.FormatPercent(s.MaxRisk))
		}
		_ = tw.Flush()
	}
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
