package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sells-group/roadrisk/internal/features"
	"github.com/sells-group/roadrisk/internal/model"
	"github.com/sells-group/roadrisk/internal/pipeline"
	"github.com/sells-group/roadrisk/internal/scorer"
)

// featureFlags maps numeric flag names onto manifest feature names.
var featureFlags = map[string]string{
	"km":             model.FeatureKM,
	"hour":           model.FeatureHour,
	"weekday":        model.FeatureWeekday,
	"latitude":       model.FeatureLatitude,
	"longitude":      model.FeatureLongitude,
	"dist-center-km": model.FeatureDistCenter,
	"weather-code":   model.FeatureWeatherCode,
	"road-type-code": model.FeatureRoadTypeCode,
	"population":     model.FeaturePopulation,
	"fleet-size":     model.FeatureFleetSize,
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Estimate the injury probability of a hypothetical accident",
	Long: "Trains a model on the configured year and scores one hypothetical accident described by flags. " +
		"Only flags that are set become part of the query; optional categorical and enrichment features default to 0.",
	Example: `  roadrisk predict --km 120 --hour 18 --weekday 4 --weather "Chuva"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		applyRunFlags()
		if err := cfg.Validate("predict"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rc, err := pipeline.New(cfg, st, initFetcher()).Train(ctx, model.RunRequest{Year: cfg.Sources.Year})
		if err != nil {
			return eris.Wrap(err, "predict: train")
		}

		q, err := queryFromFlags(cmd.Flags(), rc.Vocabulary)
		if err != nil {
			return err
		}

		pred, err := scorer.ScoreOne(rc.Predictor(), q)
		if err != nil {
			return eris.Wrap(err, "predict")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(predictResponse{
			Prediction: pred,
			RunID:      rc.RunID,
			Features:   rc.Manifest.Features(),
		})
	},
}

// predictResponse is the point-query answer for both the CLI and HTTP.
type predictResponse struct {
	*scorer.Prediction
	RunID    string   `json:"run_id,omitempty"`
	Features []string `json:"features"`
}

// queryFromFlags builds a point query from the flags the user set. The
// --weather and --road-type labels are translated through the run's
// vocabulary.
func queryFromFlags(flags *pflag.FlagSet, vocab *features.Vocabulary) (scorer.Query, error) {
	q := scorer.Query{}
	for flag, feature := range featureFlags {
		if !flags.Changed(flag) {
			continue
		}
		v, err := flags.GetFloat64(flag)
		if err != nil {
			return nil, eris.Wrapf(err, "predict: read --%s", flag)
		}
		q[feature] = v
	}

	for _, kind := range []string{"weather", "road-type"} {
		if !flags.Changed(kind) {
			continue
		}
		name, _ := flags.GetString(kind)
		feature, code, err := labelCode(vocab, kind, name)
		if err != nil {
			return nil, err
		}
		q[feature] = float64(code)
	}
	return q, nil
}

// labelCode translates a weather or road-type label into the code the model
// was trained with.
func labelCode(vocab *features.Vocabulary, kind, name string) (string, int, error) {
	if vocab == nil {
		return "", 0, eris.Errorf("predict: %s label needs a category vocabulary", kind)
	}
	feature, values := model.FeatureWeatherCode, vocab.Weather
	if kind == "road-type" {
		feature, values = model.FeatureRoadTypeCode, vocab.RoadType
	}
	code, ok := features.FrozenEncoder(values).Code(strings.TrimSpace(name))
	if !ok {
		return "", 0, eris.Errorf("predict: unknown %s %q (known: %s)", kind, name, strings.Join(values, ", "))
	}
	return feature, code, nil
}

func init() {
	for flag := range featureFlags {
		predictCmd.Flags().Float64(flag, 0, "value of the "+featureFlags[flag]+" feature")
	}
	predictCmd.Flags().String("weather", "", "weather condition label, e.g. \"Chuva\"")
	predictCmd.Flags().String("road-type", "", "road type label, e.g. \"Dupla\"")
	predictCmd.Flags().IntVar(&runYear, "year", 0, "training year (default from config)")
	predictCmd.Flags().StringVar(&runSourcesDir, "sources-dir", "", "directory holding the yearly source files")
	predictCmd.Flags().StringVar(&runEnrichPath, "enrich", "", "region aggregate table (.csv, .json, .xlsx or http(s) URL)")
	rootCmd.AddCommand(predictCmd)
}
