package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/roadrisk/internal/features"
	"github.com/sells-group/roadrisk/internal/metrics"
	"github.com/sells-group/roadrisk/internal/model"
	"github.com/sells-group/roadrisk/internal/monitoring"
	"github.com/sells-group/roadrisk/internal/pipeline"
	"github.com/sells-group/roadrisk/internal/scorer"
	"github.com/sells-group/roadrisk/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve point predictions over HTTP",
	Long:  "Trains a model on the configured year, then answers POST /v1/predict. Prometheus metrics are exposed on /metrics.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyRunFlags()
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		srvState := &predictServer{store: st}
		rc, err := pipeline.New(cfg, st, initFetcher()).Train(ctx, model.RunRequest{Year: cfg.Sources.Year})
		if err != nil {
			// Serve run history anyway; predictions answer 503.
			zap.L().Error("serve: training failed, predictions unavailable", zap.Error(err))
		}
		if rc != nil {
			srvState.load(rc)
		}

		if cfg.Monitoring.Enabled {
			checker := monitoring.NewChecker(
				monitoring.NewCollector(st),
				monitoring.NewAlerter(cfg.Monitoring),
				cfg.Monitoring,
			)
			go checker.Run(ctx)
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(srvState, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("run_id", srvState.runID),
			zap.Bool("model", srvState.predictor != nil),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().IntVar(&runYear, "year", 0, "training year (default from config)")
	serveCmd.Flags().StringVar(&runSourcesDir, "sources-dir", "", "directory holding the yearly source files")
	rootCmd.AddCommand(serveCmd)
}

// predictServer answers point queries against one trained model. The model
// is immutable, so handlers share it without locking.
type predictServer struct {
	store      store.Store
	predictor  scorer.Predictor
	vocab      *features.Vocabulary
	runID      string
	features   []string
	modelState model.ModelState
	metrics    *model.Metrics
}

func (s *predictServer) load(rc *pipeline.RunContext) {
	s.predictor = rc.Predictor()
	s.vocab = rc.Vocabulary
	s.runID = rc.RunID
	s.features = rc.Manifest.Features()
	s.modelState = rc.Result("").ModelState
	s.metrics = rc.Metrics
}

// predictRequest is the body of POST /v1/predict. Labels are optional
// alternatives to the weather_code and road_type_code features.
type predictRequest struct {
	Features map[string]float64 `json:"features"`
	Weather  string             `json:"weather,omitempty"`
	RoadType string             `json:"road_type,omitempty"`
}

func newRouter(s *predictServer, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"model":  s.predictor != nil,
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/predict", s.handlePredict)
		r.Get("/model", s.handleModel)
		r.Get("/runs/{runID}", s.handleRun)
		r.Get("/runs/{runID}/hotspots", s.handleHotspots)
	})
	return r
}

func (s *predictServer) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	pred, status, err := s.predict(r)
	metrics.ObservePrediction(err, time.Since(start))
	if err != nil {
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, predictResponse{
		Prediction: pred,
		RunID:      s.runID,
		Features:   s.features,
	})
}

func (s *predictServer) predict(r *http.Request) (*scorer.Prediction, int, error) {
	if s.predictor == nil {
		return nil, http.StatusServiceUnavailable, scorer.ErrModelUnavailable
	}

	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, http.StatusBadRequest, eris.Wrap(err, "invalid request body")
	}

	q := scorer.Query{}
	for name, v := range req.Features {
		q[name] = v
	}
	for kind, label := range map[string]string{"weather": req.Weather, "road-type": req.RoadType} {
		if label == "" {
			continue
		}
		feature, code, err := labelCode(s.vocab, kind, label)
		if err != nil {
			return nil, http.StatusBadRequest, err
		}
		q[feature] = float64(code)
	}

	pred, err := scorer.ScoreOne(s.predictor, q)
	if err != nil {
		var missing *scorer.MissingFeaturesError
		if errors.As(err, &missing) {
			return nil, http.StatusBadRequest, err
		}
		return nil, http.StatusInternalServerError, err
	}
	return pred, http.StatusOK, nil
}

func (s *predictServer) handleModel(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":      s.runID,
		"model_state": s.modelState,
		"features":    s.features,
		"metrics":     s.metrics,
	})
}

func (s *predictServer) handleRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *predictServer) handleHotspots(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if _, err := s.store.GetRun(r.Context(), runID); err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	hotspots, err := s.store.ListHotspots(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if hotspots == nil {
		hotspots = []model.Hotspot{}
	}
	writeJSON(w, http.StatusOK, hotspots)
}

func storeStatus(err error) int {
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
