// Package ingest loads the yearly accident sources into one normalized
// record set and describes which optional columns it found.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/roadrisk/internal/fetcher"
	"github.com/sells-group/roadrisk/internal/model"
)

// ErrNoSourceData is returned when no source could be loaded. It is the only
// condition that aborts a run.
var ErrNoSourceData = errors.New("ingest: no source data")

// Source column names after case folding.
const (
	colDate           = "data_inversa"
	colTime           = "horario"
	colState          = "uf"
	colRoad           = "br"
	colKM             = "km"
	colCause          = "causa_acidente"
	colAccidentType   = "tipo_acidente"
	colClassification = "classificacao_acidente"
	colWeather        = "condicao_metereologica"
	colRoadType       = "tipo_pista"
	colPersons        = "pessoas"
	colDeaths         = "mortos"
	colInjured        = "feridos"
	colVehicles       = "veiculos"
	colLatitude       = "latitude"
	colLongitude      = "longitude"
)

// Options configures Load.
type Options struct {
	Delimiter    rune
	Encoding     string
	Concurrency  int
	RegionColumn string // column copied into Record.Region; default "uf"
}

// Result is the merged, normalized load.
type Result struct {
	Records       []*model.Record
	Capabilities  model.Capabilities
	Warnings      []model.Warning
	SourcesLoaded int
}

type sourceLoad struct {
	records []*model.Record
	columns map[string]bool
	warning *model.Warning
}

// Load reads every source concurrently and merges the rows in source order.
// Missing or malformed sources become warnings; if none loads, Load returns
// ErrNoSourceData.
func Load(ctx context.Context, sources []Source, opts Options) (*Result, error) {
	if opts.RegionColumn == "" {
		opts.RegionColumn = colState
	}
	opts.RegionColumn = normalizeColumn(opts.RegionColumn)
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}

	log := zap.L().With(zap.String("component", "ingest"))
	start := time.Now()

	loads := make([]sourceLoad, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, src := range sources {
		g.Go(func() error {
			load, err := loadSource(gctx, src, opts)
			if err != nil {
				return err
			}
			loads[i] = load
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{}
	columns := make(map[string]bool)
	for i, load := range loads {
		if load.warning != nil {
			log.Warn("source skipped",
				zap.String("source", sources[i].Name),
				zap.String("condition", string(load.warning.Condition)),
				zap.String("reason", load.warning.Message),
			)
			res.Warnings = append(res.Warnings, *load.warning)
			continue
		}
		res.SourcesLoaded++
		for col := range load.columns {
			columns[col] = true
		}
		for _, rec := range load.records {
			rec.Row = len(res.Records)
			res.Records = append(res.Records, rec)
		}
		log.Info("source loaded",
			zap.String("source", sources[i].Name),
			zap.Int("rows", len(load.records)),
		)
	}

	if res.SourcesLoaded == 0 {
		return res, eris.Wrapf(ErrNoSourceData, "ingest: %d sources, none loaded", len(sources))
	}

	res.Capabilities = capabilitiesFor(columns, opts.RegionColumn)
	if !res.Capabilities.Geo {
		res.Warnings = append(res.Warnings, model.Warning{
			Stage:     "ingest",
			Condition: model.ConditionNoGeo,
			Message:   "latitude/longitude columns absent from every source; geospatial features disabled",
		})
	}

	log.Info("ingest complete",
		zap.Int("sources", res.SourcesLoaded),
		zap.Int("rows", len(res.Records)),
		zap.Bool("geo", res.Capabilities.Geo),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// loadSource returns an error only for cancellation; per-source failures are
// reported through sourceLoad.warning.
func loadSource(ctx context.Context, src Source, opts Options) (sourceLoad, error) {
	rc, err := src.open()
	if err != nil {
		cond := model.ConditionParseFailure
		if errors.Is(err, errSourceMissing) {
			cond = model.ConditionSourceUnavailable
		}
		return sourceLoad{warning: &model.Warning{
			Stage:     "ingest",
			Condition: cond,
			Subject:   src.Name,
			Message:   err.Error(),
		}}, nil
	}
	defer rc.Close() //nolint:errcheck

	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, rc, fetcher.CSVOptions{
		Delimiter: opts.Delimiter,
		Encoding:  opts.Encoding,
		HasHeader: true,
		HeaderCh:  headerCh,
	})

	var (
		idx     map[string]int
		records []*model.Record
	)
	for fields := range rowCh {
		if idx == nil {
			idx = indexHeader(<-headerCh)
		}
		records = append(records, normalizeRow(src.Name, idx, fields, opts.RegionColumn))
	}
	for err := range errCh {
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return sourceLoad{}, eris.Wrap(ctx.Err(), "ingest: load cancelled")
		}
		return sourceLoad{warning: &model.Warning{
			Stage:     "ingest",
			Condition: model.ConditionParseFailure,
			Subject:   src.Name,
			Message:   err.Error(),
		}}, nil
	}

	if idx == nil {
		select {
		case header := <-headerCh:
			idx = indexHeader(header)
		default:
			return sourceLoad{warning: &model.Warning{
				Stage:     "ingest",
				Condition: model.ConditionParseFailure,
				Subject:   src.Name,
				Message:   "empty file",
			}}, nil
		}
	}

	columns := make(map[string]bool, len(idx))
	for col := range idx {
		columns[col] = true
	}
	return sourceLoad{records: records, columns: columns}, nil
}

func indexHeader(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		col := normalizeColumn(name)
		if _, dup := idx[col]; !dup {
			idx[col] = i
		}
	}
	return idx
}

type row struct {
	idx    map[string]int
	fields []string
}

func (r row) get(col string) string {
	i, ok := r.idx[col]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return r.fields[i]
}

// normalizeRow builds a record from one raw row. Columns missing from the
// source leave their fields nil or zero.
func normalizeRow(source string, idx map[string]int, fields []string, regionCol string) *model.Record {
	r := row{idx: idx, fields: fields}
	return &model.Record{
		Source:         source,
		Date:           parseDate(r.get(colDate)),
		Hour:           parseHour(r.get(colTime)),
		Latitude:       parseCoordinate(r.get(colLatitude)),
		Longitude:      parseCoordinate(r.get(colLongitude)),
		RoadID:         parseText(r.get(colRoad)),
		StateCode:      parseText(r.get(colState)),
		KM:             parseNumber(r.get(colKM)),
		Region:         parseText(r.get(regionCol)),
		Cause:          parseText(r.get(colCause)),
		Classification: parseCategory(r.get(colClassification)),
		Weather:        parseCategory(r.get(colWeather)),
		RoadType:       parseCategory(r.get(colRoadType)),
		AccidentType:   parseText(r.get(colAccidentType)),
		Persons:        parseCount(r.get(colPersons)),
		Deaths:         parseCount(r.get(colDeaths)),
		Injured:        parseCount(r.get(colInjured)),
		Vehicles:       parseCount(r.get(colVehicles)),
	}
}

func capabilitiesFor(columns map[string]bool, regionCol string) model.Capabilities {
	return model.Capabilities{
		Date:           columns[colDate],
		Time:           columns[colTime],
		KM:             columns[colKM],
		Geo:            columns[colLatitude] && columns[colLongitude],
		Weather:        columns[colWeather],
		RoadType:       columns[colRoadType],
		Classification: columns[colClassification],
		Region:         columns[regionCol],
	}
}

// Describe renders a one-line load summary for logs and CLI output.
func (r *Result) Describe() string {
	return fmt.Sprintf("%d rows from %d sources (%d warnings)", len(r.Records), r.SourcesLoaded, len(r.Warnings))
}
