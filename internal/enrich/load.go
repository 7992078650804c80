package enrich

import (
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/roadrisk/internal/fetcher"
	"github.com/sells-group/roadrisk/internal/model"
)

// ErrAggregateUnavailable means the configured aggregate table could not be
// found. Enrichment is skipped.
var ErrAggregateUnavailable = errors.New("enrich: aggregate table unavailable")

// LoadAggregates reads region aggregates from a local .csv, .json or .xlsx
// file or from an http(s) URL. URLs ending in .csv or .xlsx are read in that
// format; any other URL is expected to return a JSON array.
func LoadAggregates(ctx context.Context, src string, f fetcher.Fetcher) ([]model.RegionAggregate, error) {
	if u, err := url.Parse(src); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return loadRemote(ctx, src, u, f)
	}

	switch strings.ToLower(filepath.Ext(src)) {
	case ".csv", ".json", ".xlsx":
	default:
		return nil, eris.Errorf("enrich: unsupported aggregate format %q", filepath.Ext(src))
	}
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return nil, eris.Wrapf(ErrAggregateUnavailable, "enrich: %s", src)
		}
		return nil, eris.Wrapf(err, "enrich: stat %s", src)
	}

	if strings.EqualFold(filepath.Ext(src), ".xlsx") {
		table, err := fetcher.ReadXLSXTable(src, fetcher.XLSXOptions{TrimSpace: true})
		if err != nil {
			return nil, err
		}
		return decodeTable(table)
	}

	file, err := os.Open(src)
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: open %s", src)
	}
	defer file.Close() //nolint:errcheck

	if strings.EqualFold(filepath.Ext(src), ".json") {
		return readJSON(ctx, file)
	}
	return readCSV(ctx, file)
}

func loadRemote(ctx context.Context, src string, u *url.URL, f fetcher.Fetcher) ([]model.RegionAggregate, error) {
	if f == nil {
		return nil, eris.New("enrich: no fetcher for remote aggregate table")
	}
	if strings.EqualFold(path.Ext(u.Path), ".xlsx") {
		return loadRemoteXLSX(ctx, src, f)
	}

	body, err := f.Download(ctx, src)
	if err != nil {
		return nil, eris.Wrapf(ErrAggregateUnavailable, "enrich: download %s: %v", src, err)
	}
	defer body.Close() //nolint:errcheck

	if strings.EqualFold(path.Ext(u.Path), ".csv") {
		return readCSV(ctx, body)
	}
	return readJSON(ctx, body)
}

// loadRemoteXLSX downloads the workbook into a scratch directory, since the
// xlsx reader needs a seekable file.
func loadRemoteXLSX(ctx context.Context, src string, f fetcher.Fetcher) ([]model.RegionAggregate, error) {
	dir, err := os.MkdirTemp("", "roadrisk-aggregates-*")
	if err != nil {
		return nil, eris.Wrap(err, "enrich: create scratch dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	dst := filepath.Join(dir, "aggregates.xlsx")
	if _, err := f.DownloadToFile(ctx, src, dst); err != nil {
		return nil, eris.Wrapf(ErrAggregateUnavailable, "enrich: download %s: %v", src, err)
	}
	table, err := fetcher.ReadXLSXTable(dst, fetcher.XLSXOptions{TrimSpace: true})
	if err != nil {
		return nil, err
	}
	return decodeTable(table)
}

func readJSON(ctx context.Context, r io.Reader) ([]model.RegionAggregate, error) {
	aggs, err := fetcher.ReadJSONArray[model.RegionAggregate](ctx, r)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: decode json aggregates")
	}
	return aggs, nil
}

func readCSV(ctx context.Context, r io.Reader) ([]model.RegionAggregate, error) {
	table, err := fetcher.ReadTable(ctx, r, fetcher.CSVOptions{TrimSpace: true})
	if err != nil {
		return nil, eris.Wrap(err, "enrich: read csv aggregates")
	}
	return decodeTable(table)
}

// decodeTable maps rows onto RegionAggregate by header name. Header names
// are case-folded; a table without region_name is rejected.
func decodeTable(table *fetcher.Table) ([]model.RegionAggregate, error) {
	if table == nil || table.Header == nil {
		return nil, nil
	}
	header := make([]string, len(table.Header))
	for i, h := range table.Header {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	dec, err := csvutil.NewDecoder(table.RowReader(), header...)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: aggregate header")
	}
	if !hasColumn(header, "region_name") {
		return nil, eris.New("enrich: aggregate table has no region_name column")
	}

	var aggs []model.RegionAggregate
	for {
		var agg model.RegionAggregate
		err := dec.Decode(&agg)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "enrich: decode aggregate row %d", len(aggs)+1)
		}
		aggs = append(aggs, agg)
	}
	return aggs, nil
}

func hasColumn(header []string, name string) bool {
	for _, h := range header {
		if h == name {
			return true
		}
	}
	return false
}
