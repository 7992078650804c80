// Package export writes the scored-record artifact and the hotspot map
// layer consumed by the external viewer.
package export

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/roadrisk/internal/model"
)

// DefaultPath is where a run writes its scored records unless configured
// otherwise.
const DefaultPath = "reports/predictions.tsv"

// ScoredRow is one line of the scored artifact. The first six columns are
// the consumer contract; state, road_id and km are extensions.
type ScoredRow struct {
	Latitude  NullFloat `csv:"latitude"`
	Longitude NullFloat `csv:"longitude"`
	Weekday   NullInt   `csv:"weekday"`
	Hour      NullInt   `csv:"hour"`
	Cause     string    `csv:"cause"`
	RiskScore float64   `csv:"risk_score"`
	State     string    `csv:"state"`
	RoadID    string    `csv:"road_id"`
	KM        float64   `csv:"km"`
}

// NullFloat is a float column that is empty when absent.
type NullFloat struct {
	Value float64
	Valid bool
}

// MarshalText implements encoding.TextMarshaler.
func (n NullFloat) MarshalText() ([]byte, error) {
	if !n.Valid {
		return []byte{}, nil
	}
	return strconv.AppendFloat(nil, n.Value, 'f', -1, 64), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *NullFloat) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*n = NullFloat{}
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*n = NullFloat{Value: v, Valid: true}
	return nil
}

// Ptr returns nil when the value is absent.
func (n NullFloat) Ptr() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// NullInt is an integer column that is empty when absent.
type NullInt struct {
	Value int
	Valid bool
}

// MarshalText implements encoding.TextMarshaler.
func (n NullInt) MarshalText() ([]byte, error) {
	if !n.Valid {
		return []byte{}, nil
	}
	return strconv.AppendInt(nil, int64(n.Value), 10), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *NullInt) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*n = NullInt{}
		return nil
	}
	v, err := strconv.Atoi(string(b))
	if err != nil {
		return err
	}
	*n = NullInt{Value: v, Valid: true}
	return nil
}

// Ptr returns nil when the value is absent.
func (n NullInt) Ptr() *int {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

func nullFloat(p *float64) NullFloat {
	if p == nil {
		return NullFloat{}
	}
	return NullFloat{Value: *p, Valid: true}
}

func nullInt(p *int) NullInt {
	if p == nil {
		return NullInt{}
	}
	return NullInt{Value: *p, Valid: true}
}

// RowFromRecord projects a scored record onto the artifact columns.
func RowFromRecord(r *model.Record) ScoredRow {
	return ScoredRow{
		Latitude:  nullFloat(r.Latitude),
		Longitude: nullFloat(r.Longitude),
		Weekday:   nullInt(r.Weekday),
		Hour:      nullInt(r.Hour),
		Cause:     r.Cause,
		RiskScore: r.RiskScore,
		State:     r.StateCode,
		RoadID:    r.RoadID,
		KM:        r.KM,
	}
}

// WriteScored writes one row per record, in record order, to path. A zero
// delimiter means tab.
func WriteScored(path string, delimiter rune, records []*model.Record) error {
	if delimiter == 0 {
		delimiter = '\t'
	}
	err := writeAtomic(path, func(w io.Writer) error {
		return encodeRows(w, delimiter, records)
	})
	if err != nil {
		return err
	}

	zap.L().Info("export: wrote scored records",
		zap.String("component", "export"),
		zap.String("path", path),
		zap.Int("rows", len(records)),
	)
	return nil
}

// writeAtomic writes to a temporary sibling of path and renames it into
// place, so readers never observe a partial artifact.
func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "export: create dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrapf(err, "export: create temp file in %s", dir)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := write(tmp); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return eris.Wrap(err, "export: sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "export: close temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return eris.Wrapf(err, "export: rename into %s", path)
	}
	committed = true
	return nil
}

func encodeRows(w io.Writer, delimiter rune, records []*model.Record) error {
	cw := csv.NewWriter(w)
	cw.Comma = delimiter

	header, err := csvutil.Header(ScoredRow{}, "csv")
	if err != nil {
		return eris.Wrap(err, "export: build header")
	}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "export: write header")
	}

	enc := csvutil.NewEncoder(cw)
	enc.AutoHeader = false
	for _, r := range records {
		if err := enc.Encode(RowFromRecord(r)); err != nil {
			return eris.Wrapf(err, "export: encode row %d", r.Row)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "export: flush")
	}
	return nil
}

// ReadScored loads an artifact written by WriteScored.
func ReadScored(path string, delimiter rune) ([]ScoredRow, error) {
	if delimiter == 0 {
		delimiter = '\t'
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "export: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	cr := csv.NewReader(f)
	cr.Comma = delimiter
	dec, err := csvutil.NewDecoder(cr)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "export: read header of %s", path)
	}

	var rows []ScoredRow
	for {
		var row ScoredRow
		err := dec.Decode(&row)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "export: decode row %d of %s", len(rows)+1, path)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
