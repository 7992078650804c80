package ingest

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/roadrisk/internal/fetcher"
)

// Source is one yearly accident file.
type Source struct {
	Name string
	Path string
}

// SourcesForYear expands filename templates containing "{year}" into sources
// under dir, keeping the template order.
func SourcesForYear(dir string, templates []string, year int) []Source {
	y := strconv.Itoa(year)
	sources := make([]Source, 0, len(templates))
	for _, tmpl := range templates {
		name := strings.ReplaceAll(tmpl, "{year}", y)
		sources = append(sources, Source{
			Name: name,
			Path: filepath.Join(dir, name),
		})
	}
	return sources
}

// errSourceMissing marks a source whose file does not exist.
var errSourceMissing = eris.New("ingest: source file not found")

// open returns a reader over the source's CSV bytes. A .zip path, or a
// sibling .zip when the .csv itself is absent, is read through its single
// CSV entry.
func (s Source) open() (io.ReadCloser, error) {
	path := s.Path
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		f, err := os.Open(path)
		if err == nil {
			return f, nil
		}
		if !os.IsNotExist(err) {
			return nil, eris.Wrapf(err, "ingest: open %s", path)
		}
		path = strings.TrimSuffix(path, filepath.Ext(path)) + ".zip"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errSourceMissing
	}
	rc, _, err := fetcher.OpenZIPEntry(path, ".csv")
	if err != nil {
		return nil, err
	}
	return rc, nil
}
