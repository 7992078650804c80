package fetcher

import (
	"archive/zip"
	"io"
	"path"
	"strings"

	"github.com/rotisserie/eris"
)

type zipEntryReader struct {
	io.ReadCloser
	archive *zip.ReadCloser
}

func (z *zipEntryReader) Close() error {
	err := z.ReadCloser.Close()
	if cerr := z.archive.Close(); err == nil {
		err = cerr
	}
	return err
}

// OpenZIPEntry opens the single file in zipPath whose extension matches ext
// (e.g. ".csv"; empty matches any file) without extracting it to disk.
// Directories and macOS metadata entries are ignored. Closing the returned
// reader closes the archive.
func OpenZIPEntry(zipPath, ext string) (io.ReadCloser, string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, "", eris.Wrap(err, "zip: open archive")
	}

	var matches []*zip.File
	for _, f := range r.File {
		if f.FileInfo().IsDir() || strings.HasPrefix(f.Name, "__MACOSX/") {
			continue
		}
		if ext != "" && !strings.EqualFold(path.Ext(f.Name), ext) {
			continue
		}
		matches = append(matches, f)
	}

	if len(matches) != 1 {
		_ = r.Close()
		return nil, "", eris.Errorf("zip: expected exactly 1 %s entry in %s, got %d", extLabel(ext), zipPath, len(matches))
	}

	rc, err := matches[0].Open()
	if err != nil {
		_ = r.Close()
		return nil, "", eris.Wrap(err, "zip: open entry")
	}
	return &zipEntryReader{ReadCloser: rc, archive: r}, matches[0].Name, nil
}

func extLabel(ext string) string {
	if ext == "" {
		return "file"
	}
	return ext
}
