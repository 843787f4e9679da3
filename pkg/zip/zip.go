package zip

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"time"
)

// Entry is one file of an archive.
type Entry struct {
	Filename string
	Data     []byte
}

// Archive packs entries into an in-memory zip. Empty entries are skipped and
// duplicate filenames are rejected.
func Archive(entries []Entry, modified time.Time) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if len(e.Data) == 0 {
			continue
		}
		if e.Filename == "" {
			return nil, errors.New("zip: entry has no filename")
		}
		if _, dup := seen[e.Filename]; dup {
			return nil, fmt.Errorf("zip: duplicate entry %q", e.Filename)
		}
		seen[e.Filename] = struct{}{}

		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.Filename,
			Method:   zip.Store,
			Modified: modified,
		})
		if err != nil {
			return nil, fmt.Errorf("zip: create %s: %w", e.Filename, err)
		}
		if _, err := w.Write(e.Data); err != nil {
			return nil, fmt.Errorf("zip: write %s: %w", e.Filename, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: close: %w", err)
	}
	return buf.Bytes(), nil
}
