package index

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/poiesic/mizan/core"
)

// FormatVersion is written into every saved index. Bump it when the file
// layout or the composite document format changes.
const FormatVersion = 2

// Stamp identifies what produced a persisted index.
type Stamp struct {
	Version int    `json:"version"`
	Model   string `json:"model"`
}

// CurrentStamp returns the stamp for indexes built with model by this version.
func CurrentStamp(model string) Stamp {
	return Stamp{Version: FormatVersion, Model: model}
}

type fileFormat struct {
	Version   int                 `json:"version"`
	Model     string              `json:"model"`
	Dimension int                 `json:"dimension"`
	Count     int                 `json:"count"`
	Records   []core.VectorRecord `json:"records"`
}

// Save writes the index to path atomically. The file is first written to a
// temporary sibling and renamed into place, so readers never observe a
// partial index.
func (x *Index) Save(path string, stamp Stamp) error {
	x.mu.Lock()
	x.stamp = stamp
	x.mu.Unlock()

	records := x.Records()
	file := fileFormat{
		Version:   stamp.Version,
		Model:     stamp.Model,
		Dimension: x.Dimension(),
		Count:     len(records),
		Records:   records,
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	w := bufio.NewWriter(tmp)
	if err = json.NewEncoder(w).Encode(&file); err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err = w.Flush(); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync index: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename index: %w", err)
	}
	return nil
}

// Load reads an index written by Save.
//
// The file must carry expected's version and, unless expected.Model is empty,
// its model; otherwise Load returns ErrVersionMismatch. Files written before
// the version stamp existed are bare JSON arrays and are refused the same way.
func Load(path string, expected Stamp) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		return nil, fmt.Errorf("%w: unversioned index file", ErrVersionMismatch)
	}

	var file fileFormat
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptIndex, err)
	}
	if file.Version != expected.Version {
		return nil, fmt.Errorf("%w: file version %d, want %d", ErrVersionMismatch, file.Version, expected.Version)
	}
	if expected.Model != "" && file.Model != expected.Model {
		return nil, fmt.Errorf("%w: file model %q, want %q", ErrVersionMismatch, file.Model, expected.Model)
	}
	if file.Count != len(file.Records) {
		return nil, fmt.Errorf("%w: header count %d, found %d records", ErrCorruptIndex, file.Count, len(file.Records))
	}

	x := New(file.Dimension)
	x.stamp = Stamp{Version: file.Version, Model: file.Model}
	x.vectors = make([]float32, 0, file.Dimension*len(file.Records))
	for i, rec := range file.Records {
		if err := x.Add(rec); err != nil {
			if errors.Is(err, ErrDimensionMismatch) {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			return nil, fmt.Errorf("%w: record %d: %w", ErrCorruptIndex, i, err)
		}
	}
	return x, nil
}
