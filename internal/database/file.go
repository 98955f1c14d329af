package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"fundwatch/internal/models"

	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned by Load when nothing has been stored yet.
var ErrNotFound = errors.New("no stored holdings")

// FileSink keeps the holdings as a JSON array in a single file.
type FileSink struct {
	path string
	log  *logrus.Logger
}

func NewFileSink(path string, log *logrus.Logger) *FileSink {
	return &FileSink{path: path, log: log}
}

func (f *FileSink) Path() string { return f.path }

func (f *FileSink) Load(_ context.Context) ([]models.Holding, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", f.path, ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	holdings, err := decodeHoldings(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return holdings, nil
}

// Save replaces the file through a temp file and rename so readers never
// see a partial write.
func (f *FileSink) Save(_ context.Context, holdings []models.Holding) error {
	data, err := encodeHoldings(holdings)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("rename to %s: %w", f.path, err)
	}
	f.log.Debugf("saved %d holdings to %s", len(holdings), f.path)
	return nil
}

func encodeHoldings(holdings []models.Holding) ([]byte, error) {
	if holdings == nil {
		holdings = []models.Holding{}
	}
	data, err := json.MarshalIndent(holdings, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode holdings: %w", err)
	}
	return data, nil
}

func decodeHoldings(data []byte) ([]models.Holding, error) {
	var holdings []models.Holding
	if err := json.Unmarshal(data, &holdings); err != nil {
		return nil, err
	}
	if holdings == nil {
		holdings = []models.Holding{}
	}
	return holdings, nil
}
