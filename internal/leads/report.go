package leads

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"leadsync-engine/internal/export"
	"leadsync-engine/internal/stats"
	"leadsync-engine/internal/store"
)

func (s *Service) Stats(ctx context.Context) (stats.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.d.Store.ListLeads(ctx, store.ListOpts{})
	if err != nil {
		return stats.Stats{}, err
	}
	return stats.Aggregate(all), nil
}

type Export struct {
	FileName string `json:"fileName"`
	Content  string `json:"content"`
	Count    int    `json:"count"`
}

// ExportCSV serializes the leads matching o.
func (s *Service) ExportCSV(ctx context.Context, o store.ListOpts) (Export, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.d.Store.ListLeads(ctx, o)
	if err != nil {
		return Export{}, err
	}
	return Export{
		FileName: export.FileName(s.Now()),
		Content:  export.CSV(all),
		Count:    len(all),
	}, nil
}

// SaveExport writes the export into dir and returns the file path.
func (s *Service) SaveExport(ctx context.Context, dir string, o store.ListOpts) (string, Export, error) {
	ex, err := s.ExportCSV(ctx, o)
	if err != nil {
		return "", Export{}, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", Export{}, fmt.Errorf("export dir: %w", err)
	}
	path := filepath.Join(dir, ex.FileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(ex.Content), 0o644); err != nil {
		return "", Export{}, fmt.Errorf("write export: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", Export{}, fmt.Errorf("write export: %w", err)
	}
	return path, ex, nil
}
