package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"

	"cloud.google.com/go/civil"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/domain"
	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/logger"
)

const ratesObject = "fx_rates.csv"

// DailyFile is one discovered transaction file.
type DailyFile struct {
	Date civil.Date
	Data []byte
}

// Loader finds and parses the FX table and the daily transaction files.
type Loader struct {
	src    Source
	prefix string
}

// NewLoader returns a Loader reading daily files under prefix.
func NewLoader(src Source, prefix string) *Loader {
	return &Loader{src: src, prefix: prefix}
}

// DailyObject returns the object name of the file for d.
func (l *Loader) DailyObject(d civil.Date) string {
	return path.Join(l.prefix, d.String()+".csv")
}

// LoadRates fetches and parses fx_rates.csv.
func (l *Loader) LoadRates(ctx context.Context) ([]domain.FxRate, error) {
	data, err := l.src.Fetch(ctx, ratesObject)
	if err != nil {
		return nil, fmt.Errorf("LoadRates: %w", err)
	}
	rates, err := ParseRates(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("LoadRates: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Info().Int("rows", len(rates)).Msg("loaded FX rates")
	return rates, nil
}

// Discover fetches daily files from start through end and stops at the
// first missing day. It fails with ErrEmptyInput when the first day is
// already missing.
func (l *Loader) Discover(ctx context.Context, start, end civil.Date) ([]DailyFile, error) {
	log := logger.FromContext(ctx)
	var files []DailyFile
	for d := start; !d.After(end); d = d.AddDays(1) {
		data, err := l.src.Fetch(ctx, l.DailyObject(d))
		if errors.Is(err, ErrObjectNotFound) {
			log.Info().Str("date", d.String()).Msg("no more daily files")
			break
		}
		if err != nil {
			return nil, fmt.Errorf("Discover: %s: %w", d, err)
		}
		files = append(files, DailyFile{Date: d, Data: data})
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("Discover: %w: no transaction files from %s", domain.ErrEmptyInput, start)
	}
	log.Info().Int("files", len(files)).Msg("discovered daily files")
	return files, nil
}

// LoadTransactions discovers and parses the daily files, tagging each row
// with its file date.
func (l *Loader) LoadTransactions(ctx context.Context, start, end civil.Date) ([]domain.RawTransaction, error) {
	files, err := l.Discover(ctx, start, end)
	if err != nil {
		return nil, err
	}
	var all []domain.RawTransaction
	for _, f := range files {
		rows, err := ParseTransactions(bytes.NewReader(f.Data), f.Date)
		if err != nil {
			return nil, fmt.Errorf("LoadTransactions: %s: %w", l.DailyObject(f.Date), err)
		}
		all = append(all, rows...)
	}
	log := logger.FromContext(ctx)
	log.Info().Int("rows", len(all)).Int("files", len(files)).Msg("loaded transactions")
	return all, nil
}
