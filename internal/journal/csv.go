package journal

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/gocarina/gocsv"
)

// ExportCSV writes trades matching the filter to w as CSV, one row per
// closed trade in append order.
func (j *Journal) ExportCSV(ctx context.Context, filter TradeFilter, w io.Writer) error {
	trades, err := j.Trades(ctx, filter)
	if err != nil {
		return err
	}
	if err := gocsv.Marshal(&trades, w); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	return nil
}

// ExportCSVFile writes trades matching the filter to a new file at path.
func (j *Journal) ExportCSVFile(ctx context.Context, filter TradeFilter, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating csv file: %w", err)
	}
	defer f.Close()
	return j.ExportCSV(ctx, filter, f)
}
