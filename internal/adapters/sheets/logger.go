package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/samirrijal/geopoly/internal/core/domain"
	"github.com/samirrijal/geopoly/internal/pkg/config"
)

// ErrDisabled is returned by New when the logger is switched off or not
// configured.
var ErrDisabled = errors.New("sheets logger disabled")

const timestampLayout = "2006-01-02 15:04:05"

var headerRow = []interface{}{"Timestamp", "Latitude", "Longitude", "Radius (m)", "Area (sq m)"}

// Logger appends served requests to a Google spreadsheet.
type Logger struct {
	svc           *sheets.Service
	spreadsheetID string
	rng           string
}

// New builds a Logger from config. It returns ErrDisabled when logging is
// turned off or the credentials file is missing. The spreadsheet id may be
// empty so that CreateSpreadsheet can be used to make one.
func New(ctx context.Context, cfg config.SheetsConfig) (*Logger, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if _, err := os.Stat(cfg.CredentialsFile); err != nil {
		return nil, fmt.Errorf("%w: credentials file %q: %v", ErrDisabled, cfg.CredentialsFile, err)
	}

	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.Range), nil
}

// NewWithService wraps an existing service. An empty range defaults to A:E.
func NewWithService(svc *sheets.Service, spreadsheetID, rng string) *Logger {
	if rng == "" {
		rng = "A:E"
	}
	return &Logger{svc: svc, spreadsheetID: spreadsheetID, rng: rng}
}

// Row formats a request log the way it is written to the sheet.
func Row(rec domain.RequestLog) []interface{} {
	return []interface{}{
		rec.Timestamp.Format(timestampLayout),
		fmt.Sprintf("%.6f", rec.Latitude),
		fmt.Sprintf("%.6f", rec.Longitude),
		fmt.Sprintf("%.2f", rec.RadiusMeters),
		fmt.Sprintf("%.2f", rec.AreaSqm),
	}
}

// LogRequest appends one row.
func (l *Logger) LogRequest(ctx context.Context, rec domain.RequestLog) error {
	if l.spreadsheetID == "" {
		return fmt.Errorf("%w: no spreadsheet id", ErrDisabled)
	}
	resp, err := l.svc.Spreadsheets.Values.Append(l.spreadsheetID, l.rng, &sheets.ValueRange{
		Values: [][]interface{}{Row(rec)},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append row: %w", err)
	}

	var cells int64
	if resp.Updates != nil {
		cells = resp.Updates.UpdatedCells
	}
	slog.Debug("request logged to spreadsheet", "cells", cells)
	return nil
}

// CreateSpreadsheet creates a spreadsheet with the header row, points the
// logger at it and returns its id.
func (l *Logger) CreateSpreadsheet(ctx context.Context, title string) (string, error) {
	ss, err := l.svc.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: title},
		Sheets: []*sheets.Sheet{{
			Properties: &sheets.SheetProperties{
				Title: "API Logs",
				GridProperties: &sheets.GridProperties{
					RowCount:    1000,
					ColumnCount: int64(len(headerRow)),
				},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create spreadsheet: %w", err)
	}

	_, err = l.svc.Spreadsheets.Values.Update(ss.SpreadsheetId, "A1:E1", &sheets.ValueRange{
		Values: [][]interface{}{headerRow},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}

	l.spreadsheetID = ss.SpreadsheetId
	return ss.SpreadsheetId, nil
}

// SpreadsheetURL returns the browser URL of the target spreadsheet.
func (l *Logger) SpreadsheetURL() string {
	if l.spreadsheetID == "" {
		return ""
	}
	return "https://docs.google.com/spreadsheets/d/" + l.spreadsheetID
}
