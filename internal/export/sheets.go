// Package export appends committed transaction mutations to a Google Sheets
// backup ledger. The sheet is an audit trail, not a mirror: every event
// becomes one row, deletions included.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"smartcash/internal/events"
	"smartcash/internal/log"
)

type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

type SheetsAppender struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

// NewSheetsAppender creates the backup appender using service account
// credentials, inline JSON taking precedence over a file path.
func NewSheetsAppender(ctx context.Context, cfg Config, logger *log.Logger) (*SheetsAppender, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(cfg.SheetName) == "" {
		return nil, errors.New("missing sheet name")
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	credentials := []byte(strings.TrimSpace(cfg.CredentialsJSON))
	if len(credentials) == 0 {
		if strings.TrimSpace(cfg.CredentialsFile) == "" {
			return nil, errors.New("missing service account credentials")
		}
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentials = data
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentials),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &SheetsAppender{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
		logger:        logger.WithComponent(log.ComponentExport),
	}, nil
}

// AppendEvent writes one audit row for the event. Columns: date, kind,
// action, transaction id, title, amount in currency units, occurred-at.
func (a *SheetsAppender) AppendEvent(ctx context.Context, ev *events.TransactionEvent) error {
	if a.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:G", a.sheetName)
	vr := &gsheet.ValueRange{Values: [][]any{eventRow(ev)}}

	resp, err := a.svc.Spreadsheets.Values.Append(a.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to sheet %s: %w", a.sheetName, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	a.logger.InfoContext(ctx, "Appended transaction event to backup ledger",
		log.FieldOperation, log.OpAppend,
		log.FieldKind, ev.Kind,
		log.FieldTxID, ev.ID,
		log.FieldSheetRange, ref)
	return nil
}

// eventRow lays out one audit row: date, kind, action, transaction id,
// title, amount in currency units, occurred-at in UTC.
func eventRow(ev *events.TransactionEvent) []any {
	return []any{
		ev.Date,
		ev.Kind,
		ev.Action,
		ev.ID,
		ev.Title,
		float64(ev.AmountCents) / 100.0,
		ev.OccurredAt.UTC().Format("2006-01-02 15:04:05"),
	}
}
