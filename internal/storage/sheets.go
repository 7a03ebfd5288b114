package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"bookingbot/internal/models"
)

// Column layout of the reservations sheet. The id goes first so deletes
// survive row renumbering after earlier rows are removed.
const sheetColumns = 8

// SheetsStore keeps reservations in a Google spreadsheet, one row per
// reservation. The spreadsheet offers no uniqueness constraint, so Append
// never returns ErrConflict; the booking engine's pre-commit re-check is the
// only double-booking guard on this backend.
type SheetsStore struct {
	srv           *sheets.Service
	spreadsheetID string
	sheetTitle    string
	sheetID       int64
}

// NewSheetsStore builds a store over the named sheet of the spreadsheet,
// authenticating with the given service-account credentials JSON.
func NewSheetsStore(ctx context.Context, credentialsJSON []byte, spreadsheetID, sheetTitle string) (*SheetsStore, error) {
	srv, err := sheets.NewService(ctx,
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}

	meta, err := srv.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	if len(meta.Sheets) == 0 {
		return nil, fmt.Errorf("spreadsheet %s has no sheets", spreadsheetID)
	}

	s := &SheetsStore{srv: srv, spreadsheetID: spreadsheetID}
	for _, sh := range meta.Sheets {
		if sheetTitle == "" || sh.Properties.Title == sheetTitle {
			s.sheetTitle = sh.Properties.Title
			s.sheetID = sh.Properties.SheetId
			break
		}
	}
	if s.sheetTitle == "" {
		return nil, fmt.Errorf("sheet %q not found in spreadsheet", sheetTitle)
	}
	return s, nil
}

// Append writes the reservation as a new row and returns its assigned id.
func (s *SheetsStore) Append(ctx context.Context, r models.Reservation) (string, error) {
	id := uuid.NewString()
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	row := []interface{}{
		id,
		r.Date,
		r.Time,
		r.Service,
		r.ClientName,
		r.ContactDigits,
		strconv.FormatInt(r.RequesterID, 10),
		createdAt.Format(time.RFC3339),
	}
	_, err := s.srv.Spreadsheets.Values.
		Append(s.spreadsheetID, s.sheetTitle, &sheets.ValueRange{Values: [][]interface{}{row}}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to append row: %w", err)
	}
	return id, nil
}

// ListAll reads every row of the sheet in row order.
func (s *SheetsStore) ListAll(ctx context.Context) ([]models.Reservation, error) {
	resp, err := s.srv.Spreadsheets.Values.
		Get(s.spreadsheetID, s.sheetTitle).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}

	var out []models.Reservation
	for i, row := range resp.Values {
		r, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("malformed row %d: %w", i+1, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// DeleteByID removes the row whose first cell holds the id. Returns
// ErrNotFound if no such row exists (e.g. already cancelled).
func (s *SheetsStore) DeleteByID(ctx context.Context, id string) error {
	resp, err := s.srv.Spreadsheets.Values.
		Get(s.spreadsheetID, s.sheetTitle).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to read sheet: %w", err)
	}

	rowIndex := int64(-1)
	for i, row := range resp.Values {
		if len(row) > 0 && cellString(row[0]) == id {
			rowIndex = int64(i)
			break
		}
	}
	if rowIndex < 0 {
		return ErrNotFound
	}

	_, err = s.srv.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    s.sheetID,
					Dimension:  "ROWS",
					StartIndex: rowIndex,
					EndIndex:   rowIndex + 1,
				},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to delete row: %w", err)
	}
	return nil
}

func parseRow(row []interface{}) (models.Reservation, error) {
	if len(row) < sheetColumns {
		return models.Reservation{}, fmt.Errorf("expected %d cells, got %d", sheetColumns, len(row))
	}
	requesterID, err := strconv.ParseInt(cellString(row[6]), 10, 64)
	if err != nil {
		return models.Reservation{}, fmt.Errorf("bad requester id: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339, cellString(row[7]))
	if err != nil {
		return models.Reservation{}, fmt.Errorf("bad created-at timestamp: %w", err)
	}
	r := models.Reservation{
		ID:          cellString(row[0]),
		Date:        cellString(row[1]),
		Time:        cellString(row[2]),
		Service:     cellString(row[3]),
		ClientName:  cellString(row[4]),
		RequesterID: requesterID,
		CreatedAt:   createdAt,
	}
	// Sheets escapes leading + with an apostrophe to keep the cell textual.
	r.ContactDigits = strings.TrimPrefix(cellString(row[5]), "'")
	if r.ID == "" || r.Date == "" || r.Time == "" {
		return models.Reservation{}, fmt.Errorf("missing required cells")
	}
	return r, nil
}

func cellString(v interface{}) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
