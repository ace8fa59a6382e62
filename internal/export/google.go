package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"ricevute/internal/core"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// GoogleClient writes the taxonomy mirror to a Google Sheets tab.
type GoogleClient struct {
	svc           *gsheet.Service
	spreadsheetID string
	taxonomySheet string
}

var _ TaxonomyMirror = (*GoogleClient)(nil)

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Auth: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
// Optional: GOOGLE_TAXONOMY_SHEET_NAME (default "Tassonomia").
func NewFromEnv(ctx context.Context) (*GoogleClient, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	sheetName := strings.TrimSpace(os.Getenv("GOOGLE_TAXONOMY_SHEET_NAME"))
	if sheetName == "" {
		sheetName = "Tassonomia"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &GoogleClient{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		taxonomySheet: sheetName,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))

	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return service, nil
}

// WriteTaxonomy clears the mirror tab and rewrites it top to bottom: each
// group in display order followed by its items, then the ungrouped items.
func (c *GoogleClient) WriteTaxonomy(ctx context.Context, groups []core.Group, items []core.Item) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rows := MirrorRows(groups, items)

	clearRange := fmt.Sprintf("%s!A1:C", c.taxonomySheet)
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear taxonomy sheet %s: %w", c.taxonomySheet, err)
	}

	writeRange := fmt.Sprintf("%s!A1:C%d", c.taxonomySheet, len(rows))
	vr := &gsheet.ValueRange{Values: rows}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, writeRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write taxonomy sheet %s: %w", c.taxonomySheet, err)
	}

	slog.InfoContext(ctx, "Taxonomy mirror rewritten",
		"sheet", c.taxonomySheet,
		"rows", len(rows),
		"groups", len(groups),
		"items", len(items))
	return nil
}

// MirrorRows lays the taxonomy out as spreadsheet rows: a header, one row
// per group with its items indented below it, and an Ungrouped section last.
func MirrorRows(groups []core.Group, items []core.Item) [][]any {
	sorted := make([]core.Group, len(groups))
	copy(sorted, groups)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].DisplayOrder != sorted[j].DisplayOrder {
			return sorted[i].DisplayOrder < sorted[j].DisplayOrder
		}
		return sorted[i].Name < sorted[j].Name
	})

	byContainer := make(map[core.ContainerKey][]core.Item)
	for _, it := range items {
		byContainer[it.Container] = append(byContainer[it.Container], it)
	}
	for key := range byContainer {
		list := byContainer[key]
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].DisplayOrder != list[j].DisplayOrder {
				return list[i].DisplayOrder < list[j].DisplayOrder
			}
			return list[i].Name < list[j].Name
		})
		byContainer[key] = list
	}

	rows := [][]any{{"Gruppo", "Tipo", "Posizione"}}
	for _, g := range sorted {
		rows = append(rows, []any{g.Name, "", g.DisplayOrder})
		for _, it := range byContainer[core.GroupKey(g.ID)] {
			rows = append(rows, []any{g.Name, it.Name, it.DisplayOrder})
		}
	}
	for _, it := range byContainer[core.Ungrouped] {
		rows = append(rows, []any{"", it.Name, it.DisplayOrder})
	}
	return rows
}
