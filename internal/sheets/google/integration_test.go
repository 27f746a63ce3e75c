//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	"techbiz/internal/core"
)

// Integration tests require real Google Sheets credentials
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_MirrorFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}
	if os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON") == "" && os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE") == "" &&
		os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		t.Skip("service account not configured, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	m, err := New(ctx, Config{
		SpreadsheetID:   spreadsheetID,
		SheetName:       "Integration",
		CredentialsJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		CredentialsFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
	})
	if err != nil {
		t.Fatalf("Failed to create mirror: %v", err)
	}

	records := []core.Record{
		{ID: 1, Name: "Integration A", Date: "2024-01-01", Income: core.Num(10)},
		{ID: 2, Name: "Integration B", Date: "2024-01-02", Cost: core.Num(3)},
	}
	if err := m.ReplaceAll(ctx, records); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}

	records[0].Notes = "updated"
	if err := m.UpsertRecord(ctx, records[0]); err != nil {
		t.Fatalf("UpsertRecord existing: %v", err)
	}
	if err := m.UpsertRecord(ctx, core.Record{ID: 3, Name: "Integration C"}); err != nil {
		t.Fatalf("UpsertRecord new: %v", err)
	}
	if err := m.DeleteRecord(ctx, 2); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}

	// force a re-read of column A and check the index survived
	m.invalidate()
	if err := m.loadIndex(ctx); err != nil {
		t.Fatalf("loadIndex: %v", err)
	}
	if m.rows[1] != 2 || m.rows[3] != 4 {
		t.Errorf("unexpected rows after sync: %v", m.rows)
	}
	if _, ok := m.rows[2]; ok {
		t.Errorf("deleted record still indexed")
	}
}
