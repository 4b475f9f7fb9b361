package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"billed/internal/core"
)

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Notes de frais", 2024, "2024 Notes de frais"},
		{"2023 Notes de frais", 2024, "2023 Notes de frais"},
		{"  Bills ", 2025, "2025 Bills"},
		{"", 2024, "2024"},
		{"12345", 2024, "2024 12345"},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
		}
	}
}

func TestNewWithCredentials_MissingSpreadsheetID(t *testing.T) {
	_, err := NewWithCredentials(context.Background(), " ", "Notes de frais")
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewWithCredentials_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := NewWithCredentials(context.Background(), "sheet-id", "Notes de frais")
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestServiceAccountJSONFromFile(t *testing.T) {
	path := t.TempDir() + "/sa.json"
	if err := os.WriteFile(path, []byte(`{"type":"service_account"}`), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", path)

	raw, err := serviceAccountJSON()
	if err != nil || !strings.Contains(string(raw), "service_account") {
		t.Fatalf("serviceAccountJSON = %s, %v", raw, err)
	}
}

func TestExportBill_NilService(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	if _, err := c.ExportBill(context.Background(), core.Bill{ID: "b1", Date: core.NewDate(2024, 1, 2)}); err == nil {
		t.Fatal("expected error with nil service")
	}
}

func TestExportBill_AppendsRow(t *testing.T) {
	var gotPath string
	var gotBody gsheet.ValueRange
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.URL.Query().Get("valueInputOption") != "USER_ENTERED" {
			t.Errorf("valueInputOption = %q", r.URL.Query().Get("valueInputOption"))
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-id","updates":{"updatedRange":"'2024 Notes de frais'!A7:K7","updatedRows":1}}`))
	}))
	defer srv.Close()

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	c := New(svc, "sheet-id", "Notes de frais")

	ref, err := c.ExportBill(context.Background(), core.Bill{
		ID:     "b1",
		Email:  "employee@test.tld",
		Type:   core.TypeTransports,
		Name:   "Vol Paris Londres",
		Amount: core.Money{Cents: 34800},
		Date:   core.NewDate(2024, 4, 4),
		Pct:    20,
		Status: core.StatusPending,
	})
	if err != nil {
		t.Fatalf("ExportBill: %v", err)
	}
	if ref != "'2024 Notes de frais'!A7:K7" {
		t.Errorf("ref = %q", ref)
	}
	if !strings.Contains(gotPath, "/spreadsheets/sheet-id/values/") || !strings.HasSuffix(gotPath, ":append") {
		t.Errorf("path = %q", gotPath)
	}
	if len(gotBody.Values) != 1 || len(gotBody.Values[0]) != 11 {
		t.Fatalf("values = %+v", gotBody.Values)
	}
	if gotBody.Values[0][0] != "b1" || gotBody.Values[0][5] != 348.0 {
		t.Errorf("row = %+v", gotBody.Values[0])
	}
}

func TestExportBill_RequiresDate(t *testing.T) {
	c := New(&gsheet.Service{}, "sheet-id", "Notes de frais")
	if _, err := c.ExportBill(context.Background(), core.Bill{ID: "b1"}); err == nil {
		t.Fatal("expected error for a bill without date")
	}
}
