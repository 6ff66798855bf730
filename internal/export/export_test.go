package export

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"cloud.google.com/go/civil"
	bq "github.com/dvloznov/ledger-consolidator/internal/bigquery"
	"github.com/dvloznov/ledger-consolidator/internal/domain"
	"github.com/dvloznov/ledger-consolidator/internal/report"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

func sampleReport() *report.Report {
	ledger := []*domain.Transaction{
		{
			ID:                 "a",
			EffectiveDate:      civil.Date{Year: 2024, Month: 1, Day: 10},
			AccountingDate:     civil.Date{Year: 2024, Month: 1, Day: 10},
			Institution:        "Banco do Brasil",
			AccountLabel:       "Ag: 1234",
			Type:               "PIX ENVIADO",
			Description:        "JOAO SILVA",
			Amount:             decimal.RequireFromString("-500"),
			AmountIn:           decimal.Zero,
			AmountOut:          decimal.RequireFromString("500"),
			CategoryAuto:       domain.CategoryInternalTransfer,
			BalanceInstitution: decimal.RequireFromString("500"),
			BalanceReal:        decimal.RequireFromString("500"),
		},
		{
			ID:                 "b",
			EffectiveDate:      civil.Date{Year: 2024, Month: 1, Day: 11},
			AccountingDate:     civil.Date{Year: 2024, Month: 1, Day: 11},
			Institution:        "Itaú",
			Type:               "PIX RECEBIDO",
			Description:        "JOAO SILVA, \"conta\"",
			Amount:             decimal.RequireFromString("500"),
			AmountIn:           decimal.RequireFromString("500"),
			AmountOut:          decimal.Zero,
			CategoryAuto:       domain.CategoryInternalTransfer,
			BalanceInstitution: decimal.RequireFromString("500"),
			BalanceReal:        decimal.RequireFromString("1000"),
		},
	}
	return report.Build(ledger, nil)
}

func TestJSONFile_Export(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "ledger.json")
	exp := &JSONFile{Path: path}

	if err := exp.Export(context.Background(), "run-1", sampleReport()); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}

	var doc struct {
		RunID   string `json:"run_id"`
		Summary struct {
			TransactionCount      int    `json:"transaction_count"`
			PeriodStart           string `json:"period_start"`
			InternalTransferCount int    `json:"internal_transfer_count"`
			FinalBalanceReal      string `json:"final_balance_real"`
		} `json:"summary"`
		Transactions []map[string]any `json:"transactions"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decoding export: %v", err)
	}

	if doc.RunID != "run-1" {
		t.Errorf("run_id = %q, want %q", doc.RunID, "run-1")
	}
	if doc.Summary.TransactionCount != 2 || doc.Summary.InternalTransferCount != 2 {
		t.Errorf("summary counts = %+v", doc.Summary)
	}
	if doc.Summary.PeriodStart != "2024-01-10" {
		t.Errorf("period_start = %q, want 2024-01-10", doc.Summary.PeriodStart)
	}
	if doc.Summary.FinalBalanceReal != "1000" {
		t.Errorf("final_balance_real = %q, want 1000", doc.Summary.FinalBalanceReal)
	}
	if len(doc.Transactions) != 2 {
		t.Fatalf("got %d transactions, want 2", len(doc.Transactions))
	}
	if got := doc.Transactions[0]["category_auto"]; got != "Internal Transfer" {
		t.Errorf("category_auto = %v, want Internal Transfer", got)
	}
	if got := doc.Transactions[0]["amount"]; got != "-500" {
		t.Errorf("amount = %v, want \"-500\"", got)
	}
}

func TestCSVFile_Export(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")
	exp := &CSVFile{Path: path}

	if err := exp.Export(context.Background(), "run-1", sampleReport()); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening export: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d CSV records, want 3", len(records))
	}
	if diff := cmp.Diff(CSVHeader, records[0]); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}

	want := []string{
		"2024-01-11", "2024-01-11", "Itaú", "", "PIX RECEBIDO", "JOAO SILVA, \"conta\"",
		"500.00", "500.00", "0.00", "Internal Transfer", "", "", "500.00", "1000.00", "b",
	}
	if diff := cmp.Diff(want, records[2]); diff != "" {
		t.Errorf("row mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteFile_ReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := writeFile(path, []byte("new")); err != nil {
		t.Fatalf("writeFile() error = %v", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "new" {
		t.Errorf("file content = %q, want %q", data, "new")
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}

// MockStorageService is a mock implementation of gcs.StorageService
type MockStorageService struct {
	UploadFileFunc                func(ctx context.Context, bucketName, objectName, filePath string) error
	UploadBytesFunc               func(ctx context.Context, bucketName, objectName, contentType string, data []byte) error
	FetchFromGCSFunc              func(ctx context.Context, gcsURI string) ([]byte, error)
	ExtractFilenameFromGCSURIFunc func(uri string) string
}

func (m *MockStorageService) UploadFile(ctx context.Context, bucketName, objectName, filePath string) error {
	if m.UploadFileFunc != nil {
		return m.UploadFileFunc(ctx, bucketName, objectName, filePath)
	}
	return nil
}

func (m *MockStorageService) UploadBytes(ctx context.Context, bucketName, objectName, contentType string, data []byte) error {
	if m.UploadBytesFunc != nil {
		return m.UploadBytesFunc(ctx, bucketName, objectName, contentType, data)
	}
	return nil
}

func (m *MockStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	if m.FetchFromGCSFunc != nil {
		return m.FetchFromGCSFunc(ctx, gcsURI)
	}
	return nil, nil
}

func (m *MockStorageService) ExtractFilenameFromGCSURI(uri string) string {
	if m.ExtractFilenameFromGCSURIFunc != nil {
		return m.ExtractFilenameFromGCSURIFunc(uri)
	}
	return ""
}

func TestGCS_Export(t *testing.T) {
	type upload struct {
		Bucket, Object, ContentType string
	}
	var got []upload

	storage := &MockStorageService{
		UploadBytesFunc: func(ctx context.Context, bucketName, objectName, contentType string, data []byte) error {
			if len(data) == 0 {
				t.Errorf("empty upload for %s", objectName)
			}
			got = append(got, upload{bucketName, objectName, contentType})
			return nil
		},
	}
	exp := &GCS{Storage: storage, Bucket: "exports", Prefix: "consolidated"}

	if err := exp.Export(context.Background(), "run-1", sampleReport()); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	want := []upload{
		{"exports", "consolidated/run-1/ledger.json", "application/json"},
		{"exports", "consolidated/run-1/ledger.csv", "text/csv"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("uploads mismatch (-want +got):\n%s", diff)
	}
}

func TestGCS_ExportErrors(t *testing.T) {
	boom := errors.New("bucket gone")
	exp := &GCS{
		Storage: &MockStorageService{
			UploadBytesFunc: func(ctx context.Context, bucketName, objectName, contentType string, data []byte) error {
				return boom
			},
		},
		Bucket: "exports",
	}

	err := exp.Export(context.Background(), "run-1", sampleReport())
	if !errors.Is(err, boom) {
		t.Errorf("Export() error = %v, want %v", err, boom)
	}

	if err := (&GCS{Bucket: "exports"}).Export(context.Background(), "run-1", sampleReport()); err == nil {
		t.Error("Export() without storage should fail")
	}
}

// MockLedgerRepository is a mock implementation of bigquery.LedgerRepository
type MockLedgerRepository struct {
	InsertLedgerRowsFunc func(ctx context.Context, rows []*bq.LedgerRow) error
}

func (m *MockLedgerRepository) EnsureTables(ctx context.Context) error { return nil }

func (m *MockLedgerRepository) InsertLedgerRows(ctx context.Context, rows []*bq.LedgerRow) error {
	if m.InsertLedgerRowsFunc != nil {
		return m.InsertLedgerRowsFunc(ctx, rows)
	}
	return nil
}

func (m *MockLedgerRepository) QueryLedgerByDateRange(ctx context.Context, start, end civil.Date) ([]*bq.LedgerRow, error) {
	return nil, nil
}

func (m *MockLedgerRepository) StartConsolidationRun(ctx context.Context, sources []string) (string, error) {
	return "run", nil
}

func (m *MockLedgerRepository) MarkConsolidationRunFailed(ctx context.Context, runID string, runErr error) {}

func (m *MockLedgerRepository) MarkConsolidationRunSucceeded(ctx context.Context, runID string, rowCount int) error {
	return nil
}

func (m *MockLedgerRepository) DeleteConsolidationRun(ctx context.Context, runID string) error {
	return nil
}

func TestBigQuery_Export(t *testing.T) {
	var rows []*bq.LedgerRow
	exp := &BigQuery{Repo: &MockLedgerRepository{
		InsertLedgerRowsFunc: func(ctx context.Context, r []*bq.LedgerRow) error {
			rows = r
			return nil
		},
	}}

	if err := exp.Export(context.Background(), "run-1", sampleReport()); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("inserted %d rows, want 2", len(rows))
	}
	for i, r := range rows {
		if r.RunID != "run-1" || r.Position != int64(i) {
			t.Errorf("row %d = (%q, %d), want (run-1, %d)", i, r.RunID, r.Position, i)
		}
	}

	boom := errors.New("quota")
	exp.Repo = &MockLedgerRepository{
		InsertLedgerRowsFunc: func(ctx context.Context, r []*bq.LedgerRow) error { return boom },
	}
	if err := exp.Export(context.Background(), "run-1", sampleReport()); !errors.Is(err, boom) {
		t.Errorf("Export() error = %v, want %v", err, boom)
	}
}

// fakeElasticsearch answers index creation and bulk requests, failing the
// documents whose ID is listed in reject.
type fakeElasticsearch struct {
	mu      sync.Mutex
	reject  map[string]bool
	indexed map[string]map[string]any
}

func (f *fakeElasticsearch) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if !strings.HasSuffix(r.URL.Path, "/_bulk") {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `{"acknowledged":true}`)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var items []string
	hasErrors := false
	sc := bufio.NewScanner(r.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var meta struct {
			Index struct {
				ID string `json:"_id"`
			} `json:"index"`
		}
		if err := json.Unmarshal(sc.Bytes(), &meta); err != nil || meta.Index.ID == "" {
			continue
		}
		id := meta.Index.ID
		if !sc.Scan() {
			break
		}
		var doc map[string]any
		json.Unmarshal(sc.Bytes(), &doc)

		if f.reject[id] {
			hasErrors = true
			items = append(items, fmt.Sprintf(`{"index":{"_id":%q,"status":400,"error":{"type":"mapper_parsing_exception","reason":"bad"}}}`, id))
			continue
		}
		f.indexed[id] = doc
		items = append(items, fmt.Sprintf(`{"index":{"_id":%q,"status":201,"result":"created"}}`, id))
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `{"took":1,"errors":%t,"items":[%s]}`, hasErrors, strings.Join(items, ","))
	w.Write(buf.Bytes())
}

func TestElasticsearch_Export(t *testing.T) {
	fake := &fakeElasticsearch{indexed: map[string]map[string]any{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	exp := &Elasticsearch{Addresses: []string{srv.URL}, Index: "ledger"}
	if err := exp.Export(context.Background(), "run-1", sampleReport()); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	if len(fake.indexed) != 2 {
		t.Fatalf("indexed %d documents, want 2", len(fake.indexed))
	}
	doc := fake.indexed["b"]
	if doc["run_id"] != "run-1" || doc["institution"] != "Itaú" || doc["balance_real"] != "1000" {
		t.Errorf("document b = %v", doc)
	}
}

func TestElasticsearch_ExportReportsFailures(t *testing.T) {
	fake := &fakeElasticsearch{
		reject:  map[string]bool{"a": true},
		indexed: map[string]map[string]any{},
	}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	exp := &Elasticsearch{Addresses: []string{srv.URL}, Index: "ledger"}
	err := exp.Export(context.Background(), "run-1", sampleReport())
	if err == nil {
		t.Fatal("Export() should fail when a document is rejected")
	}
	if !strings.Contains(err.Error(), "failed indexing 1 of 2") {
		t.Errorf("Export() error = %v", err)
	}
}
