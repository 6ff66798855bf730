package export

import (
	"context"
	"fmt"
	"path"

	"github.com/dvloznov/ledger-consolidator/internal/gcs"
	"github.com/dvloznov/ledger-consolidator/internal/report"
)

// GCS uploads the JSON document and the CSV of a run to
// gs://<Bucket>/<Prefix>/<runID>/.
type GCS struct {
	Storage gcs.StorageService
	Bucket  string
	Prefix  string
}

func (e *GCS) Name() string { return "gcs" }

// ObjectName returns the object path of a run artifact.
func (e *GCS) ObjectName(runID, file string) string {
	return path.Join(e.Prefix, runID, file)
}

func (e *GCS) Export(ctx context.Context, runID string, rep *report.Report) error {
	if e.Storage == nil {
		return fmt.Errorf("GCS.Export: no storage service configured")
	}

	doc, err := MarshalDocument(runID, rep)
	if err != nil {
		return err
	}
	csvData, err := MarshalCSV(rep.Ledger)
	if err != nil {
		return err
	}

	uploads := []struct {
		file        string
		contentType string
		data        []byte
	}{
		{"ledger.json", "application/json", doc},
		{"ledger.csv", "text/csv", csvData},
	}
	for _, u := range uploads {
		object := e.ObjectName(runID, u.file)
		if err := e.Storage.UploadBytes(ctx, e.Bucket, object, u.contentType, u.data); err != nil {
			return fmt.Errorf("GCS.Export: uploading %s: %w", object, err)
		}
	}
	return nil
}
