package ingest

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dvloznov/ledger-consolidator/internal/gcs"
)

// Fetcher returns the raw bytes of a batch given its path or URI.
type Fetcher interface {
	Fetch(ctx context.Context, source string) ([]byte, error)
}

// Sources reads gs:// URIs through Storage and everything else from the
// local filesystem. Storage may be nil when only local files are used.
type Sources struct {
	Storage gcs.StorageService
}

// Fetch implements Fetcher.
func (s Sources) Fetch(ctx context.Context, source string) ([]byte, error) {
	if strings.HasPrefix(source, "gs://") {
		if s.Storage == nil {
			return nil, fmt.Errorf("Fetch: %s: no storage service configured", source)
		}
		return s.Storage.FetchFromGCS(ctx, source)
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}
	return data, nil
}
