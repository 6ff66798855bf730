package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dvloznov/ledger-consolidator/internal/logger"
	"github.com/dvloznov/ledger-consolidator/internal/report"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
)

const (
	esFlushBytes    = 1 << 20
	esFlushInterval = 10 * time.Second
	esWorkers       = 4
	esMaxRetries    = 5
)

// esDocument is the indexed form of a ledger row.
type esDocument struct {
	RunID string `json:"run_id"`
	Record
}

// Elasticsearch bulk-indexes the ledger, one document per transaction ID.
type Elasticsearch struct {
	Addresses []string
	Index     string
}

func (e *Elasticsearch) Name() string { return "elasticsearch" }

func (e *Elasticsearch) client() (*elasticsearch.Client, error) {
	retryBackoff := backoff.NewExponentialBackOff()

	return elasticsearch.NewClient(elasticsearch.Config{
		Addresses: e.Addresses,

		RetryOnStatus: []int{502, 503, 504, 429},
		RetryBackoff: func(i int) time.Duration {
			if i == 1 {
				retryBackoff.Reset()
			}
			return retryBackoff.NextBackOff()
		},
		MaxRetries: esMaxRetries,
	})
}

func (e *Elasticsearch) Export(ctx context.Context, runID string, rep *report.Report) error {
	log := logger.FromContext(ctx)

	es, err := e.client()
	if err != nil {
		return fmt.Errorf("Elasticsearch.Export: creating client: %w", err)
	}

	res, err := es.Indices.Create(e.Index, es.Indices.Create.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("Elasticsearch.Export: creating index %s: %w", e.Index, err)
	}
	// An existing index answers 400 resource_already_exists_exception.
	if res.IsError() {
		log.Debug().Str("index", e.Index).Str("status", res.Status()).Msg("index not created")
	}
	res.Body.Close()

	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Index:         e.Index,
		Client:        es,
		NumWorkers:    esWorkers,
		FlushBytes:    esFlushBytes,
		FlushInterval: esFlushInterval,
	})
	if err != nil {
		return fmt.Errorf("Elasticsearch.Export: creating bulk indexer: %w", err)
	}

	for _, rec := range Records(rep.Ledger) {
		data, err := json.Marshal(esDocument{RunID: runID, Record: rec})
		if err != nil {
			return fmt.Errorf("Elasticsearch.Export: encoding %s: %w", rec.ID, err)
		}

		err = bi.Add(ctx, esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: rec.ID,
			Body:       bytes.NewReader(data),
			OnFailure: func(_ context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				ev := log.Warn().Str("document_id", item.DocumentID)
				if err != nil {
					ev.Err(err).Msg("failed to index transaction")
					return
				}
				ev.Str("type", res.Error.Type).Str("reason", res.Error.Reason).Msg("failed to index transaction")
			},
		})
		if err != nil {
			return fmt.Errorf("Elasticsearch.Export: adding %s: %w", rec.ID, err)
		}
	}

	if err := bi.Close(ctx); err != nil {
		return fmt.Errorf("Elasticsearch.Export: flushing: %w", err)
	}

	stats := bi.Stats()
	if stats.NumFailed > 0 {
		return fmt.Errorf("Elasticsearch.Export: failed indexing %d of %d documents", stats.NumFailed, stats.NumAdded)
	}
	log.Info().
		Str("index", e.Index).
		Uint64("indexed", stats.NumFlushed).
		Msg("ledger indexed")
	return nil
}
