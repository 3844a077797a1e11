package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/sentinel-logs/sentinel/internal/config"
)

// ElasticsearchSink indexes each update as a document, one index per day
// derived from the update timestamp.
type ElasticsearchSink struct {
	client *elasticsearch.Client
	index  string
	closed atomic.Bool
}

// NewElasticsearchSink creates an Elasticsearch update sink.
func NewElasticsearchSink(cfg config.ESNotifyConfig) (*ElasticsearchSink, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("no elasticsearch addresses specified")
	}
	if cfg.Index == "" {
		return nil, fmt.Errorf("no elasticsearch index specified")
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		APIKey:    cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	return &ElasticsearchSink{client: client, index: cfg.Index}, nil
}

// Publish indexes one update document.
func (e *ElasticsearchSink) Publish(ctx context.Context, update Update) error {
	if e.closed.Load() {
		return fmt.Errorf("elasticsearch sink is closed")
	}

	doc, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal update: %w", err)
	}

	req := esapi.IndexRequest{
		Index:   e.indexName(update),
		Body:    bytes.NewReader(doc),
		Refresh: "false",
	}

	res, err := req.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("failed to index update: %w", err)
	}
	defer res.Body.Close()
	io.Copy(io.Discard, res.Body)

	if res.IsError() {
		return fmt.Errorf("elasticsearch returned error: %s", res.Status())
	}
	return nil
}

func (e *ElasticsearchSink) indexName(update Update) string {
	ts := update.Timestamp
	if ts.IsZero() {
		return e.index
	}
	return fmt.Sprintf("%s-%s", e.index, ts.Format("2006.01.02"))
}

// Close marks the sink closed. The client holds no long-lived connections.
func (e *ElasticsearchSink) Close() error {
	e.closed.Store(true)
	return nil
}
