package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/domain"
)

var ErrAuditUnavailable = errors.New("apply audit unavailable")

func NewClient(url string) (*elasticsearch.Client, error) {
	return elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
	})
}

// AuditSink indexes one document per attempted action.
type AuditSink struct {
	es             *elasticsearch.Client
	index          string
	requestTimeout time.Duration
}

func NewAuditSink(es *elasticsearch.Client, index string, requestTimeout time.Duration) *AuditSink {
	return &AuditSink{es: es, index: index, requestTimeout: requestTimeout}
}

func (s *AuditSink) RecordApply(ctx context.Context, event domain.ApplyEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	reqCtx := ctx
	var cancel context.CancelFunc
	if s.requestTimeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	resp, err := s.es.Index(
		s.index,
		bytes.NewReader(payload),
		s.es.Index.WithContext(reqCtx),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuditUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return fmt.Errorf("%w: elasticsearch index error: %s", ErrAuditUnavailable, resp.String())
	}
	return nil
}
