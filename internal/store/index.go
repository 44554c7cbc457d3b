// internal/store/index.go
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	apperrors "psychosocial-workers/internal/common/errors"
	"psychosocial-workers/internal/common/logger"
	"psychosocial-workers/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
)

// AnalysisIndex projects persisted risk analyses into Elasticsearch for
// dashboards. The relational store stays the source of truth.
type AnalysisIndex struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewAnalysisIndex(client *elasticsearch.Client, index string, log logger.Logger) *AnalysisIndex {
	return &AnalysisIndex{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "analysis-index", "index": index}),
	}
}

type analysisDocument struct {
	models.RiskAnalysis
	IndexedLevelRank int `json:"riskLevelRank"`
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		Status int `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error,omitempty"`
	} `json:"items"`
}

// IndexAnalyses bulk-indexes the rows keyed by their id, so re-indexing the
// same analysis overwrites it.
func (i *AnalysisIndex) IndexAnalyses(ctx context.Context, analyses []models.RiskAnalysis) error {
	if len(analyses) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, a := range analyses {
		meta := map[string]interface{}{
			"index": map[string]interface{}{"_index": i.index, "_id": a.ID},
		}
		if err := enc.Encode(meta); err != nil {
			return apperrors.NewExternalServiceError("elasticsearch", err)
		}
		if err := enc.Encode(analysisDocument{RiskAnalysis: a, IndexedLevelRank: a.RiskLevel.Rank()}); err != nil {
			return apperrors.NewExternalServiceError("elasticsearch", err)
		}
	}

	res, err := i.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		i.client.Bulk.WithContext(ctx),
		i.client.Bulk.WithIndex(i.index),
	)
	if err != nil {
		return apperrors.NewExternalServiceError("elasticsearch", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return apperrors.NewExternalServiceError("elasticsearch", fmt.Errorf("bulk index: %s: %s", res.Status(), body))
	}

	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return apperrors.NewExternalServiceError("elasticsearch", fmt.Errorf("decode bulk response: %w", err))
	}
	if parsed.Errors {
		failed := 0
		var first string
		for _, item := range parsed.Items {
			for _, result := range item {
				if result.Error != nil {
					failed++
					if first == "" {
						first = result.Error.Type + ": " + result.Error.Reason
					}
				}
			}
		}
		return apperrors.NewExternalServiceError("elasticsearch", fmt.Errorf("%d of %d documents failed, first: %s", failed, len(analyses), first))
	}

	i.logger.Debug("analyses indexed", map[string]interface{}{"count": len(analyses)})
	return nil
}
