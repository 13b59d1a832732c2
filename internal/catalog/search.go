package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"

	"jobmatch-workers/internal/common/errors"
	"jobmatch-workers/internal/common/logger"
	"jobmatch-workers/internal/models"
)

// SearchCatalog queries the Elasticsearch posting index for free-text
// searches. It implements Catalog; GetPosting still goes through a fallback
// catalog since the index is not the source of truth.
type SearchCatalog struct {
	es       *elasticsearch.Client
	index    string
	fallback Catalog
	logger   logger.Logger
}

func NewSearchCatalog(es *elasticsearch.Client, index string, fallback Catalog, log logger.Logger) *SearchCatalog {
	return &SearchCatalog{
		es:       es,
		index:    index,
		fallback: fallback,
		logger:   log.WithFields(map[string]interface{}{"component": "posting-search"}),
	}
}

// GetPosting delegates to the fallback catalog.
func (s *SearchCatalog) GetPosting(ctx context.Context, jobID string) (*models.JobPosting, error) {
	return s.fallback.GetPosting(ctx, jobID)
}

// ListPostings runs a text query against the posting index. With no query
// text it delegates to the fallback catalog: the database is authoritative
// for plain listings.
func (s *SearchCatalog) ListPostings(ctx context.Context, filter Filter) ([]models.JobPosting, error) {
	if filter.Query == "" {
		return s.fallback.ListPostings(ctx, filter)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	body, err := json.Marshal(buildSearchQuery(filter, limit))
	if err != nil {
		return nil, errors.NewSearchFailedError(err)
	}

	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(s.index),
		s.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return s.searchFallback(ctx, filter, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return s.searchFallback(ctx, filter, fmt.Errorf("search returned %s", res.Status()))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source models.JobPosting `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return s.searchFallback(ctx, filter, err)
	}

	postings := make([]models.JobPosting, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		postings = append(postings, hit.Source)
	}

	s.logger.Debug("posting search completed", map[string]interface{}{
		"query": filter.Query,
		"hits":  len(postings),
	})

	return postings, nil
}

// searchFallback serves the listing from the authoritative catalog when the
// index is unavailable: results lose relevance ordering, they do not
// disappear. SEARCH_FAILED surfaces only when the fallback fails too.
func (s *SearchCatalog) searchFallback(ctx context.Context, filter Filter, cause error) ([]models.JobPosting, error) {
	s.logger.Warn("posting search failed, serving from fallback catalog", map[string]interface{}{
		"query": filter.Query,
		"error": cause.Error(),
	})

	postings, err := s.fallback.ListPostings(ctx, filter)
	if err != nil {
		return nil, errors.NewSearchFailedError(cause)
	}
	return postings, nil
}

func buildSearchQuery(filter Filter, limit int) map[string]interface{} {
	must := []map[string]interface{}{
		{
			"multi_match": map[string]interface{}{
				"query":  filter.Query,
				"fields": []string{"title^2", "company", "requiredSkills"},
			},
		},
	}

	var filters []map[string]interface{}
	if filter.Location != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"location.keyword": filter.Location},
		})
	}
	if len(filter.Skills) > 0 {
		filters = append(filters, map[string]interface{}{
			"terms": map[string]interface{}{"requiredSkills": filter.Skills},
		})
	}

	boolQuery := map[string]interface{}{"must": must}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	return map[string]interface{}{
		"size":  limit,
		"query": map[string]interface{}{"bool": boolQuery},
	}
}
