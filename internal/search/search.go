// Package search keeps items in an Elasticsearch index and queries it.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
)

type Document struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	CreatedAt   time.Time `json:"created_at"`
}

type Indexer interface {
	Index(ctx context.Context, doc Document) error
	Delete(ctx context.Context, id string) error
	// Search matches term and orders hits by orderBy, or by relevance when
	// orderBy is empty.
	Search(ctx context.Context, term, orderBy string, from, size int) ([]string, int64, error)
}

// sortFields maps an items orderBy value to the index field and direction.
// Titles sort on the keyword sub-field dynamic mapping adds to text fields.
var sortFields = map[string][2]string{
	"createdAt_ASC":  {"created_at", "asc"},
	"createdAt_DESC": {"created_at", "desc"},
	"price_ASC":      {"price", "asc"},
	"price_DESC":     {"price", "desc"},
	"title_ASC":      {"title.keyword", "asc"},
	"title_DESC":     {"title.keyword", "desc"},
}

type Config struct {
	URL      string
	Username string
	Password string
	Index    string
}

type Client struct {
	es    *elasticsearch.Client
	index string
}

// NewClient connects and checks the cluster answers Info.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}

	res, err := es.Info(es.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch info: %s: %s", res.Status(), body)
	}

	return &Client{es: es, index: cfg.Index}, nil
}

func (c *Client) Index(ctx context.Context, doc Document) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(doc); err != nil {
		return err
	}
	res, err := c.es.Index(c.index, &buf,
		c.es.Index.WithContext(ctx),
		c.es.Index.WithDocumentID(doc.ID),
	)
	if err != nil {
		return fmt.Errorf("index %s: %w", doc.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index %s: %s", doc.ID, res.Status())
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	res, err := c.es.Delete(c.index, id, c.es.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete %s: %s", id, res.Status())
	}
	return nil
}

func queryBody(term, orderBy string, from, size int) map[string]any {
	body := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     term,
				"fields":    []string{"title^2", "description"},
				"fuzziness": "AUTO",
			},
		},
		"from":    from,
		"size":    size,
		"_source": false,
	}
	if f, ok := sortFields[orderBy]; ok {
		body["sort"] = []any{map[string]any{f[0]: map[string]any{"order": f[1]}}, "_score"}
	}
	return body
}

// Search returns matching item ids in the requested order and the total hit count.
func (c *Client) Search(ctx context.Context, term, orderBy string, from, size int) ([]string, int64, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(queryBody(term, orderBy, from, size)); err != nil {
		return nil, 0, err
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, 0, fmt.Errorf("search: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, 0, fmt.Errorf("search decode: %w", err)
	}

	ids := make([]string, len(r.Hits.Hits))
	for i, h := range r.Hits.Hits {
		ids[i] = h.ID
	}
	return ids, r.Hits.Total.Value, nil
}
