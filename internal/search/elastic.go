package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"

	"returnbox_back_end/internal/models"
	"returnbox_back_end/internal/returns"
)

var ErrDisabled = errors.New("recherche désactivée")

const mapping = `{
  "mappings": {
    "properties": {
      "merchant_id":    {"type": "keyword"},
      "status":         {"type": "keyword"},
      "customer_email": {"type": "keyword"},
      "order_id":       {"type": "keyword"},
      "product_name":   {"type": "text"},
      "reason":         {"type": "text"},
      "notes":          {"type": "text"},
      "created_at":     {"type": "date"}
    }
  }
}`

// Index tient à jour les demandes de retour dans Elasticsearch pour la recherche marchand
type Index struct {
	es    *elasticsearch.Client
	index string
}

func NewIndex(es *elasticsearch.Client, index string) *Index {
	return &Index{es: es, index: index}
}

func (i *Index) Enabled() bool { return i != nil && i.es != nil }

// EnsureIndex crée l'index avec son mapping s'il n'existe pas
func (i *Index) EnsureIndex(ctx context.Context) error {
	if !i.Enabled() {
		return nil
	}
	res, err := esapi.IndicesExistsRequest{Index: []string{i.index}}.Do(ctx, i.es)
	if err != nil {
		return fmt.Errorf("vérification index: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	res, err = esapi.IndicesCreateRequest{Index: i.index, Body: strings.NewReader(mapping)}.Do(ctx, i.es)
	if err != nil {
		return fmt.Errorf("création index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("création index %s: %s", i.index, res.String())
	}
	zap.S().Infof("✅ Index Elasticsearch %s créé", i.index)
	return nil
}

// ReturnChanged réindexe la demande après chaque mutation
func (i *Index) ReturnChanged(ctx context.Context, ch returns.Change) {
	if !i.Enabled() {
		return
	}
	if err := i.IndexReturn(ctx, ch.Return); err != nil {
		zap.S().Warnf("⚠️ Indexation du retour %s impossible: %v", ch.Return.ID, err)
	}
}

func (i *Index) IndexReturn(ctx context.Context, r models.ReturnRequest) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	res, err := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: r.ID,
		Body:       bytes.NewReader(data),
		Refresh:    "true",
	}.Do(ctx, i.es)
	if err != nil {
		return fmt.Errorf("erreur envoi Elastic: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elastic a refusé le document: %s", res.String())
	}
	return nil
}

// Search cherche dans les demandes d'un seul marchand. status vide = tous.
func (i *Index) Search(ctx context.Context, merchantID, query string, status models.ReturnStatus) ([]models.ReturnRequest, error) {
	if !i.Enabled() {
		return nil, ErrDisabled
	}

	filters := []map[string]interface{}{
		{"term": map[string]interface{}{"merchant_id": merchantID}},
	}
	if status != "" {
		filters = append(filters, map[string]interface{}{"term": map[string]interface{}{"status": status}})
	}
	boolQuery := map[string]interface{}{"filter": filters}
	if q := strings.TrimSpace(query); q != "" {
		boolQuery["must"] = map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q,
				"fields": []string{"product_name^2", "reason", "notes", "order_id", "customer_email"},
			},
		}
	}

	var buf bytes.Buffer
	body := map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
		"sort":  []interface{}{map[string]interface{}{"created_at": "desc"}},
		"size":  100,
	}
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("erreur encodage requête: %w", err)
	}

	res, err := esapi.SearchRequest{Index: []string{i.index}, Body: &buf}.Do(ctx, i.es)
	if err != nil {
		return nil, fmt.Errorf("erreur requête Elastic: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch %d: %s", res.StatusCode, raw)
	}

	var r struct {
		Hits struct {
			Hits []struct {
				Source models.ReturnRequest `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("erreur décodage JSON: %w", err)
	}

	out := make([]models.ReturnRequest, 0, len(r.Hits.Hits))
	for _, h := range r.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}
