package depgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/polyarb/arbengine/internal/domain"
)

// HTTPClassifier calls the external dependency-classifier service over a
// single JSON RPC: POST a batch of candidate pairs, get back a relation for
// whichever pairs the model was confident about.
type HTTPClassifier struct {
	url        string
	model      string
	httpClient *http.Client
}

// NewHTTPClassifier builds an HTTPClassifier against the given endpoint.
// model names the classifier's underlying model/version, passed through in
// every request for the service to route on.
func NewHTTPClassifier(url, model string) *HTTPClassifier {
	return &HTTPClassifier{
		url:   url,
		model: model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type classifyRequest struct {
	Model string     `json:"model"`
	Pairs [][2]string `json:"pairs"`
}

type classifyResponseRow struct {
	MarketA    string  `json:"market_a"`
	MarketB    string  `json:"market_b"`
	Relation   string  `json:"relation"`
	Confidence float64 `json:"confidence"`
}

type classifyResponse struct {
	Results []classifyResponseRow `json:"results"`
}

// Classify implements Classifier. The engine has no opinion on the
// classifier's internals; it only understands the four-value relation
// alphabet the response rows carry. Classify drops rows missing a market
// ID; rows whose relation is outside the alphabet are dropped by the Graph
// when it stores the results.
func (c *HTTPClassifier) Classify(ctx context.Context, pairs [][2]string) ([]domain.Dependency, error) {
	reqBody, err := json.Marshal(classifyRequest{Model: c.model, Pairs: pairs})
	if err != nil {
		return nil, fmt.Errorf("depgraph: marshal classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("depgraph: build classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("depgraph: %w: %w", domain.ErrTransientNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("depgraph: read classify response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("depgraph: %w: classifier HTTP %d: %s", domain.ErrRejectedByVenue, resp.StatusCode, string(body))
	}

	var parsed classifyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("depgraph: %w: %w", domain.ErrParseError, err)
	}

	deps := make([]domain.Dependency, 0, len(parsed.Results))
	for _, row := range parsed.Results {
		if row.MarketA == "" || row.MarketB == "" {
			continue
		}
		deps = append(deps, domain.Dependency{
			SourceMarketID: row.MarketA,
			TargetMarketID: row.MarketB,
			Relation:       domain.RelationType(row.Relation),
			Confidence:     row.Confidence,
		})
	}

	return deps, nil
}
