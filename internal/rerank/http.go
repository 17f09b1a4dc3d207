package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonathan/cv-ranker/internal/types"
)

// DefaultHTTPTimeout bounds one rerank request.
const DefaultHTTPTimeout = 30 * time.Second

const apiPathRerank = "/rerank"

// HTTPCrossEncoder calls a text-embeddings-inference compatible rerank
// service: POST {url}/rerank with {query, texts} returning [{index, score}].
type HTTPCrossEncoder struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewHTTPCrossEncoder creates a client for the rerank service at baseURL.
func NewHTTPCrossEncoder(baseURL, model string, timeout time.Duration) *HTTPCrossEncoder {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &HTTPCrossEncoder{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

type rerankRequest struct {
	Query    string   `json:"query"`
	Texts    []string `json:"texts"`
	Truncate bool     `json:"truncate"`
}

type rerankHit struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Score returns one score per text in input order.
func (e *HTTPCrossEncoder) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	body, err := json.Marshal(rerankRequest{Query: query, Texts: texts, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+apiPathRerank, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &types.RerankUnavailableError{Model: e.model, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &types.RerankUnavailableError{
			Model: e.model,
			Cause: fmt.Errorf("rerank service returned status %d: %s", resp.StatusCode, msg),
		}
	}

	var hits []rerankHit
	if err := json.NewDecoder(resp.Body).Decode(&hits); err != nil {
		return nil, &types.RerankUnavailableError{Model: e.model, Cause: fmt.Errorf("decoding response: %w", err)}
	}

	scores := make([]float64, len(texts))
	seen := make([]bool, len(texts))
	for _, h := range hits {
		if h.Index < 0 || h.Index >= len(texts) {
			return nil, &types.RerankUnavailableError{Model: e.model, Cause: fmt.Errorf("response index %d out of range", h.Index)}
		}
		scores[h.Index] = h.Score
		seen[h.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, &types.RerankUnavailableError{Model: e.model, Cause: fmt.Errorf("no score for text %d", i)}
		}
	}
	return scores, nil
}

// Model returns the configured model name.
func (e *HTTPCrossEncoder) Model() string {
	return e.model
}
