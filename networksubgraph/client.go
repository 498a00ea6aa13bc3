// Package networksubgraph implements the NetworkSubgraphClient
// capability: paginated enumeration of indexers from The Graph's network
// subgraph, used to resolve `indexerByAddress` and `networkSubgraph`
// ConfigSource entries.
package networksubgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"golang.org/x/xerrors"
)

// IndexerRecord is one indexer as reported by the network subgraph.
type IndexerRecord struct {
	Address        string
	URL            string
	StakedTokens   string
	AllocationCount int
}

// SortKey selects which field paginated enumeration is ordered and
// filtered by, matching spec.md §4.1's `byAllocations`/`byStakedTokens`.
type SortKey string

const (
	SortByAllocations  SortKey = "byAllocations"
	SortByStakedTokens SortKey = "byStakedTokens"
)

// Client enumerates indexers of the network, paginated.
type Client interface {
	// Indexers returns up to limit indexers ordered by sortBy, filtering
	// out any with staked tokens below stakeThreshold (a base-10 integer
	// string, compared as a big decimal by the implementation). limit
	// <= 0 means unbounded (still paginated internally).
	Indexers(ctx context.Context, sortBy SortKey, stakeThreshold string, limit int) ([]IndexerRecord, error)

	// ResolveEndpoint looks up a single indexer's service URL by address,
	// for `indexerByAddress` sources.
	ResolveEndpoint(ctx context.Context, address string) (string, error)
}

const pageSize = 100

// HTTPClient queries a network subgraph deployment over GraphQL-over-
// HTTP, the same justified stdlib transport as package indexer (see
// DESIGN.md): no GraphQL client library appears anywhere in the
// retrieved corpus.
type HTTPClient struct {
	endpoint string
	http     *http.Client
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(endpoint string) *HTTPClient {
	return &HTTPClient{endpoint: endpoint, http: http.DefaultClient}
}

type gqlIndexer struct {
	ID                      string `json:"id"`
	URL                     string `json:"url"`
	StakedTokens            string `json:"stakedTokens"`
	AllocatedTokens         string `json:"allocatedTokens"`
	AllocationCount         int    `json:"allocationCount"`
}

func (c *HTTPClient) Indexers(ctx context.Context, sortBy SortKey, stakeThreshold string, limit int) ([]IndexerRecord, error) {
	orderBy := "stakedTokens"
	if sortBy == SortByAllocations {
		orderBy = "allocationCount"
	}

	var out []IndexerRecord
	skip := 0
	for {
		batch, err := c.fetchPage(ctx, orderBy, skip)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		for _, idx := range batch {
			if !meetsThreshold(idx.StakedTokens, stakeThreshold) {
				continue
			}
			out = append(out, IndexerRecord{
				Address:         idx.ID,
				URL:             idx.URL,
				StakedTokens:    idx.StakedTokens,
				AllocationCount: idx.AllocationCount,
			})
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
		if len(batch) < pageSize {
			break
		}
		skip += pageSize
	}
	return out, nil
}

func (c *HTTPClient) fetchPage(ctx context.Context, orderBy string, skip int) ([]gqlIndexer, error) {
	const query = `query($orderBy: String!, $skip: Int!, $first: Int!) {
		indexers(orderBy: $orderBy, orderDirection: desc, skip: $skip, first: $first) {
			id url stakedTokens allocatedTokens allocationCount
		}
	}`
	body, err := json.Marshal(map[string]interface{}{
		"query": query,
		"variables": map[string]interface{}{
			"orderBy": orderBy,
			"skip":    skip,
			"first":   pageSize,
		},
	})
	if err != nil {
		return nil, xerrors.Errorf("marshaling network subgraph request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, xerrors.Errorf("building network subgraph request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, xerrors.Errorf("querying network subgraph: %w", err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Data struct {
			Indexers []gqlIndexer `json:"indexers"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, xerrors.Errorf("decoding network subgraph response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return nil, xerrors.Errorf("network subgraph returned errors: %s", envelope.Errors[0].Message)
	}
	return envelope.Data.Indexers, nil
}

func (c *HTTPClient) ResolveEndpoint(ctx context.Context, address string) (string, error) {
	const query = `query($id: ID!) { indexer(id: $id) { url } }`
	body, err := json.Marshal(map[string]interface{}{
		"query":     query,
		"variables": map[string]interface{}{"id": address},
	})
	if err != nil {
		return "", xerrors.Errorf("marshaling resolve-endpoint request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", xerrors.Errorf("building resolve-endpoint request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", xerrors.Errorf("resolving endpoint for %s: %w", address, err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Data struct {
			Indexer *struct {
				URL string `json:"url"`
			} `json:"indexer"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", xerrors.Errorf("decoding resolve-endpoint response: %w", err)
	}
	if envelope.Data.Indexer == nil {
		return "", xerrors.Errorf("indexer %s not found in network subgraph", address)
	}
	return envelope.Data.Indexer.URL, nil
}

// meetsThreshold compares two base-10 integer strings without risking
// float precision loss on arbitrarily large token amounts (GRT is
// 18-decimal fixed point, routinely exceeding float64 precision).
func meetsThreshold(staked, threshold string) bool {
	if threshold == "" {
		return true
	}
	return compareDecimalStrings(staked, threshold) >= 0
}

// compareDecimalStrings compares two non-negative base-10 integer
// strings lexicographically after normalizing length, returning -1, 0,
// or 1.
func compareDecimalStrings(a, b string) int {
	a, b = trimLeadingZeros(a), trimLeadingZeros(b)
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func trimLeadingZeros(s string) string {
	i := 0
	for i < len(s)-1 && s[i] == '0' {
		i++
	}
	return s[i:]
}
