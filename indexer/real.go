package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/xerrors"

	"github.com/graphops/graphix/errs"
)

// HTTPClient talks to a real graph-node-compatible indexing-status API
// over GraphQL-over-HTTP. No GraphQL client library appears anywhere in
// the retrieved corpus (see DESIGN.md), so this is a deliberate,
// documented stdlib exception: net/http plus encoding/json for a single
// POST-JSON-get-JSON request/response cycle.
type HTTPClient struct {
	name     string
	endpoint string
	http     *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient builds a Client against endpoint, identified as name in
// logs and failed_queries rows.
func NewHTTPClient(name, endpoint string) *HTTPClient {
	return &HTTPClient{
		name:     name,
		endpoint: endpoint,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (c *HTTPClient) Name() string { return c.name }

type graphqlRequest struct {
	Query     string      `json:"query"`
	Variables interface{} `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

// do issues one GraphQL-over-HTTP request, retrying once on a transport
// or non-2xx failure with a short exponential backoff (spec.md §4.1 step
// 4's "per-request retry-once policy"). A GraphQL-level error in the
// response body is not retried: the indexer answered, it just refused
// the query.
func (c *HTTPClient) do(ctx context.Context, query string, variables interface{}, out interface{}) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return xerrors.Errorf("marshaling graphql request: %w", err)
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 1)

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphqlError  `json:"errors"`
	}

	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(xerrors.Errorf("building request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return xerrors.Errorf("calling %s (%w): %s", c.name, errs.ErrIndexerUnavailable, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return xerrors.Errorf("indexer %s returned status %d (%w)", c.name, resp.StatusCode, errs.ErrIndexerUnavailable)
		}

		envelope.Data, envelope.Errors = nil, nil
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return xerrors.Errorf("decoding response from %s: %w", c.name, err)
		}
		if len(envelope.Errors) > 0 {
			return backoff.Permanent(xerrors.Errorf("indexer %s returned graphql errors: %s", c.name, envelope.Errors[0].Message))
		}
		return nil
	}

	if err := backoff.Retry(attempt, backoff.WithContext(policy, ctx)); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return xerrors.Errorf("decoding data from %s: %w", c.name, err)
	}
	return nil
}

func (c *HTTPClient) IndexingStatuses(ctx context.Context) ([]IndexingStatus, error) {
	const query = `{
		indexingStatuses {
			subgraph
			chains {
				network
				chainHeadBlock { number hash }
				latestBlock { number hash }
				earliestBlock { number hash }
			}
			synced
			fatalError { message }
		}
	}`

	var resp struct {
		IndexingStatuses []struct {
			Subgraph string `json:"subgraph"`
			Chains   []struct {
				Network        string       `json:"network"`
				ChainHeadBlock blockPointer `json:"chainHeadBlock"`
				LatestBlock    blockPointer `json:"latestBlock"`
				EarliestBlock  blockPointer `json:"earliestBlock"`
			} `json:"chains"`
			Synced     bool `json:"synced"`
			FatalError *struct {
				Message string `json:"message"`
			} `json:"fatalError"`
		} `json:"indexingStatuses"`
	}
	if err := c.do(ctx, query, nil, &resp); err != nil {
		return nil, err
	}

	out := make([]IndexingStatus, 0, len(resp.IndexingStatuses))
	for _, s := range resp.IndexingStatuses {
		for _, chain := range s.Chains {
			st := IndexingStatus{
				DeploymentIPFSHash: s.Subgraph,
				NetworkName:        chain.Network,
				ChainHeadBlock:     chain.ChainHeadBlock.toBlockPointer(),
				LatestBlock:        chain.LatestBlock.toBlockPointer(),
				EarliestBlock:      chain.EarliestBlock.toBlockPointer(),
				Synced:             s.Synced,
			}
			if s.FatalError != nil {
				st.FatalError = s.FatalError.Message
			}
			out = append(out, st)
		}
	}
	return out, nil
}

type blockPointer struct {
	Number string `json:"number"`
	Hash   string `json:"hash"`
}

func (b blockPointer) toBlockPointer() BlockPointer {
	var n uint64
	fmt.Sscanf(b.Number, "%d", &n)
	return BlockPointer{Number: n, Hash: b.Hash}
}

func (c *HTTPClient) PublicPois(ctx context.Context, requests []PoiRequest) ([]PoiResult, error) {
	const query = `query($requests: [PublicProofOfIndexingRequest!]!) {
		publicProofsOfIndexing(requests: $requests) {
			deployment
			block { number hash }
			proofOfIndexing
		}
	}`

	type wireRequest struct {
		Deployment string `json:"deployment"`
		BlockNumber string `json:"blockNumber"`
	}
	wire := make([]wireRequest, len(requests))
	for i, r := range requests {
		wire[i] = wireRequest{Deployment: r.DeploymentIPFSHash, BlockNumber: fmt.Sprintf("%d", r.BlockNumber)}
	}

	var resp struct {
		PublicProofsOfIndexing []struct {
			Deployment string       `json:"deployment"`
			Block      blockPointer `json:"block"`
			Poi        string       `json:"proofOfIndexing"`
		} `json:"publicProofsOfIndexing"`
	}
	if err := c.do(ctx, query, map[string]interface{}{"requests": wire}, &resp); err != nil {
		return nil, err
	}

	out := make([]PoiResult, 0, len(resp.PublicProofsOfIndexing))
	for _, r := range resp.PublicProofsOfIndexing {
		bp := r.Block.toBlockPointer()
		out = append(out, PoiResult{
			DeploymentIPFSHash: r.Deployment,
			BlockNumber:        bp.Number,
			BlockHash:          bp.Hash,
			Hash:               r.Poi,
		})
	}
	return out, nil
}

func (c *HTTPClient) Version(ctx context.Context) (VersionInfo, error) {
	const query = `{ version { version commit } }`
	var resp struct {
		Version struct {
			Version string `json:"version"`
			Commit  string `json:"commit"`
		} `json:"version"`
	}
	if err := c.do(ctx, query, nil, &resp); err != nil {
		return VersionInfo{}, err
	}
	return VersionInfo{Version: resp.Version.Version, Commit: resp.Version.Commit}, nil
}

func (c *HTTPClient) BlockCache(ctx context.Context, network, blockHash string) (BlockCacheEntry, error) {
	const query = `query($network: String!, $hash: String!) {
		blockData(network: $network, blockHash: $hash)
	}`
	var resp struct {
		BlockData json.RawMessage `json:"blockData"`
	}
	if err := c.do(ctx, query, map[string]interface{}{"network": network, "hash": blockHash}, &resp); err != nil {
		return BlockCacheEntry{}, err
	}
	return BlockCacheEntry{NetworkName: network, BlockHash: blockHash, Data: string(resp.BlockData)}, nil
}

func (c *HTTPClient) EthCallCache(ctx context.Context, network, blockHash string) ([]EthCallCacheEntry, error) {
	const query = `query($network: String!, $hash: String!) {
		cachedEthereumCalls(network: $network, blockHash: $hash) { call result }
	}`
	var resp struct {
		CachedEthereumCalls []EthCallCacheEntry `json:"cachedEthereumCalls"`
	}
	if err := c.do(ctx, query, map[string]interface{}{"network": network, "hash": blockHash}, &resp); err != nil {
		return nil, err
	}
	return resp.CachedEthereumCalls, nil
}

func (c *HTTPClient) EntityChanges(ctx context.Context, deployment string, block uint64) ([]EntityChange, error) {
	const query = `query($subgraphId: String!, $blockNumber: Int!) {
		entityChangesInBlock(subgraphId: $subgraphId, blockNumber: $blockNumber) { entity id op data }
	}`
	var resp struct {
		EntityChangesInBlock []EntityChange `json:"entityChangesInBlock"`
	}
	vars := map[string]interface{}{"subgraphId": deployment, "blockNumber": block}
	if err := c.do(ctx, query, vars, &resp); err != nil {
		return nil, err
	}
	return resp.EntityChangesInBlock, nil
}
