// Package indexer implements the IndexerClient capability: typed,
// timeboxed access to one remote indexer's GraphQL status API.
package indexer

import (
	"context"
	"time"
)

// IndexingStatus is one deployment an indexer reports serving, with its
// current chain head and latest synced block (spec.md §4.1 step 2).
type IndexingStatus struct {
	DeploymentIPFSHash string
	NetworkName        string
	ChainHeadBlock     BlockPointer
	LatestBlock        BlockPointer
	EarliestBlock      BlockPointer
	Synced             bool
	FatalError         string
}

// BlockPointer identifies a block by number and hash.
type BlockPointer struct {
	Number uint64
	Hash   string
}

// PoiRequest asks for a deployment's PoI at a specific block.
type PoiRequest struct {
	DeploymentIPFSHash string
	BlockNumber        uint64
	BlockHash          string
}

// PoiResult is the indexer's answer to one PoiRequest. Hash is empty if
// the indexer could not produce a PoI for that request.
type PoiResult struct {
	DeploymentIPFSHash string
	BlockNumber        uint64
	BlockHash          string
	Hash               string
}

// VersionInfo is an indexer's self-reported software version.
type VersionInfo struct {
	Version string
	Commit  string
}

// BlockCacheEntry is the indexer's cached block data for (network,
// blockHash), used during bisection Collecting (spec.md §4.3).
type BlockCacheEntry struct {
	NetworkName string
	BlockHash   string
	Data        string // opaque JSON blob, shape fixed by the upstream schema
}

// EthCallCacheEntry is one cached eth_call result at a block.
type EthCallCacheEntry struct {
	Call   string
	Result string
}

// EntityChange is one entity mutation applied while processing a block.
type EntityChange struct {
	Entity string
	ID     string
	Op     string // "create" | "update" | "delete"
	Data   string
}

// Client is typed access to one remote indexer. Every call is fallible,
// timeboxed by the passed context, and expected to be recorded by the
// caller (failed_queries, metrics) rather than by the implementation.
type Client interface {
	// Name identifies the indexer for logging and failed_queries rows;
	// it is the configured address or interceptor name, not a network
	// call.
	Name() string

	IndexingStatuses(ctx context.Context) ([]IndexingStatus, error)
	PublicPois(ctx context.Context, requests []PoiRequest) ([]PoiResult, error)
	Version(ctx context.Context) (VersionInfo, error)
	BlockCache(ctx context.Context, network, blockHash string) (BlockCacheEntry, error)
	EthCallCache(ctx context.Context, network, blockHash string) ([]EthCallCacheEntry, error)
	EntityChanges(ctx context.Context, deployment string, block uint64) ([]EntityChange, error)
}

// Default per-call deadlines, spec.md §5.
const (
	StatusesTimeout = 30 * time.Second
	PoisTimeout     = 60 * time.Second
	MetadataTimeout = 30 * time.Second
)
