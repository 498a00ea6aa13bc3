package indexer

import (
	"context"
	"encoding/hex"
)

// Interceptor is a test-only synthetic indexer: it fabricates PoIs as
// `{PoiByte} x 32` for every requested block and forwards every other
// call unchanged to the wrapped target, grounded in
// original_source/backend/crates/common/src/indexer/interceptor.rs and
// implemented, per DESIGN NOTES §9, "as a decorator around the
// transport" rather than a distinct transport implementation.
type Interceptor struct {
	target  Client
	name    string
	poiByte byte
}

var _ Client = (*Interceptor)(nil)

// NewInterceptor wraps target, answering PublicPois with a fabricated
// hash of poiByte repeated 32 times instead of forwarding the call.
func NewInterceptor(name string, target Client, poiByte byte) *Interceptor {
	return &Interceptor{name: name, target: target, poiByte: poiByte}
}

func (i *Interceptor) Name() string { return i.name }

func (i *Interceptor) fabricatedPoi() string {
	raw := make([]byte, 32)
	for idx := range raw {
		raw[idx] = i.poiByte
	}
	return "0x" + hex.EncodeToString(raw)
}

func (i *Interceptor) IndexingStatuses(ctx context.Context) ([]IndexingStatus, error) {
	return i.target.IndexingStatuses(ctx)
}

func (i *Interceptor) PublicPois(ctx context.Context, requests []PoiRequest) ([]PoiResult, error) {
	out := make([]PoiResult, len(requests))
	fabricated := i.fabricatedPoi()
	for idx, r := range requests {
		out[idx] = PoiResult{
			DeploymentIPFSHash: r.DeploymentIPFSHash,
			BlockNumber:        r.BlockNumber,
			BlockHash:          r.BlockHash,
			Hash:               fabricated,
		}
	}
	return out, nil
}

func (i *Interceptor) Version(ctx context.Context) (VersionInfo, error) {
	return i.target.Version(ctx)
}

func (i *Interceptor) BlockCache(ctx context.Context, network, blockHash string) (BlockCacheEntry, error) {
	return i.target.BlockCache(ctx, network, blockHash)
}

func (i *Interceptor) EthCallCache(ctx context.Context, network, blockHash string) ([]EthCallCacheEntry, error) {
	return i.target.EthCallCache(ctx, network, blockHash)
}

func (i *Interceptor) EntityChanges(ctx context.Context, deployment string, block uint64) ([]EntityChange, error) {
	return i.target.EntityChanges(ctx, deployment, block)
}
