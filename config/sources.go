package config

import (
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

// ConfigSource is a closed, tagged union of ways the Poller resolves
// indexer endpoints (spec.md §4.1 step 1), translated from the original
// Rust implementation's `#[serde(tag = "type")]` enum into Go's
// discriminated-union-via-custom-unmarshal idiom: one concrete type per
// tag value, selected in UnmarshalYAML by peeking at the `type` field.
type ConfigSource struct {
	// Type is the discriminant; exactly one of the pointer fields below
	// is non-nil after unmarshaling, matching Type.
	Type string

	Indexer          *IndexerSource
	IndexerByAddress *IndexerByAddressSource
	NetworkSubgraph  *NetworkSubgraphSource
	Interceptor      *InterceptorSource
}

// IndexerSource names a single indexer directly by endpoint.
type IndexerSource struct {
	Address          string `yaml:"address"`
	IndexNodeEndpoint string `yaml:"indexNodeEndpoint"`
	Name             string `yaml:"name,omitempty"`
}

// IndexerByAddressSource names a single indexer whose endpoint must be
// resolved from the network subgraph.
type IndexerByAddressSource struct {
	Address string `yaml:"address"`
}

// NetworkSubgraphQueryKind selects the network-subgraph pagination
// strategy for NetworkSubgraphSource.
type NetworkSubgraphQueryKind string

const (
	QueryByAllocations  NetworkSubgraphQueryKind = "byAllocations"
	QueryByStakedTokens NetworkSubgraphQueryKind = "byStakedTokens"
)

// NetworkSubgraphSource enumerates indexers by querying the network
// subgraph, filtering by minimum stake and an optional result limit.
type NetworkSubgraphSource struct {
	Endpoint       string                   `yaml:"endpoint"`
	StakeThreshold string                   `yaml:"stakeThreshold"`
	Limit          int                      `yaml:"limit,omitempty"`
	Query          NetworkSubgraphQueryKind `yaml:"query"`
}

// InterceptorSource is a test-only synthetic indexer that fabricates
// PoIs as `{poiByte} x 32` and forwards every other query to a real
// target indexer, grounded in original_source's interceptor.rs and
// implemented in package indexer as a decorator over indexer.Client.
type InterceptorSource struct {
	Name    string `yaml:"name"`
	Target  string `yaml:"target"`
	PoiByte byte   `yaml:"poiByte"`
}

func (s *ConfigSource) validate() error {
	switch s.Type {
	case "indexer":
		if s.Indexer == nil || s.Indexer.Address == "" || s.Indexer.IndexNodeEndpoint == "" {
			return xerrors.New("indexer source requires address and indexNodeEndpoint")
		}
	case "indexerByAddress":
		if s.IndexerByAddress == nil || s.IndexerByAddress.Address == "" {
			return xerrors.New("indexerByAddress source requires address")
		}
	case "networkSubgraph":
		if s.NetworkSubgraph == nil || s.NetworkSubgraph.Endpoint == "" {
			return xerrors.New("networkSubgraph source requires endpoint")
		}
		switch s.NetworkSubgraph.Query {
		case QueryByAllocations, QueryByStakedTokens:
		default:
			return xerrors.Errorf("networkSubgraph source has unknown query kind %q", s.NetworkSubgraph.Query)
		}
	case "interceptor":
		if s.Interceptor == nil || s.Interceptor.Name == "" || s.Interceptor.Target == "" {
			return xerrors.New("interceptor source requires name and target")
		}
	default:
		return xerrors.Errorf("unknown source type %q", s.Type)
	}
	return nil
}

// UnmarshalYAML implements the tagged-union decode: it first reads the
// `type` discriminant, then re-decodes the node into the matching
// concrete struct.
func (s *ConfigSource) UnmarshalYAML(value *yaml.Node) error {
	var tag struct {
		Type string `yaml:"type"`
	}
	if err := value.Decode(&tag); err != nil {
		return xerrors.Errorf("decoding source type tag: %w", err)
	}
	s.Type = tag.Type

	switch tag.Type {
	case "indexer":
		s.Indexer = new(IndexerSource)
		return value.Decode(s.Indexer)
	case "indexerByAddress":
		s.IndexerByAddress = new(IndexerByAddressSource)
		return value.Decode(s.IndexerByAddress)
	case "networkSubgraph":
		s.NetworkSubgraph = new(NetworkSubgraphSource)
		return value.Decode(s.NetworkSubgraph)
	case "interceptor":
		s.Interceptor = new(InterceptorSource)
		return value.Decode(s.Interceptor)
	default:
		return xerrors.Errorf("unknown source type %q", tag.Type)
	}
}
