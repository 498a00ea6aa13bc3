package poller

import (
	"context"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"github.com/graphops/graphix/config"
	"github.com/graphops/graphix/errs"
	"github.com/graphops/graphix/indexer"
	"github.com/graphops/graphix/networksubgraph"
	"github.com/graphops/graphix/store"
)

var log = logging.Logger("graphix/poller")

// poolEntry is one resolved indexer in the round's pool. URL is whatever
// endpoint the source resolved (config-supplied or network-subgraph
// reported); Metadata is only populated for networkSubgraph sources,
// which are the only ones with a stake/allocation snapshot to report
// (spec.md §4.1 step 6).
type poolEntry struct {
	Address  string
	URL      string
	Client   indexer.Client
	Metadata *store.IndexerNetworkSubgraphMetadata
}

// resolvePool resolves every ConfigSource into zero or more indexer
// endpoints and deduplicates the union by address (spec.md §4.1 step 1).
// A source's resolution error is logged and skipped; it never aborts the
// round.
func resolvePool(ctx context.Context, sources []config.ConfigSource, ns networksubgraph.Client, clientFor func(address, endpoint string) indexer.Client) []poolEntry {
	byAddress := map[string]poolEntry{}

	for _, src := range sources {
		entries, err := resolveSource(ctx, src, ns, clientFor)
		if err != nil {
			log.Warnw("source resolution failed", "type", src.Type, "error", err.Error())
			continue
		}
		for _, e := range entries {
			if _, exists := byAddress[e.Address]; !exists {
				byAddress[e.Address] = e
			}
		}
	}

	out := make([]poolEntry, 0, len(byAddress))
	for _, e := range byAddress {
		out = append(out, e)
	}
	return out
}

func resolveSource(ctx context.Context, src config.ConfigSource, ns networksubgraph.Client, clientFor func(address, endpoint string) indexer.Client) ([]poolEntry, error) {
	switch src.Type {
	case "indexer":
		s := src.Indexer
		return []poolEntry{{Address: s.Address, URL: s.IndexNodeEndpoint, Client: clientFor(s.Address, s.IndexNodeEndpoint)}}, nil

	case "indexerByAddress":
		s := src.IndexerByAddress
		endpoint, err := ns.ResolveEndpoint(ctx, s.Address)
		if err != nil {
			return nil, xerrors.Errorf("resolving %s via network subgraph (%w): %s", s.Address, errs.ErrSourceResolutionFailure, err)
		}
		return []poolEntry{{Address: s.Address, URL: endpoint, Client: clientFor(s.Address, endpoint)}}, nil

	case "networkSubgraph":
		s := src.NetworkSubgraph
		sortBy := networksubgraph.SortByStakedTokens
		if s.Query == config.QueryByAllocations {
			sortBy = networksubgraph.SortByAllocations
		}
		records, err := ns.Indexers(ctx, sortBy, s.StakeThreshold, s.Limit)
		if err != nil {
			return nil, xerrors.Errorf("enumerating network subgraph (%w): %s", errs.ErrSourceResolutionFailure, err)
		}
		out := make([]poolEntry, len(records))
		for i, r := range records {
			out[i] = poolEntry{
				Address: r.Address,
				URL:     r.URL,
				Client:  clientFor(r.Address, r.URL),
				Metadata: &store.IndexerNetworkSubgraphMetadata{
					IndexerAddress:  r.Address,
					StakedTokens:    r.StakedTokens,
					AllocationCount: r.AllocationCount,
					URL:             r.URL,
				},
			}
		}
		return out, nil

	case "interceptor":
		s := src.Interceptor
		target := clientFor(s.Name, s.Target)
		return []poolEntry{{Address: s.Name, URL: s.Target, Client: indexer.NewInterceptor(s.Name, target, s.PoiByte)}}, nil

	default:
		return nil, xerrors.Errorf("unknown source type %q: %w", src.Type, errs.ErrSourceResolutionFailure)
	}
}
