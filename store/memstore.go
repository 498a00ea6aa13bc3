package store

import (
	"context"
	"sort"
	"sync"
)

// MemStore is an in-memory Store used by tests that exercise the Poller
// and DivergenceInvestigator without a database, adapted from the
// teacher's MemStorage test double but implemented as a direct Store
// rather than a reflection-driven persistence sink, since Graphix's
// Store is a small fixed capability rather than an open-ended model
// registry.
type MemStore struct {
	mu sync.Mutex

	networks    map[string]Network
	indexers    map[string]Indexer
	deployments map[string]SgDeployment
	blocks      map[string]Block
	pois        []PoI
	livePois    map[string]LivePoi // key: deployment+"|"+indexer
	versions    []IndexerVersion
	metadata    map[string]IndexerNetworkSubgraphMetadata
	failed      []FailedQuery
	pending     map[string]PendingDivergenceInvestigationRequest
	reports     map[string]DivergenceInvestigationReport
	configs     []Config

	nextPoiID int64
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		networks:    map[string]Network{},
		indexers:    map[string]Indexer{},
		deployments: map[string]SgDeployment{},
		blocks:      map[string]Block{},
		livePois:    map[string]LivePoi{},
		metadata:    map[string]IndexerNetworkSubgraphMetadata{},
		pending:     map[string]PendingDivergenceInvestigationRequest{},
		reports:     map[string]DivergenceInvestigationReport{},
	}
}

func liveKey(deployment, indexer string) string { return deployment + "|" + indexer }
func blockKey(b Block) string                   { return b.NetworkName + "|" + b.Hash }

func (m *MemStore) Close() error { return nil }

func (m *MemStore) PersistRound(ctx context.Context, obs RoundObservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.upsertIndexerLocked(Indexer{Address: obs.IndexerAddress, URL: obs.IndexerURL})

	for _, n := range obs.Networks {
		if _, ok := m.networks[n.Name]; !ok {
			if n.CreatedAt.IsZero() {
				n.CreatedAt = now()
			}
			m.networks[n.Name] = n
		}
	}
	for _, d := range obs.Deployments {
		if d.CreatedAt.IsZero() {
			d.CreatedAt = now()
		}
		m.deployments[d.IPFSHash] = d
	}
	for _, b := range obs.Blocks {
		m.blocks[blockKey(b)] = b
	}
	for _, poi := range obs.Pois {
		existing := -1
		for i, p := range m.pois {
			if p.DeploymentIPFSHash == poi.DeploymentIPFSHash && p.IndexerAddress == poi.IndexerAddress && p.BlockNumber == poi.BlockNumber {
				existing = i
				break
			}
		}
		if existing >= 0 {
			m.pois[existing].Hash, m.pois[existing].BlockHash = poi.Hash, poi.BlockHash
			poi = m.pois[existing]
		} else {
			m.nextPoiID++
			poi.ID = m.nextPoiID
			if poi.CreatedAt.IsZero() {
				poi.CreatedAt = now()
			}
			m.pois = append(m.pois, poi)
		}

		m.livePois[liveKey(poi.DeploymentIPFSHash, poi.IndexerAddress)] = LivePoi{
			DeploymentIPFSHash: poi.DeploymentIPFSHash,
			IndexerAddress:     poi.IndexerAddress,
			PoiID:              poi.ID,
			NetworkName:        poi.NetworkName,
			BlockNumber:        poi.BlockNumber,
			BlockHash:          poi.BlockHash,
			Hash:               poi.Hash,
			UpdatedAt:          now(),
		}
	}
	return nil
}

func (m *MemStore) RecordFailedQuery(ctx context.Context, fq FailedQuery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fq.RequestedAt.IsZero() {
		fq.RequestedAt = now()
	}
	m.failed = append(m.failed, fq)
	return nil
}

func (m *MemStore) UpsertIndexer(ctx context.Context, idx Indexer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertIndexerLocked(idx)
	return nil
}

// upsertIndexerLocked mirrors DB's upsertIndexer's COALESCE-on-empty
// semantics: an empty URL or display name never clobbers an existing
// value. Caller holds m.mu.
func (m *MemStore) upsertIndexerLocked(idx Indexer) {
	if existing, ok := m.indexers[idx.Address]; ok {
		if idx.DisplayName == "" {
			idx.DisplayName = existing.DisplayName
		}
		if idx.URL == "" {
			idx.URL = existing.URL
		}
		idx.CreatedAt = existing.CreatedAt
	} else if idx.CreatedAt.IsZero() {
		idx.CreatedAt = now()
	}
	m.indexers[idx.Address] = idx
}

func (m *MemStore) RecordIndexerVersion(ctx context.Context, v IndexerVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now()
	}
	m.versions = append(m.versions, v)
	return nil
}

func (m *MemStore) UpsertIndexerMetadata(ctx context.Context, md IndexerNetworkSubgraphMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if md.RefreshedAt.IsZero() {
		md.RefreshedAt = now()
	}
	m.metadata[md.IndexerAddress] = md
	return nil
}

func (m *MemStore) Indexers(ctx context.Context) ([]Indexer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Indexer, 0, len(m.indexers))
	for _, idx := range m.indexers {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

func (m *MemStore) Deployments(ctx context.Context) ([]SgDeployment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SgDeployment, 0, len(m.deployments))
	for _, d := range m.deployments {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IPFSHash < out[j].IPFSHash })
	return out, nil
}

func (m *MemStore) LivePoisForDeployment(ctx context.Context, deploymentIPFSHash string) ([]LivePoi, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []LivePoi
	for _, l := range m.livePois {
		if l.DeploymentIPFSHash == deploymentIPFSHash {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IndexerAddress < out[j].IndexerAddress })
	return out, nil
}

func (m *MemStore) LiveDeploymentsForIndexer(ctx context.Context, indexerAddress string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, l := range m.livePois {
		if l.IndexerAddress == indexerAddress {
			out = append(out, l.DeploymentIPFSHash)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemStore) ResolveLivePoi(ctx context.Context, poiHash string) (*LivePoi, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *LivePoi
	for k := range m.livePois {
		l := m.livePois[k]
		if l.Hash != poiHash {
			continue
		}
		if best == nil || l.UpdatedAt.After(best.UpdatedAt) {
			lCopy := l
			best = &lCopy
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}

func (m *MemStore) EnqueueDivergenceInvestigation(ctx context.Context, req PendingDivergenceInvestigationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now()
	}
	m.pending[req.UUID] = req
	return nil
}

func (m *MemStore) NextPendingDivergenceInvestigation(ctx context.Context) (*PendingDivergenceInvestigationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *PendingDivergenceInvestigationRequest
	for k := range m.pending {
		r := m.pending[k]
		if best == nil || r.CreatedAt.Before(best.CreatedAt) {
			rCopy := r
			best = &rCopy
		}
	}
	return best, nil
}

func (m *MemStore) CompleteDivergenceInvestigation(ctx context.Context, report DivergenceInvestigationReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now()
	}
	m.reports[report.UUID] = report
	delete(m.pending, report.UUID)
	return nil
}

func (m *MemStore) DivergenceInvestigationReport(ctx context.Context, uuid string) (*DivergenceInvestigationReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[uuid]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *MemStore) SaveConfigSnapshot(ctx context.Context, raw string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs = append(m.configs, Config{ID: int64(len(m.configs)) + 1, JSON: raw, CreatedAt: now()})
	return nil
}
