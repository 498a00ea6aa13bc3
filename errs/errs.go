// Package errs holds the machine-readable error taxonomy shared by every
// Graphix component, so a future graphqlapi server can map an error back
// to a GraphQL error code without importing store/poller/bisect and
// risking an import cycle.
package errs

import "golang.org/x/xerrors"

var (
	// ErrSourceResolutionFailure means a ConfigSource could not be
	// resolved into indexer endpoints (spec.md §4.1 step 1).
	ErrSourceResolutionFailure = xerrors.New("source resolution failure")

	// ErrIndexerUnavailable means a request to a specific indexer failed
	// or timed out.
	ErrIndexerUnavailable = xerrors.New("indexer unavailable")

	// ErrMalformedResponse means an indexer answered but its response
	// did not satisfy the wire invariants (e.g. a PoI hash that isn't
	// 0x-prefixed hex of 32 bytes).
	ErrMalformedResponse = xerrors.New("malformed response")

	// ErrStoreUnavailable means the relational store could not complete
	// an operation (connection failure, transaction abort).
	ErrStoreUnavailable = xerrors.New("store unavailable")

	// ErrBisectionUnresolvable means a bisection run could not converge:
	// no common ancestor was found, or a probe step timed out.
	ErrBisectionUnresolvable = xerrors.New("bisection unresolvable")

	// ErrInvestigationInputInvalid means a divergence investigation
	// request referenced PoI hashes that don't resolve, or that resolve
	// to different (deployment, block) pairs.
	ErrInvestigationInputInvalid = xerrors.New("investigation input invalid")
)
