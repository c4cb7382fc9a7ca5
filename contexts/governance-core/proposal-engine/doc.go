// Package proposalengine implements the proposal governance engine inside
// the governance-core context.
//
// The module owns the proposal lifecycle (draft/open/closed/finalized),
// vote acceptance with cast-time voting power, quorum evaluation against
// the open-time eligible-power snapshot, and winner determination with a
// deterministic tie-break. It keeps business rules in domain/application
// layers and isolates infrastructure concerns behind ports and adapters.
package proposalengine
