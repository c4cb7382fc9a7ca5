package commands

import (
	"encoding/json"
	"time"

	"agora/contexts/governance-core/proposal-engine/ports"
)

const (
	EventProposalOpened    = "proposal.opened"
	EventProposalClosed    = "proposal.closed"
	EventProposalFinalized = "proposal.finalized"
)

func newGovernanceEnvelope(
	eventID string,
	eventType string,
	proposalID string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	// Lifecycle events are partitioned by proposal so consumers observe one
	// proposal's transitions in order.
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "proposal-engine",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "proposal_id",
		PartitionKey:     proposalID,
		Data:             payload,
	}, nil
}
