package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"agora/contexts/governance-core/proposal-engine/domain/entities"
	domainerrors "agora/contexts/governance-core/proposal-engine/domain/errors"
	"agora/contexts/governance-core/proposal-engine/domain/tally"
	"agora/contexts/governance-core/proposal-engine/ports"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

// Store is the in-memory adapter used by tests and local wiring. It keeps
// the same conflict semantics as the postgres adapter: conditional status
// transitions and a (proposal_id, user_id) vote uniqueness guarantee, all
// under one mutex so checks and writes are a single atomic unit.
type Store struct {
	mu sync.Mutex

	proposals     map[string]entities.Proposal
	options       map[string][]entities.ProposalOption
	votes         map[string]map[string]entities.Vote // proposalID -> userID -> vote
	organizations map[string]entities.Organization
	holdings      map[string][]entities.ShareHolding // organizationID -> holdings
	outbox        map[string]outboxRecord

	now *time.Time
}

func NewStore() *Store {
	return &Store{
		proposals:     make(map[string]entities.Proposal),
		options:       make(map[string][]entities.ProposalOption),
		votes:         make(map[string]map[string]entities.Vote),
		organizations: make(map[string]entities.Organization),
		holdings:      make(map[string][]entities.ShareHolding),
		outbox:        make(map[string]outboxRecord),
	}
}

// SetNow pins the store clock for deterministic tests; zero value falls
// back to wall time.
func (s *Store) SetNow(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pinned := now.UTC()
	s.now = &pinned
}

func (s *Store) SetOrganization(organization entities.Organization) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.organizations[strings.TrimSpace(organization.OrganizationID)] = organization
}

// SetHolding registers one user's balance in one share type. Replaces any
// previous holding for the same (user, share type) pair, mirroring the
// external issuance subsystem overwriting a balance.
func (s *Store) SetHolding(organizationID string, holding entities.ShareHolding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	orgID := strings.TrimSpace(organizationID)
	existing := s.holdings[orgID]
	filtered := make([]entities.ShareHolding, 0, len(existing)+1)
	for _, item := range existing {
		if item.UserID == holding.UserID && item.ShareTypeID == holding.ShareTypeID {
			continue
		}
		filtered = append(filtered, item)
	}
	s.holdings[orgID] = append(filtered, holding)
}

func (s *Store) SaveProposal(_ context.Context, proposal entities.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proposals[proposal.ProposalID] = proposal
	return nil
}

func (s *Store) GetProposal(_ context.Context, proposalID string) (entities.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	proposal, ok := s.proposals[strings.TrimSpace(proposalID)]
	if !ok {
		return entities.Proposal{}, domainerrors.ErrProposalNotFound
	}
	return proposal, nil
}

func (s *Store) ListProposalsByOrganization(_ context.Context, organizationID string) ([]entities.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]entities.Proposal, 0)
	for _, proposal := range s.proposals {
		if proposal.OrganizationID == strings.TrimSpace(organizationID) {
			items = append(items, proposal)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) UpdateProposalMetadata(_ context.Context, proposal entities.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.proposals[proposal.ProposalID]
	if !ok {
		return domainerrors.ErrProposalNotFound
	}
	if current.Status != entities.ProposalStatusDraft && current.Status != entities.ProposalStatusOpen {
		return domainerrors.ErrInvalidTransition
	}
	current.Title = proposal.Title
	current.Description = proposal.Description
	current.StartAt = proposal.StartAt
	current.EndAt = proposal.EndAt
	current.QuorumRequirement = proposal.QuorumRequirement
	current.UpdatedAt = proposal.UpdatedAt
	s.proposals[current.ProposalID] = current
	return nil
}

func (s *Store) OpenProposal(
	_ context.Context,
	proposalID string,
	snapshot decimal.Decimal,
	openedAt time.Time,
) (entities.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	proposal, ok := s.proposals[strings.TrimSpace(proposalID)]
	if !ok {
		return entities.Proposal{}, domainerrors.ErrProposalNotFound
	}
	if proposal.Status != entities.ProposalStatusDraft {
		return entities.Proposal{}, domainerrors.ErrInvalidTransition
	}
	if len(s.options[proposal.ProposalID]) < 2 {
		return entities.Proposal{}, domainerrors.ErrInsufficientOptions
	}
	proposal.Status = entities.ProposalStatusOpen
	proposal.EligibleVotingPowerSnapshot = snapshot
	proposal.UpdatedAt = openedAt.UTC()
	s.proposals[proposal.ProposalID] = proposal
	return proposal, nil
}

func (s *Store) CloseProposal(
	_ context.Context,
	proposalID string,
	closedAt time.Time,
) (entities.Proposal, tally.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	proposal, ok := s.proposals[strings.TrimSpace(proposalID)]
	if !ok {
		return entities.Proposal{}, tally.Outcome{}, domainerrors.ErrProposalNotFound
	}
	if proposal.Status != entities.ProposalStatusOpen {
		return entities.Proposal{}, tally.Outcome{}, domainerrors.ErrInvalidTransition
	}

	votes := s.votesForProposalLocked(proposal.ProposalID)
	outcome := tally.Compute(votes, proposal.EligibleVotingPowerSnapshot, proposal.QuorumRequirement)

	timestamp := closedAt.UTC()
	proposal.Status = entities.ProposalStatusClosed
	proposal.TotalVotesCast = outcome.TotalVotesCast
	proposal.WinningOptionID = outcome.WinningOptionID
	proposal.QuorumMet = outcome.QuorumMet
	proposal.ClosedAt = &timestamp
	proposal.ResultsDigest = tally.Digest(outcome)
	proposal.UpdatedAt = timestamp
	s.proposals[proposal.ProposalID] = proposal
	return proposal, outcome, nil
}

func (s *Store) FinalizeProposal(
	_ context.Context,
	proposalID string,
	finalizedAt time.Time,
) (entities.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	proposal, ok := s.proposals[strings.TrimSpace(proposalID)]
	if !ok {
		return entities.Proposal{}, domainerrors.ErrProposalNotFound
	}
	if proposal.Status != entities.ProposalStatusClosed {
		return entities.Proposal{}, domainerrors.ErrInvalidTransition
	}
	timestamp := finalizedAt.UTC()
	proposal.Status = entities.ProposalStatusFinalized
	proposal.FinalizedAt = &timestamp
	proposal.UpdatedAt = timestamp
	s.proposals[proposal.ProposalID] = proposal
	return proposal, nil
}

func (s *Store) AddOption(_ context.Context, option entities.ProposalOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.proposals[option.ProposalID]; !ok {
		return domainerrors.ErrProposalNotFound
	}
	s.options[option.ProposalID] = append(s.options[option.ProposalID], option)
	return nil
}

func (s *Store) DeleteOption(_ context.Context, proposalID string, optionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	proposal, ok := s.proposals[strings.TrimSpace(proposalID)]
	if !ok {
		return domainerrors.ErrProposalNotFound
	}
	// Same guarantees as the SQL adapter: draft status and the zero-vote
	// rule rechecked inside the critical section of the delete.
	if proposal.Status != entities.ProposalStatusDraft {
		return domainerrors.ErrOptionNotDeletable
	}
	for _, vote := range s.votes[proposal.ProposalID] {
		if vote.OptionID == strings.TrimSpace(optionID) {
			return domainerrors.ErrOptionHasVotes
		}
	}
	options := s.options[strings.TrimSpace(proposalID)]
	filtered := make([]entities.ProposalOption, 0, len(options))
	found := false
	for _, option := range options {
		if option.OptionID == strings.TrimSpace(optionID) {
			found = true
			continue
		}
		filtered = append(filtered, option)
	}
	if !found {
		return domainerrors.ErrOptionNotFound
	}
	s.options[strings.TrimSpace(proposalID)] = filtered
	return nil
}

func (s *Store) ListOptions(_ context.Context, proposalID string) ([]entities.ProposalOption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	options := s.options[strings.TrimSpace(proposalID)]
	items := make([]entities.ProposalOption, len(options))
	copy(items, options)
	sort.Slice(items, func(i, j int) bool {
		return items[i].OptionID < items[j].OptionID
	})
	return items, nil
}

func (s *Store) ListDueForOpen(_ context.Context, now time.Time, limit int) ([]entities.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dueLocked(entities.ProposalStatusDraft, now, limit, func(p entities.Proposal) *time.Time {
		return p.StartAt
	}), nil
}

func (s *Store) ListDueForClose(_ context.Context, now time.Time, limit int) ([]entities.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dueLocked(entities.ProposalStatusOpen, now, limit, func(p entities.Proposal) *time.Time {
		return p.EndAt
	}), nil
}

func (s *Store) dueLocked(
	status entities.ProposalStatus,
	now time.Time,
	limit int,
	bound func(entities.Proposal) *time.Time,
) []entities.Proposal {
	items := make([]entities.Proposal, 0)
	for _, proposal := range s.proposals {
		at := bound(proposal)
		if proposal.Status != status || at == nil || at.UTC().After(now.UTC()) {
			continue
		}
		items = append(items, proposal)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].ProposalID < items[j].ProposalID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func (s *Store) InsertVote(_ context.Context, vote entities.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	proposal, ok := s.proposals[vote.ProposalID]
	if !ok {
		return domainerrors.ErrProposalNotFound
	}
	// Same guarantees as the SQL adapter: status rechecked and uniqueness
	// enforced inside the mutation's critical section.
	if proposal.Status != entities.ProposalStatusOpen {
		return domainerrors.ErrProposalNotOpen
	}
	byUser, ok := s.votes[vote.ProposalID]
	if !ok {
		byUser = make(map[string]entities.Vote)
		s.votes[vote.ProposalID] = byUser
	}
	if _, exists := byUser[vote.UserID]; exists {
		return domainerrors.ErrDuplicateVote
	}
	byUser[vote.UserID] = vote
	return nil
}

func (s *Store) GetVoteByIdentity(_ context.Context, proposalID string, userID string) (entities.Vote, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vote, ok := s.votes[strings.TrimSpace(proposalID)][strings.TrimSpace(userID)]
	return vote, ok, nil
}

func (s *Store) ListVotesByProposal(_ context.Context, proposalID string) ([]entities.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.votesForProposalLocked(strings.TrimSpace(proposalID)), nil
}

func (s *Store) OptionHasVotes(_ context.Context, proposalID string, optionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, vote := range s.votes[strings.TrimSpace(proposalID)] {
		if vote.OptionID == strings.TrimSpace(optionID) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) votesForProposalLocked(proposalID string) []entities.Vote {
	byUser := s.votes[proposalID]
	items := make([]entities.Vote, 0, len(byUser))
	for _, vote := range byUser {
		items = append(items, vote)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CastAt.Before(items[j].CastAt)
	})
	return items
}

func (s *Store) GetBalances(_ context.Context, userID string, organizationID string) ([]entities.ShareHolding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]entities.ShareHolding, 0)
	for _, holding := range s.holdings[strings.TrimSpace(organizationID)] {
		if holding.UserID == strings.TrimSpace(userID) {
			items = append(items, holding)
		}
	}
	return items, nil
}

func (s *Store) GetAllBalances(_ context.Context, organizationID string) ([]entities.ShareHolding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	holdings := s.holdings[strings.TrimSpace(organizationID)]
	items := make([]entities.ShareHolding, len(holdings))
	copy(items, holdings)
	return items, nil
}

func (s *Store) GetOrganization(_ context.Context, organizationID string) (entities.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	organization, ok := s.organizations[strings.TrimSpace(organizationID)]
	if !ok {
		return entities.Organization{}, domainerrors.ErrOrganizationNotFound
	}
	return organization, nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	outboxID := envelope.EventID
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if _, exists := s.outbox[outboxID]; exists {
		return nil
	}
	payload, err := encodeEnvelope(envelope)
	if err != nil {
		return err
	}
	s.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    envelope.EventType,
			PartitionKey: envelope.PartitionKey,
			Payload:      payload,
			CreatedAt:    envelope.OccurredAt.UTC(),
		},
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]ports.OutboxMessage, 0)
	for _, record := range s.outbox {
		if record.published {
			continue
		}
		items = append(items, record.message)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].OutboxID < items[j].OutboxID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrConflict
	}
	record.published = true
	s.outbox[strings.TrimSpace(outboxID)] = record
	return nil
}

// EventTypes returns the event types appended so far, oldest first. Test
// helper.
func (s *Store) EventTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]ports.OutboxMessage, 0, len(s.outbox))
	for _, record := range s.outbox {
		records = append(records, record.message)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].OutboxID < records[j].OutboxID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	types := make([]string, 0, len(records))
	for _, record := range records {
		types = append(types, record.EventType)
	}
	return types
}

func (s *Store) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.now != nil {
		return *s.now
	}
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func encodeEnvelope(envelope ports.EventEnvelope) ([]byte, error) {
	return json.Marshal(envelope)
}

var _ ports.ProposalRepository = (*Store)(nil)
var _ ports.VoteRepository = (*Store)(nil)
var _ ports.BalanceProvider = (*Store)(nil)
var _ ports.OrganizationProvider = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
