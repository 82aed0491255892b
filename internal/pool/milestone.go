package pool

import (
	"time"

	"github.com/clearway/settle/internal/events"
	"github.com/clearway/settle/internal/ledger"
	"github.com/clearway/settle/pkg/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MilestoneStatus is the milestone lifecycle state. RELEASED is terminal
// and one-way; a milestone is released at most once.
type MilestoneStatus string

const (
	MilestoneCreated   MilestoneStatus = "CREATED"
	MilestoneSubmitted MilestoneStatus = "SUBMITTED"
	MilestoneApproved  MilestoneStatus = "APPROVED"
	MilestoneRejected  MilestoneStatus = "REJECTED"
	MilestoneReleased  MilestoneStatus = "RELEASED"
)

// Participant is one revenue-share member of a milestone.
type Participant struct {
	Account  types.AccountID
	ShareBPS types.BasisPoints
}

// QualityGate is a named precondition a reviewer must mark passed before
// the milestone can be approved.
type QualityGate struct {
	Index    int
	Label    string
	Passed   bool
	PassedBy types.AccountID
}

// Milestone is one funded work item inside a pool.
type Milestone struct {
	ID           string
	Title        string
	Description  string
	Amount       types.Amount
	Participants []Participant
	Deadline     time.Time
	Status       MilestoneStatus
	Gates        []QualityGate
	ProofLink    string
	RejectReason string
}

func (ms *Milestone) participant(account types.AccountID) bool {
	for _, p := range ms.Participants {
		if p.Account == account {
			return true
		}
	}
	return false
}

func (ms *Milestone) gatesPassed() bool {
	for _, g := range ms.Gates {
		if !g.Passed {
			return false
		}
	}
	return true
}

// CreateMilestone adds a milestone to the pool. Owner only. Shares must
// sum to exactly 10000 bps and the amount must fit the budget not yet
// committed to other non-rejected milestones.
func (m *Manager) CreateMilestone(poolID string, caller types.AccountID, title, description string, amount types.Amount, participants []Participant, deadline time.Time) (*Milestone, error) {
	return m.CreateMilestoneWithQualityGates(poolID, caller, title, description, amount, participants, deadline, nil)
}

// CreateMilestoneWithQualityGates adds a milestone whose approval is
// additionally gated on the given labels.
func (m *Manager) CreateMilestoneWithQualityGates(poolID string, caller types.AccountID, title, description string, amount types.Amount, participants []Participant, deadline time.Time, gateLabels []string) (*Milestone, error) {
	if err := m.guard.CheckNotPaused(); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, types.Errorf(types.ErrInvalidAmount, "milestone amount must be positive, got %d", amount)
	}
	if len(participants) == 0 {
		return nil, types.NewError(types.ErrSharesMismatch, "milestone requires at least one participant")
	}

	var shareSum types.BasisPoints
	for _, p := range participants {
		if p.Account.Zero() {
			return nil, types.NewError(types.ErrUnknownAccount, "participant account cannot be empty")
		}
		if !p.ShareBPS.Valid() {
			return nil, types.Errorf(types.ErrSharesMismatch, "share %d out of range", p.ShareBPS)
		}
		shareSum += p.ShareBPS
	}
	if shareSum != types.FullShare {
		return nil, types.Errorf(types.ErrSharesMismatch, "participant shares sum to %d, expected %d", shareSum, types.FullShare)
	}

	m.locks.Lock(poolID)
	defer m.locks.Unlock(poolID)

	pool, err := m.ownedPool(poolID, caller)
	if err != nil {
		return nil, err
	}
	if pool.Status != StatusDraft && pool.Status != StatusActive {
		return nil, types.Errorf(types.ErrInvalidPoolStatus, "pool %s is %s", poolID, pool.Status)
	}

	remaining := pool.TotalBudget - pool.committed()
	if amount > remaining {
		return nil, types.Errorf(types.ErrExceedsRemaining,
			"milestone amount %d exceeds remaining budget %d", amount, remaining)
	}

	gates := make([]QualityGate, len(gateLabels))
	for i, label := range gateLabels {
		gates[i] = QualityGate{Index: i, Label: label}
	}

	milestone := &Milestone{
		ID:           uuid.New().String(),
		Title:        title,
		Description:  description,
		Amount:       amount,
		Participants: append([]Participant(nil), participants...),
		Deadline:     deadline,
		Status:       MilestoneCreated,
		Gates:        gates,
	}

	m.mu.Lock()
	pool.Milestones = append(pool.Milestones, milestone)
	m.mu.Unlock()

	MilestonesCreatedTotal.Inc()

	m.logger.Info("milestone-created",
		zap.String("pool-id", poolID),
		zap.String("milestone-id", milestone.ID),
		zap.Int64("amount", int64(amount)),
		zap.Int("gates", len(gates)))

	m.bus.Publish(events.New(events.TypeMilestoneCreated).
		WithPool(poolID).
		Set("milestone_id", milestone.ID).
		Set("title", title).
		Set("participants", len(participants)).
		Set("gates", len(gates)).
		SetAmount("amount", amount))

	return milestone, nil
}

// SubmitWork moves a milestone CREATED -> SUBMITTED. Listed participants
// only.
func (m *Manager) SubmitWork(poolID, milestoneID string, caller types.AccountID, proofLink string) error {
	if err := m.guard.CheckNotPaused(); err != nil {
		return err
	}

	m.locks.Lock(poolID)
	defer m.locks.Unlock(poolID)

	pool, milestone, err := m.milestone(poolID, milestoneID)
	if err != nil {
		return err
	}
	if !milestone.participant(caller) {
		return types.Errorf(types.ErrNotAuthorized, "caller %s is not a participant of milestone %s", caller, milestoneID)
	}
	if milestone.Status != MilestoneCreated {
		return types.Errorf(types.ErrInvalidMilestone, "milestone %s is %s, submission requires CREATED", milestoneID, milestone.Status)
	}

	m.mu.Lock()
	milestone.Status = MilestoneSubmitted
	milestone.ProofLink = proofLink
	m.mu.Unlock()

	m.logger.Info("milestone-work-submitted",
		zap.String("pool-id", pool.ID),
		zap.String("milestone-id", milestoneID))

	m.bus.Publish(events.New(events.TypeWorkSubmitted).
		WithPool(pool.ID).
		Set("milestone_id", milestoneID).
		Set("by", string(caller)).
		Set("proof_link", proofLink))

	return nil
}

// PassQualityGate marks one gate passed. Registered reviewers only;
// idempotent per gate.
func (m *Manager) PassQualityGate(poolID, milestoneID string, gateIndex int, caller types.AccountID) error {
	if err := m.guard.CheckNotPaused(); err != nil {
		return err
	}

	m.locks.Lock(poolID)
	defer m.locks.Unlock(poolID)

	pool, milestone, err := m.milestone(poolID, milestoneID)
	if err != nil {
		return err
	}

	m.mu.RLock()
	_, isReviewer := pool.reviewers[caller]
	m.mu.RUnlock()
	if !isReviewer {
		return types.Errorf(types.ErrNotAuthorized, "caller %s is not a reviewer of pool %s", caller, poolID)
	}

	if gateIndex < 0 || gateIndex >= len(milestone.Gates) {
		return types.Errorf(types.ErrMilestoneNotFound, "milestone %s has no gate %d", milestoneID, gateIndex)
	}

	m.mu.Lock()
	if milestone.Gates[gateIndex].Passed {
		m.mu.Unlock()
		return nil // idempotent per gate
	}
	milestone.Gates[gateIndex].Passed = true
	milestone.Gates[gateIndex].PassedBy = caller
	label := milestone.Gates[gateIndex].Label
	m.mu.Unlock()

	m.logger.Info("quality-gate-passed",
		zap.String("pool-id", poolID),
		zap.String("milestone-id", milestoneID),
		zap.Int("gate", gateIndex))

	m.bus.Publish(events.New(events.TypeQualityGatePassed).
		WithPool(poolID).
		Set("milestone_id", milestoneID).
		Set("gate_index", gateIndex).
		Set("gate_label", label).
		Set("by", string(caller)))

	return nil
}

// ApproveMilestone moves SUBMITTED -> APPROVED. Owner only; every
// configured quality gate must already be passed.
func (m *Manager) ApproveMilestone(poolID, milestoneID string, caller types.AccountID) error {
	if err := m.guard.CheckNotPaused(); err != nil {
		return err
	}

	m.locks.Lock(poolID)
	defer m.locks.Unlock(poolID)

	pool, milestone, err := m.milestone(poolID, milestoneID)
	if err != nil {
		return err
	}
	if pool.Owner != caller {
		return types.Errorf(types.ErrNotAuthorized, "caller %s does not own pool %s", caller, poolID)
	}
	if milestone.Status != MilestoneSubmitted {
		return types.Errorf(types.ErrInvalidMilestone, "milestone %s is %s, approval requires SUBMITTED", milestoneID, milestone.Status)
	}
	if !milestone.gatesPassed() {
		return types.Errorf(types.ErrGatesNotPassed, "milestone %s has unpassed quality gates", milestoneID)
	}

	m.mu.Lock()
	milestone.Status = MilestoneApproved
	m.mu.Unlock()

	m.logger.Info("milestone-approved",
		zap.String("pool-id", poolID),
		zap.String("milestone-id", milestoneID))

	m.bus.Publish(events.New(events.TypeMilestoneApproved).
		WithPool(poolID).
		Set("milestone_id", milestoneID))

	return nil
}

// RejectMilestone moves SUBMITTED -> REJECTED (terminal). Owner only.
// The milestone's committed budget becomes available again.
func (m *Manager) RejectMilestone(poolID, milestoneID string, caller types.AccountID, reason string) error {
	if err := m.guard.CheckNotPaused(); err != nil {
		return err
	}

	m.locks.Lock(poolID)
	defer m.locks.Unlock(poolID)

	pool, milestone, err := m.milestone(poolID, milestoneID)
	if err != nil {
		return err
	}
	if pool.Owner != caller {
		return types.Errorf(types.ErrNotAuthorized, "caller %s does not own pool %s", caller, poolID)
	}
	if milestone.Status != MilestoneSubmitted {
		return types.Errorf(types.ErrInvalidMilestone, "milestone %s is %s, rejection requires SUBMITTED", milestoneID, milestone.Status)
	}

	m.mu.Lock()
	milestone.Status = MilestoneRejected
	milestone.RejectReason = reason
	m.mu.Unlock()

	m.logger.Info("milestone-rejected",
		zap.String("pool-id", poolID),
		zap.String("milestone-id", milestoneID),
		zap.String("reason", reason))

	m.bus.Publish(events.New(events.TypeMilestoneRejected).
		WithPool(poolID).
		Set("milestone_id", milestoneID).
		Set("reason", reason))

	return nil
}

// ReleaseFunds pays every participant floor(amount * share / 10000) from
// pool custody, with the rounding remainder going to the pool owner, and
// moves the milestone to RELEASED. The transfer and the transition are
// one unit of work; a released milestone can never be released again.
func (m *Manager) ReleaseFunds(poolID, milestoneID string, caller types.AccountID) error {
	if err := m.guard.CheckNotPaused(); err != nil {
		return err
	}

	m.locks.Lock(poolID)
	defer m.locks.Unlock(poolID)

	pool, milestone, err := m.milestone(poolID, milestoneID)
	if err != nil {
		return err
	}
	if pool.Owner != caller {
		return types.Errorf(types.ErrNotAuthorized, "caller %s does not own pool %s", caller, poolID)
	}
	if milestone.Status == MilestoneReleased {
		return types.Errorf(types.ErrAlreadyReleased, "milestone %s is already released", milestoneID)
	}
	if milestone.Status != MilestoneApproved {
		return types.Errorf(types.ErrMilestoneNotApproved, "milestone %s is %s, release requires APPROVED", milestoneID, milestone.Status)
	}

	legs := make([]ledger.Leg, 0, len(milestone.Participants)+1)
	var distributed types.Amount
	for _, p := range milestone.Participants {
		share := milestone.Amount.ApplyBPS(p.ShareBPS)
		distributed += share
		legs = append(legs, ledger.Leg{To: p.Account, Amount: share})
	}
	if remainder := milestone.Amount - distributed; remainder > 0 {
		legs = append(legs, ledger.Leg{To: pool.Owner, Amount: remainder})
	}

	if err := m.book.TransferBatch(pool.CustodyAccount(), pool.Token, legs); err != nil {
		return err
	}

	m.mu.Lock()
	milestone.Status = MilestoneReleased
	m.mu.Unlock()

	ReleasesTotal.Inc()
	ReleasedValueTotal.Add(float64(milestone.Amount))

	m.logger.Info("milestone-funds-released",
		zap.String("pool-id", poolID),
		zap.String("milestone-id", milestoneID),
		zap.Int64("amount", int64(milestone.Amount)))

	m.bus.Publish(events.New(events.TypeFundsReleased).
		WithPool(poolID).
		Set("milestone_id", milestoneID).
		Set("participants", len(milestone.Participants)).
		SetAmount("amount", milestone.Amount))

	return nil
}

// GetMilestone returns a snapshot of one milestone.
func (m *Manager) GetMilestone(poolID, milestoneID string) (*Milestone, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pool, ok := m.pools[poolID]
	if !ok {
		return nil, types.Errorf(types.ErrPoolNotFound, "pool %s is unknown", poolID)
	}
	for _, milestone := range pool.Milestones {
		if milestone.ID == milestoneID {
			mc := *milestone
			mc.Participants = append([]Participant(nil), milestone.Participants...)
			mc.Gates = append([]QualityGate(nil), milestone.Gates...)
			return &mc, nil
		}
	}
	return nil, types.Errorf(types.ErrMilestoneNotFound, "milestone %s is unknown in pool %s", milestoneID, poolID)
}

// milestone resolves (pool, milestone); callers hold the pool lock.
func (m *Manager) milestone(poolID, milestoneID string) (*Pool, *Milestone, error) {
	pool, err := m.lookup(poolID)
	if err != nil {
		return nil, nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, milestone := range pool.Milestones {
		if milestone.ID == milestoneID {
			return pool, milestone, nil
		}
	}
	return nil, nil, types.Errorf(types.ErrMilestoneNotFound, "milestone %s is unknown in pool %s", milestoneID, poolID)
}
