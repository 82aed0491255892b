package pool

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/clearway/settle/internal/access"
	"github.com/clearway/settle/internal/events"
	"github.com/clearway/settle/internal/ledger"
	"github.com/clearway/settle/pkg/types"
	"go.uber.org/zap"
)

const usd = types.Token("USD")

type fixture struct {
	manager *Manager
	book    *ledger.Book
	guard   *access.Guard
	events  <-chan *events.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	bus := events.NewBus(128, logger)

	guard, err := access.NewGuard(&access.Config{Admin: "admin", Bus: bus, Logger: logger})
	if err != nil {
		t.Fatalf("create guard: %v", err)
	}

	book := ledger.NewBook(logger)

	manager, err := NewManager(&Config{
		Guard:           guard,
		Book:            book,
		Bus:             bus,
		RecoveryAccount: "recovery",
		Logger:          logger,
	})
	if err != nil {
		t.Fatalf("create manager: %v", err)
	}

	return &fixture{manager: manager, book: book, guard: guard, events: bus.Subscribe()}
}

func (f *fixture) drainEvent(t *testing.T, want events.Type) *events.Event {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case event := <-f.events:
			if event.Type == want {
				return event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event %s", want)
		}
	}
}

func (f *fixture) createPool(t *testing.T, budget types.Amount) *Pool {
	t.Helper()
	pool, err := f.manager.CreatePool("owner", "launch", budget, usd,
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	return pool
}

func (f *fixture) fundFully(t *testing.T, pool *Pool) {
	t.Helper()
	_ = f.book.Deposit("funder", usd, pool.TotalBudget)
	if err := f.manager.FundPool(pool.ID, "funder", pool.TotalBudget); err != nil {
		t.Fatalf("fund pool: %v", err)
	}
}

func evenSplit(accounts ...types.AccountID) []Participant {
	share := types.FullShare / types.BasisPoints(len(accounts))
	out := make([]Participant, len(accounts))
	var assigned types.BasisPoints
	for i, account := range accounts {
		out[i] = Participant{Account: account, ShareBPS: share}
		assigned += share
	}
	out[len(out)-1].ShareBPS += types.FullShare - assigned
	return out
}

func TestCreatePoolValidation(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, err := f.manager.CreatePool("owner", "p", 0, usd, start, start.AddDate(0, 1, 0)); err == nil {
		t.Error("expected zero budget to fail")
	}

	_, err := f.manager.CreatePool("owner", "p", 100, usd, start, start)
	if !errors.Is(err, types.NewError(types.ErrInvalidTimeRange, "")) {
		t.Errorf("expected INVALID_TIME_RANGE for end == start, got %v", err)
	}

	pool := f.createPool(t, 10000)
	if pool.Status != StatusDraft {
		t.Errorf("expected DRAFT, got %s", pool.Status)
	}
}

func TestFundPoolAutoActivates(t *testing.T) {
	f := newFixture(t)
	pool := f.createPool(t, 10000)
	_ = f.book.Deposit("funder", usd, 20000)

	if err := f.manager.FundPool(pool.ID, "funder", 4000); err != nil {
		t.Fatalf("partial funding failed: %v", err)
	}

	got, _ := f.manager.GetPool(pool.ID)
	if got.Status != StatusDraft {
		t.Errorf("expected DRAFT at partial funding, got %s", got.Status)
	}

	// Overfunding is rejected.
	err := f.manager.FundPool(pool.ID, "funder", 7000)
	if !errors.Is(err, types.NewError(types.ErrExceedsBudget, "")) {
		t.Errorf("expected EXCEEDS_BUDGET, got %v", err)
	}

	if err := f.manager.FundPool(pool.ID, "funder", 6000); err != nil {
		t.Fatalf("full funding failed: %v", err)
	}

	got, _ = f.manager.GetPool(pool.ID)
	if got.Status != StatusActive {
		t.Errorf("expected auto-activation at full funding, got %s", got.Status)
	}
	if got.Funded != 10000 {
		t.Errorf("expected funded 10000, got %d", got.Funded)
	}

	if got := f.book.Balance(pool.CustodyAccount(), usd); got != 10000 {
		t.Errorf("expected custody 10000, got %d", got)
	}
}

func TestFundPoolEventCarriesFundedTotal(t *testing.T) {
	f := newFixture(t)
	pool := f.createPool(t, 10000)
	_ = f.book.Deposit("funder", usd, 10000)

	if err := f.manager.FundPool(pool.ID, "funder", 4000); err != nil {
		t.Fatalf("partial funding failed: %v", err)
	}

	event := f.drainEvent(t, events.TypeFundingReceived)
	if event.Payload["funded"] != int64(4000) {
		t.Errorf("expected funded 4000 in event, got %v", event.Payload["funded"])
	}
	if event.Payload["activated"] != false {
		t.Error("partial funding event should not report activation")
	}

	if err := f.manager.FundPool(pool.ID, "funder", 6000); err != nil {
		t.Fatalf("full funding failed: %v", err)
	}

	event = f.drainEvent(t, events.TypeFundingReceived)
	if event.Payload["funded"] != int64(10000) {
		t.Errorf("expected funded 10000 in event, got %v", event.Payload["funded"])
	}
	if event.Payload["activated"] != true {
		t.Error("full funding event should report activation")
	}
}

func TestCreateMilestoneSharesMustSumToFull(t *testing.T) {
	f := newFixture(t)
	pool := f.createPool(t, 10000)
	f.fundFully(t, pool)

	_, err := f.manager.CreateMilestone(pool.ID, "owner", "m1", "", 2000,
		[]Participant{{Account: "a", ShareBPS: 6000}, {Account: "b", ShareBPS: 3000}},
		time.Now().AddDate(0, 1, 0))
	if !errors.Is(err, types.NewError(types.ErrSharesMismatch, "")) {
		t.Errorf("expected SHARES_MISMATCH for 9000 bps, got %v", err)
	}

	if _, err := f.manager.CreateMilestone(pool.ID, "owner", "m1", "", 2000,
		evenSplit("a", "b"), time.Now().AddDate(0, 1, 0)); err != nil {
		t.Errorf("valid milestone failed: %v", err)
	}
}

func TestCreateMilestoneBudgetTracking(t *testing.T) {
	f := newFixture(t)
	pool := f.createPool(t, 10000)
	f.fundFully(t, pool)
	deadline := time.Now().AddDate(0, 1, 0)

	first, err := f.manager.CreateMilestone(pool.ID, "owner", "m1", "", 7000, evenSplit("a"), deadline)
	if err != nil {
		t.Fatalf("first milestone failed: %v", err)
	}

	_, err = f.manager.CreateMilestone(pool.ID, "owner", "m2", "", 4000, evenSplit("a"), deadline)
	if !errors.Is(err, types.NewError(types.ErrExceedsRemaining, "")) {
		t.Fatalf("expected EXCEEDS_REMAINING_BUDGET, got %v", err)
	}

	// Rejecting the first milestone frees its budget for new milestones.
	if err := f.manager.SubmitWork(pool.ID, first.ID, "a", "link"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := f.manager.RejectMilestone(pool.ID, first.ID, "owner", "rework"); err != nil {
		t.Fatalf("reject: %v", err)
	}

	if _, err := f.manager.CreateMilestone(pool.ID, "owner", "m2", "", 4000, evenSplit("a"), deadline); err != nil {
		t.Errorf("milestone after rejection failed: %v", err)
	}
}

func TestCreateMilestoneOwnerOnly(t *testing.T) {
	f := newFixture(t)
	pool := f.createPool(t, 10000)

	_, err := f.manager.CreateMilestone(pool.ID, "stranger", "m1", "", 1000, evenSplit("a"), time.Now())
	if !errors.Is(err, types.NewError(types.ErrNotAuthorized, "")) {
		t.Errorf("expected NOT_AUTHORIZED, got %v", err)
	}
}

func TestSubmitWorkParticipantOnly(t *testing.T) {
	f := newFixture(t)
	pool := f.createPool(t, 10000)
	f.fundFully(t, pool)
	milestone, _ := f.manager.CreateMilestone(pool.ID, "owner", "m1", "", 2000, evenSplit("a", "b"), time.Now())

	err := f.manager.SubmitWork(pool.ID, milestone.ID, "outsider", "link")
	if !errors.Is(err, types.NewError(types.ErrNotAuthorized, "")) {
		t.Errorf("expected NOT_AUTHORIZED, got %v", err)
	}

	if err := f.manager.SubmitWork(pool.ID, milestone.ID, "a", "link"); err != nil {
		t.Fatalf("participant submit failed: %v", err)
	}

	got, _ := f.manager.GetMilestone(pool.ID, milestone.ID)
	if got.Status != MilestoneSubmitted || got.ProofLink != "link" {
		t.Errorf("expected SUBMITTED with proof link, got %s %q", got.Status, got.ProofLink)
	}
}

func TestQualityGateFlow(t *testing.T) {
	f := newFixture(t)
	pool := f.createPool(t, 10000)
	f.fundFully(t, pool)
	milestone, _ := f.manager.CreateMilestoneWithQualityGates(pool.ID, "owner", "m1", "", 2000,
		evenSplit("a"), time.Now(), []string{"lint", "audit"})

	_ = f.manager.SubmitWork(pool.ID, milestone.ID, "a", "link")

	// Approval fails while any gate is unpassed.
	err := f.manager.ApproveMilestone(pool.ID, milestone.ID, "owner")
	if !errors.Is(err, types.NewError(types.ErrGatesNotPassed, "")) {
		t.Fatalf("expected QUALITY_GATES_NOT_PASSED, got %v", err)
	}

	// Only registered reviewers may pass gates.
	if err := f.manager.PassQualityGate(pool.ID, milestone.ID, 0, "reviewer"); err == nil {
		t.Error("expected unregistered reviewer to fail")
	}

	if err := f.manager.AddReviewer(pool.ID, "owner", "reviewer"); err != nil {
		t.Fatalf("add reviewer: %v", err)
	}

	if err := f.manager.PassQualityGate(pool.ID, milestone.ID, 0, "reviewer"); err != nil {
		t.Fatalf("pass gate 0: %v", err)
	}
	// Idempotent per gate.
	if err := f.manager.PassQualityGate(pool.ID, milestone.ID, 0, "reviewer"); err != nil {
		t.Errorf("re-pass gate 0 failed: %v", err)
	}

	err = f.manager.ApproveMilestone(pool.ID, milestone.ID, "owner")
	if !errors.Is(err, types.NewError(types.ErrGatesNotPassed, "")) {
		t.Fatalf("expected approval blocked by gate 1, got %v", err)
	}

	_ = f.manager.PassQualityGate(pool.ID, milestone.ID, 1, "reviewer")

	if err := f.manager.ApproveMilestone(pool.ID, milestone.ID, "owner"); err != nil {
		t.Fatalf("approve after all gates failed: %v", err)
	}
}

func TestReleaseFundsPaysSharesWithRemainderToOwner(t *testing.T) {
	f := newFixture(t)
	pool := f.createPool(t, 10000)
	f.fundFully(t, pool)

	// 1001 split 50/50: each participant gets 500, remainder 1 to owner.
	milestone, err := f.manager.CreateMilestone(pool.ID, "owner", "m1", "", 1001,
		[]Participant{{Account: "a", ShareBPS: 5000}, {Account: "b", ShareBPS: 5000}}, time.Now())
	if err != nil {
		t.Fatalf("create milestone: %v", err)
	}

	_ = f.manager.SubmitWork(pool.ID, milestone.ID, "a", "link")
	_ = f.manager.ApproveMilestone(pool.ID, milestone.ID, "owner")

	if err := f.manager.ReleaseFunds(pool.ID, milestone.ID, "owner"); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	if got := f.book.Balance("a", usd); got != 500 {
		t.Errorf("participant a: expected 500, got %d", got)
	}
	if got := f.book.Balance("b", usd); got != 500 {
		t.Errorf("participant b: expected 500, got %d", got)
	}
	if got := f.book.Balance("owner", usd); got != 1 {
		t.Errorf("owner remainder: expected 1, got %d", got)
	}
}

func TestReleaseFundsGuards(t *testing.T) {
	f := newFixture(t)
	pool := f.createPool(t, 10000)
	f.fundFully(t, pool)
	milestone, _ := f.manager.CreateMilestone(pool.ID, "owner", "m1", "", 2000, evenSplit("a"), time.Now())

	// Not yet approved.
	err := f.manager.ReleaseFunds(pool.ID, milestone.ID, "owner")
	if !errors.Is(err, types.NewError(types.ErrMilestoneNotApproved, "")) {
		t.Fatalf("expected MILESTONE_NOT_APPROVED, got %v", err)
	}

	_ = f.manager.SubmitWork(pool.ID, milestone.ID, "a", "link")
	_ = f.manager.ApproveMilestone(pool.ID, milestone.ID, "owner")

	if err := f.manager.ReleaseFunds(pool.ID, milestone.ID, "owner"); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	balanceAfter := f.book.Balance("a", usd)

	// Second release fails and moves no funds.
	err = f.manager.ReleaseFunds(pool.ID, milestone.ID, "owner")
	if !errors.Is(err, types.NewError(types.ErrAlreadyReleased, "")) {
		t.Fatalf("expected ALREADY_RELEASED, got %v", err)
	}
	if got := f.book.Balance("a", usd); got != balanceAfter {
		t.Errorf("balance moved on repeated release: %d != %d", got, balanceAfter)
	}
}

func TestConcurrentReleaseExactlyOneSucceeds(t *testing.T) {
	f := newFixture(t)
	pool := f.createPool(t, 10000)
	f.fundFully(t, pool)
	milestone, _ := f.manager.CreateMilestone(pool.ID, "owner", "m1", "", 2000, evenSplit("a"), time.Now())
	_ = f.manager.SubmitWork(pool.ID, milestone.ID, "a", "link")
	_ = f.manager.ApproveMilestone(pool.ID, milestone.ID, "owner")

	var wg sync.WaitGroup
	successes := make(chan struct{}, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.manager.ReleaseFunds(pool.ID, milestone.ID, "owner"); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	count := 0
	for range successes {
		count++
	}
	if count != 1 {
		t.Errorf("expected exactly one successful release, got %d", count)
	}

	if got := f.book.Balance("a", usd); got != 2000 {
		t.Errorf("expected participant paid once (2000), got %d", got)
	}
}

func TestCancelPoolRefundsFundedMinusReleased(t *testing.T) {
	f := newFixture(t)
	pool := f.createPool(t, 10000)
	f.fundFully(t, pool)

	milestone, _ := f.manager.CreateMilestone(pool.ID, "owner", "m1", "", 2000, evenSplit("a"), time.Now())
	_ = f.manager.SubmitWork(pool.ID, milestone.ID, "a", "link")
	_ = f.manager.ApproveMilestone(pool.ID, milestone.ID, "owner")
	_ = f.manager.ReleaseFunds(pool.ID, milestone.ID, "owner")

	if err := f.manager.CancelPool(pool.ID, "owner"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	// Budget 10000, one milestone of 2000 released: refund is 8000.
	if got := f.book.Balance("owner", usd); got != 8000 {
		t.Errorf("expected owner refund 8000, got %d", got)
	}

	got, _ := f.manager.GetPool(pool.ID)
	if got.Status != StatusCancelled {
		t.Errorf("expected CANCELLED, got %s", got.Status)
	}

	if got := f.book.Balance(pool.CustodyAccount(), usd); got != 0 {
		t.Errorf("expected custody emptied, got %d", got)
	}
}

func TestCancelPoolRequiresActive(t *testing.T) {
	f := newFixture(t)
	pool := f.createPool(t, 10000)

	err := f.manager.CancelPool(pool.ID, "owner")
	if !errors.Is(err, types.NewError(types.ErrInvalidPoolStatus, "")) {
		t.Errorf("expected INVALID_POOL_STATUS for DRAFT cancel, got %v", err)
	}
}

func TestClosePoolDraftOnlyNothingCommitted(t *testing.T) {
	f := newFixture(t)
	pool := f.createPool(t, 10000)

	if err := f.manager.ClosePool(pool.ID, "stranger"); err == nil {
		t.Error("expected non-owner close to fail")
	}

	if err := f.manager.ClosePool(pool.ID, "owner"); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	// A partially funded draft cannot be closed.
	second := f.createPool(t, 5000)
	_ = f.book.Deposit("funder", usd, 1000)
	_ = f.manager.FundPool(second.ID, "funder", 1000)

	if err := f.manager.ClosePool(second.ID, "owner"); err == nil {
		t.Error("expected close of funded draft to fail")
	}
}

func TestEmergencyWithdrawSweepsEverything(t *testing.T) {
	f := newFixture(t)
	pool := f.createPool(t, 10000)
	f.fundFully(t, pool)

	if err := f.manager.EmergencyWithdraw(pool.ID, "owner"); err == nil {
		t.Error("expected non-admin emergency withdraw to fail")
	}

	if err := f.manager.EmergencyWithdraw(pool.ID, "admin"); err != nil {
		t.Fatalf("emergency withdraw failed: %v", err)
	}

	if got := f.book.Balance("recovery", usd); got != 10000 {
		t.Errorf("expected recovery account 10000, got %d", got)
	}

	got, _ := f.manager.GetPool(pool.ID)
	if got.Status != StatusEmergencyClosed {
		t.Errorf("expected EMERGENCY_CLOSED, got %s", got.Status)
	}

	// Repeating fails.
	if err := f.manager.EmergencyWithdraw(pool.ID, "admin"); err == nil {
		t.Error("expected second emergency withdraw to fail")
	}
}

func TestPauseBlocksMutationsReadsRemain(t *testing.T) {
	f := newFixture(t)
	pool := f.createPool(t, 10000)
	f.fundFully(t, pool)
	milestone, _ := f.manager.CreateMilestone(pool.ID, "owner", "m1", "", 2000, evenSplit("a"), time.Now())

	_ = f.guard.Pause("admin")
	paused := types.NewError(types.ErrSystemPaused, "")

	if _, err := f.manager.CreatePool("owner", "p2", 100, usd, time.Now(), time.Now().AddDate(0, 1, 0)); !errors.Is(err, paused) {
		t.Errorf("CreatePool: expected SYSTEM_PAUSED, got %v", err)
	}
	if err := f.manager.FundPool(pool.ID, "funder", 1); !errors.Is(err, paused) {
		t.Errorf("FundPool: expected SYSTEM_PAUSED, got %v", err)
	}
	if err := f.manager.SubmitWork(pool.ID, milestone.ID, "a", "l"); !errors.Is(err, paused) {
		t.Errorf("SubmitWork: expected SYSTEM_PAUSED, got %v", err)
	}
	if err := f.manager.ReleaseFunds(pool.ID, milestone.ID, "owner"); !errors.Is(err, paused) {
		t.Errorf("ReleaseFunds: expected SYSTEM_PAUSED, got %v", err)
	}

	if _, err := f.manager.GetPool(pool.ID); err != nil {
		t.Errorf("GetPool while paused failed: %v", err)
	}
	if _, err := f.manager.GetMilestone(pool.ID, milestone.ID); err != nil {
		t.Errorf("GetMilestone while paused failed: %v", err)
	}
}
