// Package events defines the engine's only required output boundary:
// typed events emitted on every state change, carrying enough data to
// reconstruct the change without re-querying the engine.
package events

import (
	"time"

	"github.com/clearway/settle/pkg/types"
	"github.com/google/uuid"
)

// Type identifies what state change an event describes.
type Type string

const (
	TypeSplitConfigSet        Type = "SplitConfigSet"
	TypeOrderSynced           Type = "OrderSynced"
	TypeOrderDisputeSet       Type = "OrderDisputeSet"
	TypePaymentReceived       Type = "PaymentReceived"
	TypePaymentAutoSplit      Type = "PaymentAutoSplit"
	TypeScannedProductPayment Type = "ScannedProductPayment"
	TypeCommissionRecorded    Type = "CommissionRecorded"
	TypeCommissionDistributed Type = "CommissionDistributed"
	TypeSettlementCreated     Type = "SettlementCreated"
	TypePoolCreated           Type = "PoolCreated"
	TypeFundingReceived       Type = "FundingReceived"
	TypeMilestoneCreated      Type = "MilestoneCreated"
	TypeWorkSubmitted         Type = "WorkSubmitted"
	TypeQualityGatePassed     Type = "QualityGatePassed"
	TypeMilestoneApproved     Type = "MilestoneApproved"
	TypeMilestoneRejected     Type = "MilestoneRejected"
	TypeFundsReleased         Type = "FundsReleased"
	TypePoolClosed            Type = "PoolClosed"
	TypePoolCancelled         Type = "PoolCancelled"
	TypeEmergencyWithdrawal   Type = "EmergencyWithdrawal"
	TypeSystemPaused          Type = "SystemPaused"
	TypeSystemUnpaused        Type = "SystemUnpaused"
)

// Event is one emitted state change.
type Event struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	OrderID   string         `json:"order_id,omitempty"`
	PoolID    string         `json:"pool_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	EmittedAt time.Time      `json:"emitted_at"`
}

// New builds an event with a fresh ID and timestamp.
func New(eventType Type) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Payload:   make(map[string]any),
		EmittedAt: time.Now().UTC(),
	}
}

// WithOrder tags the event with an order reference.
func (e *Event) WithOrder(orderID string) *Event {
	e.OrderID = orderID
	return e
}

// WithPool tags the event with a pool reference.
func (e *Event) WithPool(poolID string) *Event {
	e.PoolID = poolID
	return e
}

// Set adds one payload field.
func (e *Event) Set(key string, value any) *Event {
	e.Payload[key] = value
	return e
}

// SetAmount adds a monetary payload field as int64.
func (e *Event) SetAmount(key string, amount types.Amount) *Event {
	e.Payload[key] = int64(amount)
	return e
}
