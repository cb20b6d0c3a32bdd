package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Party events
	EventPartyCreated     = "party.created"
	EventPartyUpdated     = "party.updated"
	EventPartyDeactivated = "party.deactivated"

	// Ledger events
	EventItemCreated       = "ledger.item.created"
	EventTransferProposed  = "ledger.transfer.proposed"
	EventTransferCommitted = "ledger.transfer.committed"
	EventTransferRejected  = "ledger.transfer.rejected"
	EventRequestCreated    = "ledger.request.created"
	EventRequestDecided    = "ledger.request.decided"
)

// Exchange names
const (
	ExchangePartyEvents  = "party.events"
	ExchangeLedgerEvents = "ledger.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Party events

// PartyCreatedEvent is published when a party registers
type PartyCreatedEvent struct {
	PartyID      string `json:"party_id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	Organization string `json:"organization"`
}

// PartyUpdatedEvent is published when a party's profile changes
type PartyUpdatedEvent struct {
	PartyID string         `json:"party_id"`
	Fields  map[string]any `json:"fields"` // Changed fields
}

// PartyDeactivatedEvent is published when an admin deactivates a party
type PartyDeactivatedEvent struct {
	PartyID       string `json:"party_id"`
	DeactivatedBy string `json:"deactivated_by"`
}

// Ledger events

// ItemCreatedEvent is published when a trackable item is registered
type ItemCreatedEvent struct {
	ItemID       string `json:"item_id"`
	Kind         string `json:"kind"`
	Name         string `json:"name"`
	LotNumber    string `json:"lot_number,omitempty"`
	OriginatorID string `json:"originator_id"`
	InitialStock int64  `json:"initial_stock"`
}

// TransferProposedEvent is published when a transfer is proposed
type TransferProposedEvent struct {
	TransferID string `json:"transfer_id"`
	ItemID     string `json:"item_id"`
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Quantity   int64  `json:"quantity"`
}

// TransferCommittedEvent is published after the debit/credit pair is appended
type TransferCommittedEvent struct {
	TransferID string `json:"transfer_id"`
	ItemID     string `json:"item_id"`
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Quantity   int64  `json:"quantity"`
	UnitPrice  int64  `json:"unit_price"`
}

// TransferRejectedEvent is published when a proposed transfer is rejected
type TransferRejectedEvent struct {
	TransferID string `json:"transfer_id"`
	ItemID     string `json:"item_id"`
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Reason     string `json:"reason,omitempty"`
}

// RequestCreatedEvent is published when a supply request is filed
type RequestCreatedEvent struct {
	RequestID      string     `json:"request_id"`
	RequesterID    string     `json:"requester_id"`
	CounterpartyID string     `json:"counterparty_id"`
	ItemID         string     `json:"item_id"`
	Quantity       int64      `json:"quantity"`
	RequiredBy     *time.Time `json:"required_by,omitempty"`
}

// RequestDecidedEvent is published when the counterparty approves or rejects
type RequestDecidedEvent struct {
	RequestID string `json:"request_id"`
	Decision  string `json:"decision"`
	DecidedBy string `json:"decided_by"`
}
