package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// PartyFixture represents test party data
type PartyFixture struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	Active       bool
	CreatedAt    time.Time
}

// ItemFixture represents test item data
type ItemFixture struct {
	ID                string
	Kind              string
	Name              string
	Unit              string
	UnitPrice         int64
	OriginatorID      string
	LotNumber         *string
	ManufacturingDate *time.Time
	ExpiryDate        *time.Time
	CreatedAt         time.Time
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Party creates a party fixture with defaults
func (f *FixtureFactory) Party(opts ...func(*PartyFixture)) PartyFixture {
	seq := f.nextSeq()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)

	party := PartyFixture{
		ID:           uuid.New().String(),
		Name:         fmt.Sprintf("Party %d", seq),
		Email:        fmt.Sprintf("party%d@test.pharmachain.io", seq),
		PasswordHash: string(hash),
		Role:         "distributor",
		Active:       true,
		CreatedAt:    time.Now(),
	}

	for _, opt := range opts {
		opt(&party)
	}

	return party
}

// WithRole sets the party role
func WithRole(role string) func(*PartyFixture) {
	return func(p *PartyFixture) {
		p.Role = role
	}
}

// WithEmail sets the party email
func WithEmail(email string) func(*PartyFixture) {
	return func(p *PartyFixture) {
		p.Email = email
	}
}

// WithPassword sets the party password (hashed)
func WithPassword(password string) func(*PartyFixture) {
	return func(p *PartyFixture) {
		hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		p.PasswordHash = string(hash)
	}
}

// Item creates an item fixture with defaults
func (f *FixtureFactory) Item(opts ...func(*ItemFixture)) ItemFixture {
	seq := f.nextSeq()

	item := ItemFixture{
		ID:           uuid.New().String(),
		Kind:         "raw_material",
		Name:         fmt.Sprintf("Item %d", seq),
		Unit:         "kg",
		UnitPrice:    100,
		OriginatorID: uuid.New().String(),
		CreatedAt:    time.Now(),
	}

	for _, opt := range opts {
		opt(&item)
	}

	return item
}

// WithKind sets the item kind
func WithKind(kind string) func(*ItemFixture) {
	return func(i *ItemFixture) {
		i.Kind = kind
	}
}

// WithOriginator sets the item originator
func WithOriginator(partyID string) func(*ItemFixture) {
	return func(i *ItemFixture) {
		i.OriginatorID = partyID
	}
}

// WithExpiry sets the item lot expiry date
func WithExpiry(expiry time.Time) func(*ItemFixture) {
	return func(i *ItemFixture) {
		i.ExpiryDate = &expiry
	}
}
