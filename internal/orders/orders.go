// Package orders tracks payment orders from pending to approved and
// resolves the access tokens handed to approved players. It is the small
// in-memory boundary the game gateway consults during attachment; payment
// screenshots and their verification live outside this server.
package orders

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Order is one payment request from a phone number.
type Order struct {
	ID            int64     `json:"id"`
	RequestToken  string    `json:"requestToken"`
	Phone         string    `json:"phone"`
	OperationCode string    `json:"operationCode"`
	Trial         bool      `json:"isTrial"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"timestamp"`
}

// Approval is one granted access token. Approving an order for N cards
// yields N approvals sharing the same phone.
type Approval struct {
	Order
	Token string `json:"token"`
}

// Grant is what an access token resolves to at attach time.
type Grant struct {
	Phone string
	Cards int
	Trial bool
}

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusNotFound = "not_found"
)

// Service holds pending and approved orders for the current round.
type Service struct {
	mu       sync.RWMutex
	pending  []*Order
	approved map[string]*Approval // access token -> approval
	nextID   int64
}

// NewService returns an empty order book.
func NewService() *Service {
	return &Service{
		approved: make(map[string]*Approval),
	}
}

// AddPending registers a new order, deduplicating by phone: a phone with
// an order already in flight gets that order back instead of a new one.
func (s *Service) AddPending(phone, operationCode string, trial bool) (*Order, error) {
	phone = digitsOnly(phone)
	if len(phone) != 9 {
		return nil, errors.New("PHONE_INVALID: Phone must have 9 digits")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.findByPhoneLocked(phone); existing != nil {
		return existing, nil
	}

	s.nextID++
	order := &Order{
		ID:            s.nextID,
		RequestToken:  uuid.New().String(),
		Phone:         phone,
		OperationCode: operationCode,
		Trial:         trial,
		Status:        StatusPending,
		CreatedAt:     time.Now(),
	}
	s.pending = append(s.pending, order)
	log.Info().Str("phone", phone).Int64("id", order.ID).Msg("order received")
	return order, nil
}

func (s *Service) findByPhoneLocked(phone string) *Order {
	for _, o := range s.pending {
		if o.Phone == phone {
			return o
		}
	}
	for _, a := range s.approved {
		if a.Phone == phone {
			return &a.Order
		}
	}
	return nil
}

// Approve moves a pending order to approved and mints one access token
// per card bought. Nil when the order id is unknown.
func (s *Service) Approve(id int64, quantity int) []Approval {
	if quantity < 1 {
		quantity = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, o := range s.pending {
		if o.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil
	}

	order := s.pending[idx]
	s.pending = append(s.pending[:idx], s.pending[idx+1:]...)
	order.Status = StatusApproved

	results := make([]Approval, 0, quantity)
	for i := 0; i < quantity; i++ {
		a := &Approval{Order: *order, Token: uuid.New().String()}
		s.approved[a.Token] = a
		results = append(results, *a)
	}
	log.Info().
		Str("phone", order.Phone).
		Int("cards", quantity).
		Msg("order approved")
	return results
}

// Resolve maps an access token to its grant. The card count is the total
// number of approvals issued to that phone, so a player holding several
// tokens gets all their cards through any one of them.
func (s *Service) Resolve(token string) (Grant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.approved[token]
	if !ok {
		return Grant{}, false
	}

	cards := 0
	for _, other := range s.approved {
		if other.Phone == a.Phone {
			cards++
		}
	}
	return Grant{Phone: a.Phone, Cards: cards, Trial: a.Trial}, true
}

// StatusReport is the polling answer for a request token or phone.
type StatusReport struct {
	Status string   `json:"status"`
	Tokens []string `json:"tokens,omitempty"`
}

// Status looks an order up by request token or phone number.
func (s *Service) Status(identifier string) StatusReport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tokens []string
	for token, a := range s.approved {
		if a.RequestToken == identifier || a.Phone == identifier {
			tokens = append(tokens, token)
		}
	}
	if len(tokens) > 0 {
		return StatusReport{Status: StatusApproved, Tokens: tokens}
	}

	for _, o := range s.pending {
		if o.RequestToken == identifier || o.Phone == identifier {
			return StatusReport{Status: StatusPending}
		}
	}
	return StatusReport{Status: StatusNotFound}
}

// Pending returns the queue awaiting approval, oldest first.
func (s *Service) Pending() []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Order, 0, len(s.pending))
	for _, o := range s.pending {
		out = append(out, *o)
	}
	return out
}

// ApprovedCount reports how many access tokens are outstanding.
func (s *Service) ApprovedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.approved)
}

// Clear wipes the whole order book; used by the full game reset.
func (s *Service) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	s.approved = make(map[string]*Approval)
	log.Info().Msg("order book cleared")
}

func digitsOnly(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
