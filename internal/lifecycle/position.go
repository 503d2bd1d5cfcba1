// Package lifecycle owns the state of each open position and decides
// exit/roll/hold per tick. All mutation is funneled through the Book's
// Register/Transition/Unregister operations; nothing writes position fields
// directly.
package lifecycle

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/voldesk/options-core/internal/marketdata"
	"github.com/voldesk/options-core/internal/observ"
)

// State is a position's lifecycle state.
type State string

const (
	StateOpen       State = "open"
	StateChallenged State = "challenged"
	StateDefended   State = "defended"
	StateClosed     State = "closed" // terminal
)

// Action is a per-tick instruction for the execution collaborator.
type Action string

const (
	ActionHold           Action = "HOLD"
	ActionDefend         Action = "DEFEND"
	ActionRoll           Action = "ROLL"
	ActionClose          Action = "CLOSE"
	ActionEmergencyClose Action = "EMERGENCY_CLOSE"
)

// Right is the option right of the short leg under management.
type Right string

const (
	RightPut  Right = "put"
	RightCall Right = "call"
)

// Position is one tracked position. Quantity is signed: negative for short.
type Position struct {
	ID        string
	Symbol    string
	Strategy  string
	EnteredAt time.Time
	Expiry    time.Time
	Strike    float64
	Right     Right
	Quantity  int
	Credit    float64 // total credit received at entry, dollars
	Mark      float64 // current cost to close, dollars
	State     State
}

// DTE returns whole days to expiration, floored at zero.
func (p Position) DTE(now time.Time) int {
	d := int(math.Ceil(p.Expiry.Sub(now).Hours() / 24))
	if d < 0 {
		return 0
	}
	return d
}

// ExpiresSameDay reports whether the expiry falls on or before the current
// exchange-session calendar day. An expiry later today still counts even
// though DTE rounds it up to one.
func (p Position) ExpiresSameDay(now time.Time) bool {
	loc := marketdata.SessionLocation()
	e := p.Expiry.In(loc)
	n := now.In(loc)
	eDay := time.Date(e.Year(), e.Month(), e.Day(), 0, 0, 0, 0, loc)
	nDay := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
	return !eDay.After(nDay)
}

// PnL is the unrealized profit for a credit position: credit received minus
// the current cost to close.
func (p Position) PnL() float64 { return p.Credit - p.Mark }

// ProfitRatio is realized-to-max-profit: PnL over the credit received.
// Negative values are losses expressed as multiples of credit.
func (p Position) ProfitRatio() float64 {
	if p.Credit == 0 {
		return 0
	}
	return p.PnL() / p.Credit
}

// openEligible reports whether the position is still subject to the per-tick
// defensive rules.
func (s State) openEligible() bool {
	return s == StateOpen || s == StateChallenged || s == StateDefended
}

var validTransitions = map[State][]State{
	StateOpen:       {StateChallenged, StateClosed},
	StateChallenged: {StateDefended, StateClosed},
	StateDefended:   {StateOpen, StateClosed}, // back to open after a confirmed roll
}

func transitionAllowed(from, to State) bool {
	for _, t := range validTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Book is the arena of tracked positions, indexed by identifier.
type Book struct {
	mu        sync.RWMutex
	positions map[string]*Position
}

func NewBook() *Book {
	return &Book{positions: map[string]*Position{}}
}

// Register adds a newly filled position in the Open state.
func (b *Book) Register(p Position) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, dup := b.positions[p.ID]; dup {
		return fmt.Errorf("position %s already registered", p.ID)
	}
	p.State = StateOpen
	b.positions[p.ID] = &p
	observ.SetGauge("book_open_positions", float64(len(b.positions)), nil)
	return nil
}

// Get returns a copy of a position.
func (b *Book) Get(id string) (Position, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.positions[id]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// UpdateMark refreshes a position's current cost-to-close.
func (b *Book) UpdateMark(id string, mark float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.positions[id]
	if !ok {
		return fmt.Errorf("unknown position %s", id)
	}
	p.Mark = mark
	return nil
}

// Transition moves a position along an allowed lifecycle edge and logs it.
func (b *Book) Transition(id string, to State, reason string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.positions[id]
	if !ok {
		return fmt.Errorf("unknown position %s", id)
	}
	if !transitionAllowed(p.State, to) {
		return fmt.Errorf("illegal transition %s -> %s for position %s", p.State, to, id)
	}
	from := p.State
	p.State = to
	observ.Log("position_transition", map[string]any{
		"position": id,
		"symbol":   p.Symbol,
		"from":     string(from),
		"to":       string(to),
		"reason":   reason,
	})
	observ.IncCounter("position_transitions_total", map[string]string{
		"from": string(from), "to": string(to),
	})
	return nil
}

// Roll replaces a defended position's expiry and credit after the roll fill
// confirms, returning it to the open state.
func (b *Book) Roll(id string, newExpiry time.Time, newCredit float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.positions[id]
	if !ok {
		return fmt.Errorf("unknown position %s", id)
	}
	if p.State != StateDefended {
		return fmt.Errorf("position %s is %s, roll requires defended", id, p.State)
	}
	p.Expiry = newExpiry
	p.Credit = newCredit
	p.Mark = 0
	p.State = StateOpen
	observ.Log("position_rolled", map[string]any{
		"position":   id,
		"symbol":     p.Symbol,
		"new_expiry": newExpiry.Format("2006-01-02"),
	})
	observ.IncCounter("position_transitions_total", map[string]string{
		"from": string(StateDefended), "to": string(StateOpen),
	})
	return nil
}

// Unregister removes a position. Only terminal positions with an externally
// confirmed fill may leave the book.
func (b *Book) Unregister(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.positions[id]
	if !ok {
		return fmt.Errorf("unknown position %s", id)
	}
	if p.State != StateClosed {
		return fmt.Errorf("position %s is %s, not closed", id, p.State)
	}
	delete(b.positions, id)
	observ.SetGauge("book_open_positions", float64(len(b.positions)), nil)
	return nil
}

// OpenPositions returns copies of every position still subject to the
// defensive sweep, in no particular order.
func (b *Book) OpenPositions() []Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Position, 0, len(b.positions))
	for _, p := range b.positions {
		if p.State.openEligible() {
			out = append(out, *p)
		}
	}
	return out
}
