// Package match implements the match lifecycle: normalizing webhook events,
// tracking match records through their states, and driving idempotent channel
// provisioning and teardown against FACEIT and Discord.
package match

import "fmt"

// Status is the lifecycle state of a match record.
// Happy path: created -> configuring -> ready -> closed. Deliveries can arrive
// out of order or repeated, so every transition is also reachable as a
// self-transition, and closed is absorbing for side-effecting transitions.
type Status string

const (
	StatusCreated     Status = "created"
	StatusConfiguring Status = "configuring"
	StatusReady       Status = "ready"
	StatusClosed      Status = "closed"
)

// rank orders statuses along the happy path.
var rank = map[Status]int{
	StatusCreated:     0,
	StatusConfiguring: 1,
	StatusReady:       2,
	StatusClosed:      3,
}

// ParseStatus validates a stored status string.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := rank[st]; !ok {
		return "", fmt.Errorf("unknown match status %q", s)
	}
	return st, nil
}

// CanTransition reports whether moving from one status to another is a
// forward (or idempotent self-) transition. Regressions and anything out of
// closed return false; callers treat false as a logged no-op, not an error.
func CanTransition(from, to Status) bool {
	rf, ok := rank[from]
	if !ok {
		return false
	}
	rt, ok := rank[to]
	if !ok {
		return false
	}
	if from == StatusClosed {
		return false
	}
	return rt >= rf
}

// FactionSide identifies one of the two opposing factions of a match.
type FactionSide int

const (
	Faction1 FactionSide = iota
	Faction2
)

// Sides lists both factions in order.
var Sides = [2]FactionSide{Faction1, Faction2}

func (s FactionSide) String() string {
	if s == Faction1 {
		return "faction1"
	}
	return "faction2"
}
