package match

import "time"

// Record is the persisted state of one match. Records are created on the first
// recognized event for a match id, mutated in place afterwards, and never
// deleted; the database row is the only state that survives restarts, so
// idempotency checks read the record rather than any in-process cache.
type Record struct {
	MatchID    string
	Status     Status
	EntityName string
	MapPicked  string

	Faction1Name      string
	Faction2Name      string
	Faction1Players   []string // ordered FACEIT player ids
	Faction2Players   []string
	Faction1ChannelID string
	Faction2ChannelID string

	CreatedAt  time.Time
	UpdatedAt  time.Time
	FinishedAt *time.Time
}

// FactionName returns the display name for a side.
func (r *Record) FactionName(s FactionSide) string {
	if s == Faction1 {
		return r.Faction1Name
	}
	return r.Faction2Name
}

// Roster returns the ordered FACEIT player ids for a side.
func (r *Record) Roster(s FactionSide) []string {
	if s == Faction1 {
		return r.Faction1Players
	}
	return r.Faction2Players
}

// ChannelID returns the provisioned voice channel id for a side, or "".
func (r *Record) ChannelID(s FactionSide) string {
	if s == Faction1 {
		return r.Faction1ChannelID
	}
	return r.Faction2ChannelID
}

func (r *Record) setChannelID(s FactionSide, id string) {
	if s == Faction1 {
		r.Faction1ChannelID = id
	} else {
		r.Faction2ChannelID = id
	}
}

// HasChannel reports whether any faction channel is recorded.
func (r *Record) HasChannel() bool {
	return r.Faction1ChannelID != "" || r.Faction2ChannelID != ""
}
