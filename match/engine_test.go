package match

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/solstice-gg/matchroom/faceit"
)

// fakeStore keeps records in memory with the same semantics the SQL store
// guarantees: insert tolerates duplicates, close clears channel ids and
// stamps finished_at once.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]*Record
	inserts int
	fail    bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]*Record{}}
}

func (s *fakeStore) Get(_ context.Context, matchID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errors.New("store down")
	}
	rec, ok := s.records[matchID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *fakeStore) Insert(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	if _, ok := s.records[rec.MatchID]; ok {
		return nil
	}
	cp := *rec
	s.records[rec.MatchID] = &cp
	return nil
}

func (s *fakeStore) UpdateStatus(_ context.Context, matchID string, st Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[matchID]; ok {
		rec.Status = st
	}
	return nil
}

func (s *fakeStore) SetFactionChannel(_ context.Context, matchID string, side FactionSide, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[matchID]; ok {
		rec.setChannelID(side, channelID)
	}
	return nil
}

func (s *fakeStore) Close(_ context.Context, matchID string, finishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[matchID]
	if !ok {
		return nil
	}
	rec.Status = StatusClosed
	rec.Faction1ChannelID = ""
	rec.Faction2ChannelID = ""
	if rec.FinishedAt == nil {
		t := finishedAt
		rec.FinishedAt = &t
	}
	return nil
}

func (s *fakeStore) record(matchID string) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[matchID]
}

type fakeLinks struct {
	links map[string]string // faceit id -> discord id
	fail  bool
}

func (l *fakeLinks) ResolveFaceitIDs(_ context.Context, ids []string) (map[string]string, error) {
	if l.fail {
		return nil, errors.New("link store down")
	}
	out := map[string]string{}
	for _, id := range ids {
		if did, ok := l.links[id]; ok {
			out[id] = did
		}
	}
	return out, nil
}

type fakeFetcher struct {
	match *faceit.Match
	calls int
}

func (f *fakeFetcher) MatchDetails(_ context.Context, matchID string) (*faceit.Match, error) {
	f.calls++
	if f.match == nil {
		return nil, errors.New("match not found")
	}
	m := *f.match
	m.ID = matchID
	return &m, nil
}

type fakeProv struct {
	mu          sync.Mutex
	next        int
	creates     int
	deletes     []string
	moves       map[string]string
	disconnects []string
	// failFaction makes creation fail for channel names containing it.
	failFaction string
}

func newFakeProv() *fakeProv {
	return &fakeProv{moves: map[string]string{}}
}

func (p *fakeProv) CreateFactionChannel(_ context.Context, name string, _ []string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.creates++
	if p.failFaction != "" && strings.Contains(name, p.failFaction) {
		return "", errors.New("discord unavailable")
	}
	p.next++
	return fmt.Sprintf("chan-%d", p.next), nil
}

func (p *fakeProv) MoveMember(_ context.Context, userID, channelID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.moves[userID] = channelID
	return nil
}

func (p *fakeProv) DisconnectMember(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disconnects = append(p.disconnects, userID)
	return nil
}

func (p *fakeProv) DeleteChannel(_ context.Context, channelID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deletes = append(p.deletes, channelID)
	return nil
}

func testMatch() *faceit.Match {
	return &faceit.Match{
		EntityName: "Test Hub",
		MapPicked:  "de_mirage",
		Factions: [2]faceit.MatchFaction{
			{Name: "Alpha", Roster: []string{"f-1", "f-2"}},
			{Name: "Bravo", Roster: []string{"f-3", "f-4"}},
		},
	}
}

func testEngine() (*Engine, *fakeStore, *fakeFetcher, *fakeProv) {
	store := newFakeStore()
	fetch := &fakeFetcher{match: testMatch()}
	prov := newFakeProv()
	links := &fakeLinks{links: map[string]string{
		"f-1": "d-1",
		"f-2": "d-2",
		"f-3": "d-3",
		// f-4 never linked
	}}
	return NewEngine(store, links, fetch, prov), store, fetch, prov
}

func ev(kind Kind, matchID string) Event {
	return Event{Kind: kind, RawKind: kind.String(), MatchID: matchID}
}

func TestCreatedEventPersistsRecord(t *testing.T) {
	eng, store, fetch, _ := testEngine()
	ctx := context.Background()

	if err := eng.HandleEvent(ctx, ev(KindCreated, "match-1")); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	rec := store.record("match-1")
	if rec == nil {
		t.Fatal("record not created")
	}
	if rec.Status != StatusCreated {
		t.Errorf("status = %s, want created", rec.Status)
	}
	if rec.EntityName != "Test Hub" || rec.MapPicked != "de_mirage" {
		t.Errorf("details not captured: %+v", rec)
	}
	if len(rec.Faction1Players) != 2 || len(rec.Faction2Players) != 2 {
		t.Errorf("rosters not captured: %+v", rec)
	}

	// Replay: no second fetch, no new record.
	if err := eng.HandleEvent(ctx, ev(KindCreated, "match-1")); err != nil {
		t.Fatalf("replayed HandleEvent: %v", err)
	}
	if fetch.calls != 1 {
		t.Errorf("fetch calls = %d, want 1", fetch.calls)
	}
}

func TestConfiguringWithoutRecordIsNoop(t *testing.T) {
	eng, store, _, _ := testEngine()
	if err := eng.HandleEvent(context.Background(), ev(KindConfiguring, "ghost")); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if store.record("ghost") != nil {
		t.Error("configuring must not create records")
	}
}

func TestConfiguringAdvancesStatus(t *testing.T) {
	eng, store, _, _ := testEngine()
	ctx := context.Background()
	if err := eng.HandleEvent(ctx, ev(KindCreated, "match-1")); err != nil {
		t.Fatal(err)
	}
	if err := eng.HandleEvent(ctx, ev(KindConfiguring, "match-1")); err != nil {
		t.Fatal(err)
	}
	if got := store.record("match-1").Status; got != StatusConfiguring {
		t.Errorf("status = %s, want configuring", got)
	}
}

func TestReadyProvisionsBothFactions(t *testing.T) {
	eng, store, _, prov := testEngine()
	ctx := context.Background()
	if err := eng.HandleEvent(ctx, ev(KindCreated, "match-1")); err != nil {
		t.Fatal(err)
	}
	if err := eng.HandleEvent(ctx, ev(KindReady, "match-1")); err != nil {
		t.Fatalf("ready: %v", err)
	}

	rec := store.record("match-1")
	if rec.Faction1ChannelID == "" || rec.Faction2ChannelID == "" {
		t.Fatalf("both factions should have channels: %+v", rec)
	}
	if rec.Faction1ChannelID == rec.Faction2ChannelID {
		t.Error("factions must get distinct channels")
	}
	if rec.Status != StatusReady {
		t.Errorf("status = %s, want ready", rec.Status)
	}
	if prov.creates != 2 {
		t.Errorf("creates = %d, want 2", prov.creates)
	}
	// Linked members moved into their faction channel; unlinked f-4 never moved.
	if prov.moves["d-1"] != rec.Faction1ChannelID || prov.moves["d-2"] != rec.Faction1ChannelID {
		t.Errorf("faction1 members not moved: %v", prov.moves)
	}
	if prov.moves["d-3"] != rec.Faction2ChannelID {
		t.Errorf("faction2 member not moved: %v", prov.moves)
	}
	if len(prov.moves) != 3 {
		t.Errorf("moves = %v, unlinked players must not be moved", prov.moves)
	}
}

func TestReadyReplayDoesNotReprovision(t *testing.T) {
	eng, _, _, prov := testEngine()
	ctx := context.Background()
	if err := eng.HandleEvent(ctx, ev(KindCreated, "match-1")); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := eng.HandleEvent(ctx, ev(KindReady, "match-1")); err != nil {
			t.Fatalf("ready replay %d: %v", i, err)
		}
	}
	if prov.creates != 2 {
		t.Errorf("creates = %d after replays, want 2", prov.creates)
	}
}

func TestReadySelfHealsMissingRecord(t *testing.T) {
	eng, store, fetch, prov := testEngine()
	ctx := context.Background()

	// No created event ever arrived.
	if err := eng.HandleEvent(ctx, ev(KindReady, "match-1")); err != nil {
		t.Fatalf("ready: %v", err)
	}
	rec := store.record("match-1")
	if rec == nil {
		t.Fatal("ready should create the missing record")
	}
	if fetch.calls != 1 {
		t.Errorf("fetch calls = %d, want 1", fetch.calls)
	}
	if prov.creates != 2 {
		t.Errorf("creates = %d, want 2", prov.creates)
	}
}

func TestReadySkipsEmptyRoster(t *testing.T) {
	eng, store, fetch, prov := testEngine()
	fetch.match.Factions[1].Roster = nil
	ctx := context.Background()
	if err := eng.HandleEvent(ctx, ev(KindCreated, "match-1")); err != nil {
		t.Fatal(err)
	}
	if err := eng.HandleEvent(ctx, ev(KindReady, "match-1")); err != nil {
		t.Fatalf("ready: %v", err)
	}
	rec := store.record("match-1")
	if rec.Faction1ChannelID == "" {
		t.Error("faction1 should be provisioned")
	}
	if rec.Faction2ChannelID != "" {
		t.Error("empty-roster faction must not be provisioned")
	}
	if prov.creates != 1 {
		t.Errorf("creates = %d, want 1", prov.creates)
	}
}

func TestReadyFactionFailureIsIndependent(t *testing.T) {
	eng, store, _, prov := testEngine()
	prov.failFaction = "Alpha"
	ctx := context.Background()
	if err := eng.HandleEvent(ctx, ev(KindCreated, "match-1")); err != nil {
		t.Fatal(err)
	}
	err := eng.HandleEvent(ctx, ev(KindReady, "match-1"))
	if err == nil {
		t.Fatal("expected error from failed faction")
	}
	rec := store.record("match-1")
	if rec.Faction1ChannelID != "" {
		t.Error("failed faction must have no channel recorded")
	}
	if rec.Faction2ChannelID == "" {
		t.Error("healthy faction must still be provisioned")
	}

	// Retry after the outage: only the missing faction is provisioned.
	prov.failFaction = ""
	before := prov.creates
	if err := eng.HandleEvent(ctx, ev(KindReady, "match-1")); err != nil {
		t.Fatalf("retry: %v", err)
	}
	rec = store.record("match-1")
	if rec.Faction1ChannelID == "" {
		t.Error("failed faction should be healed on retry")
	}
	if prov.creates != before+1 {
		t.Errorf("creates = %d, want %d", prov.creates, before+1)
	}
}

func TestFinishedTearsDownAndCloses(t *testing.T) {
	eng, store, _, prov := testEngine()
	ctx := context.Background()
	if err := eng.HandleEvent(ctx, ev(KindCreated, "match-1")); err != nil {
		t.Fatal(err)
	}
	if err := eng.HandleEvent(ctx, ev(KindReady, "match-1")); err != nil {
		t.Fatal(err)
	}
	if err := eng.HandleEvent(ctx, ev(KindFinished, "match-1")); err != nil {
		t.Fatalf("finished: %v", err)
	}

	rec := store.record("match-1")
	if rec.Status != StatusClosed {
		t.Errorf("status = %s, want closed", rec.Status)
	}
	if rec.Faction1ChannelID != "" || rec.Faction2ChannelID != "" {
		t.Error("close must clear channel ids")
	}
	if rec.FinishedAt == nil {
		t.Error("finished_at not stamped")
	}
	if len(prov.deletes) != 2 {
		t.Errorf("deletes = %v, want exactly 2", prov.deletes)
	}
	if len(prov.disconnects) != 3 {
		t.Errorf("disconnects = %v, want the 3 linked members", prov.disconnects)
	}
}

func TestFinishedReplayTearsDownNothing(t *testing.T) {
	eng, _, _, prov := testEngine()
	ctx := context.Background()
	if err := eng.HandleEvent(ctx, ev(KindCreated, "match-1")); err != nil {
		t.Fatal(err)
	}
	if err := eng.HandleEvent(ctx, ev(KindReady, "match-1")); err != nil {
		t.Fatal(err)
	}
	if err := eng.HandleEvent(ctx, ev(KindFinished, "match-1")); err != nil {
		t.Fatal(err)
	}
	if err := eng.HandleEvent(ctx, ev(KindFinished, "match-1")); err != nil {
		t.Fatalf("replayed finished: %v", err)
	}
	if len(prov.deletes) != 2 {
		t.Errorf("deletes = %v after replay, want 2", prov.deletes)
	}
}

func TestFinishedKeepsFirstTimestamp(t *testing.T) {
	eng, store, _, _ := testEngine()
	ctx := context.Background()
	if err := eng.HandleEvent(ctx, ev(KindCreated, "match-1")); err != nil {
		t.Fatal(err)
	}
	first := time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)
	if err := eng.HandleEvent(ctx, Event{Kind: KindFinished, RawKind: "match_status_finished", MatchID: "match-1", FinishedAt: first}); err != nil {
		t.Fatal(err)
	}
	later := first.Add(time.Hour)
	if err := eng.HandleEvent(ctx, Event{Kind: KindFinished, RawKind: "match_status_finished", MatchID: "match-1", FinishedAt: later}); err != nil {
		t.Fatal(err)
	}
	if got := store.record("match-1").FinishedAt; got == nil || !got.Equal(first) {
		t.Errorf("finished_at = %v, want first stamp %v", got, first)
	}
}

func TestReadyAfterClosedDoesNotProvision(t *testing.T) {
	eng, _, _, prov := testEngine()
	ctx := context.Background()
	if err := eng.HandleEvent(ctx, ev(KindCreated, "match-1")); err != nil {
		t.Fatal(err)
	}
	if err := eng.HandleEvent(ctx, ev(KindFinished, "match-1")); err != nil {
		t.Fatal(err)
	}
	if err := eng.HandleEvent(ctx, ev(KindReady, "match-1")); err != nil {
		t.Fatalf("ready after close: %v", err)
	}
	if prov.creates != 0 {
		t.Errorf("creates = %d after close, want 0", prov.creates)
	}
}

func TestFinishedWithoutRecordIsNoop(t *testing.T) {
	eng, _, _, prov := testEngine()
	if err := eng.HandleEvent(context.Background(), ev(KindFinished, "ghost")); err != nil {
		t.Fatalf("finished: %v", err)
	}
	if len(prov.deletes) != 0 {
		t.Errorf("deletes = %v, want none", prov.deletes)
	}
}

func TestChannelName(t *testing.T) {
	tests := []struct {
		matchID, faction, want string
	}{
		{"1-abcdef12-3456", "Alpha", "Match 1-abcdef-Alpha"},
		{"short", "Bravo", "Match short-Bravo"},
		{"12345678", "", "Match 12345678-faction"},
	}
	for _, tt := range tests {
		if got := ChannelName(tt.matchID, tt.faction); got != tt.want {
			t.Errorf("ChannelName(%q, %q) = %q, want %q", tt.matchID, tt.faction, got, tt.want)
		}
	}
}
