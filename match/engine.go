package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/solstice-gg/matchroom/faceit"
	"github.com/solstice-gg/matchroom/telemetry"
)

// fetchTimeout bounds the FACEIT match details call inside event handling.
const fetchTimeout = 15 * time.Second

// Store persists match records. Get returns (nil, nil) when no record exists.
// Insert must tolerate a concurrent insert of the same match id (insert(s)
// racing a replayed event) by treating the conflict as a no-op.
type Store interface {
	Get(ctx context.Context, matchID string) (*Record, error)
	Insert(ctx context.Context, rec *Record) error
	UpdateStatus(ctx context.Context, matchID string, st Status) error
	SetFactionChannel(ctx context.Context, matchID string, side FactionSide, channelID string) error
	// Close marks the record closed, stamps finished_at (first stamp wins),
	// and clears the faction channel ids so replayed terminal events tear
	// nothing down twice.
	Close(ctx context.Context, matchID string, finishedAt time.Time) error
}

// LinkResolver maps FACEIT player ids to linked Discord user ids. Unlinked
// players are simply absent from the result; that is not an error.
type LinkResolver interface {
	ResolveFaceitIDs(ctx context.Context, faceitIDs []string) (map[string]string, error)
}

// Fetcher retrieves full match details from the FACEIT data API.
type Fetcher interface {
	MatchDetails(ctx context.Context, matchID string) (*faceit.Match, error)
}

// Provisioner manages per-faction voice channels.
type Provisioner interface {
	CreateFactionChannel(ctx context.Context, name string, memberIDs []string) (string, error)
	MoveMember(ctx context.Context, userID, channelID string) error
	DisconnectMember(ctx context.Context, userID string) error
	DeleteChannel(ctx context.Context, channelID string) error
}

// Engine consumes normalized events and drives idempotent side effects. It
// keeps no in-process match state: the persisted record is the only source of
// truth, since deliveries can span process restarts and teardown must find
// channels created by another instance.
type Engine struct {
	store Store
	links LinkResolver
	fetch Fetcher
	prov  Provisioner
}

func NewEngine(store Store, links LinkResolver, fetch Fetcher, prov Provisioner) *Engine {
	return &Engine{store: store, links: links, fetch: fetch, prov: prov}
}

// HandleEvent dispatches one normalized event. Errors it returns are for
// logging only; the webhook boundary never converts them into retry-worthy
// responses.
func (e *Engine) HandleEvent(ctx context.Context, ev Event) error {
	log := telemetry.LoggerWithCorr(ctx).With(slog.String("match_id", ev.MatchID), slog.String("event", ev.RawKind))
	switch ev.Kind {
	case KindCreated:
		_, err := e.handleCreated(ctx, log, ev.MatchID)
		return err
	case KindConfiguring:
		return e.handleConfiguring(ctx, log, ev.MatchID)
	case KindReady:
		return e.handleReady(ctx, log, ev.MatchID)
	case KindFinished:
		return e.handleFinished(ctx, log, ev.MatchID, ev.FinishedAt)
	default:
		log.Info("ignoring unhandled event kind")
		return nil
	}
}

// handleCreated persists a new record from fetched match details. A
// pre-existing record short-circuits re-creation.
func (e *Engine) handleCreated(ctx context.Context, log *slog.Logger, matchID string) (*Record, error) {
	rec, err := e.store.Get(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("get match %s: %w", matchID, err)
	}
	if rec != nil {
		log.Debug("match record already exists, skipping creation")
		return rec, nil
	}

	fctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	var details *faceit.Match
	telemetry.TimeFunc(telemetry.MatchFetchDuration, func() {
		details, err = e.fetch.MatchDetails(fctx, matchID)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch match %s: %w", matchID, err)
	}

	now := time.Now().UTC()
	rec = &Record{
		MatchID:         matchID,
		Status:          StatusCreated,
		EntityName:      details.EntityName,
		MapPicked:       details.MapPicked,
		Faction1Name:    details.Factions[0].Name,
		Faction2Name:    details.Factions[1].Name,
		Faction1Players: details.Factions[0].Roster,
		Faction2Players: details.Factions[1].Roster,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.store.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("insert match %s: %w", matchID, err)
	}
	telemetry.Inc(telemetry.MatchesCreated)
	log.Info("match record created",
		slog.String("entity", rec.EntityName),
		slog.String("map", rec.MapPicked),
		slog.Int("faction1_players", len(rec.Faction1Players)),
		slog.Int("faction2_players", len(rec.Faction2Players)))
	return rec, nil
}

// handleConfiguring advances status; the event is meaningless without a prior
// record.
func (e *Engine) handleConfiguring(ctx context.Context, log *slog.Logger, matchID string) error {
	rec, err := e.store.Get(ctx, matchID)
	if err != nil {
		return fmt.Errorf("get match %s: %w", matchID, err)
	}
	if rec == nil {
		log.Info("no match record for configuring event, skipping")
		return nil
	}
	if !CanTransition(rec.Status, StatusConfiguring) {
		log.Debug("configuring transition not applicable", slog.String("status", string(rec.Status)))
		return nil
	}
	if rec.Status == StatusConfiguring {
		return nil
	}
	if err := e.store.UpdateStatus(ctx, matchID, StatusConfiguring); err != nil {
		return fmt.Errorf("update status %s: %w", matchID, err)
	}
	return nil
}

// handleReady provisions one private channel per non-empty faction. Factions
// are attempted independently; a faction whose channel id is already recorded
// is skipped wholesale on replay.
func (e *Engine) handleReady(ctx context.Context, log *slog.Logger, matchID string) error {
	rec, err := e.store.Get(ctx, matchID)
	if err != nil {
		return fmt.Errorf("get match %s: %w", matchID, err)
	}
	if rec == nil {
		// Self-healing: the creation event was lost or is still in flight.
		rec, err = e.handleCreated(ctx, log, matchID)
		if err != nil {
			return err
		}
	}
	if rec.Status == StatusClosed {
		log.Info("match already closed, not provisioning")
		return nil
	}

	var errs []error
	for _, side := range Sides {
		if rec.ChannelID(side) != "" {
			log.Debug("channel already provisioned, skipping faction", slog.String("faction", side.String()))
			continue
		}
		roster := rec.Roster(side)
		if len(roster) == 0 {
			log.Warn("empty roster, skipping faction", slog.String("faction", side.String()))
			continue
		}

		links, err := e.links.ResolveFaceitIDs(ctx, roster)
		if err != nil {
			telemetry.Inc(telemetry.ProvisioningFailures)
			log.Error("resolving roster links failed", slog.String("faction", side.String()), slog.Any("err", err))
			errs = append(errs, fmt.Errorf("resolve %s roster: %w", side, err))
			continue
		}
		// Unlinked players are dropped silently; a player who never linked
		// simply isn't moved.
		members := make([]string, 0, len(roster))
		for _, fid := range roster {
			if did, ok := links[fid]; ok && did != "" {
				members = append(members, did)
			}
		}

		name := ChannelName(matchID, rec.FactionName(side))
		channelID, err := e.prov.CreateFactionChannel(ctx, name, members)
		if err != nil {
			telemetry.Inc(telemetry.ProvisioningFailures)
			log.Error("channel provisioning failed", slog.String("faction", side.String()), slog.Any("err", err))
			errs = append(errs, fmt.Errorf("provision %s: %w", side, err))
			continue
		}
		if err := e.store.SetFactionChannel(ctx, matchID, side, channelID); err != nil {
			log.Error("recording channel id failed", slog.String("faction", side.String()), slog.String("channel_id", channelID), slog.Any("err", err))
			errs = append(errs, fmt.Errorf("record %s channel: %w", side, err))
			continue
		}
		rec.setChannelID(side, channelID)
		telemetry.Inc(telemetry.ChannelsProvisioned)
		log.Info("faction channel provisioned",
			slog.String("faction", side.String()),
			slog.String("channel_id", channelID),
			slog.Int("members", len(members)))

		for _, m := range members {
			if err := e.prov.MoveMember(ctx, m, channelID); err != nil {
				// Members not currently in voice cannot be moved.
				log.Debug("member move skipped", slog.String("user_id", m), slog.Any("err", err))
			}
		}
	}

	if rec.HasChannel() && CanTransition(rec.Status, StatusReady) && rec.Status != StatusReady {
		if err := e.store.UpdateStatus(ctx, matchID, StatusReady); err != nil {
			errs = append(errs, fmt.Errorf("update status %s: %w", matchID, err))
		}
	}
	return errors.Join(errs...)
}

// handleFinished tears down any recorded channels and closes the record.
func (e *Engine) handleFinished(ctx context.Context, log *slog.Logger, matchID string, finishedAt time.Time) error {
	rec, err := e.store.Get(ctx, matchID)
	if err != nil {
		return fmt.Errorf("get match %s: %w", matchID, err)
	}
	if rec == nil {
		log.Info("no match record for terminal event, skipping")
		return nil
	}

	var errs []error
	for _, side := range Sides {
		channelID := rec.ChannelID(side)
		if channelID == "" {
			continue
		}
		e.disconnectFaction(ctx, log, rec, side)
		if err := e.prov.DeleteChannel(ctx, channelID); err != nil {
			log.Error("channel teardown failed", slog.String("faction", side.String()), slog.String("channel_id", channelID), slog.Any("err", err))
			errs = append(errs, fmt.Errorf("teardown %s: %w", side, err))
			continue
		}
		telemetry.Inc(telemetry.ChannelsTornDown)
		log.Info("faction channel deleted", slog.String("faction", side.String()), slog.String("channel_id", channelID))
	}

	if finishedAt.IsZero() {
		finishedAt = time.Now().UTC()
	}
	if err := e.store.Close(ctx, matchID, finishedAt); err != nil {
		errs = append(errs, fmt.Errorf("close match %s: %w", matchID, err))
	} else if rec.Status != StatusClosed {
		telemetry.Inc(telemetry.MatchesClosed)
	}
	return errors.Join(errs...)
}

// disconnectFaction best-effort removes a faction's linked members from the
// channel before it is deleted.
func (e *Engine) disconnectFaction(ctx context.Context, log *slog.Logger, rec *Record, side FactionSide) {
	roster := rec.Roster(side)
	if len(roster) == 0 {
		return
	}
	links, err := e.links.ResolveFaceitIDs(ctx, roster)
	if err != nil {
		log.Warn("resolving roster for disconnect failed", slog.String("faction", side.String()), slog.Any("err", err))
		return
	}
	for _, fid := range roster {
		did, ok := links[fid]
		if !ok || did == "" {
			continue
		}
		if err := e.prov.DisconnectMember(ctx, did); err != nil {
			log.Debug("member disconnect skipped", slog.String("user_id", did), slog.Any("err", err))
		}
	}
}

// ChannelName derives the voice channel name for a faction. Long match ids
// are shortened to keep names readable in the channel list.
func ChannelName(matchID, factionName string) string {
	short := matchID
	if len(short) > 8 {
		short = short[:8]
	}
	if factionName == "" {
		factionName = "faction"
	}
	return fmt.Sprintf("Match %s-%s", short, factionName)
}
