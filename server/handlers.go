// Package server exposes the HTTP API handlers.
package server

import (
	"context"
	"database/sql"
	"time"

	"github.com/solstice-gg/matchroom/config"
	dbpkg "github.com/solstice-gg/matchroom/db"
	"github.com/solstice-gg/matchroom/discord"
	"github.com/solstice-gg/matchroom/faceit"
	"github.com/solstice-gg/matchroom/match"
	"github.com/solstice-gg/matchroom/verify"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	db     *sql.DB
	ctx    context.Context
	cfg    *config.Config
	faceit *faceit.Client
	engine *match.Engine
	flow   *verify.Flow
}

// NewHandlers wires the production dependency graph: FACEIT and Discord
// clients from config, the store adapters over the database, the lifecycle
// engine, and the verification flow sharing the given pending store.
func NewHandlers(ctx context.Context, db *sql.DB, cfg *config.Config, pending *verify.PendingStore) *Handlers {
	fc := &faceit.Client{APIKey: cfg.FaceitAPIKey, BaseURL: cfg.FaceitAPIBase}
	dc := &discord.Client{
		BotToken:       cfg.DiscordBotToken,
		BaseURL:        cfg.DiscordAPIBase,
		GuildID:        cfg.DiscordGuildID,
		CategoryID:     cfg.DiscordCategoryID,
		LobbyChannelID: cfg.DiscordLobbyChannelID,
	}
	oc := &faceit.OAuthConfig{
		ClientID:     cfg.FaceitClientID,
		ClientSecret: cfg.FaceitClientSecret,
		RedirectURI:  cfg.FaceitRedirectURI,
		Scopes:       cfg.FaceitScopes,
		AuthURL:      cfg.FaceitAuthURL,
		TokenURL:     cfg.FaceitTokenURL,
		UserinfoURL:  cfg.FaceitUserinfoURL,
		AuthStyle:    cfg.TokenAuthStyle,
	}
	links := &linkStore{db: db}
	return &Handlers{
		db:     db,
		ctx:    ctx,
		cfg:    cfg,
		faceit: fc,
		engine: match.NewEngine(&matchStore{db: db}, links, fc, dc),
		flow:   verify.NewFlow(oc, links, pending),
	}
}

// linkStore adapts the DB to verify.LinkStore and match.LinkResolver.
type linkStore struct{ db *sql.DB }

func (s *linkStore) GetLink(ctx context.Context, discordID string) (*verify.Link, error) {
	l, err := dbpkg.GetPlayerLinkByDiscordID(ctx, s.db, discordID)
	if err != nil || l == nil {
		return nil, err
	}
	return &verify.Link{
		DiscordID:      l.DiscordID,
		FaceitID:       l.FaceitID,
		FaceitNickname: l.FaceitNickname,
		VerifiedMethod: l.VerifiedMethod,
		LinkedAt:       l.LinkedAt,
	}, nil
}

func (s *linkStore) UpsertLink(ctx context.Context, l verify.Link) error {
	return dbpkg.UpsertPlayerLink(ctx, s.db, dbpkg.PlayerLink{
		DiscordID:      l.DiscordID,
		FaceitID:       l.FaceitID,
		FaceitNickname: l.FaceitNickname,
		VerifiedMethod: l.VerifiedMethod,
		LinkedAt:       l.LinkedAt,
	})
}

func (s *linkStore) ResolveFaceitIDs(ctx context.Context, faceitIDs []string) (map[string]string, error) {
	links, err := dbpkg.GetPlayerLinksByFaceitIDs(ctx, s.db, faceitIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(links))
	for fid, l := range links {
		out[fid] = l.DiscordID
	}
	return out, nil
}

// matchStore adapts the DB to match.Store.
type matchStore struct{ db *sql.DB }

func (s *matchStore) Get(ctx context.Context, matchID string) (*match.Record, error) {
	return dbpkg.GetMatch(ctx, s.db, matchID)
}

func (s *matchStore) Insert(ctx context.Context, rec *match.Record) error {
	return dbpkg.InsertMatch(ctx, s.db, rec)
}

func (s *matchStore) UpdateStatus(ctx context.Context, matchID string, st match.Status) error {
	return dbpkg.UpdateMatchStatus(ctx, s.db, matchID, st)
}

func (s *matchStore) SetFactionChannel(ctx context.Context, matchID string, side match.FactionSide, channelID string) error {
	return dbpkg.SetMatchFactionChannel(ctx, s.db, matchID, side, channelID)
}

func (s *matchStore) Close(ctx context.Context, matchID string, finishedAt time.Time) error {
	return dbpkg.CloseMatch(ctx, s.db, matchID, finishedAt)
}
