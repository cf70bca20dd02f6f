package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/solstice-gg/matchroom/crypto"
	"github.com/solstice-gg/matchroom/faceit"
	"github.com/solstice-gg/matchroom/telemetry"
)

var (
	// ErrAlreadyLinked rejects a begin call for a Discord user that already
	// has a link; no secrets are generated in that case.
	ErrAlreadyLinked = errors.New("discord account already linked")
	// ErrStateInvalidOrExpired rejects a callback whose state token is
	// unknown, consumed, or past its TTL; the token endpoint is never
	// contacted.
	ErrStateInvalidOrExpired = errors.New("verification state invalid or expired")
	// ErrTokenExchange wraps token endpoint failures.
	ErrTokenExchange = errors.New("token exchange failed")
	// ErrUserInfo wraps userinfo endpoint failures.
	ErrUserInfo = errors.New("userinfo fetch failed")
)

// Link is a verified mapping from a Discord user to a FACEIT account.
// One Discord user maps to at most one FACEIT account (upsert on conflict).
type Link struct {
	DiscordID      string
	FaceitID       string
	FaceitNickname string
	VerifiedMethod string // "oauth" or "manual"
	LinkedAt       time.Time
}

// LinkStore persists identity links. GetLink returns (nil, nil) when absent.
type LinkStore interface {
	GetLink(ctx context.Context, discordID string) (*Link, error)
	UpsertLink(ctx context.Context, l Link) error
}

// Exchanger is the OAuth surface the flow needs; *faceit.OAuthConfig is the
// production implementation.
type Exchanger interface {
	AuthCodeURL(state, verifier string) (string, error)
	ExchangeAuthCode(ctx context.Context, code, verifier string) (string, error)
	FetchUserInfo(ctx context.Context, accessToken string) (*faceit.UserInfo, error)
}

// Flow runs the credential exchange: Begin hands out an authorization URL and
// parks the verifier behind a state token; Complete consumes the callback.
// There are no retries: a failed callback means the user begins again with a
// fresh state/verifier pair.
type Flow struct {
	oauth   Exchanger
	links   LinkStore
	pending *PendingStore
}

func NewFlow(oauth Exchanger, links LinkStore, pending *PendingStore) *Flow {
	return &Flow{oauth: oauth, links: links, pending: pending}
}

// Begin starts a verification for a Discord user and returns the
// authorization URL plus the state token bound to it.
func (f *Flow) Begin(ctx context.Context, discordID string) (authURL, state string, err error) {
	if discordID == "" {
		return "", "", errors.New("discordID empty")
	}
	existing, err := f.links.GetLink(ctx, discordID)
	if err != nil {
		return "", "", fmt.Errorf("lookup link for %s: %w", discordID, err)
	}
	if existing != nil {
		return "", "", fmt.Errorf("%w: already verified as %s", ErrAlreadyLinked, existing.FaceitNickname)
	}

	verifier := faceit.GenerateVerifier()
	state, err = crypto.NewStateToken()
	if err != nil {
		return "", "", err
	}
	// Build the URL before storing anything so a configuration error leaves
	// no pending entry behind.
	authURL, err = f.oauth.AuthCodeURL(state, verifier)
	if err != nil {
		return "", "", err
	}
	if err := f.pending.Put(Pending{
		State:        state,
		DiscordID:    discordID,
		CodeVerifier: verifier,
		CreatedAt:    time.Now(),
	}); err != nil {
		return "", "", err
	}
	telemetry.Inc(telemetry.VerificationsStarted)
	telemetry.SetPendingVerifications(f.pending.Len())
	slog.Info("verification started", slog.String("discord_id", discordID))
	return authURL, state, nil
}

// Complete consumes the OAuth callback: takes the single-use pending entry,
// exchanges the code with the stored verifier, resolves the account identity,
// and upserts the link.
func (f *Flow) Complete(ctx context.Context, state, code string) (*Link, error) {
	p, ok := f.pending.Take(state)
	if !ok {
		return nil, ErrStateInvalidOrExpired
	}
	telemetry.SetPendingVerifications(f.pending.Len())

	accessToken, err := f.oauth.ExchangeAuthCode(ctx, code, p.CodeVerifier)
	if err != nil {
		telemetry.Inc(telemetry.VerificationsFailed)
		return nil, fmt.Errorf("%w: %v", ErrTokenExchange, err)
	}
	info, err := f.oauth.FetchUserInfo(ctx, accessToken)
	if err != nil {
		telemetry.Inc(telemetry.VerificationsFailed)
		return nil, fmt.Errorf("%w: %v", ErrUserInfo, err)
	}

	link := Link{
		DiscordID:      p.DiscordID,
		FaceitID:       info.GUID,
		FaceitNickname: info.Nickname,
		VerifiedMethod: "oauth",
		LinkedAt:       time.Now().UTC(),
	}
	if err := f.links.UpsertLink(ctx, link); err != nil {
		telemetry.Inc(telemetry.VerificationsFailed)
		return nil, fmt.Errorf("persist link for %s: %w", p.DiscordID, err)
	}
	telemetry.Inc(telemetry.VerificationsCompleted)
	slog.Info("verification completed",
		slog.String("discord_id", link.DiscordID),
		slog.String("faceit_nickname", link.FaceitNickname))
	return &link, nil
}
