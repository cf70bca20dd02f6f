// Package faceit contains minimal helpers to interact with the FACEIT data
// API (match details, player search) and the FACEIT OAuth2 endpoints used for
// account linking, using a server-side API key.
package faceit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// ErrPlayerNotFound is returned when a nickname search yields no results.
var ErrPlayerNotFound = errors.New("faceit player not found")

// Client provides the data API methods the lifecycle engine needs.
type Client struct {
	APIKey     string
	BaseURL    string // e.g. https://open.faceit.com/data/v4
	HTTPClient *http.Client
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	// All outbound calls are bounded; webhook handling must never hang on a
	// slow upstream.
	return &http.Client{Timeout: 15 * time.Second}
}

// MatchFaction is one team of a match with its ordered roster of player ids.
type MatchFaction struct {
	Name   string
	Roster []string
}

// Match is the subset of FACEIT match details the service persists.
type Match struct {
	ID         string
	EntityName string
	MapPicked  string
	Factions   [2]MatchFaction
}

// MatchDetails fetches full match data for a match id.
func (c *Client) MatchDetails(ctx context.Context, matchID string) (*Match, error) {
	if c.APIKey == "" {
		return nil, errors.New("missing FACEIT API key")
	}
	if matchID == "" {
		return nil, errors.New("matchID empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/matches/"+url.PathEscape(matchID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	resp, err := c.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("faceit match fetch failed: %s: %s", resp.Status, string(b))
	}

	var body struct {
		Teams map[string]struct {
			Name   string `json:"name"`
			Roster []struct {
				PlayerID string `json:"player_id"`
			} `json:"roster"`
		} `json:"teams"`
		Entity struct {
			Name string `json:"name"`
		} `json:"entity"`
		Voting struct {
			Map struct {
				Pick []string `json:"pick"`
			} `json:"map"`
		} `json:"voting"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}

	m := &Match{ID: matchID, EntityName: body.Entity.Name}
	if len(body.Voting.Map.Pick) > 0 {
		m.MapPicked = body.Voting.Map.Pick[0]
	}
	for i, key := range []string{"faction1", "faction2"} {
		team, ok := body.Teams[key]
		if !ok {
			continue
		}
		f := MatchFaction{Name: team.Name}
		for _, p := range team.Roster {
			if p.PlayerID != "" {
				f.Roster = append(f.Roster, p.PlayerID)
			}
		}
		m.Factions[i] = f
	}
	return m, nil
}

// Player is a FACEIT account resolved by nickname search.
type Player struct {
	ID       string
	Nickname string
}

// SearchPlayer resolves a nickname to a player via the search API.
// Returns ErrPlayerNotFound when the search yields nothing.
func (c *Client) SearchPlayer(ctx context.Context, nickname string) (*Player, error) {
	if c.APIKey == "" {
		return nil, errors.New("missing FACEIT API key")
	}
	if nickname == "" {
		return nil, errors.New("nickname empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/search/players", nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("nickname", nickname)
	q.Set("limit", "1")
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	resp, err := c.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("faceit player search failed: %s: %s", resp.Status, string(b))
	}
	var body struct {
		Items []struct {
			PlayerID string `json:"player_id"`
			Nickname string `json:"nickname"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if len(body.Items) == 0 || body.Items[0].PlayerID == "" {
		return nil, ErrPlayerNotFound
	}
	return &Player{ID: body.Items[0].PlayerID, Nickname: body.Items[0].Nickname}, nil
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		slog.Warn("failed to close response body", slog.Any("err", err))
	}
}
