package faceit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMatchDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/matches/m-1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"teams": {
				"faction1": {"name": "Alpha", "roster": [{"player_id": "p-1"}, {"player_id": "p-2"}]},
				"faction2": {"name": "Bravo", "roster": [{"player_id": "p-3"}]}
			},
			"entity": {"name": "EU Hub"},
			"voting": {"map": {"pick": ["de_inferno", "de_nuke"]}}
		}`))
	}))
	defer srv.Close()

	c := &Client{APIKey: "test-key", BaseURL: srv.URL}
	m, err := c.MatchDetails(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("MatchDetails: %v", err)
	}
	if m.EntityName != "EU Hub" {
		t.Errorf("EntityName = %q", m.EntityName)
	}
	if m.MapPicked != "de_inferno" {
		t.Errorf("MapPicked = %q, want first pick", m.MapPicked)
	}
	if m.Factions[0].Name != "Alpha" || len(m.Factions[0].Roster) != 2 {
		t.Errorf("faction1 = %+v", m.Factions[0])
	}
	if m.Factions[1].Name != "Bravo" || len(m.Factions[1].Roster) != 1 {
		t.Errorf("faction2 = %+v", m.Factions[1])
	}
}

func TestMatchDetailsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := &Client{APIKey: "test-key", BaseURL: srv.URL}
	if _, err := c.MatchDetails(context.Background(), "missing"); err == nil {
		t.Fatal("expected error on non-200")
	}
}

func TestMatchDetailsRequiresKey(t *testing.T) {
	c := &Client{BaseURL: "http://unused"}
	if _, err := c.MatchDetails(context.Background(), "m-1"); err == nil {
		t.Fatal("expected error without API key")
	}
}

func TestSearchPlayer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/players" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("nickname"); got != "s1mple" {
			t.Errorf("nickname = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items": [{"player_id": "p-1", "nickname": "s1mple"}]}`))
	}))
	defer srv.Close()

	c := &Client{APIKey: "test-key", BaseURL: srv.URL}
	p, err := c.SearchPlayer(context.Background(), "s1mple")
	if err != nil {
		t.Fatalf("SearchPlayer: %v", err)
	}
	if p.ID != "p-1" || p.Nickname != "s1mple" {
		t.Errorf("player = %+v", p)
	}
}

func TestSearchPlayerNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items": []}`))
	}))
	defer srv.Close()

	c := &Client{APIKey: "test-key", BaseURL: srv.URL}
	_, err := c.SearchPlayer(context.Background(), "nobody")
	if !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("err = %v, want ErrPlayerNotFound", err)
	}
}
