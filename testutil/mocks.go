package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// MockFaceitServer creates a test server that mocks FACEIT data API and OAuth responses.
type MockFaceitServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
}

// NewMockFaceitServer creates a new mock FACEIT server.
func NewMockFaceitServer(t *testing.T) *MockFaceitServer {
	t.Helper()
	m := &MockFaceitServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if handler, ok := m.Handlers[key]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// MockMatchResponse adds a handler for /matches/{id} with two fixed factions.
func (m *MockFaceitServer) MockMatchResponse(matchID, entity, mapPick string, roster1, roster2 []string) {
	toRoster := func(ids []string) []map[string]string {
		out := make([]map[string]string, 0, len(ids))
		for _, id := range ids {
			out = append(out, map[string]string{"player_id": id})
		}
		return out
	}
	m.Handlers["/matches/"+matchID] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]any{
			"teams": map[string]any{
				"faction1": map[string]any{"name": "Alpha", "roster": toRoster(roster1)},
				"faction2": map[string]any{"name": "Bravo", "roster": toRoster(roster2)},
			},
			"entity": map[string]string{"name": entity},
			"voting": map[string]any{
				"map": map[string]any{"pick": []string{mapPick}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockTokenResponse adds a handler for the token endpoint.
func (m *MockFaceitServer) MockTokenResponse(accessToken string) {
	m.Handlers["/token"] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck // test mock response
			"access_token": accessToken,
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}
}

// MockUserinfoResponse adds a handler for the userinfo endpoint.
func (m *MockFaceitServer) MockUserinfoResponse(guid, nickname string) {
	m.Handlers["/userinfo"] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{ //nolint:errcheck // test mock response
			"guid":     guid,
			"nickname": nickname,
		})
	}
}

// MockSearchResponse adds a handler for /search/players.
func (m *MockFaceitServer) MockSearchResponse(playerID, nickname string) {
	m.Handlers["/search/players"] = func(w http.ResponseWriter, r *http.Request) {
		items := []map[string]string{}
		if playerID != "" {
			items = append(items, map[string]string{"player_id": playerID, "nickname": nickname})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items}) //nolint:errcheck // test mock response
	}
}

// MockDiscordServer mocks the Discord REST endpoints used for channel
// provisioning and counts calls so tests can assert idempotency.
type MockDiscordServer struct {
	*httptest.Server

	mu            sync.Mutex
	nextChannelID int
	CreateCalls   int
	MoveCalls     int
	DeleteCalls   int
	Deleted       []string
	// FailCreate makes channel creation answer 500.
	FailCreate bool
}

// NewMockDiscordServer creates a new mock Discord API server for a guild.
func NewMockDiscordServer(t *testing.T, guildID string) *MockDiscordServer {
	t.Helper()
	m := &MockDiscordServer{nextChannelID: 1}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/guilds/"+guildID+"/channels":
			m.CreateCalls++
			if m.FailCreate {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			id := fmt.Sprintf("chan-%d", m.nextChannelID)
			m.nextChannelID++
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]string{"id": id}) //nolint:errcheck // test mock response
		case r.Method == http.MethodPatch:
			m.MoveCalls++
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodDelete:
			m.DeleteCalls++
			m.Deleted = append(m.Deleted, r.URL.Path)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(m.Close)
	return m
}

// Counts returns a snapshot of call counters.
func (m *MockDiscordServer) Counts() (create, move, del int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CreateCalls, m.MoveCalls, m.DeleteCalls
}
