// Package discord contains minimal helpers to manage private guild voice
// channels over the Discord REST API, using a bot token. It covers only what
// channel provisioning needs: create with permission overwrites, move or
// disconnect members, and delete.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// Discord permission bits and overwrite target types.
const (
	permViewChannel = 1 << 10
	permConnect     = 1 << 20
	permSpeak       = 1 << 21

	overwriteRole   = 0
	overwriteMember = 1

	channelTypeGuildVoice = 2
)

// Client is a guild-scoped Discord REST client.
type Client struct {
	BotToken string
	BaseURL  string // e.g. https://discord.com/api/v10
	GuildID  string
	// CategoryID optionally parents created channels under a category.
	CategoryID string
	// LobbyChannelID, when set, receives members on teardown instead of a
	// hard disconnect.
	LobbyChannelID string
	HTTPClient     *http.Client
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 15 * time.Second}
}

func (c *Client) do(ctx context.Context, method, url string, body any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bot "+c.BotToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.http().Do(req)
}

type permissionOverwrite struct {
	ID    string `json:"id"`
	Type  int    `json:"type"`
	Allow string `json:"allow,omitempty"`
	Deny  string `json:"deny,omitempty"`
}

// CreateFactionChannel creates a private voice channel visible to exactly the
// given member ids; everyone else is denied view by default. Returns the new
// channel id.
func (c *Client) CreateFactionChannel(ctx context.Context, name string, memberIDs []string) (string, error) {
	if c.BotToken == "" || c.GuildID == "" {
		return "", errors.New("missing bot token or guild id")
	}
	if name == "" {
		return "", errors.New("channel name empty")
	}

	// The @everyone role shares the guild's id.
	overwrites := []permissionOverwrite{
		{ID: c.GuildID, Type: overwriteRole, Deny: strconv.Itoa(permViewChannel)},
	}
	memberAllow := strconv.Itoa(permViewChannel | permConnect | permSpeak)
	for _, id := range memberIDs {
		overwrites = append(overwrites, permissionOverwrite{ID: id, Type: overwriteMember, Allow: memberAllow})
	}

	payload := map[string]any{
		"name":                  name,
		"type":                  channelTypeGuildVoice,
		"permission_overwrites": overwrites,
	}
	if c.CategoryID != "" {
		payload["parent_id"] = c.CategoryID
	}

	resp, err := c.do(ctx, http.MethodPost, c.BaseURL+"/guilds/"+c.GuildID+"/channels", payload)
	if err != nil {
		return "", err
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("discord channel create failed: %s: %s", resp.Status, string(b))
	}
	var ch struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ch); err != nil {
		return "", err
	}
	if ch.ID == "" {
		return "", errors.New("empty channel id in discord response")
	}
	return ch.ID, nil
}

// MoveMember moves a guild member into a voice channel. Discord rejects the
// move when the member is not connected to voice; callers treat that as
// best-effort.
func (c *Client) MoveMember(ctx context.Context, userID, channelID string) error {
	return c.patchVoiceChannel(ctx, userID, &channelID)
}

// DisconnectMember removes a member from voice, or parks them in the lobby
// channel when one is configured.
func (c *Client) DisconnectMember(ctx context.Context, userID string) error {
	if c.LobbyChannelID != "" {
		return c.patchVoiceChannel(ctx, userID, &c.LobbyChannelID)
	}
	return c.patchVoiceChannel(ctx, userID, nil)
}

func (c *Client) patchVoiceChannel(ctx context.Context, userID string, channelID *string) error {
	if userID == "" {
		return errors.New("userID empty")
	}
	payload := map[string]any{"channel_id": channelID}
	resp, err := c.do(ctx, http.MethodPatch, c.BaseURL+"/guilds/"+c.GuildID+"/members/"+userID, payload)
	if err != nil {
		return err
	}
	defer closeBody(resp)
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("discord member move failed: %s: %s", resp.Status, string(b))
	}
	return nil
}

// DeleteChannel deletes a channel. A 404 counts as success: the channel is
// gone either way, and teardown replays must stay idempotent.
func (c *Client) DeleteChannel(ctx context.Context, channelID string) error {
	if channelID == "" {
		return errors.New("channelID empty")
	}
	resp, err := c.do(ctx, http.MethodDelete, c.BaseURL+"/channels/"+channelID, nil)
	if err != nil {
		return err
	}
	defer closeBody(resp)
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("discord channel delete failed: %s: %s", resp.Status, string(b))
	}
	return nil
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		slog.Warn("failed to close response body", slog.Any("err", err))
	}
}
