package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"armory/internal/progression"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Kind    string
	Message string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("api status %d (%s): %s", e.Status, e.Kind, e.Message)
	}
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

type Catalog struct {
	Items    []progression.Item         `json:"items"`
	Research []progression.ResearchEdge `json:"research"`
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Catalog(ctx context.Context, accessToken string) (Catalog, error) {
	var out Catalog
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/catalog", accessToken, nil, &out)
	return out, err
}

func (c *Client) Session(ctx context.Context, accessToken, username string) (progression.Profile, error) {
	var body any
	if strings.TrimSpace(username) != "" {
		body = map[string]any{"username": username}
	}
	var out progression.Profile
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/session", accessToken, body, &out)
	return out, err
}

func (c *Client) Profile(ctx context.Context, accessToken string) (progression.Profile, error) {
	var out progression.Profile
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/me", accessToken, nil, &out)
	return out, err
}

func (c *Client) Owned(ctx context.Context, accessToken string) (progression.OwnedSnapshot, error) {
	var out progression.OwnedSnapshot
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/me/items", accessToken, nil, &out)
	return out, err
}

func (c *Client) Unlocks(ctx context.Context, accessToken string) ([]progression.Unlock, error) {
	var out struct {
		Unlocks []progression.Unlock `json:"unlocks"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/me/unlocks", accessToken, nil, &out)
	return out.Unlocks, err
}

func (c *Client) Ledger(ctx context.Context, accessToken string, limit int) ([]progression.LedgerEntry, error) {
	path := "/v1/me/ledger"
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}
	var out struct {
		Entries []progression.LedgerEntry `json:"entries"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, path, accessToken, nil, &out)
	return out.Entries, err
}

func (c *Client) SetActive(ctx context.Context, accessToken string, itemID int64) (int64, error) {
	var out struct {
		ActiveItemID int64 `json:"active_item_id"`
	}
	err := c.jsonRequest(ctx, http.MethodPut, fmt.Sprintf("/v1/me/active/%d", itemID), accessToken, nil, &out)
	return out.ActiveItemID, err
}

func (c *Client) Buy(ctx context.Context, accessToken, code string) (progression.BuyResult, error) {
	var out progression.BuyResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/me/items/"+url.PathEscape(code)+"/buy", accessToken, nil, &out)
	return out, err
}

func (c *Client) Sell(ctx context.Context, accessToken string, itemID int64) (progression.ReleaseResult, error) {
	var out progression.ReleaseResult
	err := c.jsonRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/me/items/%d/sell", itemID), accessToken, nil, &out)
	return out, err
}

func (c *Client) Remove(ctx context.Context, accessToken string, itemID int64) (progression.ReleaseResult, error) {
	var out progression.ReleaseResult
	err := c.jsonRequest(ctx, http.MethodDelete, fmt.Sprintf("/v1/me/items/%d", itemID), accessToken, nil, &out)
	return out, err
}

func (c *Client) ConvertFreeXP(ctx context.Context, accessToken string, itemID, amount int64) (progression.ConvertResult, error) {
	var out progression.ConvertResult
	err := c.jsonRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/me/items/%d/convert-free-xp", itemID), accessToken, map[string]any{
		"amount": amount,
	}, &out)
	return out, err
}

func (c *Client) Research(ctx context.Context, accessToken string, successorID, predecessorID int64) (progression.UnlockResult, error) {
	var out progression.UnlockResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/me/research", accessToken, map[string]any{
		"successor_item_id":   successorID,
		"predecessor_item_id": predecessorID,
	}, &out)
	return out, err
}

func (c *Client) StartMatch(ctx context.Context, accessToken, mapName string) (progression.Match, error) {
	var out progression.Match
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/matches", accessToken, map[string]any{
		"map": mapName,
	}, &out)
	return out, err
}

func (c *Client) Report(ctx context.Context, accessToken string, matchID int64, itemCode string, team int, result string, kills, damage int) (progression.ReportResult, error) {
	var out progression.ReportResult
	err := c.jsonRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/matches/%d/report", matchID), accessToken, map[string]any{
		"item_code": itemCode,
		"team":      team,
		"result":    result,
		"kills":     kills,
		"damage":    damage,
	}, &out)
	return out, err
}

func (c *Client) EndMatch(ctx context.Context, accessToken string, matchID int64) (progression.Match, error) {
	var out progression.Match
	err := c.jsonRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/matches/%d/end", matchID), accessToken, nil, &out)
	return out, err
}

func (c *Client) Participants(ctx context.Context, accessToken string, matchID int64) ([]progression.Participant, error) {
	var out struct {
		Participants []progression.Participant `json:"participants"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, fmt.Sprintf("/v1/matches/%d/participants", matchID), accessToken, nil, &out)
	return out.Participants, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path, accessToken string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var payload struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
		}
		if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
			apiErr.Kind = payload.Kind
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
