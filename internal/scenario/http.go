package scenario

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// client talks to the service's JSON API.
type client struct {
	http    *http.Client
	baseURL string
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{http: &http.Client{Timeout: timeout}, baseURL: baseURL}
}

// do sends body as JSON and decodes a 2xx response into out.
func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrRequest, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: %s %s: HTTP %d: %s", ErrRequest, method, path, resp.StatusCode, bytes.TrimSpace(data))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *client) health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// switchWallet points the service's session at wallet.
func (c *client) switchWallet(ctx context.Context, wallet common.Address, chainID uint64) error {
	body := map[string]any{"address": wallet.Hex(), "connected": true, "chain_id": chainID}
	return c.do(ctx, http.MethodPost, "/session", body, nil)
}

type writeResult struct {
	Operation struct {
		State string `json:"state"`
	} `json:"operation"`
	Stale bool `json:"stale"`
}

func (c *client) register(ctx context.Context, b Builder) (writeResult, error) {
	var out writeResult
	err := c.do(ctx, http.MethodPost, "/register", map[string]any{"username": b.Username, "skills": b.Skills}, &out)
	return out, err
}

func (c *client) vouch(ctx context.Context, v Vouch) (writeResult, error) {
	var out writeResult
	err := c.do(ctx, http.MethodPost, "/vouch", map[string]any{"builder": v.Builder.Hex(), "skill": v.Skill}, &out)
	return out, err
}

func (c *client) refresh(ctx context.Context, kind string) error {
	return c.do(ctx, http.MethodPost, "/refresh", map[string]string{"kind": kind}, nil)
}

func (c *client) leaderboard(ctx context.Context, limit int) ([]Entry, error) {
	var out []Entry
	err := c.do(ctx, http.MethodGet, "/leaderboard?limit="+strconv.Itoa(limit), nil, &out)
	return out, err
}

func (c *client) rank(ctx context.Context, wallet common.Address) (Entry, error) {
	var out struct {
		Rank    int `json:"rank"`
		Profile struct {
			Username         string `json:"username"`
			CredibilityScore uint64 `json:"credibility_score"`
		} `json:"profile"`
	}
	if err := c.do(ctx, http.MethodGet, "/rank/"+wallet.Hex(), nil, &out); err != nil {
		return Entry{}, err
	}
	return Entry{Rank: out.Rank, Wallet: wallet, Username: out.Profile.Username, CredibilityScore: out.Profile.CredibilityScore}, nil
}
