package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bidbazaar/internal/biddingerrors"
	"bidbazaar/internal/models"
	"bidbazaar/utils"

	"github.com/shopspring/decimal"
)

// TokenSource supplies the bearer token for outgoing requests
type TokenSource interface {
	Token() string
}

// envelope is the response shape written by the API server
type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

// LoginResult is returned by a successful Login
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
}

// Client talks to the marketplace REST API
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

// New creates a client for baseURL. tokens may be nil for anonymous use.
func New(baseURL string, timeout time.Duration, tokens TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
	}
}

// GetListing fetches GET /products/{id}
func (c *Client) GetListing(ctx context.Context, listingID string) (models.Listing, error) {
	var listing models.Listing
	if err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(listingID), nil, &listing); err != nil {
		return models.Listing{}, err
	}
	return listing, nil
}

// GetListingBids fetches GET /products/{id}/bids, most recent first
func (c *Client) GetListingBids(ctx context.Context, listingID string) ([]models.Bid, error) {
	var bids []models.Bid
	if err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(listingID)+"/bids", nil, &bids); err != nil {
		return nil, err
	}
	if bids == nil {
		bids = []models.Bid{}
	}
	return bids, nil
}

// PlaceBid submits POST /bids
func (c *Client) PlaceBid(ctx context.Context, listingID string, amount decimal.Decimal) (models.Bid, error) {
	body := map[string]any{"productId": listingID, "amount": amount}

	var bid models.Bid
	if err := c.do(ctx, http.MethodPost, "/bids", body, &bid); err != nil {
		return models.Bid{}, err
	}
	return bid, nil
}

// Login exchanges credentials for a bearer token
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	body := map[string]string{"username": username, "password": password}

	var res LoginResult
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &res); err != nil {
		return LoginResult{}, err
	}
	if res.Token == "" {
		return LoginResult{}, fmt.Errorf("apiclient: %w - login response without token", biddingerrors.ErrNetworkOrServer)
	}
	return res, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("apiclient: encode request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("apiclient: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", utils.GenerateID())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("apiclient: %w - %s %s: %v", biddingerrors.ErrNetworkOrServer, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("apiclient: %w - read response: %v", biddingerrors.ErrNetworkOrServer, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &biddingerrors.APIError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
		utils.Warn("apiclient: request failed", map[string]any{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
			"error":  apiErr.Message,
		})
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := decode(raw, out); err != nil {
		return fmt.Errorf("apiclient: %w - decode %s %s: %v", biddingerrors.ErrNetworkOrServer, method, path, err)
	}
	return nil
}

// decode accepts either the {status,message,data} envelope or a bare record
func decode(raw []byte, out any) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		return json.Unmarshal(env.Data, out)
	}
	return json.Unmarshal(raw, out)
}

// errorMessage pulls the server's message from an error body
func errorMessage(raw []byte) string {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ""
	}
	if env.Error != "" {
		return env.Error
	}
	return env.Message
}
