package custody

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"stablesend/internal/config"
	"stablesend/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Client talks to the wallet custody service with rate limiting, bounded
// retries on reads, and structured logging. Transfer submissions are never
// retried here: a retried transfer is a second transfer.
type Client struct {
	BaseURL     string
	RateLimiter *rate.Limiter
	MaxRetries  int
	RetryDelay  time.Duration
	Logger      *zerolog.Logger
	HTTPClient  *http.Client
}

// NewClient creates a new custody client with the given configuration
func NewClient(cfg config.CustodyConfig, logger *zerolog.Logger) *Client {
	return &Client{
		BaseURL:     cfg.BaseURL,
		RateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		MaxRetries:  cfg.MaxRetries,
		RetryDelay:  cfg.RetryDelay,
		Logger:      logger,
		HTTPClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &CustomTransport{
				Base:         http.DefaultTransport,
				ApiKey:       cfg.APIKey,
				EntitySecret: cfg.EntitySecret,
			},
		},
	}
}

// CustomTransport adds API key authentication to HTTP requests
type CustomTransport struct {
	Base         http.RoundTripper
	ApiKey       string
	EntitySecret string
}

func (t *CustomTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Content-Type", "application/json")
	if t.ApiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.ApiKey)
	}
	if t.EntitySecret != "" {
		req.Header.Set("X-Entity-Secret", t.EntitySecret)
	}
	return t.Base.RoundTrip(req)
}

type createWalletsRequest struct {
	UserID      string   `json:"userId"`
	Blockchains []string `json:"blockchains"`
	Count       int      `json:"count"`
}

type walletData struct {
	ID         string `json:"id"`
	Address    string `json:"address"`
	Blockchain string `json:"blockchain"`
}

type createWalletsResponse struct {
	Wallets []walletData `json:"wallets"`
}

// CreateWallets provisions one wallet per requested network for a user.
func (c *Client) CreateWallets(ctx context.Context, userID string, networks []models.NetworkID) ([]models.ProvisionedWallet, error) {
	blockchains := make([]string, 0, len(networks))
	for _, n := range networks {
		blockchains = append(blockchains, n.String())
	}

	var response createWalletsResponse
	err := c.post(ctx, "/developer/wallets", createWalletsRequest{
		UserID:      userID,
		Blockchains: blockchains,
		Count:       1,
	}, &response)
	if err != nil {
		return nil, fmt.Errorf("failed to create wallets: %w", err)
	}
	if len(response.Wallets) == 0 {
		return nil, fmt.Errorf("custody service returned no wallets")
	}

	wallets := make([]models.ProvisionedWallet, 0, len(response.Wallets))
	for _, w := range response.Wallets {
		wallets = append(wallets, models.ProvisionedWallet{
			Handle:  w.ID,
			Address: w.Address,
			Network: models.NetworkID(w.Blockchain),
		})
	}
	return wallets, nil
}

type tokenBalanceData struct {
	Token struct {
		Symbol string `json:"symbol"`
	} `json:"token"`
	Amount string `json:"amount"`
}

type tokenBalanceResponse struct {
	TokenBalances []tokenBalanceData `json:"tokenBalances"`
}

// GetTokenBalance returns all token balances for a wallet. Reads are
// idempotent, so transient failures are retried.
func (c *Client) GetTokenBalance(ctx context.Context, walletHandle string) ([]models.TokenBalance, error) {
	var response tokenBalanceResponse
	err := c.retry(func() error {
		return c.get(ctx, "/wallets/"+walletHandle+"/balances", &response)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get balance for wallet %s: %w", walletHandle, err)
	}

	balances := make([]models.TokenBalance, 0, len(response.TokenBalances))
	for _, b := range response.TokenBalances {
		balances = append(balances, models.TokenBalance{
			Symbol: b.Token.Symbol,
			Amount: b.Amount,
		})
	}
	return balances, nil
}

type transferRequest struct {
	WalletID           string    `json:"walletId"`
	TokenAddress       string    `json:"tokenAddress"`
	DestinationAddress string    `json:"destinationAddress"`
	Amount             []string  `json:"amount"`
	Blockchain         string    `json:"blockchain"`
	Fee                feeConfig `json:"fee"`
}

type feeConfig struct {
	Type   string `json:"type"`
	Config struct {
		FeeLevel string `json:"feeLevel"`
	} `json:"config"`
}

type transferResponse struct {
	ID string `json:"id"`
}

// Transfer submits a signed transfer and returns the provider's transaction
// reference. A returned reference means the request was accepted, not that the
// funds have settled on chain. Exactly one attempt is made.
func (c *Client) Transfer(ctx context.Context, req models.CustodyTransfer) (string, error) {
	c.Logger.Debug().
		Str("wallet", req.WalletHandle).
		Str("network", req.Network.String()).
		Str("amount", req.Amount).
		Msg("Submitting custody transfer")

	fee := feeConfig{Type: "level"}
	fee.Config.FeeLevel = "MEDIUM"

	var response transferResponse
	err := c.post(ctx, "/developer/transactions/transfer", transferRequest{
		WalletID:           req.WalletHandle,
		TokenAddress:       req.TokenAddress,
		DestinationAddress: req.DestinationAddress,
		Amount:             []string{req.Amount},
		Blockchain:         req.Network.String(),
		Fee:                fee,
	}, &response)
	if err != nil {
		c.Logger.Error().
			Err(err).
			Str("wallet", req.WalletHandle).
			Str("network", req.Network.String()).
			Msg("Custody transfer failed")
		return "", err
	}
	if response.ID == "" {
		return "", fmt.Errorf("custody service accepted transfer without a reference")
	}

	c.Logger.Info().
		Str("wallet", req.WalletHandle).
		Str("network", req.Network.String()).
		Str("reference", response.ID).
		Msg("Custody transfer accepted")
	return response.ID, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	if err := c.RateLimiter.Wait(req.Context()); err != nil {
		return fmt.Errorf("rate limit error: %v", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("HTTP error: %d - %s", resp.StatusCode, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}
	return nil
}

// retry executes a function with retry logic
func (c *Client) retry(fn func() error) error {
	var err error
	for i := 0; i < c.MaxRetries; i++ {
		if err = fn(); err == nil {
			return nil
		}
		time.Sleep(c.RetryDelay)
	}
	return err
}

// Close closes the HTTP client connections
func (c *Client) Close() {
	if c.HTTPClient != nil {
		c.HTTPClient.CloseIdleConnections()
	}
}
