// Package plaid provides a client for interacting with the Plaid API.
package plaid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/finwiz/internal/common"
	"github.com/Veraticus/finwiz/internal/model"
	"github.com/Veraticus/finwiz/internal/service"
	"github.com/plaid/plaid-go/v20/plaid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	// DefaultPageSize is the number of transactions requested per sync page.
	DefaultPageSize = int32(100)
	// MaxPageSize is the largest page Plaid accepts on /transactions/sync.
	MaxPageSize = int32(500)

	errorCodeRateLimit = "RATE_LIMIT_EXCEEDED"
)

// Config holds Plaid API configuration.
// Access tokens are per user and travel with each request instead.
type Config struct {
	ClientID          string
	Secret            string
	Environment       string // sandbox or production
	RequestsPerSecond float64
}

// Validate ensures all required fields are present.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("plaid client ID is required")
	}
	if c.Secret == "" {
		return fmt.Errorf("plaid secret is required")
	}
	if c.Environment == "" {
		return fmt.Errorf("plaid environment is required")
	}

	validEnvs := map[string]bool{
		"sandbox":    true,
		"production": true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid Plaid environment: must be sandbox or production")
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("plaid requests per second cannot be negative")
	}

	return nil
}

// Client implements the TransactionSyncer interface.
type Client struct {
	client    *plaid.APIClient
	limiter   *rate.Limiter
	logger    *slog.Logger
	retryOpts *service.RetryOptions
}

// NewClient creates a new Plaid client with the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Configure Plaid client based on environment
	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	configuration.AddDefaultHeader("PLAID-SECRET", cfg.Secret)

	switch cfg.Environment {
	case "sandbox":
		configuration.UseEnvironment(plaid.Sandbox)
	case "production":
		configuration.UseEnvironment(plaid.Production)
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		client:  plaid.NewAPIClient(configuration),
		limiter: rate.NewLimiter(limit, 1),
		logger:  slog.Default().With("component", "plaid"),
		retryOpts: &service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 1 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}, nil
}

// SyncTransactions fetches one page of /transactions/sync.
// A given cursor always yields the same page, so the call is retried on transient failures.
func (c *Client) SyncTransactions(ctx context.Context, req SyncRequest) (*SyncPage, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}
	if req.AccessToken == "" {
		return nil, common.Validationf("plaid access token is required")
	}

	count := req.Count
	if count <= 0 {
		count = DefaultPageSize
	}
	if count > MaxPageSize {
		count = MaxPageSize
	}

	var page *SyncPage
	retryErr := common.WithRetry(ctx, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return common.Permanent(err)
		}

		request := newSyncRequest(req, count)
		resp, _, err := c.client.PlaidApi.TransactionsSync(ctx).TransactionsSyncRequest(request).Execute()
		if err != nil {
			return c.classifyError(err, "failed to sync transactions")
		}

		page = &SyncPage{
			Added:      c.mapTransactions(resp.GetAdded()),
			Modified:   c.mapTransactions(resp.GetModified()),
			Removed:    mapRemoved(resp.GetRemoved()),
			HasMore:    resp.GetHasMore(),
			NextCursor: resp.GetNextCursor(),
		}

		c.logger.Debug("Fetched sync page",
			"added", len(page.Added),
			"modified", len(page.Modified),
			"removed", len(page.Removed),
			"has_more", page.HasMore)
		return nil
	}, *c.retryOpts)

	if retryErr != nil {
		return nil, asProviderError(retryErr)
	}
	return page, nil
}

// GetAccounts fetches the accounts linked under the access token.
func (c *Client) GetAccounts(ctx context.Context, accessToken string) ([]model.Account, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}
	if accessToken == "" {
		return nil, common.Validationf("plaid access token is required")
	}

	c.logger.Info("Fetching accounts from Plaid")

	var accounts []plaid.AccountBase
	retryErr := common.WithRetry(ctx, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return common.Permanent(err)
		}

		request := plaid.NewAccountsGetRequest(accessToken)
		resp, _, err := c.client.PlaidApi.AccountsGet(ctx).AccountsGetRequest(*request).Execute()
		if err != nil {
			return c.classifyError(err, "failed to fetch accounts")
		}

		accounts = resp.GetAccounts()
		return nil
	}, *c.retryOpts)

	if retryErr != nil {
		return nil, asProviderError(retryErr)
	}

	c.logger.Info("Fetched accounts", "count", len(accounts))

	result := make([]model.Account, 0, len(accounts))
	for _, account := range accounts {
		result = append(result, model.Account{
			ExternalID: account.GetAccountId(),
			Name:       account.GetName(),
			Type:       string(account.GetType()),
			Subtype:    string(account.GetSubtype()),
		})
	}

	return result, nil
}

// ExchangePublicToken exchanges a public token from Link for an access token.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (string, string, error) {
	if publicToken == "" {
		return "", "", common.Validationf("public token is required")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", "", err
	}

	// Not retried: a public token can only be exchanged once.
	request := plaid.NewItemPublicTokenExchangeRequest(publicToken)
	resp, _, err := c.client.PlaidApi.ItemPublicTokenExchange(ctx).ItemPublicTokenExchangeRequest(*request).Execute()
	if err != nil {
		if plaidError := extractPlaidError(err); plaidError != nil {
			return "", "", fmt.Errorf("%w: plaid API error: %s - %s", common.ErrProvider, plaidError.ErrorCode, plaidError.ErrorMessage)
		}
		return "", "", fmt.Errorf("%w: failed to exchange public token: %w", common.ErrProvider, err)
	}

	return resp.GetAccessToken(), resp.GetItemId(), nil
}

// classifyError decides whether a failed Plaid call is worth retrying.
func (c *Client) classifyError(err error, action string) error {
	if plaidError := extractPlaidError(err); plaidError != nil {
		if plaidError.ErrorCode == errorCodeRateLimit {
			c.logger.Warn("Rate limit hit, will retry", "error", plaidError.ErrorMessage)
			return &common.RetryableError{
				Err:       fmt.Errorf("%w: %s", common.ErrPlaidRateLimit, plaidError.ErrorMessage),
				Retryable: true,
			}
		}
		return common.Permanent(fmt.Errorf("plaid API error: %s - %s", plaidError.ErrorCode, plaidError.ErrorMessage))
	}
	return fmt.Errorf("%s: %w", action, err)
}

func asProviderError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", common.ErrProvider, err)
}

func (c *Client) mapTransactions(txns []plaid.Transaction) []model.ProviderTransaction {
	result := make([]model.ProviderTransaction, 0, len(txns))
	for _, pt := range txns {
		result = append(result, c.mapPlaidTransaction(pt))
	}
	return result
}

// mapPlaidTransaction converts a Plaid transaction to the provider-neutral model.
// The amount is kept exactly as reported.
func (c *Client) mapPlaidTransaction(pt plaid.Transaction) model.ProviderTransaction {
	date, err := time.Parse("2006-01-02", pt.GetDate())
	if err != nil {
		c.logger.Error("Failed to parse transaction date", "date", pt.GetDate(), "error", err)
		date = time.Now().UTC().Truncate(24 * time.Hour)
	}

	raw, err := json.Marshal(pt)
	if err != nil {
		c.logger.Warn("Failed to encode raw transaction payload", "transaction_id", pt.GetTransactionId(), "error", err)
		raw = nil
	}

	return model.ProviderTransaction{
		TransactionID: pt.GetTransactionId(),
		AccountID:     pt.GetAccountId(),
		Amount:        decimal.NewFromFloat(pt.GetAmount()),
		Date:          date,
		Pending:       pt.GetPending(),
		Category:      pt.GetCategory(),
		Name:          pt.GetName(),
		MerchantName:  pt.GetMerchantName(),
		CurrencyCode:  pt.GetIsoCurrencyCode(),
		RawPayload:    raw,
	}
}

// newSyncRequest builds a /transactions/sync request with the personal finance
// category enabled.
func newSyncRequest(req SyncRequest, count int32) plaid.TransactionsSyncRequest {
	request := plaid.NewTransactionsSyncRequest(req.AccessToken)
	if req.Cursor != "" {
		request.SetCursor(req.Cursor)
	}
	request.SetCount(count)
	options := plaid.NewTransactionsSyncRequestOptions()
	options.SetIncludePersonalFinanceCategory(true)
	request.SetOptions(*options)
	return *request
}

func mapRemoved(removed []plaid.RemovedTransaction) []RemovedTransaction {
	result := make([]RemovedTransaction, 0, len(removed))
	for _, r := range removed {
		result = append(result, RemovedTransaction{
			TransactionID: r.GetTransactionId(),
		})
	}
	return result
}

// extractPlaidError attempts to extract a Plaid error from a generic error.
func extractPlaidError(err error) *plaid.PlaidError {
	plaidErr, convErr := plaid.ToPlaidError(err)
	if convErr != nil {
		return nil
	}
	return &plaidErr
}

// Ensure Client implements TransactionSyncer interface.
var _ TransactionSyncer = (*Client)(nil)
