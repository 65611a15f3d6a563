package plaid

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/Veraticus/finwiz/internal/common"
	"github.com/Veraticus/finwiz/internal/model"
	"github.com/plaid/plaid-go/v20/plaid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		config  Config
		name    string
		errMsg  string
		wantErr bool
	}{
		{
			name: "valid config",
			config: Config{
				ClientID:    "test-client-id",
				Secret:      "test-secret",
				Environment: "sandbox",
			},
			wantErr: false,
		},
		{
			name: "missing client ID",
			config: Config{
				Secret:      "test-secret",
				Environment: "sandbox",
			},
			wantErr: true,
			errMsg:  "plaid client ID is required",
		},
		{
			name: "missing secret",
			config: Config{
				ClientID:    "test-client-id",
				Environment: "sandbox",
			},
			wantErr: true,
			errMsg:  "plaid secret is required",
		},
		{
			name: "missing environment",
			config: Config{
				ClientID: "test-client-id",
				Secret:   "test-secret",
			},
			wantErr: true,
			errMsg:  "plaid environment is required",
		},
		{
			name: "invalid environment",
			config: Config{
				ClientID:    "test-client-id",
				Secret:      "test-secret",
				Environment: "development",
			},
			wantErr: true,
			errMsg:  "invalid Plaid environment",
		},
		{
			name: "negative rate",
			config: Config{
				ClientID:          "test-client-id",
				Secret:            "test-secret",
				Environment:       "production",
				RequestsPerSecond: -1,
			},
			wantErr: true,
			errMsg:  "cannot be negative",
		},
		{
			name: "valid production environment",
			config: Config{
				ClientID:          "test-client-id",
				Secret:            "test-secret",
				Environment:       "production",
				RequestsPerSecond: 5,
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name: "valid config creates client",
			config: Config{
				ClientID:          "test-client-id",
				Secret:            "test-secret",
				Environment:       "sandbox",
				RequestsPerSecond: 2,
			},
			wantErr: false,
		},
		{
			name: "invalid config returns error",
			config: Config{
				ClientID: "test-client-id",
				// Missing required fields
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.config)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, client)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, client)
				assert.NotNil(t, client.client)
				assert.NotNil(t, client.limiter)
				assert.NotNil(t, client.logger)
				assert.NotNil(t, client.retryOpts)
			}
		})
	}
}

func TestClient_Validation(t *testing.T) {
	client, err := NewClient(Config{ClientID: "id", Secret: "secret", Environment: "sandbox"})
	require.NoError(t, err)

	t.Run("sync without access token", func(t *testing.T) {
		_, err := client.SyncTransactions(context.Background(), SyncRequest{Cursor: "abc"})
		assert.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("accounts without access token", func(t *testing.T) {
		_, err := client.GetAccounts(context.Background(), "")
		assert.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("exchange without public token", func(t *testing.T) {
		_, _, err := client.ExchangePublicToken(context.Background(), "")
		assert.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("nil context", func(t *testing.T) {
		//nolint:staticcheck // nil context is the point of this test
		_, err := client.SyncTransactions(nil, SyncRequest{AccessToken: "token"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "context cannot be nil")
	})
}

func TestMapPlaidTransaction(t *testing.T) {
	client := &Client{logger: slog.Default().With("component", "plaid-test")}

	pt := plaid.Transaction{}
	pt.SetTransactionId("txn-1")
	pt.SetAccountId("acc-1")
	pt.SetAmount(-42.5)
	pt.SetDate("2024-03-15")
	pt.SetPending(true)
	pt.SetCategory([]string{"Food and Drink", "Restaurants"})
	pt.SetName("STARBUCKS STORE #123")
	pt.SetMerchantName("Starbucks")
	pt.SetIsoCurrencyCode("USD")

	got := client.mapPlaidTransaction(pt)

	assert.Equal(t, "txn-1", got.TransactionID)
	assert.Equal(t, "acc-1", got.AccountID)
	assert.True(t, got.Amount.Equal(decimal.NewFromFloat(-42.5)), "amount is kept as reported, got %s", got.Amount)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), got.Date)
	assert.True(t, got.Pending)
	assert.Equal(t, []string{"Food and Drink", "Restaurants"}, got.Category)
	assert.Equal(t, "STARBUCKS STORE #123", got.Name)
	assert.Equal(t, "Starbucks", got.MerchantName)
	assert.Equal(t, "USD", got.CurrencyCode)
	assert.Contains(t, string(got.RawPayload), "txn-1")
	assert.Equal(t, model.TransactionTypeExpense, model.TransactionTypeFor(got.Amount))
}

func TestAsProviderError(t *testing.T) {
	err := asProviderError(errors.New("boom"))
	assert.ErrorIs(t, err, common.ErrProvider)

	assert.Equal(t, context.Canceled, asProviderError(context.Canceled))
}

func TestMockClient(t *testing.T) {
	mock := NewMockClient(
		SyncPage{
			Added:      []model.ProviderTransaction{{TransactionID: "tx1", Amount: decimal.NewFromInt(-10)}},
			NextCursor: "c1",
			HasMore:    true,
		},
		SyncPage{NextCursor: "c2"},
	)
	mock.Accounts = []model.Account{{ExternalID: "acc1", Type: "depository", Subtype: "checking"}}
	ctx := context.Background()

	first, err := mock.SyncTransactions(ctx, SyncRequest{AccessToken: "token"})
	require.NoError(t, err)
	assert.Len(t, first.Added, 1)
	assert.True(t, first.HasMore)

	second, err := mock.SyncTransactions(ctx, SyncRequest{AccessToken: "token", Cursor: "c1"})
	require.NoError(t, err)
	assert.Equal(t, "c2", second.NextCursor)
	assert.False(t, second.HasMore)

	// The script is exhausted: an empty page echoing the cursor comes back.
	third, err := mock.SyncTransactions(ctx, SyncRequest{AccessToken: "token", Cursor: "c2"})
	require.NoError(t, err)
	assert.Equal(t, "c2", third.NextCursor)
	assert.Empty(t, third.Added)

	require.Len(t, mock.SyncCalls, 3)
	assert.Equal(t, "c1", mock.SyncCalls[1].Cursor)

	accounts, err := mock.GetAccounts(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, mock.Accounts, accounts)
	assert.Equal(t, 1, mock.GetAccountsCalls)

	// Custom behavior
	mock.SyncTransactionsFn = func(_ context.Context, _ SyncRequest) (*SyncPage, error) {
		return nil, common.ErrProvider
	}
	_, err = mock.SyncTransactions(ctx, SyncRequest{})
	assert.ErrorIs(t, err, common.ErrProvider)

	// Test Reset
	mock.Reset()
	assert.Empty(t, mock.SyncCalls)
	assert.Equal(t, 0, mock.GetAccountsCalls)
}

func TestMapRemoved(t *testing.T) {
	removed := plaid.RemovedTransaction{}
	removed.SetTransactionId("txn-gone")

	got := mapRemoved([]plaid.RemovedTransaction{removed, {}})

	require.Len(t, got, 2)
	assert.Equal(t, RemovedTransaction{TransactionID: "txn-gone"}, got[0])
	assert.Empty(t, got[1].TransactionID)
}

func TestNewSyncRequest(t *testing.T) {
	first := newSyncRequest(SyncRequest{AccessToken: "access-1"}, 100)
	assert.Equal(t, "access-1", first.GetAccessToken())
	assert.Empty(t, first.GetCursor())
	assert.Equal(t, int32(100), first.GetCount())

	options := first.GetOptions()
	assert.True(t, options.GetIncludePersonalFinanceCategory())

	next := newSyncRequest(SyncRequest{AccessToken: "access-1", Cursor: "c1"}, 25)
	assert.Equal(t, "c1", next.GetCursor())
	assert.Equal(t, int32(25), next.GetCount())
}
