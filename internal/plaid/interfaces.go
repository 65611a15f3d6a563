package plaid

import (
	"context"

	"github.com/Veraticus/finwiz/internal/model"
)

// SyncRequest asks the provider for the page of changes after Cursor.
// An empty cursor starts from the beginning of the item's history.
type SyncRequest struct {
	AccessToken string
	Cursor      string
	Count       int32
}

// RemovedTransaction identifies a transaction the provider no longer reports.
// The provider sends only the transaction id.
type RemovedTransaction struct {
	TransactionID string
}

// SyncPage is one page of the provider's incremental transaction feed.
type SyncPage struct {
	NextCursor string
	Added      []model.ProviderTransaction
	Modified   []model.ProviderTransaction
	Removed    []RemovedTransaction
	HasMore    bool
}

// TransactionSyncer defines the contract for pulling transaction data from the provider.
// This interface allows for easy mocking in tests and swapping data sources.
type TransactionSyncer interface {
	SyncTransactions(ctx context.Context, req SyncRequest) (*SyncPage, error)
	GetAccounts(ctx context.Context, accessToken string) ([]model.Account, error)
}
