package plaid

import (
	"context"
	"sync"

	"github.com/Veraticus/finwiz/internal/model"
)

// MockClient is a scripted TransactionSyncer for tests.
// Pages are returned in order, one per SyncTransactions call; once the script
// runs out an empty final page echoing the request cursor is returned.
type MockClient struct {
	// Functions that can be set by tests to override the script
	SyncTransactionsFn func(ctx context.Context, req SyncRequest) (*SyncPage, error)
	GetAccountsFn      func(ctx context.Context, accessToken string) ([]model.Account, error)

	Pages    []SyncPage
	Accounts []model.Account

	// Call tracking
	SyncCalls        []SyncRequest
	GetAccountsCalls int

	mu sync.Mutex
}

// NewMockClient creates a mock that serves the given pages.
func NewMockClient(pages ...SyncPage) *MockClient {
	return &MockClient{
		Pages:     pages,
		SyncCalls: []SyncRequest{},
	}
}

// SyncTransactions implements TransactionSyncer.SyncTransactions.
func (m *MockClient) SyncTransactions(ctx context.Context, req SyncRequest) (*SyncPage, error) {
	m.mu.Lock()
	call := len(m.SyncCalls)
	m.SyncCalls = append(m.SyncCalls, req)
	m.mu.Unlock()

	if m.SyncTransactionsFn != nil {
		return m.SyncTransactionsFn(ctx, req)
	}

	if call < len(m.Pages) {
		page := m.Pages[call]
		return &page, nil
	}

	// Default behavior: nothing new
	return &SyncPage{NextCursor: req.Cursor}, nil
}

// GetAccounts implements TransactionSyncer.GetAccounts.
func (m *MockClient) GetAccounts(ctx context.Context, accessToken string) ([]model.Account, error) {
	m.mu.Lock()
	m.GetAccountsCalls++
	m.mu.Unlock()

	if m.GetAccountsFn != nil {
		return m.GetAccountsFn(ctx, accessToken)
	}

	accounts := make([]model.Account, len(m.Accounts))
	copy(accounts, m.Accounts)
	return accounts, nil
}

// Reset clears all call tracking.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SyncCalls = []SyncRequest{}
	m.GetAccountsCalls = 0
}

// Ensure MockClient implements TransactionSyncer interface.
var _ TransactionSyncer = (*MockClient)(nil)
