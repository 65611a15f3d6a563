// Package syncer pulls a user's transactions from the provider and runs every
// row through categorization, storage and the ledger.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/finwiz/internal/category"
	"github.com/Veraticus/finwiz/internal/common"
	"github.com/Veraticus/finwiz/internal/ledger"
	"github.com/Veraticus/finwiz/internal/model"
	"github.com/Veraticus/finwiz/internal/notify"
	"github.com/Veraticus/finwiz/internal/plaid"
	"github.com/Veraticus/finwiz/internal/service"
	"github.com/google/uuid"
)

// DefaultMaxPages bounds a single sync run.
const DefaultMaxPages = 100

// Options tunes a sync run.
type Options struct {
	// OnPage is called after each page has been processed.
	OnPage   func(Progress)
	PageSize int32
	MaxPages int
}

// Progress describes the state of a run after a page.
type Progress struct {
	Page    int
	Added   int
	HasMore bool
}

// Result summarizes a sync run. It is returned even when the run fails part way.
type Result struct {
	RunID         string
	Cursor        string
	Pages         int
	Added         int
	Created       int
	Updated       int
	Removed       int
	Skipped       int
	Failed        int
	Notifications int
}

// Orchestrator drives the page loop for one user at a time.
type Orchestrator struct {
	store     service.Storage
	provider  plaid.TransactionSyncer
	resolver  *category.Resolver
	ledger    *ledger.Updater
	publisher notify.Publisher
	locks     *common.UserLocks
	logger    *slog.Logger
	opts      Options
}

// New creates an orchestrator. A nil publisher drops notifications after they are stored.
func New(
	store service.Storage,
	provider plaid.TransactionSyncer,
	resolver *category.Resolver,
	updater *ledger.Updater,
	publisher notify.Publisher,
	locks *common.UserLocks,
	opts Options,
) *Orchestrator {
	if publisher == nil {
		publisher = notify.NopPublisher{}
	}
	if locks == nil {
		locks = common.NewUserLocks()
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if opts.PageSize <= 0 {
		opts.PageSize = plaid.DefaultPageSize
	}
	return &Orchestrator{
		store:     store,
		provider:  provider,
		resolver:  resolver,
		ledger:    updater,
		publisher: publisher,
		locks:     locks,
		opts:      opts,
		logger:    slog.Default().With("component", "syncer"),
	}
}

type state int

const (
	stateStart state = iota
	stateFetching
	stateProcessing
	stateDone
)

// run carries the mutable state of one Sync call.
type run struct {
	user     *model.User
	accounts map[string]*model.Account
	page     *plaid.SyncPage
	seen     map[string]bool
	logger   *slog.Logger
	result   *Result
	cursor   string
}

// Sync fetches every page after the user's stored cursor and applies it.
//
// Rows commit one at a time, so a provider failure part way leaves earlier rows
// and the cursor of the last completed page in place. Rows that fail to store are
// counted and skipped.
func (o *Orchestrator) Sync(ctx context.Context, userID int64) (*Result, error) {
	unlock := o.locks.Lock(userID)
	defer unlock()

	r := &run{
		result: &Result{RunID: uuid.NewString()},
		seen:   make(map[string]bool),
	}
	r.logger = o.logger.With("user_id", userID, "run_id", r.result.RunID)

	for st := stateStart; st != stateDone; {
		if err := ctx.Err(); err != nil {
			return r.result, err
		}

		var err error
		switch st {
		case stateStart:
			st, err = o.start(ctx, r, userID)
		case stateFetching:
			st, err = o.fetch(ctx, r)
		case stateProcessing:
			st, err = o.process(ctx, r)
		}
		if err != nil {
			r.logger.Error("Sync aborted", "error", err, "pages", r.result.Pages)
			return r.result, err
		}
	}

	r.logger.Info("Sync complete",
		"pages", r.result.Pages,
		"added", r.result.Added,
		"created", r.result.Created,
		"updated", r.result.Updated,
		"skipped", r.result.Skipped,
		"failed", r.result.Failed,
		"notifications", r.result.Notifications)
	return r.result, nil
}

func (o *Orchestrator) start(ctx context.Context, r *run, userID int64) (state, error) {
	user, err := o.store.GetUser(ctx, userID)
	if err != nil {
		return stateDone, err
	}
	if user.AccessToken == "" {
		return stateDone, common.Validationf("user %d has no linked access token", userID)
	}
	r.user = user
	r.cursor = user.SyncCursor
	r.result.Cursor = user.SyncCursor

	accounts, err := o.provider.GetAccounts(ctx, user.AccessToken)
	if err != nil {
		return stateDone, wrapProvider(err)
	}

	r.accounts = make(map[string]*model.Account, len(accounts))
	for i := range accounts {
		account := accounts[i]
		account.UserID = userID
		if err := o.store.UpsertAccount(ctx, &account); err != nil {
			return stateDone, err
		}
		r.accounts[account.ExternalID] = &account
	}

	r.logger.Info("Starting sync", "accounts", len(r.accounts), "cursor", r.cursor)
	return stateFetching, nil
}

func (o *Orchestrator) fetch(ctx context.Context, r *run) (state, error) {
	if r.result.Pages >= o.opts.MaxPages {
		return stateDone, fmt.Errorf("%w: stopped after %d pages", common.ErrMaxPagesExhausted, r.result.Pages)
	}

	page, err := o.provider.SyncTransactions(ctx, plaid.SyncRequest{
		AccessToken: r.user.AccessToken,
		Cursor:      r.cursor,
		Count:       o.opts.PageSize,
	})
	if err != nil {
		return stateDone, wrapProvider(err)
	}

	r.result.Pages++
	r.page = page
	r.logger.Debug("Fetched page",
		"page", r.result.Pages,
		"cursor", r.cursor,
		"added", len(page.Added),
		"has_more", page.HasMore)
	return stateProcessing, nil
}

func (o *Orchestrator) process(ctx context.Context, r *run) (state, error) {
	page := r.page
	rows := make([]model.ProviderTransaction, 0, len(page.Added)+len(page.Modified))
	rows = append(rows, page.Added...)
	rows = append(rows, page.Modified...)

	for i := range rows {
		if err := ctx.Err(); err != nil {
			return stateDone, err
		}
		r.result.Added++
		o.processRow(ctx, r, &rows[i])
	}

	for _, removed := range page.Removed {
		o.removeRow(ctx, r, removed)
	}

	if page.NextCursor != "" {
		if err := o.store.SetSyncCursor(ctx, r.user.ID, page.NextCursor); err != nil {
			return stateDone, err
		}
		r.seen[r.cursor] = true
		r.cursor = page.NextCursor
		r.result.Cursor = page.NextCursor
	}

	if o.opts.OnPage != nil {
		o.opts.OnPage(Progress{Page: r.result.Pages, Added: r.result.Added, HasMore: page.HasMore})
	}

	if !page.HasMore {
		return stateDone, nil
	}
	if page.NextCursor == "" || r.seen[page.NextCursor] {
		return stateDone, fmt.Errorf("%w: %q", common.ErrCursorRepeated, page.NextCursor)
	}
	return stateFetching, nil
}

// processRow stores one provider transaction. Failures are counted, never returned.
func (o *Orchestrator) processRow(ctx context.Context, r *run, pt *model.ProviderTransaction) {
	logger := r.logger.With("provider_id", pt.TransactionID)

	account, err := o.accountFor(ctx, r, pt.AccountID)
	if err != nil {
		r.result.Failed++
		logger.Warn("Failed to resolve account", "account_id", pt.AccountID, "error", err)
		return
	}

	leaf, err := o.resolver.Resolve(ctx, pt.Category, account)
	if err != nil {
		r.result.Failed++
		logger.Warn("Failed to resolve category", "error", err)
		return
	}
	if leaf == nil {
		r.result.Skipped++
		logger.Debug("Skipping uncategorized transaction", "category", pt.Category)
		return
	}

	txn := &model.Transaction{
		UserID:                r.user.ID,
		AccountID:             account.ID,
		ProviderTransactionID: pt.TransactionID,
		Amount:                pt.Amount,
		Date:                  pt.Date,
		Pending:               pt.Pending,
		CategoryID:            &leaf.ID,
		CategoryPath:          pt.Category,
		Name:                  pt.Name,
		MerchantName:          pt.MerchantName,
		CurrencyCode:          pt.CurrencyCode,
		RawPayload:            pt.RawPayload,
	}

	notification, isNew, err := o.storeRow(ctx, txn)
	if err != nil {
		r.result.Failed++
		logger.Error("Failed to store transaction", "error", err)
		return
	}

	if isNew {
		r.result.Created++
	} else {
		r.result.Updated++
	}

	if notification != nil {
		r.result.Notifications++
		if err := o.publisher.Publish(ctx, *notification); err != nil {
			logger.Warn("Failed to publish notification", "notification_id", notification.ID, "error", err)
		}
	}
}

// storeRow upserts the transaction and updates the ledger in one database transaction.
func (o *Orchestrator) storeRow(ctx context.Context, txn *model.Transaction) (*model.Notification, bool, error) {
	tx, err := o.store.BeginTx(ctx)
	if err != nil {
		return nil, false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	stored, previous, isNew, err := tx.UpsertTransaction(ctx, txn)
	if err != nil {
		return nil, false, err
	}

	// A removed row no longer counts towards the ledger, even if it is reported again.
	var notification *model.Notification
	if stored.DeletedAt == nil {
		notification, err = o.ledger.Apply(ctx, tx, stored, previous)
		if err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	committed = true
	return notification, isNew, nil
}

// removeRow soft-deletes the rows the provider withdrew and takes their amounts back
// out of the ledger in one database transaction. Ids never stored here are ignored.
func (o *Orchestrator) removeRow(ctx context.Context, r *run, removed plaid.RemovedTransaction) {
	logger := r.logger.With("provider_id", removed.TransactionID)

	notifications, count, err := o.deleteRow(ctx, r.user.ID, removed.TransactionID)
	switch {
	case errors.Is(err, common.ErrNotFound):
		logger.Debug("Removed transaction was never stored")
		return
	case err != nil:
		r.result.Failed++
		logger.Warn("Failed to remove transaction", "error", err)
		return
	}

	r.result.Removed += count
	for _, n := range notifications {
		r.result.Notifications++
		if err := o.publisher.Publish(ctx, n); err != nil {
			logger.Warn("Failed to publish notification", "notification_id", n.ID, "error", err)
		}
	}
}

func (o *Orchestrator) deleteRow(ctx context.Context, userID int64, providerID string) ([]model.Notification, int, error) {
	tx, err := o.store.BeginTx(ctx)
	if err != nil {
		return nil, 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	rows, err := tx.SoftDeleteByProviderID(ctx, userID, providerID)
	if err != nil {
		return nil, 0, err
	}

	var notifications []model.Notification
	for i := range rows {
		n, err := o.ledger.Reverse(ctx, tx, &rows[i])
		if err != nil {
			return nil, 0, err
		}
		if n != nil {
			notifications = append(notifications, *n)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, err
	}
	committed = true
	return notifications, len(rows), nil
}

// accountFor returns the stored account for a provider account id, creating a
// placeholder for accounts the provider did not list.
func (o *Orchestrator) accountFor(ctx context.Context, r *run, externalID string) (*model.Account, error) {
	if account, ok := r.accounts[externalID]; ok {
		return account, nil
	}

	account := &model.Account{UserID: r.user.ID, ExternalID: externalID}
	if err := o.store.UpsertAccount(ctx, account); err != nil {
		return nil, err
	}
	r.accounts[externalID] = account
	return account, nil
}

func wrapProvider(err error) error {
	if errors.Is(err, common.ErrProvider) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", common.ErrProvider, err)
}
