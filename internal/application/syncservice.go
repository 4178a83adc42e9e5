package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dkendall/ledgerlink/internal/domain/model"
	"github.com/dkendall/ledgerlink/internal/domain/port/driven"
)

// normalizeWorkers bounds the data-parallel normalization pool.
const normalizeWorkers = 8

// defaultSyncMonths is the transaction window when the caller does not
// specify one.
const defaultSyncMonths = 6

// SyncOptions control the transaction window. Zero values mean "use the
// defaults": Months falls back to the service default and EndDate to now.
type SyncOptions struct {
	Months  int
	EndDate time.Time
}

// refreshRequest represents a manual sync trigger.
type refreshRequest struct {
	done chan model.SyncSummary
}

// SyncService coordinates credential lookup, provider fetches,
// normalization, and batch persistence. Entry points never return raw
// errors: every failure mode degrades into the SyncResult contract so batch
// callers can continue.
type SyncService struct {
	vault       *Vault
	provider    driven.ProviderClient
	entities    driven.EntityStore
	institution model.InstitutionTag
	userID      string
	interval    time.Duration
	months      int
	refreshCh   chan refreshRequest
	now         func() time.Time
}

// NewSyncService creates a SyncService. userID and interval drive the
// periodic loop; the entry points take an explicit user so callers are
// never bound to the configured one.
func NewSyncService(
	vault *Vault,
	provider driven.ProviderClient,
	entities driven.EntityStore,
	institution model.InstitutionTag,
	userID string,
	interval time.Duration,
	months int,
) *SyncService {
	if months <= 0 {
		months = defaultSyncMonths
	}
	return &SyncService{
		vault:       vault,
		provider:    provider,
		entities:    entities,
		institution: institution,
		userID:      userID,
		interval:    interval,
		months:      months,
		refreshCh:   make(chan refreshRequest),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Start begins the periodic sync loop: an immediate run, then one per
// interval, plus manual refresh requests. Blocks until ctx is canceled.
func (s *SyncService) Start(ctx context.Context) {
	s.runCycle(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sync service stopped")
			return
		case <-ticker.C:
			s.runCycle(ctx)
		case req := <-s.refreshCh:
			req.done <- s.SyncAll(ctx, s.userID, SyncOptions{})
		}
	}
}

// Refresh triggers a full sync outside the schedule and blocks until it
// completes or ctx is canceled.
func (s *SyncService) Refresh(ctx context.Context) (model.SyncSummary, error) {
	done := make(chan model.SyncSummary, 1)

	select {
	case s.refreshCh <- refreshRequest{done: done}:
	case <-ctx.Done():
		return model.SyncSummary{}, ctx.Err()
	}

	select {
	case summary := <-done:
		return summary, nil
	case <-ctx.Done():
		return model.SyncSummary{}, ctx.Err()
	}
}

func (s *SyncService) runCycle(ctx context.Context) {
	start := time.Now()
	summary := s.SyncAll(ctx, s.userID, SyncOptions{})
	slog.Info("sync cycle complete",
		"institutions", summary.Accounts.Success[model.KindInstitutions],
		"accounts", summary.Accounts.Success[model.KindAccounts],
		"transactions", summary.Transactions.Success[model.KindTransactions],
		"errors", len(summary.Accounts.Errors)+len(summary.Transactions.Errors),
		"duration", time.Since(start).Round(time.Millisecond),
	)
}

// SyncAll runs SyncAccounts then SyncTransactions sequentially; accounts
// must exist before transactions can resolve their account lookup keys.
// Repeat runs against an unchanged remote dataset are idempotent because
// every persist upserts by external id.
func (s *SyncService) SyncAll(ctx context.Context, userID string, opts SyncOptions) model.SyncSummary {
	return model.SyncSummary{
		Accounts:     s.SyncAccounts(ctx, userID),
		Transactions: s.SyncTransactions(ctx, userID, opts),
	}
}

// SyncAccounts pulls the linked item, its institution, and its accounts
// from the provider, normalizes them, and batch-upserts the results.
// Per-account normalization failures are collected, not fatal. Anything
// unclassified degrades to a syncError result instead of propagating.
func (s *SyncService) SyncAccounts(ctx context.Context, userID string) model.SyncResult {
	res, err := s.syncAccounts(ctx, userID)
	if err != nil {
		slog.Error("account sync failed", "institution", s.institution, "error", err)
		failed := model.NewSyncResult(model.KindInstitutions, model.KindAccounts)
		failed.Failed[model.KindInstitutions] = 1
		failed.Errors = append(failed.Errors, model.SyncError{
			Type:    model.SyncErrorTypeSync,
			Message: err.Error(),
		})
		return failed
	}
	return res
}

func (s *SyncService) syncAccounts(ctx context.Context, userID string) (model.SyncResult, error) {
	res := model.NewSyncResult(model.KindInstitutions, model.KindAccounts)

	token, found, err := s.vault.Retrieve(ctx, userID, s.institution)
	if err != nil {
		return model.SyncResult{}, err
	}
	if !found {
		// Known, recoverable condition: reported in the result, not thrown.
		res.Failed[model.KindInstitutions] = 1
		res.Errors = append(res.Errors, model.SyncError{
			Type:    model.SyncErrorTypeNoCredential,
			Message: fmt.Sprintf("no credential stored for %s", s.institution),
		})
		return res, nil
	}

	// Item metadata and the account list are independent; fetch both at
	// once. The group context cancels the surviving fetch as soon as the
	// other fails, so no remote call is left running toward a dead sync.
	g, gctx := errgroup.WithContext(ctx)

	var item driven.ProviderItem
	g.Go(func() error {
		var err error
		if item, err = s.provider.FetchItem(gctx, token); err != nil {
			return fmt.Errorf("fetch item: %w", err)
		}
		return nil
	})

	var provAccounts []driven.ProviderAccount
	g.Go(func() error {
		var err error
		if provAccounts, err = s.provider.FetchAccounts(gctx, token); err != nil {
			return fmt.Errorf("fetch accounts: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return model.SyncResult{}, err
	}

	// Institution details depend on the item's institution id.
	provInst, err := s.provider.FetchInstitution(ctx, item.InstitutionID)
	if err != nil {
		return model.SyncResult{}, fmt.Errorf("fetch institution %q: %w", item.InstitutionID, err)
	}

	inst, err := NormalizeInstitution(provInst)
	if err != nil {
		return model.SyncResult{}, err
	}

	accounts, accountErrs := normalizeAccounts(provAccounts, inst.ExternalID, userID)

	if err := s.entities.UpsertInstitution(ctx, inst); err != nil {
		return model.SyncResult{}, err
	}
	if err := s.entities.UpsertAccounts(ctx, accounts); err != nil {
		return model.SyncResult{}, err
	}

	res.Success[model.KindInstitutions] = 1
	res.Success[model.KindAccounts] = len(accounts)
	res.Failed[model.KindAccounts] = len(accountErrs)
	res.Errors = append(res.Errors, accountErrs...)

	slog.Info("accounts synced",
		"institution", inst.ExternalID,
		"accounts", len(accounts),
		"failed", len(accountErrs),
	)

	return res, nil
}

// SyncTransactions pulls transactions for an inclusive date window ending
// at opts.EndDate (default now) and spanning opts.Months calendar months
// (default 6), normalizes them, and batch-upserts the settled ones. Pending
// transactions are dropped silently; other per-item failures are collected.
func (s *SyncService) SyncTransactions(ctx context.Context, userID string, opts SyncOptions) model.SyncResult {
	res, err := s.syncTransactions(ctx, userID, opts)
	if err != nil {
		slog.Error("transaction sync failed", "institution", s.institution, "error", err)
		failed := model.NewSyncResult(model.KindTransactions)
		failed.Failed[model.KindTransactions] = 1
		failed.Errors = append(failed.Errors, model.SyncError{
			Type:    model.SyncErrorTypeSync,
			Message: err.Error(),
		})
		return failed
	}
	return res
}

func (s *SyncService) syncTransactions(ctx context.Context, userID string, opts SyncOptions) (model.SyncResult, error) {
	res := model.NewSyncResult(model.KindTransactions)

	token, found, err := s.vault.Retrieve(ctx, userID, s.institution)
	if err != nil {
		return model.SyncResult{}, err
	}
	if !found {
		res.Failed[model.KindTransactions] = 1
		res.Errors = append(res.Errors, model.SyncError{
			Type:    model.SyncErrorTypeNoCredential,
			Message: fmt.Sprintf("no credential stored for %s", s.institution),
		})
		return res, nil
	}

	months := opts.Months
	if months <= 0 {
		months = s.months
	}
	end := opts.EndDate
	if end.IsZero() {
		end = s.now()
	}
	start := end.AddDate(0, -months, 0)

	provTxns, err := s.provider.FetchTransactions(ctx, token, start, end)
	if err != nil {
		return model.SyncResult{}, fmt.Errorf("fetch transactions: %w", err)
	}

	txns, txnErrs := normalizeTransactions(provTxns, userID)

	if err := s.entities.UpsertTransactions(ctx, txns); err != nil {
		return model.SyncResult{}, err
	}

	res.Success[model.KindTransactions] = len(txns)
	res.Failed[model.KindTransactions] = len(txnErrs)
	res.Errors = append(res.Errors, txnErrs...)

	slog.Info("transactions synced",
		"institution", s.institution,
		"window_start", start.Format("2006-01-02"),
		"window_end", end.Format("2006-01-02"),
		"fetched", len(provTxns),
		"stored", len(txns),
		"failed", len(txnErrs),
	)

	return res, nil
}

// normalizeAccounts maps the batch on a bounded worker pool. Results land
// in index-addressed slices so successes and errors keep the input order
// no matter which worker finishes first.
func normalizeAccounts(in []driven.ProviderAccount, institutionExternalID, userID string) ([]model.Account, []model.SyncError) {
	normalized := make([]*model.Account, len(in))
	failures := make([]error, len(in))

	var g errgroup.Group
	g.SetLimit(normalizeWorkers)
	for i := range in {
		g.Go(func() error {
			account, err := NormalizeAccount(in[i], institutionExternalID, userID)
			if err != nil {
				failures[i] = err
				return nil
			}
			normalized[i] = &account
			return nil
		})
	}
	// Workers never return errors; failures are per-item data.
	_ = g.Wait()

	accounts := make([]model.Account, 0, len(in))
	var errs []model.SyncError
	for i := range in {
		if failures[i] != nil {
			errs = append(errs, model.SyncError{
				AccountID: in[i].AccountID,
				Message:   failures[i].Error(),
			})
			continue
		}
		accounts = append(accounts, *normalized[i])
	}
	return accounts, errs
}

// normalizeTransactions maps the batch on a bounded worker pool, preserving
// input order. Pending transactions normalize to nil and are dropped
// without an error entry.
func normalizeTransactions(in []driven.ProviderTransaction, userID string) ([]model.Transaction, []model.SyncError) {
	normalized := make([]*model.Transaction, len(in))
	failures := make([]error, len(in))

	var g errgroup.Group
	g.SetLimit(normalizeWorkers)
	for i := range in {
		g.Go(func() error {
			txn, err := NormalizeTransaction(in[i], userID)
			if err != nil {
				failures[i] = err
				return nil
			}
			normalized[i] = txn
			return nil
		})
	}
	_ = g.Wait()

	txns := make([]model.Transaction, 0, len(in))
	var errs []model.SyncError
	for i := range in {
		if failures[i] != nil {
			errs = append(errs, model.SyncError{
				TransactionID: in[i].TransactionID,
				Message:       failures[i].Error(),
			})
			continue
		}
		if normalized[i] == nil {
			continue // pending
		}
		txns = append(txns, *normalized[i])
	}
	return txns, errs
}
