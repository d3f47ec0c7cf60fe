package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
)

type accountRepository struct {
	store *Store
	tx    *memTx
}

func (r *accountRepository) GetByID(_ context.Context, id string) (*entity.Account, error) {
	if r.tx != nil {
		if pending, ok := r.tx.accounts[id]; ok {
			return cloneAccount(pending), nil
		}
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	account, ok := r.store.accounts[id]
	if !ok {
		return nil, errs.ErrAccountNotFound
	}
	return cloneAccount(account), nil
}

func (r *accountRepository) LockByID(ctx context.Context, id string) (*entity.Account, error) {
	if r.tx == nil {
		return nil, errs.ErrNoTransaction
	}
	if err := r.store.lockAccount(ctx, r.tx, id); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *accountRepository) Create(_ context.Context, account *entity.Account) error {
	if r.tx != nil {
		if _, ok := r.tx.accounts[account.ID]; ok {
			return errs.ErrDuplicateAccount
		}
		r.store.mu.RLock()
		_, exists := r.store.accounts[account.ID]
		r.store.mu.RUnlock()
		if exists {
			return errs.ErrDuplicateAccount
		}
		r.tx.accounts[account.ID] = cloneAccount(account)
		r.tx.created[account.ID] = struct{}{}
		return nil
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.accounts[account.ID]; exists {
		return errs.ErrDuplicateAccount
	}
	r.store.accounts[account.ID] = cloneAccount(account)
	return nil
}

func (r *accountRepository) Update(_ context.Context, account *entity.Account) error {
	if r.tx == nil {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()

		if _, ok := r.store.accounts[account.ID]; !ok {
			return errs.ErrAccountNotFound
		}
		if r.store.fingerprintTakenLocked(account, nil) {
			return errs.ErrTrialAlreadyUsed
		}
		r.store.accounts[account.ID] = cloneAccount(account)
		return nil
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	_, committed := r.store.accounts[account.ID]
	_, pending := r.tx.accounts[account.ID]
	if !committed && !pending {
		return errs.ErrAccountNotFound
	}
	if r.store.fingerprintTakenLocked(account, r.tx) {
		return errs.ErrTrialAlreadyUsed
	}
	r.tx.accounts[account.ID] = cloneAccount(account)
	return nil
}

func (r *accountRepository) FingerprintInUse(_ context.Context, fingerprint string, excludeID string) (bool, error) {
	fp := strings.ToLower(strings.TrimSpace(fingerprint))
	for _, account := range r.snapshot() {
		if account.ID != excludeID && account.TrialGranted &&
			strings.ToLower(strings.TrimSpace(account.SignupFingerprint)) == fp {
			return true, nil
		}
	}
	return false, nil
}

func (r *accountRepository) ListExpiredTrials(_ context.Context, now time.Time, limit int) ([]string, error) {
	var expired []*entity.Account
	for _, account := range r.snapshot() {
		if account.TrialExpired(now) {
			expired = append(expired, account)
		}
	}

	sort.Slice(expired, func(i, j int) bool {
		if expired[i].TrialExpiresAt.Equal(*expired[j].TrialExpiresAt) {
			return expired[i].ID < expired[j].ID
		}
		return expired[i].TrialExpiresAt.Before(*expired[j].TrialExpiresAt)
	})

	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}

	ids := make([]string, 0, len(expired))
	for _, account := range expired {
		ids = append(ids, account.ID)
	}
	return ids, nil
}

// snapshot returns committed accounts overlaid with this transaction's writes
func (r *accountRepository) snapshot() []*entity.Account {
	r.store.mu.RLock()
	merged := make(map[string]*entity.Account, len(r.store.accounts))
	for id, account := range r.store.accounts {
		merged[id] = account
	}
	r.store.mu.RUnlock()

	if r.tx != nil {
		for id, account := range r.tx.accounts {
			merged[id] = account
		}
	}

	out := make([]*entity.Account, 0, len(merged))
	for _, account := range merged {
		out = append(out, cloneAccount(account))
	}
	return out
}
