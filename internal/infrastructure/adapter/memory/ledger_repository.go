package memory

import (
	"context"
	"sort"
	"time"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
	errs "github.com/amirhossein-jamali/credit-ledger/internal/domain/error"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/persistence"
)

type ledgerRepository struct {
	store *Store
	tx    *memTx
}

func (r *ledgerRepository) Create(_ context.Context, entry *entity.LedgerEntry) error {
	entry.ID = r.store.nextEntryID.Add(1)

	if r.tx != nil {
		r.tx.entries[entry.ID] = cloneEntry(entry)
		return nil
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.entries[entry.ID] = cloneEntry(entry)
	return nil
}

func (r *ledgerRepository) GetByID(_ context.Context, id uint64) (*entity.LedgerEntry, error) {
	if r.tx != nil {
		if pending, ok := r.tx.entries[id]; ok {
			return cloneEntry(pending), nil
		}
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	entry, ok := r.store.entries[id]
	if !ok {
		return nil, errs.ErrEntryNotFound
	}
	return cloneEntry(entry), nil
}

func (r *ledgerRepository) UpdateSettlement(ctx context.Context, entry *entity.LedgerEntry) error {
	current, err := r.GetByID(ctx, entry.ID)
	if err != nil {
		return err
	}
	if !current.IsReserved() {
		return errs.NewInvalidReservationStateError(entry.ID, string(current.Status), "entry is not reserved")
	}

	current.Amount = entry.Amount
	current.Status = entry.Status
	current.UpdatedAt = entry.UpdatedAt

	if r.tx != nil {
		r.tx.entries[current.ID] = current
		return nil
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.entries[current.ID] = current
	return nil
}

func (r *ledgerRepository) ListByAccount(_ context.Context, accountID string, limit, offset int) ([]*entity.LedgerEntry, int64, error) {
	entries := r.filter(func(e *entity.LedgerEntry) bool { return e.AccountID == accountID })

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID > entries[j].ID
		}
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})

	total := int64(len(entries))
	start := offset
	if start > len(entries) {
		start = len(entries)
	}
	end := start + limit
	if limit <= 0 || end > len(entries) {
		end = len(entries)
	}
	return entries[start:end], total, nil
}

func (r *ledgerRepository) FindByReference(_ context.Context, referenceID string) ([]*entity.LedgerEntry, error) {
	entries := r.filter(func(e *entity.LedgerEntry) bool { return e.ReferenceID == referenceID })
	sortOldestFirst(entries)
	return entries, nil
}

func (r *ledgerRepository) TrialUsage(_ context.Context, accountID string, trialEnd time.Time) (persistence.TrialUsage, error) {
	var usage persistence.TrialUsage
	for _, e := range r.filter(func(e *entity.LedgerEntry) bool { return e.AccountID == accountID }) {
		switch e.Kind {
		case entity.KindTrialGrant:
			usage.Granted += e.Amount
		case entity.KindUsage:
			if e.Status != entity.StatusRefunded && !e.CreatedAt.After(trialEnd) {
				usage.Used += -e.Amount
				if e.Status == entity.StatusReserved {
					usage.Pending += -e.Amount
				}
			}
		case entity.KindExpiration:
			usage.Expired += -e.Amount
		}
	}
	return usage, nil
}

func (r *ledgerRepository) ListStaleReservations(_ context.Context, before time.Time, limit int) ([]uint64, error) {
	entries := r.filter(func(e *entity.LedgerEntry) bool {
		return e.Status == entity.StatusReserved && e.CreatedAt.Before(before)
	})
	sortOldestFirst(entries)

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	ids := make([]uint64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ids, nil
}

func (r *ledgerRepository) SumByAccount(_ context.Context, accountID string) (int64, int64, error) {
	entries := r.filter(func(e *entity.LedgerEntry) bool { return e.AccountID == accountID })

	byID := make(map[uint64]*entity.LedgerEntry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}

	var sum int64
	for _, e := range entries {
		if e.Kind == entity.KindRefund && e.RelatedEntryID != nil {
			if related, ok := byID[*e.RelatedEntryID]; ok && related.Status == entity.StatusCompleted {
				continue
			}
		}
		sum += e.Amount
	}
	return sum, int64(len(entries)), nil
}

// filter returns clones of committed entries overlaid with this transaction's writes
func (r *ledgerRepository) filter(keep func(e *entity.LedgerEntry) bool) []*entity.LedgerEntry {
	r.store.mu.RLock()
	merged := make(map[uint64]*entity.LedgerEntry, len(r.store.entries))
	for id, e := range r.store.entries {
		merged[id] = e
	}
	r.store.mu.RUnlock()

	if r.tx != nil {
		for id, e := range r.tx.entries {
			merged[id] = e
		}
	}

	out := make([]*entity.LedgerEntry, 0)
	for _, e := range merged {
		if keep(e) {
			out = append(out, cloneEntry(e))
		}
	}
	return out
}

func sortOldestFirst(entries []*entity.LedgerEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}
