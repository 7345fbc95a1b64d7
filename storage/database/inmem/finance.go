package inmemdb

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/cesiedu/campus/core"
	"github.com/cesiedu/campus/core/finance"
)

type financeRepository struct {
	db     *financeTable
	userDB *userTable
}

var _ finance.Repository = (*financeRepository)(nil) // interface compliance check

func NewFinanceRepository(db *DB) *financeRepository {
	return &financeRepository{db: db.finance, userDB: db.user}
}

func (repo *financeRepository) withUsername(tx finance.Transaction) finance.Transaction {
	repo.userDB.RLock()
	defer repo.userDB.RUnlock()

	if usr, ok := repo.userDB.users[tx.ParentID]; ok {
		tx.ParentUsername = usr.Username
	}
	return tx
}

func (repo *financeRepository) CreateTransaction(_ context.Context, tx finance.Transaction, _ ...core.DBExecutor) (finance.Transaction, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	tx.ID = uuid.New().String()
	stored := tx
	repo.db.transactions[tx.ID] = &stored
	return repo.withUsername(tx), nil
}

func (repo *financeRepository) QueryTransactions(_ context.Context, filter *finance.QueryFilter, _ ...core.DBExecutor) ([]finance.Transaction, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var txs []finance.Transaction
	for _, tx := range repo.db.transactions {
		t := repo.withUsername(*tx)
		if filter != nil {
			if filter.Status != "" && t.Status != filter.Status {
				continue
			}
			if filter.Search != "" {
				search := strings.ToLower(filter.Search)
				if !strings.Contains(strings.ToLower(t.StudentName), search) &&
					!strings.Contains(strings.ToLower(t.ReferenceNumber), search) &&
					!strings.Contains(strings.ToLower(t.ParentUsername), search) {
					continue
				}
			}
		}
		txs = append(txs, t)
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].DateCreated.After(txs[j].DateCreated) })
	return txs, nil
}

func (repo *financeRepository) QueryTransactionsByParent(_ context.Context, parentID string, _ ...core.DBExecutor) ([]finance.Transaction, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var txs []finance.Transaction
	for _, tx := range repo.db.transactions {
		if tx.ParentID == parentID {
			txs = append(txs, repo.withUsername(*tx))
		}
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].DateCreated.After(txs[j].DateCreated) })
	return txs, nil
}

func (repo *financeRepository) GetTransaction(_ context.Context, id string, _ ...core.DBExecutor) (finance.Transaction, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	tx, ok := repo.db.transactions[id]
	if !ok {
		return finance.Transaction{}, finance.ErrNotFound
	}
	return repo.withUsername(*tx), nil
}

func (repo *financeRepository) UpdateTransaction(_ context.Context, tx finance.Transaction, _ ...core.DBExecutor) (finance.Transaction, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.transactions[tx.ID]; !ok {
		return finance.Transaction{}, finance.ErrNotFound
	}
	stored := tx
	repo.db.transactions[tx.ID] = &stored
	return repo.withUsername(tx), nil
}

func (repo *financeRepository) DeleteTransaction(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.transactions[id]; !ok {
		return finance.ErrNotFound
	}
	delete(repo.db.transactions, id)
	return nil
}

func (repo *financeRepository) NextReferenceNumber(_ context.Context, year int, _ ...core.DBExecutor) (string, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	name := fmt.Sprintf("reference_number_%d", year)
	if _, ok := repo.db.counters[name]; !ok {
		repo.db.counters[name] = repo.maxReferenceSeq(year)
	}
	repo.db.counters[name]++
	return fmt.Sprintf("%s-%d-%05d", finance.ReferencePrefix, year, repo.db.counters[name]), nil
}

func (repo *financeRepository) maxReferenceSeq(year int) int64 {
	prefix := fmt.Sprintf("%s-%d-", finance.ReferencePrefix, year)
	var max int64
	for _, tx := range repo.db.transactions {
		if !strings.HasPrefix(tx.ReferenceNumber, prefix) {
			continue
		}
		if seq, err := strconv.ParseInt(tx.ReferenceNumber[len(prefix):], 10, 64); err == nil && seq > max {
			max = seq
		}
	}
	return max
}

func (repo *financeRepository) GetStats(_ context.Context, _ ...core.DBExecutor) (finance.Stats, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var stats finance.Stats
	for _, tx := range repo.db.transactions {
		stats.TotalRevenue = stats.TotalRevenue.Add(tx.Amount)
		switch tx.Status {
		case finance.StatusPaid:
			stats.Collected = stats.Collected.Add(tx.Amount)
		case finance.StatusPending, finance.StatusOverdue:
			stats.Pending = stats.Pending.Add(tx.Amount)
		}
	}
	return stats, nil
}
