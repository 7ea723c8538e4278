package store

import (
	"context"
	"sort"
	"sync"

	"github.com/decentralized-identity/sidetree-bitcoin-observer/model"
)

// MemoryDatabase is an in-memory stand-in for Database, used by tests that
// exercise BitcoinProcessor without a real MongoDB instance. It implements
// the identical idempotency and ordering semantics the Mongo-backed store
// does, minus the network round trip.
type MemoryDatabase struct {
	mu sync.Mutex

	transactions map[uint64]model.Transaction
	blocks       map[uint64]model.BlockMetadata
	serviceState *model.ServiceState
	quantiles    map[uint64]model.QuantileGroup
}

// NewMemoryDatabase returns an empty MemoryDatabase.
func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{
		transactions: make(map[uint64]model.Transaction),
		blocks:       make(map[uint64]model.BlockMetadata),
		quantiles:    make(map[uint64]model.QuantileGroup),
	}
}

func (d *MemoryDatabase) Transactions() TransactionStore  { return (*memoryTransactionStore)(d) }
func (d *MemoryDatabase) BlockMetadata() BlockMetadataStore { return (*memoryBlockMetadataStore)(d) }
func (d *MemoryDatabase) ServiceState() ServiceStateStore { return (*memoryServiceStateStore)(d) }
func (d *MemoryDatabase) QuantileGroups() QuantileGroupStore {
	return (*memoryQuantileGroupStore)(d)
}

type memoryTransactionStore MemoryDatabase

func (s *memoryTransactionStore) db() *MemoryDatabase { return (*MemoryDatabase)(s) }

func (s *memoryTransactionStore) AddTransaction(_ context.Context, tx model.Transaction) error {
	d := s.db()
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.transactions[tx.TransactionNumber]; exists {
		return nil
	}
	d.transactions[tx.TransactionNumber] = tx
	return nil
}

func (s *memoryTransactionStore) AddTransactionsBulk(_ context.Context, txs []model.Transaction) error {
	d := s.db()
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, tx := range txs {
		if _, exists := d.transactions[tx.TransactionNumber]; exists {
			// Like the ordered Mongo bulk write: the first duplicate ends the batch.
			return nil
		}
		d.transactions[tx.TransactionNumber] = tx
	}
	return nil
}

func (s *memoryTransactionStore) sorted() []model.Transaction {
	d := s.db()
	out := make([]model.Transaction, 0, len(d.transactions))
	for _, tx := range d.transactions {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TransactionNumber < out[j].TransactionNumber })
	return out
}

func (s *memoryTransactionStore) GetLastTransaction(_ context.Context) (*model.Transaction, error) {
	d := s.db()
	d.mu.Lock()
	defer d.mu.Unlock()
	all := s.sorted()
	if len(all) == 0 {
		return nil, nil
	}
	last := all[len(all)-1]
	return &last, nil
}

func (s *memoryTransactionStore) GetTransactionsStartingFrom(_ context.Context, inclusiveStartHeight, exclusiveEndHeight uint64) ([]model.Transaction, error) {
	d := s.db()
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []model.Transaction
	for _, tx := range s.sorted() {
		if tx.TransactionTime >= inclusiveStartHeight && tx.TransactionTime < exclusiveEndHeight {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *memoryTransactionStore) GetTransactionsLaterThan(_ context.Context, transactionNumber *uint64, max int) ([]model.Transaction, error) {
	d := s.db()
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []model.Transaction
	for _, tx := range s.sorted() {
		if transactionNumber == nil || tx.TransactionNumber > *transactionNumber {
			out = append(out, tx)
			if max > 0 && len(out) >= max {
				break
			}
		}
	}
	return out, nil
}

func (s *memoryTransactionStore) GetExponentiallySpacedTransactions(_ context.Context) ([]model.Transaction, error) {
	d := s.db()
	d.mu.Lock()
	defer d.mu.Unlock()
	all := s.sorted()
	if len(all) == 0 {
		return nil, nil
	}
	offsets := exponentialLookBackOffsets(uint64(len(all)-1), 0)
	out := make([]model.Transaction, 0, len(offsets))
	for _, off := range offsets {
		idx := len(all) - 1 - int(off)
		if idx < 0 {
			break
		}
		out = append(out, all[idx])
	}
	return out, nil
}

func (s *memoryTransactionStore) RemoveTransactionsLaterThan(_ context.Context, transactionNumber *uint64) error {
	d := s.db()
	d.mu.Lock()
	defer d.mu.Unlock()
	for num := range d.transactions {
		if transactionNumber == nil || num > *transactionNumber {
			delete(d.transactions, num)
		}
	}
	return nil
}

func (s *memoryTransactionStore) RemoveTransactionByTransactionTimeHash(_ context.Context, hash string) error {
	d := s.db()
	d.mu.Lock()
	defer d.mu.Unlock()
	for num, tx := range d.transactions {
		if tx.TransactionTimeHash == hash {
			delete(d.transactions, num)
		}
	}
	return nil
}

func (s *memoryTransactionStore) GetTransactionsCount(_ context.Context) (int64, error) {
	d := s.db()
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.transactions)), nil
}

type memoryBlockMetadataStore MemoryDatabase

func (s *memoryBlockMetadataStore) db() *MemoryDatabase { return (*MemoryDatabase)(s) }

func (s *memoryBlockMetadataStore) Add(_ context.Context, blocks []model.BlockMetadata) error {
	d := s.db()
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, b := range blocks {
		if _, exists := d.blocks[b.Height]; exists {
			continue
		}
		d.blocks[b.Height] = b
	}
	return nil
}

func (s *memoryBlockMetadataStore) RemoveLaterThan(_ context.Context, height *uint64) error {
	d := s.db()
	d.mu.Lock()
	defer d.mu.Unlock()
	for h := range d.blocks {
		if height == nil || h > *height {
			delete(d.blocks, h)
		}
	}
	return nil
}

func (s *memoryBlockMetadataStore) Get(_ context.Context, fromInclusive, toExclusive uint64) ([]model.BlockMetadata, error) {
	d := s.db()
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []model.BlockMetadata
	for h, b := range d.blocks {
		if h >= fromInclusive && h < toExclusive {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Height < out[j].Height })
	return out, nil
}

func (s *memoryBlockMetadataStore) GetLast(_ context.Context) (*model.BlockMetadata, error) {
	d := s.db()
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.blocks) == 0 {
		return nil, nil
	}
	var maxHeight uint64
	found := false
	for h := range d.blocks {
		if !found || h > maxHeight {
			maxHeight = h
			found = true
		}
	}
	b := d.blocks[maxHeight]
	return &b, nil
}

func (s *memoryBlockMetadataStore) LookBackExponentially(_ context.Context, maxHeight, minHeight uint64) ([]model.BlockMetadata, error) {
	d := s.db()
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []model.BlockMetadata
	for _, h := range exponentialLookBackHeights(maxHeight, minHeight) {
		if b, ok := d.blocks[h]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

type memoryServiceStateStore MemoryDatabase

func (s *memoryServiceStateStore) db() *MemoryDatabase { return (*MemoryDatabase)(s) }

func (s *memoryServiceStateStore) Get(_ context.Context) (*model.ServiceState, error) {
	d := s.db()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.serviceState == nil {
		return nil, nil
	}
	state := *d.serviceState
	return &state, nil
}

func (s *memoryServiceStateStore) Put(_ context.Context, state model.ServiceState) error {
	d := s.db()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.serviceState = &state
	return nil
}

type memoryQuantileGroupStore MemoryDatabase

func (s *memoryQuantileGroupStore) db() *MemoryDatabase { return (*MemoryDatabase)(s) }

func (s *memoryQuantileGroupStore) Add(_ context.Context, group model.QuantileGroup) error {
	d := s.db()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.quantiles[group.GroupID] = group
	return nil
}

func (s *memoryQuantileGroupStore) Get(_ context.Context, groupID uint64) (*model.QuantileGroup, error) {
	d := s.db()
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.quantiles[groupID]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (s *memoryQuantileGroupStore) GetLast(_ context.Context) (*model.QuantileGroup, error) {
	d := s.db()
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.quantiles) == 0 {
		return nil, nil
	}
	var maxID uint64
	found := false
	for id := range d.quantiles {
		if !found || id > maxID {
			maxID = id
			found = true
		}
	}
	g := d.quantiles[maxID]
	return &g, nil
}

func (s *memoryQuantileGroupStore) RemoveGreaterThanOrEqual(_ context.Context, groupID uint64) error {
	d := s.db()
	d.mu.Lock()
	defer d.mu.Unlock()
	for id := range d.quantiles {
		if id >= groupID {
			delete(d.quantiles, id)
		}
	}
	return nil
}
