package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/finsig/transaction-approval-backend/interfaces"
)

// InMemoryIdentityStore is a process-local identity store. Safe for
// concurrent use.
type InMemoryIdentityStore struct {
	mu         sync.RWMutex
	byID       map[string]*interfaces.Identity
	byUsername map[string]string
}

// NewInMemoryIdentityStore creates an empty identity store.
func NewInMemoryIdentityStore() *InMemoryIdentityStore {
	return &InMemoryIdentityStore{
		byID:       make(map[string]*interfaces.Identity),
		byUsername: make(map[string]string),
	}
}

// FindByID returns a copy of the identity with the given id.
func (s *InMemoryIdentityStore) FindByID(ctx context.Context, id string) (*interfaces.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: identity %s", interfaces.ErrNotFound, id)
	}
	dup := *identity
	return &dup, nil
}

// FindByUsername returns a copy of the identity with the given username.
func (s *InMemoryIdentityStore) FindByUsername(ctx context.Context, username string) (*interfaces.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return nil, fmt.Errorf("%w: username %s", interfaces.ErrNotFound, username)
	}
	dup := *s.byID[id]
	return &dup, nil
}

// Save inserts or updates an identity.
func (s *InMemoryIdentityStore) Save(ctx context.Context, identity *interfaces.Identity) error {
	if identity.ID == "" {
		return interfaces.NewValidationError("id", "must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byID[identity.ID]; ok && existing.Username != identity.Username {
		delete(s.byUsername, existing.Username)
	}

	dup := *identity
	s.byID[identity.ID] = &dup
	s.byUsername[identity.Username] = identity.ID
	return nil
}

// InMemoryTransactionStore is a process-local transaction store with
// compare-and-swap semantics on the transaction version and nonce
// uniqueness across all transactions. Safe for concurrent use.
type InMemoryTransactionStore struct {
	mu     sync.RWMutex
	txs    map[string]*interfaces.Transaction
	nonces map[string]string
}

// NewInMemoryTransactionStore creates an empty transaction store.
func NewInMemoryTransactionStore() *InMemoryTransactionStore {
	return &InMemoryTransactionStore{
		txs:    make(map[string]*interfaces.Transaction),
		nonces: make(map[string]string),
	}
}

// Load returns a deep copy of the transaction with the given id.
func (s *InMemoryTransactionStore) Load(ctx context.Context, id string) (*interfaces.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.txs[id]
	if !ok {
		return nil, fmt.Errorf("%w: transaction %s", interfaces.ErrNotFound, id)
	}
	return tx.Clone(), nil
}

// Save persists the transaction if its version matches the stored one,
// bumping the version on success. A version of zero inserts; inserting a
// duplicate id or reusing another transaction's nonce fails.
func (s *InMemoryTransactionStore) Save(ctx context.Context, tx *interfaces.Transaction) error {
	if tx.ID == "" {
		return interfaces.NewValidationError("id", "must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.txs[tx.ID]
	if !ok {
		if tx.Version != 0 {
			return fmt.Errorf("%w: transaction %s does not exist at version %d", interfaces.ErrVersionConflict, tx.ID, tx.Version)
		}
		if owner, used := s.nonces[tx.Nonce]; used && owner != tx.ID {
			return interfaces.NewValidationError("nonce", "already used by another transaction")
		}
	} else if existing.Version != tx.Version {
		return fmt.Errorf("%w: transaction %s is at version %d, caller had %d", interfaces.ErrVersionConflict, tx.ID, existing.Version, tx.Version)
	}

	stored := tx.Clone()
	stored.Version++
	s.txs[tx.ID] = stored
	s.nonces[tx.Nonce] = tx.ID
	tx.Version = stored.Version
	return nil
}

// ListPending returns deep copies of all pending transactions.
func (s *InMemoryTransactionStore) ListPending(ctx context.Context) ([]*interfaces.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pending := make([]*interfaces.Transaction, 0)
	for _, tx := range s.txs {
		if tx.Status == interfaces.TransactionPending {
			pending = append(pending, tx.Clone())
		}
	}
	return pending, nil
}

// MemoryAuditSink collects audit entries in memory. It is the default sink
// for local runs and the test double for audit assertions.
type MemoryAuditSink struct {
	mu      sync.RWMutex
	entries []interfaces.AuditEntry
}

// NewMemoryAuditSink creates an empty sink.
func NewMemoryAuditSink() *MemoryAuditSink {
	return &MemoryAuditSink{}
}

// Append records an entry.
func (s *MemoryAuditSink) Append(ctx context.Context, entry interfaces.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// Entries returns a copy of all recorded entries in append order.
func (s *MemoryAuditSink) Entries() []interfaces.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]interfaces.AuditEntry(nil), s.entries...)
}

// ForTransaction returns all entries recorded for one transaction.
func (s *MemoryAuditSink) ForTransaction(txID string) []interfaces.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []interfaces.AuditEntry
	for _, entry := range s.entries {
		if entry.TransactionID == txID {
			matched = append(matched, entry)
		}
	}
	return matched
}

// MultiAuditSink fans entries out to several sinks. Append fails if any
// sink fails, after attempting all of them.
type MultiAuditSink struct {
	sinks []interfaces.AuditSink
}

// NewMultiAuditSink creates a fan-out sink.
func NewMultiAuditSink(sinks ...interfaces.AuditSink) *MultiAuditSink {
	return &MultiAuditSink{sinks: sinks}
}

// Append delivers the entry to every configured sink.
func (s *MultiAuditSink) Append(ctx context.Context, entry interfaces.AuditEntry) error {
	var firstErr error
	for _, sink := range s.sinks {
		if err := sink.Append(ctx, entry); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
