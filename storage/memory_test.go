package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsig/transaction-approval-backend/interfaces"
)

func newTestTransaction(id, nonce string) *interfaces.Transaction {
	return &interfaces.Transaction{
		ID:                 id,
		Amount:             decimal.NewFromInt(1000),
		Beneficiary:        "Test Beneficiary",
		CreatorID:          "creator-1",
		RequiredSignatures: 2,
		SelectedSigners:    []string{"signer-1", "signer-2"},
		Signatures: map[string]*interfaces.SignatureRecord{
			"signer-1": {SignerID: "signer-1", Status: interfaces.SignaturePending},
			"signer-2": {SignerID: "signer-2", Status: interfaces.SignaturePending},
		},
		Nonce:     nonce,
		Status:    interfaces.TransactionPending,
		CreatedAt: time.Now(),
	}
}

func TestInMemoryIdentityStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryIdentityStore()

	_, err := store.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, interfaces.ErrNotFound, "Unknown id should report ErrNotFound")

	identity := &interfaces.Identity{
		ID:       "id-1",
		Username: "alice",
		Role:     interfaces.RoleSigner,
		Status:   interfaces.IdentityActive,
	}
	require.NoError(t, store.Save(ctx, identity))

	byID, err := store.FindByID(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	byName, err := store.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "id-1", byName.ID)

	// Mutating the returned copy must not affect stored state.
	byID.Status = interfaces.IdentitySuspended
	again, err := store.FindByID(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, interfaces.IdentityActive, again.Status, "Store must hand out copies")
}

func TestInMemoryTransactionStore_SaveCAS(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryTransactionStore()

	tx := newTestTransaction("tx-1", "nonce-1")
	require.NoError(t, store.Save(ctx, tx), "Insert at version zero should succeed")
	assert.Equal(t, uint64(1), tx.Version, "Save should bump the caller's version")

	loaded, err := store.Load(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), loaded.Version)

	// Stale save: simulate a second writer that loaded version 1 after the
	// first writer already advanced to version 2.
	first := loaded.Clone()
	second := loaded.Clone()
	require.NoError(t, store.Save(ctx, first))
	err = store.Save(ctx, second)
	assert.ErrorIs(t, err, interfaces.ErrVersionConflict, "Stale version must fail the save")

	// Insert with nonzero version is a conflict, not an upsert.
	ghost := newTestTransaction("tx-ghost", "nonce-ghost")
	ghost.Version = 5
	assert.ErrorIs(t, store.Save(ctx, ghost), interfaces.ErrVersionConflict)
}

func TestInMemoryTransactionStore_NonceUnique(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryTransactionStore()

	require.NoError(t, store.Save(ctx, newTestTransaction("tx-1", "nonce-1")))

	dup := newTestTransaction("tx-2", "nonce-1")
	err := store.Save(ctx, dup)
	assert.ErrorIs(t, err, interfaces.ErrValidation, "Reusing a nonce must fail")
}

func TestInMemoryTransactionStore_ListPending(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryTransactionStore()

	pendingTx := newTestTransaction("tx-1", "nonce-1")
	require.NoError(t, store.Save(ctx, pendingTx))

	approvedTx := newTestTransaction("tx-2", "nonce-2")
	approvedTx.Status = interfaces.TransactionApproved
	require.NoError(t, store.Save(ctx, approvedTx))

	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1, "Only pending transactions should be listed")
	assert.Equal(t, "tx-1", pending[0].ID)
}

func TestInMemoryTransactionStore_LoadIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryTransactionStore()

	require.NoError(t, store.Save(ctx, newTestTransaction("tx-1", "nonce-1")))

	loaded, err := store.Load(ctx, "tx-1")
	require.NoError(t, err)
	loaded.Signatures["signer-1"].Status = interfaces.SignatureSigned

	fresh, err := store.Load(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, interfaces.SignaturePending, fresh.Signatures["signer-1"].Status,
		"Mutating a loaded copy must not leak into the store")
}

func TestMemoryAuditSink(t *testing.T) {
	ctx := context.Background()
	sink := NewMemoryAuditSink()

	require.NoError(t, sink.Append(ctx, interfaces.AuditEntry{ID: "a", TransactionID: "tx-1", Action: "x"}))
	require.NoError(t, sink.Append(ctx, interfaces.AuditEntry{ID: "b", TransactionID: "tx-2", Action: "y"}))
	require.NoError(t, sink.Append(ctx, interfaces.AuditEntry{ID: "c", TransactionID: "tx-1", Action: "z"}))

	assert.Len(t, sink.Entries(), 3)
	assert.Len(t, sink.ForTransaction("tx-1"), 2)
}

func TestMultiAuditSink(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryAuditSink()
	b := NewMemoryAuditSink()
	multi := NewMultiAuditSink(a, b)

	require.NoError(t, multi.Append(ctx, interfaces.AuditEntry{ID: "a", TransactionID: "tx-1"}))
	assert.Len(t, a.Entries(), 1, "Entry should reach the first sink")
	assert.Len(t, b.Entries(), 1, "Entry should reach the second sink")
}
