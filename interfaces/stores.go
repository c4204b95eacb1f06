package interfaces

import "context"

// IdentityStore persists enrolled identities. The core only reads role and
// status and writes derived fields such as the key-share hash; it never owns
// the persistence mechanism.
type IdentityStore interface {
	// FindByID returns the identity with the given id, or ErrNotFound.
	FindByID(ctx context.Context, id string) (*Identity, error)

	// FindByUsername returns the identity with the given username, or
	// ErrNotFound.
	FindByUsername(ctx context.Context, username string) (*Identity, error)

	// Save inserts or updates an identity.
	Save(ctx context.Context, identity *Identity) error
}

// TransactionStore persists transactions. Save must be compare-and-swap on
// the transaction version: it fails with ErrVersionConflict when the stored
// version differs from the version the caller loaded. This backs the
// at-most-once signature guarantee of the approval state machine.
type TransactionStore interface {
	// Load returns the transaction with the given id, or ErrNotFound.
	Load(ctx context.Context, id string) (*Transaction, error)

	// Save persists the transaction if its version matches the stored one,
	// bumping the version on success. A transaction with version zero is
	// inserted; inserting an existing id or reusing a nonce fails.
	Save(ctx context.Context, tx *Transaction) error

	// ListPending returns all transactions currently in the pending state.
	ListPending(ctx context.Context) ([]*Transaction, error)
}

// AuditSink receives append-only audit entries. Delivery guarantees are the
// sink's concern; the core treats Append as fire-and-forget and never reads
// entries back.
type AuditSink interface {
	Append(ctx context.Context, entry AuditEntry) error
}

// SecretStore keeps TOTP secrets out of the primary identity store, for
// deployments that hold enrollment material in a dedicated secret manager.
type SecretStore interface {
	// PutSecret stores the TOTP secret for an identity.
	PutSecret(ctx context.Context, identityID, secret string) error

	// GetSecret returns the TOTP secret for an identity, or ErrNotFound.
	GetSecret(ctx context.Context, identityID string) (string, error)
}
