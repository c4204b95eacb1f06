// Package interfaces defines the core domain types, error taxonomy, and
// collaborator interfaces for the transaction approval system. It provides the
// contract between components without implementation details.
//
// # Domain Types
//
// The package models the three records the approval workflow revolves around:
//
//   - Identity: an enrolled participant, either an initiator or a signer,
//     with a TOTP secret bound at enrollment time.
//   - Transaction: a proposed transfer with a selected signer set, a
//     K-of-N signature requirement, and a forward-only status lifecycle
//     (pending, then approved or rejected).
//   - AuditEntry: an append-only record emitted for every state transition.
//
// # Collaborator Interfaces
//
// Persistence and audit delivery are out of scope for the core and are
// consumed through narrow interfaces:
//
//   - IdentityStore: lookup and persistence of enrolled identities.
//   - TransactionStore: load/save with compare-and-swap semantics on the
//     transaction version, supporting the per-transaction serialization
//     guarantee of the approval state machine.
//   - AuditSink: fire-and-forget append of audit entries.
//   - SecretStore: out-of-band storage for TOTP secrets (e.g. Vault).
//
// # Error Taxonomy
//
// All failure kinds callers may branch on are sentinel errors defined here
// (ErrNotFound, ErrUnauthorized, ErrAlreadyDecided, ErrTransactionClosed,
// ErrInvalidThreshold, ErrInsufficientShares, ErrInvalidShare,
// ErrInvalidCode, ErrVersionConflict) plus the ValidationError type for
// malformed caller input. Implementations wrap these with context using
// fmt.Errorf and %w so errors.Is keeps working across layers.
package interfaces
