package interfaces

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role determines which operations an identity may perform. Roles are
// immutable after enrollment.
type Role string

const (
	// RoleInitiator may propose transactions.
	RoleInitiator Role = "initiator"
	// RoleSigner may be selected for, and decide on, transactions.
	RoleSigner Role = "signer"
)

// Validate checks the role is one of the known values.
func (r Role) Validate() error {
	switch r {
	case RoleInitiator, RoleSigner:
		return nil
	default:
		return NewValidationError("role", "must be 'initiator' or 'signer'")
	}
}

// IdentityStatus gates participation. Only active identities may create
// transactions or submit signatures.
type IdentityStatus string

const (
	IdentityActive    IdentityStatus = "active"
	IdentitySuspended IdentityStatus = "suspended"
)

// Identity is an enrolled participant. The TOTP secret is bound at
// enrollment and verified again on every approval submission. KeyShareHash
// is a derived fingerprint of the signer's most recent secret share; the
// share itself is never persisted here.
type Identity struct {
	ID           string         `json:"id"`
	Username     string         `json:"username"`
	Role         Role           `json:"role"`
	TOTPSecret   string         `json:"-"`
	KeyShareHash string         `json:"key_share_hash,omitempty"`
	Status       IdentityStatus `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Active reports whether the identity may currently act.
func (id *Identity) Active() bool {
	return id.Status == IdentityActive
}

// TransactionStatus is the aggregate lifecycle state of a transaction.
// Transitions only move forward: pending to approved, or pending to
// rejected. Approved and rejected are terminal.
type TransactionStatus string

const (
	TransactionPending  TransactionStatus = "pending"
	TransactionApproved TransactionStatus = "approved"
	TransactionRejected TransactionStatus = "rejected"
)

// Terminal reports whether no further transitions are possible.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionApproved || s == TransactionRejected
}

// SignatureStatus is the per-signer decision state.
type SignatureStatus string

const (
	SignaturePending  SignatureStatus = "pending"
	SignatureSigned   SignatureStatus = "signed"
	SignatureRejected SignatureStatus = "rejected"
)

// SignatureDecision is the decision a signer submits. It is a subset of
// SignatureStatus: a signer cannot submit "pending".
type SignatureDecision string

const (
	DecisionSigned   SignatureDecision = "signed"
	DecisionRejected SignatureDecision = "rejected"
)

// Validate checks the decision is one of the two allowed values.
func (d SignatureDecision) Validate() error {
	switch d {
	case DecisionSigned, DecisionRejected:
		return nil
	default:
		return NewValidationError("decision", "must be 'signed' or 'rejected'")
	}
}

// SignatureRecord tracks one selected signer's decision. A record is
// created in the pending state for every selected signer when the
// transaction is created, so unsigned signers stay distinguishable from
// absent ones. It is mutated exactly once.
type SignatureRecord struct {
	SignerID       string          `json:"signer_id"`
	SignerUsername string          `json:"signer_username"`
	Status         SignatureStatus `json:"status"`
	SignedAt       *time.Time      `json:"signed_at,omitempty"`
}

// Transaction is a proposed transfer awaiting K-of-N signer approval.
// Version is a compare-and-swap counter maintained by the store.
type Transaction struct {
	ID                 string                      `json:"id"`
	Amount             decimal.Decimal             `json:"amount"`
	Beneficiary        string                      `json:"beneficiary"`
	Purpose            string                      `json:"purpose"`
	CreatorID          string                      `json:"creator_id"`
	RequiredSignatures int                         `json:"required_signatures"`
	SelectedSigners    []string                    `json:"selected_signers"`
	Signatures         map[string]*SignatureRecord `json:"signatures"`
	Nonce              string                      `json:"nonce"`
	Status             TransactionStatus           `json:"status"`
	Version            uint64                      `json:"version"`
	CreatedAt          time.Time                   `json:"created_at"`
	ExpiresAt          time.Time                   `json:"expires_at"`
}

// SignedCount returns the number of records currently in the signed state.
func (t *Transaction) SignedCount() int {
	count := 0
	for _, rec := range t.Signatures {
		if rec.Status == SignatureSigned {
			count++
		}
	}
	return count
}

// Expired reports whether the transaction's expiry has passed at the given
// time. A zero ExpiresAt means the transaction never expires.
func (t *Transaction) Expired(at time.Time) bool {
	return !t.ExpiresAt.IsZero() && at.After(t.ExpiresAt)
}

// Clone returns a deep copy. Stores hand out clones so callers can never
// mutate persisted state without going through Save.
func (t *Transaction) Clone() *Transaction {
	dup := *t
	dup.SelectedSigners = append([]string(nil), t.SelectedSigners...)
	dup.Signatures = make(map[string]*SignatureRecord, len(t.Signatures))
	for id, rec := range t.Signatures {
		recDup := *rec
		if rec.SignedAt != nil {
			signedAt := *rec.SignedAt
			recDup.SignedAt = &signedAt
		}
		dup.Signatures[id] = &recDup
	}
	return &dup
}

// AuditEntry is an append-only record of a single state transition. Entries
// are emitted once per transition and never mutated or deleted.
type AuditEntry struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transaction_id"`
	Action        string    `json:"action"`
	ActorID       string    `json:"actor_id"`
	ActorUsername string    `json:"actor_username"`
	Timestamp     time.Time `json:"timestamp"`
	Details       string    `json:"details"`
}

// Audit actions emitted by the approval state machine.
const (
	ActionTransactionCreated = "transaction_created"
	ActionSignatureRecorded  = "signature_recorded"
	ActionSignatureRejected  = "signature_rejected"
	ActionTransactionExpired = "transaction_expired"
)
