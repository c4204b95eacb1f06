package approval

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finsig/transaction-approval-backend/cryptoutils"
	"github.com/finsig/transaction-approval-backend/interfaces"
)

const (
	maxBeneficiaryLen = 100
	maxPurposeLen     = 500
)

// Machine is the transaction approval state machine. It owns every status
// transition and is the only writer of transactions and signature records.
type Machine struct {
	transactions interfaces.TransactionStore
	identities   interfaces.IdentityStore
	audit        interfaces.AuditSink
	log          *slog.Logger
	now          func() time.Time

	// mu guards locks. Each transaction gets its own mutex so concurrent
	// submissions for one transaction serialize while unrelated
	// transactions proceed in parallel.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMachine creates a state machine backed by the given collaborators.
func NewMachine(transactions interfaces.TransactionStore, identities interfaces.IdentityStore, audit interfaces.AuditSink, log *slog.Logger) *Machine {
	return &Machine{
		transactions: transactions,
		identities:   identities,
		audit:        audit,
		log:          log,
		now:          time.Now,
		locks:        make(map[string]*sync.Mutex),
	}
}

// WithClock overrides the time source. Intended for tests.
func (m *Machine) WithClock(now func() time.Time) *Machine {
	m.now = now
	return m
}

// CreateParams describes a proposed transaction.
type CreateParams struct {
	Amount             decimal.Decimal
	Beneficiary        string
	Purpose            string
	CreatorID          string
	SignerIDs          []string
	RequiredSignatures int
	ExpiresAt          time.Time
}

// Create validates the proposal, initializes one pending signature record
// per selected signer, and persists the transaction with a unique nonce.
// It emits a single transaction_created audit entry.
func (m *Machine) Create(ctx context.Context, params CreateParams) (*interfaces.Transaction, error) {
	if !params.Amount.IsPositive() {
		return nil, interfaces.NewValidationError("amount", "must be positive")
	}
	if params.Beneficiary == "" {
		return nil, interfaces.NewValidationError("beneficiary", "must not be empty")
	}
	if len(params.Beneficiary) > maxBeneficiaryLen {
		return nil, interfaces.NewValidationError("beneficiary", fmt.Sprintf("must be at most %d characters", maxBeneficiaryLen))
	}
	if len(params.Purpose) > maxPurposeLen {
		return nil, interfaces.NewValidationError("purpose", fmt.Sprintf("must be at most %d characters", maxPurposeLen))
	}
	if len(params.SignerIDs) == 0 {
		return nil, interfaces.NewValidationError("signers", "must not be empty")
	}
	if params.RequiredSignatures < 1 {
		return nil, interfaces.NewValidationError("required_signatures", "must be at least 1")
	}
	if params.RequiredSignatures > len(params.SignerIDs) {
		return nil, interfaces.NewValidationError("required_signatures", "must not exceed the number of selected signers")
	}

	creator, err := m.identities.FindByID(ctx, params.CreatorID)
	if err != nil {
		return nil, interfaces.NewValidationError("creator_id", "unknown creator "+params.CreatorID)
	}

	seen := make(map[string]struct{}, len(params.SignerIDs))
	signatures := make(map[string]*interfaces.SignatureRecord, len(params.SignerIDs))
	for _, signerID := range params.SignerIDs {
		if _, dup := seen[signerID]; dup {
			return nil, interfaces.NewValidationError("signers", "duplicate signer id "+signerID)
		}
		seen[signerID] = struct{}{}

		signer, err := m.identities.FindByID(ctx, signerID)
		if err != nil {
			return nil, interfaces.NewValidationError("signers", "unknown signer id "+signerID)
		}
		if signer.Role != interfaces.RoleSigner {
			return nil, interfaces.NewValidationError("signers", signerID+" does not have the signer role")
		}

		signatures[signerID] = &interfaces.SignatureRecord{
			SignerID:       signerID,
			SignerUsername: signer.Username,
			Status:         interfaces.SignaturePending,
		}
	}

	tx := &interfaces.Transaction{
		ID:                 uuid.NewString(),
		Amount:             params.Amount,
		Beneficiary:        params.Beneficiary,
		Purpose:            params.Purpose,
		CreatorID:          params.CreatorID,
		RequiredSignatures: params.RequiredSignatures,
		SelectedSigners:    append([]string(nil), params.SignerIDs...),
		Signatures:         signatures,
		Nonce:              cryptoutils.NewNonce(),
		Status:             interfaces.TransactionPending,
		CreatedAt:          m.now(),
		ExpiresAt:          params.ExpiresAt,
	}

	if err := m.transactions.Save(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to persist transaction: %w", err)
	}

	m.emitAudit(ctx, interfaces.AuditEntry{
		TransactionID: tx.ID,
		Action:        interfaces.ActionTransactionCreated,
		ActorID:       creator.ID,
		ActorUsername: creator.Username,
		Details: fmt.Sprintf("amount=%s beneficiary=%q required_signatures=%d signers=%d",
			tx.Amount.String(), tx.Beneficiary, tx.RequiredSignatures, len(tx.SelectedSigners)),
	})

	m.log.Info("Transaction created",
		slog.String("txID", tx.ID),
		slog.String("amount", tx.Amount.String()),
		slog.Int("requiredSignatures", tx.RequiredSignatures),
		slog.Int("signers", len(tx.SelectedSigners)))

	return tx.Clone(), nil
}

// RecordSignature applies a signer's decision to a pending transaction and
// recomputes the aggregate status atomically with the write. The error
// ladder is checked in order: unknown transaction, closed or expired
// transaction, unauthorized signer, already-decided record. Exactly one
// audit entry is emitted on success and none on error.
func (m *Machine) RecordSignature(ctx context.Context, txID, signerID string, decision interfaces.SignatureDecision) (*interfaces.Transaction, error) {
	if err := decision.Validate(); err != nil {
		return nil, err
	}

	lock := m.lockFor(txID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := m.transactions.Load(ctx, txID)
	if err != nil {
		return nil, err
	}

	if tx.Status.Terminal() {
		return nil, fmt.Errorf("%w: transaction %s is %s", interfaces.ErrTransactionClosed, txID, tx.Status)
	}
	if tx.Expired(m.now()) {
		// The sweeper owns the expiry transition and its audit entry; a
		// late signature only observes the closed state.
		return nil, fmt.Errorf("%w: transaction %s expired at %s", interfaces.ErrTransactionClosed, txID, tx.ExpiresAt.Format(time.RFC3339))
	}

	rec, ok := tx.Signatures[signerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a selected signer for transaction %s", interfaces.ErrUnauthorized, signerID, txID)
	}
	if rec.Status != interfaces.SignaturePending {
		return nil, fmt.Errorf("%w: signer %s already decided (%s)", interfaces.ErrAlreadyDecided, signerID, rec.Status)
	}

	now := m.now()
	action := interfaces.ActionSignatureRecorded
	switch decision {
	case interfaces.DecisionSigned:
		rec.Status = interfaces.SignatureSigned
		rec.SignedAt = &now
		if tx.SignedCount() >= tx.RequiredSignatures {
			tx.Status = interfaces.TransactionApproved
		}
	case interfaces.DecisionRejected:
		// Any single rejection closes the whole transaction.
		rec.Status = interfaces.SignatureRejected
		tx.Status = interfaces.TransactionRejected
		action = interfaces.ActionSignatureRejected
	}

	if err := m.transactions.Save(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to persist signature: %w", err)
	}

	m.emitAudit(ctx, interfaces.AuditEntry{
		TransactionID: tx.ID,
		Action:        action,
		ActorID:       rec.SignerID,
		ActorUsername: rec.SignerUsername,
		Details: fmt.Sprintf("decision=%s signed=%d/%d status=%s",
			decision, tx.SignedCount(), tx.RequiredSignatures, tx.Status),
	})

	m.log.Info("Signature recorded",
		slog.String("txID", tx.ID),
		slog.String("signerID", signerID),
		slog.String("decision", string(decision)),
		slog.String("status", string(tx.Status)))

	return tx.Clone(), nil
}

// Expire transitions a pending transaction to rejected once the given time
// is past its expiry. It is idempotent: terminal and not-yet-expired
// transactions are left untouched without error.
func (m *Machine) Expire(ctx context.Context, txID string, at time.Time) error {
	lock := m.lockFor(txID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := m.transactions.Load(ctx, txID)
	if err != nil {
		return err
	}

	if tx.Status.Terminal() || !tx.Expired(at) {
		return nil
	}

	tx.Status = interfaces.TransactionRejected
	if err := m.transactions.Save(ctx, tx); err != nil {
		return fmt.Errorf("failed to persist expiry: %w", err)
	}

	m.emitAudit(ctx, interfaces.AuditEntry{
		TransactionID: tx.ID,
		Action:        interfaces.ActionTransactionExpired,
		ActorUsername: "system",
		Details:       fmt.Sprintf("expired_at=%s", tx.ExpiresAt.Format(time.RFC3339)),
	})

	m.log.Info("Transaction expired",
		slog.String("txID", tx.ID),
		slog.Time("expiresAt", tx.ExpiresAt))

	return nil
}

// ExpireSweep runs Expire over every pending transaction. It returns the
// number of transactions expired; individual failures are logged and do not
// stop the sweep.
func (m *Machine) ExpireSweep(ctx context.Context, at time.Time) (int, error) {
	pending, err := m.transactions.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending transactions: %w", err)
	}

	expired := 0
	for _, tx := range pending {
		if !tx.Expired(at) {
			continue
		}
		if err := m.Expire(ctx, tx.ID, at); err != nil {
			m.log.Error("Failed to expire transaction", slog.String("txID", tx.ID), "err", err)
			continue
		}
		expired++
	}
	return expired, nil
}

// lockFor returns the mutex serializing operations on one transaction,
// creating it on first use.
func (m *Machine) lockFor(txID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[txID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[txID] = lock
	}
	return lock
}

// emitAudit appends an entry to the audit sink. Delivery is fire-and-forget
// from the state machine's perspective; failures are logged, not surfaced.
func (m *Machine) emitAudit(ctx context.Context, entry interfaces.AuditEntry) {
	entry.ID = uuid.NewString()
	entry.Timestamp = m.now()
	if err := m.audit.Append(ctx, entry); err != nil {
		m.log.Error("Failed to append audit entry",
			slog.String("txID", entry.TransactionID),
			slog.String("action", entry.Action),
			"err", err)
	}
}
