package approval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finsig/transaction-approval-backend/cryptoutils"
	"github.com/finsig/transaction-approval-backend/interfaces"
	"github.com/finsig/transaction-approval-backend/sharing"
	"github.com/finsig/transaction-approval-backend/totp"
)

// Coordinator orchestrates the end-to-end enrollment, creation, and
// approval operations. It verifies identity and TOTP codes before invoking
// the state machine, and couples the K-th approval to share combinability.
// It surfaces the most specific error from the underlying engines and
// introduces no new error kinds.
type Coordinator struct {
	machine    *Machine
	identities interfaces.IdentityStore
	secrets    interfaces.SecretStore
	totp       *totp.Engine
	log        *slog.Logger
	now        func() time.Time
}

// NewCoordinator creates a coordinator. The secret store is optional: when
// nil, TOTP secrets live on the identity record itself.
func NewCoordinator(machine *Machine, identities interfaces.IdentityStore, secrets interfaces.SecretStore, totpEngine *totp.Engine, log *slog.Logger) *Coordinator {
	return &Coordinator{
		machine:    machine,
		identities: identities,
		secrets:    secrets,
		totp:       totpEngine,
		log:        log,
		now:        time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	c.machine.WithClock(now)
	return c
}

// Enrollment is the result of starting enrollment: the provisional
// identity, its TOTP secret, and the provisioning URI for the
// authenticator app.
type Enrollment struct {
	Identity        *interfaces.Identity `json:"identity"`
	Secret          string               `json:"secret"`
	ProvisioningURI string               `json:"provisioning_uri"`
}

// Enroll issues a TOTP secret for a new identity and persists it in the
// suspended state. The identity becomes active only once ConfirmEnrollment
// verifies a first code, proving the authenticator was provisioned.
func (c *Coordinator) Enroll(ctx context.Context, username string, role interfaces.Role) (*Enrollment, error) {
	if username == "" {
		return nil, interfaces.NewValidationError("username", "must not be empty")
	}
	if err := role.Validate(); err != nil {
		return nil, err
	}
	if _, err := c.identities.FindByUsername(ctx, username); err == nil {
		return nil, interfaces.NewValidationError("username", "already enrolled")
	}

	secret, err := c.totp.NewSecret()
	if err != nil {
		return nil, err
	}

	identity := &interfaces.Identity{
		ID:        uuid.NewString(),
		Username:  username,
		Role:      role,
		Status:    interfaces.IdentitySuspended,
		CreatedAt: c.now(),
	}

	if c.secrets != nil {
		if err := c.secrets.PutSecret(ctx, identity.ID, secret); err != nil {
			return nil, fmt.Errorf("failed to store TOTP secret: %w", err)
		}
	} else {
		identity.TOTPSecret = secret
	}

	if err := c.identities.Save(ctx, identity); err != nil {
		return nil, fmt.Errorf("failed to persist identity: %w", err)
	}

	c.log.Info("Identity enrolled",
		slog.String("identityID", identity.ID),
		slog.String("username", username),
		slog.String("role", string(role)))

	return &Enrollment{
		Identity:        identity,
		Secret:          secret,
		ProvisioningURI: c.totp.ProvisioningURI(secret, username),
	}, nil
}

// ConfirmEnrollment verifies the first code from the newly provisioned
// authenticator and activates the identity.
func (c *Coordinator) ConfirmEnrollment(ctx context.Context, identityID, code string) (*interfaces.Identity, error) {
	identity, err := c.identities.FindByID(ctx, identityID)
	if err != nil {
		return nil, err
	}

	secret, err := c.secretFor(ctx, identity)
	if err != nil {
		return nil, err
	}
	if err := c.totp.Verify(secret, code, c.now()); err != nil {
		return nil, err
	}

	identity.Status = interfaces.IdentityActive
	if err := c.identities.Save(ctx, identity); err != nil {
		return nil, fmt.Errorf("failed to activate identity: %w", err)
	}

	c.log.Info("Enrollment confirmed", slog.String("identityID", identity.ID))
	return identity, nil
}

// CreateTransactionRequest describes a proposal from an initiator,
// including the TOTP code gating the operation.
type CreateTransactionRequest struct {
	InitiatorID        string
	Code               string
	Amount             decimal.Decimal
	Beneficiary        string
	Purpose            string
	SignerIDs          []string
	RequiredSignatures int
	ExpiresAt          time.Time
}

// CreateTransactionResult carries the created transaction and the signer
// shares of the per-transaction secret. The shares exist only in this
// result for distribution; the originating secret is wiped before return
// and only share fingerprints are persisted.
type CreateTransactionResult struct {
	Transaction *interfaces.Transaction `json:"transaction"`
	Shares      []sharing.Share         `json:"shares"`
}

// CreateTransaction verifies the initiator, splits a fresh per-transaction
// secret across the selected signers, creates the transaction, and records
// each signer's share fingerprint. The split runs before anything is
// persisted so a threshold misconfiguration never reaches the store.
func (c *Coordinator) CreateTransaction(ctx context.Context, req CreateTransactionRequest) (*CreateTransactionResult, error) {
	initiator, err := c.identities.FindByID(ctx, req.InitiatorID)
	if err != nil {
		return nil, err
	}
	if !initiator.Active() {
		return nil, fmt.Errorf("%w: identity %s is %s", interfaces.ErrUnauthorized, initiator.ID, initiator.Status)
	}
	if initiator.Role != interfaces.RoleInitiator {
		return nil, fmt.Errorf("%w: identity %s cannot initiate transactions", interfaces.ErrUnauthorized, initiator.ID)
	}

	secret, err := c.secretFor(ctx, initiator)
	if err != nil {
		return nil, err
	}
	if err := c.totp.Verify(secret, req.Code, c.now()); err != nil {
		return nil, err
	}

	txSecret, err := sharing.NewTransactionSecret()
	if err != nil {
		return nil, err
	}
	defer cryptoutils.WipeBytes(txSecret)

	shares, err := sharing.Split(txSecret, req.SignerIDs, req.RequiredSignatures)
	if err != nil {
		return nil, err
	}

	tx, err := c.machine.Create(ctx, CreateParams{
		Amount:             req.Amount,
		Beneficiary:        req.Beneficiary,
		Purpose:            req.Purpose,
		CreatorID:          req.InitiatorID,
		SignerIDs:          req.SignerIDs,
		RequiredSignatures: req.RequiredSignatures,
		ExpiresAt:          req.ExpiresAt,
	})
	if err != nil {
		return nil, err
	}

	for _, share := range shares {
		signer, err := c.identities.FindByID(ctx, share.SignerID)
		if err != nil {
			return nil, err
		}
		signer.KeyShareHash = cryptoutils.ShareFingerprint(share.Bytes, share.SignerID)
		if err := c.identities.Save(ctx, signer); err != nil {
			return nil, fmt.Errorf("failed to record share fingerprint: %w", err)
		}
	}

	return &CreateTransactionResult{Transaction: tx, Shares: shares}, nil
}

// SubmitRequest is a signer's decision on a transaction, gated by a fresh
// TOTP code.
type SubmitRequest struct {
	TransactionID string
	SignerID      string
	Code          string
	Decision      interfaces.SignatureDecision
}

// SubmitResult reports the transaction after the decision was applied.
// ThresholdReached is true exactly when this submission was the approval
// that completed the threshold; from that point the signers' shares are
// collectively combinable.
type SubmitResult struct {
	Transaction      *interfaces.Transaction `json:"transaction"`
	ThresholdReached bool                    `json:"threshold_reached"`
}

// Submit verifies the signer is active, re-verifies their TOTP code, and
// records the decision through the state machine.
func (c *Coordinator) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	signer, err := c.identities.FindByID(ctx, req.SignerID)
	if err != nil {
		return nil, err
	}
	if !signer.Active() {
		return nil, fmt.Errorf("%w: identity %s is %s", interfaces.ErrUnauthorized, signer.ID, signer.Status)
	}

	secret, err := c.secretFor(ctx, signer)
	if err != nil {
		return nil, err
	}
	if err := c.totp.Verify(secret, req.Code, c.now()); err != nil {
		return nil, err
	}

	tx, err := c.machine.RecordSignature(ctx, req.TransactionID, req.SignerID, req.Decision)
	if err != nil {
		return nil, err
	}

	return &SubmitResult{
		Transaction:      tx,
		ThresholdReached: tx.Status == interfaces.TransactionApproved && req.Decision == interfaces.DecisionSigned,
	}, nil
}

// secretFor resolves an identity's TOTP secret from the secret store when
// one is configured, falling back to the identity record.
func (c *Coordinator) secretFor(ctx context.Context, identity *interfaces.Identity) (string, error) {
	if c.secrets == nil {
		return identity.TOTPSecret, nil
	}
	return c.secrets.GetSecret(ctx, identity.ID)
}
