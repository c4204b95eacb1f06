package approval

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsig/transaction-approval-backend/interfaces"
	"github.com/finsig/transaction-approval-backend/sharing"
	"github.com/finsig/transaction-approval-backend/storage"
	"github.com/finsig/transaction-approval-backend/totp"
)

type coordinatorFixture struct {
	coordinator *Coordinator
	identities  *storage.InMemoryIdentityStore
	audit       *storage.MemoryAuditSink
	engine      *totp.Engine
	clock       time.Time
}

func newCoordinatorFixture(t *testing.T) *coordinatorFixture {
	t.Helper()

	identities := storage.NewInMemoryIdentityStore()
	transactions := storage.NewInMemoryTransactionStore()
	audit := storage.NewMemoryAuditSink()
	engine := totp.New()

	machine := NewMachine(transactions, identities, audit, testLogger())
	coordinator := NewCoordinator(machine, identities, nil, engine, testLogger())

	f := &coordinatorFixture{
		coordinator: coordinator,
		identities:  identities,
		audit:       audit,
		engine:      engine,
		clock:       time.Unix(1700000000, 0),
	}
	coordinator.WithClock(func() time.Time { return f.clock })
	return f
}

// enroll runs the full enrollment for one participant and returns the
// active identity and its TOTP secret.
func (f *coordinatorFixture) enroll(t *testing.T, username string, role interfaces.Role) (*interfaces.Identity, string) {
	t.Helper()
	ctx := context.Background()

	enrollment, err := f.coordinator.Enroll(ctx, username, role)
	require.NoError(t, err, "Enrollment should succeed for %s", username)

	code, err := f.engine.GenerateCode(enrollment.Secret, f.clock)
	require.NoError(t, err)

	identity, err := f.coordinator.ConfirmEnrollment(ctx, enrollment.Identity.ID, code)
	require.NoError(t, err, "Enrollment confirmation should succeed for %s", username)
	require.Equal(t, interfaces.IdentityActive, identity.Status)

	return identity, enrollment.Secret
}

func (f *coordinatorFixture) code(t *testing.T, secret string) string {
	t.Helper()
	code, err := f.engine.GenerateCode(secret, f.clock)
	require.NoError(t, err)
	return code
}

func TestCoordinator_Enroll(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	enrollment, err := f.coordinator.Enroll(ctx, "alice", interfaces.RoleSigner)
	require.NoError(t, err)

	assert.NotEmpty(t, enrollment.Secret, "Enrollment issues a TOTP secret")
	assert.Contains(t, enrollment.ProvisioningURI, "otpauth://totp/", "Enrollment issues a provisioning URI")
	assert.Equal(t, interfaces.IdentitySuspended, enrollment.Identity.Status,
		"Identity stays suspended until the first code is verified")

	// A wrong code does not activate.
	_, err = f.coordinator.ConfirmEnrollment(ctx, enrollment.Identity.ID, "000000")
	assert.ErrorIs(t, err, interfaces.ErrInvalidCode)

	code := f.code(t, enrollment.Secret)
	identity, err := f.coordinator.ConfirmEnrollment(ctx, enrollment.Identity.ID, code)
	require.NoError(t, err)
	assert.Equal(t, interfaces.IdentityActive, identity.Status)

	// Usernames are unique.
	_, err = f.coordinator.Enroll(ctx, "alice", interfaces.RoleSigner)
	assert.ErrorIs(t, err, interfaces.ErrValidation, "Duplicate usernames are rejected")

	// Roles are validated.
	_, err = f.coordinator.Enroll(ctx, "bob", "admin")
	assert.ErrorIs(t, err, interfaces.ErrValidation)
}

func TestCoordinator_EndToEndApproval(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	initiator, initiatorSecret := f.enroll(t, "treasury-ops", interfaces.RoleInitiator)

	signerIDs := make([]string, 5)
	signerSecrets := make([]string, 5)
	for i := 0; i < 5; i++ {
		identity, secret := f.enroll(t, "approver-"+string(rune('a'+i)), interfaces.RoleSigner)
		signerIDs[i] = identity.ID
		signerSecrets[i] = secret
	}

	result, err := f.coordinator.CreateTransaction(ctx, CreateTransactionRequest{
		InitiatorID:        initiator.ID,
		Code:               f.code(t, initiatorSecret),
		Amount:             decimal.NewFromInt(150000),
		Beneficiary:        "Acme Corp Ltd",
		Purpose:            "Vendor settlement",
		SignerIDs:          signerIDs,
		RequiredSignatures: 3,
	})
	require.NoError(t, err, "Transaction creation should succeed")

	tx := result.Transaction
	require.Len(t, result.Shares, 5, "One share per selected signer")

	// Share fingerprints are recorded on the signer identities.
	for _, signerID := range signerIDs {
		identity, err := f.identities.FindByID(ctx, signerID)
		require.NoError(t, err)
		assert.NotEmpty(t, identity.KeyShareHash, "Signer %s should carry a share fingerprint", signerID)
	}

	// First two approvals do not reach the threshold.
	for i := 0; i < 2; i++ {
		res, err := f.coordinator.Submit(ctx, SubmitRequest{
			TransactionID: tx.ID,
			SignerID:      signerIDs[i],
			Code:          f.code(t, signerSecrets[i]),
			Decision:      interfaces.DecisionSigned,
		})
		require.NoError(t, err)
		assert.False(t, res.ThresholdReached, "Threshold not reached at %d of 3", i+1)
		assert.Equal(t, interfaces.TransactionPending, res.Transaction.Status)
	}

	// The third approval completes the threshold and the shares combine.
	res, err := f.coordinator.Submit(ctx, SubmitRequest{
		TransactionID: tx.ID,
		SignerID:      signerIDs[2],
		Code:          f.code(t, signerSecrets[2]),
		Decision:      interfaces.DecisionSigned,
	})
	require.NoError(t, err)
	assert.True(t, res.ThresholdReached, "The K-th approval reports the threshold")
	assert.Equal(t, interfaces.TransactionApproved, res.Transaction.Status)

	combined, err := sharing.Combine(result.Shares[:3], tx.RequiredSignatures)
	require.NoError(t, err, "A quorum of shares combines once the threshold is met")
	assert.Len(t, combined, sharing.SecretBytes)

	assert.Len(t, f.audit.ForTransaction(tx.ID), 4, "Creation plus three signatures")
}

func TestCoordinator_SubmitGuards(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	initiator, initiatorSecret := f.enroll(t, "treasury-ops", interfaces.RoleInitiator)
	signer, signerSecret := f.enroll(t, "approver-a", interfaces.RoleSigner)
	other, otherSecret := f.enroll(t, "approver-b", interfaces.RoleSigner)

	result, err := f.coordinator.CreateTransaction(ctx, CreateTransactionRequest{
		InitiatorID:        initiator.ID,
		Code:               f.code(t, initiatorSecret),
		Amount:             decimal.NewFromInt(1000),
		Beneficiary:        "Acme Corp Ltd",
		SignerIDs:          []string{signer.ID, other.ID},
		RequiredSignatures: 2,
	})
	require.NoError(t, err)
	txID := result.Transaction.ID

	// Unknown signer.
	_, err = f.coordinator.Submit(ctx, SubmitRequest{TransactionID: txID, SignerID: "nobody", Code: "123456", Decision: interfaces.DecisionSigned})
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	// Wrong TOTP code.
	_, err = f.coordinator.Submit(ctx, SubmitRequest{TransactionID: txID, SignerID: signer.ID, Code: "000000", Decision: interfaces.DecisionSigned})
	assert.ErrorIs(t, err, interfaces.ErrInvalidCode)

	// Suspended signer.
	suspended, err := f.identities.FindByID(ctx, signer.ID)
	require.NoError(t, err)
	suspended.Status = interfaces.IdentitySuspended
	require.NoError(t, f.identities.Save(ctx, suspended))

	_, err = f.coordinator.Submit(ctx, SubmitRequest{TransactionID: txID, SignerID: signer.ID, Code: f.code(t, signerSecret), Decision: interfaces.DecisionSigned})
	assert.ErrorIs(t, err, interfaces.ErrUnauthorized, "Suspended identities cannot sign")

	// The other signer can still decide.
	res, err := f.coordinator.Submit(ctx, SubmitRequest{TransactionID: txID, SignerID: other.ID, Code: f.code(t, otherSecret), Decision: interfaces.DecisionRejected})
	require.NoError(t, err)
	assert.Equal(t, interfaces.TransactionRejected, res.Transaction.Status)
	assert.False(t, res.ThresholdReached)
}

func TestCoordinator_CreateTransactionGuards(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	initiator, initiatorSecret := f.enroll(t, "treasury-ops", interfaces.RoleInitiator)
	signer, _ := f.enroll(t, "approver-a", interfaces.RoleSigner)

	valid := CreateTransactionRequest{
		InitiatorID:        initiator.ID,
		Code:               f.code(t, initiatorSecret),
		Amount:             decimal.NewFromInt(1000),
		Beneficiary:        "Acme Corp Ltd",
		SignerIDs:          []string{signer.ID},
		RequiredSignatures: 1,
	}

	// Signers cannot initiate.
	req := valid
	req.InitiatorID = signer.ID
	_, err := f.coordinator.CreateTransaction(ctx, req)
	assert.ErrorIs(t, err, interfaces.ErrUnauthorized)

	// Wrong TOTP code.
	req = valid
	req.Code = "000000"
	_, err = f.coordinator.CreateTransaction(ctx, req)
	assert.ErrorIs(t, err, interfaces.ErrInvalidCode)

	// Threshold misconfiguration is caught before anything persists.
	req = valid
	req.RequiredSignatures = 2
	_, err = f.coordinator.CreateTransaction(ctx, req)
	assert.ErrorIs(t, err, interfaces.ErrInvalidThreshold)
	assert.Empty(t, f.audit.Entries(), "Nothing persists on a threshold error")

	// Valid request succeeds.
	_, err = f.coordinator.CreateTransaction(ctx, valid)
	require.NoError(t, err)
}

func TestCoordinator_SecretStoreKeepsIdentityClean(t *testing.T) {
	identities := storage.NewInMemoryIdentityStore()
	transactions := storage.NewInMemoryTransactionStore()
	audit := storage.NewMemoryAuditSink()
	engine := totp.New()
	secrets := newMapSecretStore()

	machine := NewMachine(transactions, identities, audit, testLogger())
	coordinator := NewCoordinator(machine, identities, secrets, engine, testLogger())

	clock := time.Unix(1700000000, 0)
	coordinator.WithClock(func() time.Time { return clock })

	ctx := context.Background()
	enrollment, err := coordinator.Enroll(ctx, "alice", interfaces.RoleSigner)
	require.NoError(t, err)

	assert.Empty(t, enrollment.Identity.TOTPSecret, "Secret must not live on the identity record")

	stored, err := secrets.GetSecret(ctx, enrollment.Identity.ID)
	require.NoError(t, err)
	assert.Equal(t, enrollment.Secret, stored, "Secret lives in the secret store")

	code, err := engine.GenerateCode(enrollment.Secret, clock)
	require.NoError(t, err)
	_, err = coordinator.ConfirmEnrollment(ctx, enrollment.Identity.ID, code)
	require.NoError(t, err, "Confirmation reads the secret from the secret store")
}

// mapSecretStore is a minimal in-memory interfaces.SecretStore.
type mapSecretStore struct {
	secrets map[string]string
}

func newMapSecretStore() *mapSecretStore {
	return &mapSecretStore{secrets: make(map[string]string)}
}

func (s *mapSecretStore) PutSecret(ctx context.Context, identityID, secret string) error {
	s.secrets[identityID] = secret
	return nil
}

func (s *mapSecretStore) GetSecret(ctx context.Context, identityID string) (string, error) {
	secret, ok := s.secrets[identityID]
	if !ok {
		return "", interfaces.ErrNotFound
	}
	return secret, nil
}
