package sharing

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsig/transaction-approval-backend/interfaces"
)

var testSigners = []string{"signer-1", "signer-2", "signer-3", "signer-4", "signer-5"}

func randomSecret(t *testing.T) []byte {
	t.Helper()
	secret := make([]byte, SecretBytes)
	_, err := rand.Read(secret)
	require.NoError(t, err, "Failed to generate test secret")
	return secret
}

func TestSplit_InvalidThreshold(t *testing.T) {
	secret := randomSecret(t)

	_, err := Split(secret, testSigners, 6)
	assert.ErrorIs(t, err, interfaces.ErrInvalidThreshold, "Should fail when threshold exceeds signer count")

	_, err = Split(secret, testSigners, 0)
	assert.ErrorIs(t, err, interfaces.ErrInvalidThreshold, "Should fail when threshold is below 1")

	_, err = Split(secret, nil, 1)
	assert.ErrorIs(t, err, interfaces.ErrInvalidThreshold, "Should fail with no signers")

	_, err = Split(nil, testSigners, 3)
	assert.ErrorIs(t, err, interfaces.ErrValidation, "Should fail with empty secret")

	_, err = Split(secret, []string{"a", "a", "b"}, 2)
	assert.ErrorIs(t, err, interfaces.ErrValidation, "Should fail with duplicate signer ids")
}

func TestSplitCombine_AnyQuorumReconstructs(t *testing.T) {
	secret := randomSecret(t)

	shares, err := Split(secret, testSigners, 3)
	require.NoError(t, err, "Split should succeed with valid parameters")
	require.Len(t, shares, 5, "Should produce one share per signer")

	for i, share := range shares {
		assert.Equal(t, testSigners[i], share.SignerID, "Share should be bound to its signer")
		assert.NotEmpty(t, share.Bytes, "Share material should not be empty")
	}

	// The concrete subsets from the approval workflow: {1,2,3} and {2,4,5}.
	first, err := Combine([]Share{shares[0], shares[1], shares[2]}, 3)
	require.NoError(t, err, "Combine should succeed with shares {1,2,3}")
	assert.Equal(t, secret, first, "Reconstruction must be byte-for-byte exact")

	second, err := Combine([]Share{shares[1], shares[3], shares[4]}, 3)
	require.NoError(t, err, "Combine should succeed with shares {2,4,5}")
	assert.Equal(t, secret, second, "Both quorums must reconstruct the identical secret")
}

func TestSplitCombine_AllSubsetsAtThreshold(t *testing.T) {
	secret := randomSecret(t)

	shares, err := Split(secret, testSigners[:4], 2)
	require.NoError(t, err)

	for i := 0; i < len(shares); i++ {
		for j := i + 1; j < len(shares); j++ {
			got, err := Combine([]Share{shares[i], shares[j]}, 2)
			require.NoError(t, err, "Combine should succeed for subset {%d,%d}", i, j)
			assert.Equal(t, secret, got, "Subset {%d,%d} should reconstruct the secret", i, j)
		}
	}
}

func TestCombine_InsufficientShares(t *testing.T) {
	secret := randomSecret(t)

	shares, err := Split(secret, testSigners, 3)
	require.NoError(t, err)

	_, err = Combine(shares[:2], 3)
	assert.ErrorIs(t, err, interfaces.ErrInsufficientShares, "Two shares should not meet a threshold of three")

	_, err = Combine(nil, 3)
	assert.ErrorIs(t, err, interfaces.ErrInsufficientShares, "No shares should never reconstruct")

	// Duplicate shares from the same signer count once.
	_, err = Combine([]Share{shares[0], shares[0], shares[0]}, 3)
	assert.ErrorIs(t, err, interfaces.ErrInsufficientShares, "Duplicates from one signer must not satisfy the quorum")
}

func TestCombine_MixedSplitsRejected(t *testing.T) {
	secret := randomSecret(t)

	sharesA, err := Split(secret, testSigners, 3)
	require.NoError(t, err)
	sharesB, err := Split(secret, testSigners, 3)
	require.NoError(t, err)

	_, err = Combine([]Share{sharesA[0], sharesA[1], sharesB[2]}, 3)
	assert.ErrorIs(t, err, interfaces.ErrInvalidShare, "Shares from different splits must be rejected")
}

func TestCombine_MalformedShares(t *testing.T) {
	secret := randomSecret(t)

	shares, err := Split(secret, testSigners, 3)
	require.NoError(t, err)

	truncated := shares[2]
	truncated.Bytes = truncated.Bytes[:4]
	_, err = Combine([]Share{shares[0], shares[1], truncated}, 3)
	assert.ErrorIs(t, err, interfaces.ErrInvalidShare, "Inconsistent share lengths must be rejected")

	empty := shares[2]
	empty.Bytes = nil
	_, err = Combine([]Share{shares[0], shares[1], empty}, 3)
	assert.ErrorIs(t, err, interfaces.ErrInvalidShare, "Empty share material must be rejected")
}

func TestSplit_FreshRandomnessPerCall(t *testing.T) {
	secret := randomSecret(t)

	sharesA, err := Split(secret, testSigners, 3)
	require.NoError(t, err)
	sharesB, err := Split(secret, testSigners, 3)
	require.NoError(t, err)

	assert.NotEqual(t, sharesA[0].Bytes, sharesB[0].Bytes, "Two splits of the same secret must not be linkable")
	assert.NotEqual(t, sharesA[0].SplitID, sharesB[0].SplitID, "Each split gets its own id")
}

func TestSplitCombine_ThresholdOne(t *testing.T) {
	secret := randomSecret(t)

	shares, err := Split(secret, testSigners[:2], 1)
	require.NoError(t, err, "Threshold of one is allowed")

	got, err := Combine(shares[:1], 1)
	require.NoError(t, err)
	assert.Equal(t, secret, got, "A single share reconstructs under threshold one")
}

func TestNewTransactionSecret(t *testing.T) {
	a, err := NewTransactionSecret()
	require.NoError(t, err)
	assert.Len(t, a, SecretBytes)

	b, err := NewTransactionSecret()
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "Secrets must be random")
}
