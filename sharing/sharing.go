package sharing

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/vault/shamir"

	"github.com/finsig/transaction-approval-backend/interfaces"
)

// SecretBytes is the size of a generated per-transaction secret.
const SecretBytes = 32

// Share is one signer's piece of a split secret. Index is the x-coordinate
// of the share, SplitID identifies the split it belongs to, and Bytes is the
// raw share material.
type Share struct {
	SplitID  string `json:"split_id"`
	Index    int    `json:"index"`
	SignerID string `json:"signer_id"`
	Bytes    []byte `json:"bytes"`
}

// NewTransactionSecret generates a fresh 32-byte random secret.
func NewTransactionSecret() ([]byte, error) {
	secret := make([]byte, SecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate transaction secret: %w", err)
	}
	return secret, nil
}

// Split divides the secret into one share per signer such that any
// threshold of them reconstruct it exactly. It fails with
// interfaces.ErrInvalidThreshold when the threshold is below 1 or above the
// number of signers. Each call uses fresh randomness.
//
// A threshold of 1 is handled explicitly: the underlying library starts at
// 2, and with a quorum of one each share simply is the secret.
func Split(secret []byte, signerIDs []string, threshold int) ([]Share, error) {
	if len(secret) == 0 {
		return nil, interfaces.NewValidationError("secret", "must not be empty")
	}
	if threshold < 1 || threshold > len(signerIDs) {
		return nil, fmt.Errorf("%w: threshold %d with %d signers", interfaces.ErrInvalidThreshold, threshold, len(signerIDs))
	}

	seen := make(map[string]struct{}, len(signerIDs))
	for _, id := range signerIDs {
		if _, dup := seen[id]; dup {
			return nil, interfaces.NewValidationError("signers", "duplicate signer id "+id)
		}
		seen[id] = struct{}{}
	}

	splitID := uuid.NewString()
	shares := make([]Share, len(signerIDs))

	if threshold == 1 {
		for i, signerID := range signerIDs {
			shares[i] = Share{
				SplitID:  splitID,
				Index:    i + 1,
				SignerID: signerID,
				Bytes:    append([]byte(nil), secret...),
			}
		}
		return shares, nil
	}

	parts, err := shamir.Split(secret, len(signerIDs), threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to split secret: %w", err)
	}

	for i, part := range parts {
		shares[i] = Share{
			SplitID:  splitID,
			Index:    int(part[len(part)-1]),
			SignerID: signerIDs[i],
			Bytes:    part,
		}
	}
	return shares, nil
}

// Combine reconstructs the original secret from at least threshold distinct
// shares. Duplicate shares from the same signer count once. It fails with
// interfaces.ErrInsufficientShares below the threshold and with
// interfaces.ErrInvalidShare when shares are malformed or mixed from
// different splits.
func Combine(shares []Share, threshold int) ([]byte, error) {
	if threshold < 1 {
		return nil, fmt.Errorf("%w: threshold %d", interfaces.ErrInvalidThreshold, threshold)
	}

	distinct := make([]Share, 0, len(shares))
	bySigner := make(map[string]struct{}, len(shares))
	splitID := ""
	for _, share := range shares {
		if len(share.Bytes) == 0 || share.SignerID == "" {
			return nil, fmt.Errorf("%w: missing share material or signer", interfaces.ErrInvalidShare)
		}
		if splitID == "" {
			splitID = share.SplitID
		} else if share.SplitID != splitID {
			return nil, fmt.Errorf("%w: shares from different splits", interfaces.ErrInvalidShare)
		}
		if _, dup := bySigner[share.SignerID]; dup {
			continue
		}
		bySigner[share.SignerID] = struct{}{}
		distinct = append(distinct, share)
	}

	if len(distinct) < threshold {
		return nil, fmt.Errorf("%w: have %d distinct shares, need %d", interfaces.ErrInsufficientShares, len(distinct), threshold)
	}

	if threshold == 1 {
		return append([]byte(nil), distinct[0].Bytes...), nil
	}

	parts := make([][]byte, len(distinct))
	length := len(distinct[0].Bytes)
	for i, share := range distinct {
		if len(share.Bytes) != length {
			return nil, fmt.Errorf("%w: inconsistent share lengths", interfaces.ErrInvalidShare)
		}
		parts[i] = share.Bytes
	}

	secret, err := shamir.Combine(parts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidShare, err)
	}
	return secret, nil
}
