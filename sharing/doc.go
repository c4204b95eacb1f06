// Package sharing splits per-transaction secrets across selected signers
// using Shamir's Secret Sharing and reconstructs them from a quorum.
//
// Split binds each share to a signer id and tags every share with the id of
// the split it came from, so Combine can reject shares mixed from different
// splits instead of silently interpolating garbage. Any K of the N produced
// shares reconstruct the secret byte for byte; fewer than K distinct shares
// fail with interfaces.ErrInsufficientShares and reveal nothing about the
// secret (the information-theoretic guarantee of the underlying
// hashicorp/vault shamir implementation).
//
// Each Split call draws fresh randomness, so two splits of the same secret
// are not linkable. The originating secret is never retained here; callers
// are expected to wipe it once shares are distributed.
package sharing
