// Package approval implements the transaction approval workflow: the
// threshold state machine that owns the transaction lifecycle, and the
// coordinator that glues identity verification, TOTP checks, and secret
// sharing into end-to-end operations.
//
// # State Machine
//
// Machine owns all transitions of a transaction:
//
//   - Create initializes a pending transaction with one pending signature
//     record per selected signer and a unique replay-protection nonce.
//   - RecordSignature applies exactly one decision per (transaction, signer)
//     pair, then recomputes the aggregate status: the transaction becomes
//     approved once the signed count reaches the required threshold, and
//     rejected as soon as any single signer rejects (fail-fast policy).
//   - Expire moves a pending transaction past its deadline to rejected and
//     is idempotent on terminal transactions. ExpireSweep runs Expire over
//     all pending transactions, for use from a periodic background pass.
//
// Every transition that changes the transaction status or a signature
// record emits exactly one audit entry; calls that fail emit none.
//
// # Concurrency
//
// RecordSignature and Expire serialize per transaction through a lazily
// created per-transaction mutex, so two concurrent submissions by the same
// signer yield exactly one success and one ErrAlreadyDecided. Different
// transactions proceed fully in parallel. The store's compare-and-swap on
// the transaction version is kept as a second line of defense.
//
// # Coordinator
//
// Coordinator exposes the operations the transport layer calls: Enroll and
// ConfirmEnrollment for TOTP onboarding, CreateTransaction (which splits a
// fresh per-transaction secret across the selected signers and records each
// signer's share fingerprint), and Submit (which re-verifies the signer's
// TOTP code before recording a decision and reports when the threshold has
// just been reached, making the shares combinable). It surfaces the most
// specific error from the underlying engines and introduces no new kinds.
package approval
