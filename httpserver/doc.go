// Package httpserver exposes the transaction approval service over HTTP.
//
// The API has two groups of endpoints:
//
//  1. Enrollment: POST /api/auth/enroll issues a TOTP secret for a new
//     participant, POST /api/auth/verify activates the identity after the
//     first code is verified.
//  2. Transactions: POST /api/transactions proposes a transfer and returns
//     the signers' secret shares, POST /api/transactions/{tx_id}/signatures
//     records a signer decision, and GET endpoints expose transaction state
//     and the audit trail.
//
// Health and diagnostics endpoints (/livez, /readyz, /drain, /undrain)
// integrate with load balancers for zero-downtime deploys.
//
// Error mapping is uniform: validation failures return 400, authorization
// and code failures 403, unknown resources 404, and decision conflicts 409.
// TOTP secrets and raw shares appear only in the responses that issue them.
package httpserver
