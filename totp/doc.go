// Package totp implements time-based one-time-password generation and
// verification as used by the enrollment and approval flows.
//
// The implementation follows RFC 4226 (HOTP) and RFC 6238 (TOTP): the
// current 30-second time step is used as the HMAC-SHA1 counter and the code
// is the dynamically truncated result, zero-padded to the configured digit
// count. Verification accepts codes within a configurable number of steps
// around the submission time to tolerate clock skew between the
// authenticator app and the server.
//
// The engine is stateless and side-effect free. Secret generation is pure;
// persisting the secret is the caller's responsibility. Verification never
// reveals whether the secret or the code was at fault: every failure is
// reported as interfaces.ErrInvalidCode.
package totp
