// Package storage provides the concrete stores and audit sinks behind the
// interfaces the approval core consumes.
//
// # Stores
//
//   - InMemoryIdentityStore and InMemoryTransactionStore hold state in
//     process memory. The transaction store enforces compare-and-swap on
//     the transaction version and nonce uniqueness across transactions,
//     giving the state machine the atomic save it relies on. Both hand out
//     deep copies so callers cannot mutate persisted state in place.
//   - VaultSecretStore keeps TOTP secrets in HashiCorp Vault (KV v2),
//     for deployments that must hold enrollment material outside the
//     primary store.
//
// # Audit Sinks
//
//   - MemoryAuditSink collects entries in memory; it doubles as the test
//     double for audit assertions.
//   - FileAuditSink appends entries to a local JSON-lines file.
//   - S3AuditArchiver writes each entry as an object to an S3 bucket,
//     keyed by transaction, for long-term retention.
//   - MultiAuditSink fans an entry out to several sinks, so a deployment
//     can keep a local file and archive to S3 at the same time.
//
// Delivery guarantees are the sink's concern; the approval core treats
// Append as fire-and-forget.
package storage
