// Package store provides SQLite-backed durable storage for the cashier
// terminal.
//
// The store holds the device's copy of:
//   - Categories and Products: merged from the remote catalog
//   - Transactions and their items: sales recorded on this device
//
// # Atomicity
//
// Every multi-statement operation runs inside a single SQL transaction:
//   - CreateTransaction: stock check + stock decrement + header + items
//   - UpdateStatus / Settle: status write + stock restore on refund
//   - MarkSynced: the synced flag and synced_at are one UPDATE
//
// Each method commits before returning, so an abrupt process kill never
// leaves a half-applied sale, refund or sync mark.
//
// # Outbox
//
// Transactions with synced = 0 form the outbox. ListUnsynced walks it
// oldest-first using keyset pagination on (created_at, id), so the single
// connection is never held while the caller is uploading.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
