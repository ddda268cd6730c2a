// Package pos defines the data model of the cashier terminal.
//
// The types here are shared by the local store, the checkout engine,
// the status machine and the sync reconciler:
//   - Product and Category: the terminal's copy of the remote catalog
//   - Transaction and Item: sales recorded on this device
//   - Status and Event: the transaction lifecycle table
//   - Error: the domain error taxonomy surfaced to the cashier
//
// # Money and Quantities
//
// Amounts are whole rupiah stored as int64. Quantities are float64 because
// weighed (PLU) items are sold by the kilogram. Line amounts are computed
// once with LineSubtotal and LineProfit and then stored, so a transaction
// total always equals the sum of its stored item subtotals.
//
// # Idempotency
//
// Transaction.Number is the idempotency key shared with the remote server.
// It is generated on the device by a NumberGenerator and never changes once
// a transaction is committed.
package pos
