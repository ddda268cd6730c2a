// Package harness replays till sessions described in YAML and checks
// what the checkout engine, the status machine and the local store did.
//
// # Scenario Format
//
//	name: bon_sale_then_pay
//	description: "A BON sale stays pending until paid"
//	plu_surcharge: 1000
//	products:
//	  - key: gula
//	    name: Gula Pasir
//	    price: 15000
//	    stock: 10
//	flow:
//	  - action: add
//	    product: gula
//	    qty: 2
//	  - action: checkout
//	    method: bon
//	    name: Bu Sari
//	    as: sale1
//	    expect: { status: pending, total: 30000 }
//	  - action: pay
//	    sale: sale1
//	    cash: 50000
//	    expect: { status: paid, change: 20000 }
//	assertions:
//	  - type: stock
//	    product: gula
//	    stock: 8
//	  - type: final_state
//	    table: transactions
//	    where: { transaction_number: TRX-TEST-0001 }
//	    expect: { status: paid, cash_received: 50000 }
//
// # Actions
//
//   - add, weigh, increment, decrement: edit the cart
//   - checkout: commit the cart as a sale (method cash or bon)
//   - pay, cancel, refund: drive a labelled sale through its lifecycle
//
// A step without expect must succeed. expect.error names the domain error
// code a failing step must produce (e.g. STOCK_INSUFFICIENT).
//
// # Assertion Types
//
//   - stock: a product's stock after the flow
//   - status: a labelled sale's status
//   - unsynced_count: transactions awaiting upload
//   - trace_order: actions appear in the specified order
//   - trace_count: an action appears exactly N times
//   - final_state: queries a local table and verifies expected values
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory store, testutil.DeterministicClock and
// testutil.SequentialNumbers, so traces are identical across runs and can
// be compared against golden files with RunWithGolden.
package harness
