package pos

import "time"

// PaymentMethod identifies how a sale is settled.
type PaymentMethod string

const (
	// PaymentCash is settled at the counter; the sale is paid on creation.
	PaymentCash PaymentMethod = "cash"

	// PaymentCredit is a BON sale: recorded now, money collected later.
	PaymentCredit PaymentMethod = "credit"
)

// Payment method references used by the remote server.
const (
	PaymentMethodIDCash   int64 = 1
	PaymentMethodIDCredit int64 = 2
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCash || m == PaymentCredit
}

// ID returns the remote payment_method_id for m.
func (m PaymentMethod) ID() int64 {
	if m == PaymentCredit {
		return PaymentMethodIDCredit
	}
	return PaymentMethodIDCash
}

// PaymentMethodFromID maps a remote payment_method_id back to a method.
// Unknown ids are treated as cash.
func PaymentMethodFromID(id int64) PaymentMethod {
	if id == PaymentMethodIDCredit {
		return PaymentCredit
	}
	return PaymentCash
}

// ParsePaymentMethod accepts the method names used at the counter.
// "bon" is an alias for credit.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch s {
	case "cash", "tunai":
		return PaymentCash, nil
	case "credit", "bon", "BON":
		return PaymentCredit, nil
	}
	return "", NewValidationError("unknown payment method %q", s)
}

// Category groups products. Names are unique per store.
type Category struct {
	ID        int64     `json:"id"`
	ServerID  string    `json:"server_id,omitempty"`
	Name      string    `json:"name" validate:"required"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Product is a sellable catalog entry.
//
// Stock may be fractional for weighed items. Stock never goes below zero
// after a committed operation.
type Product struct {
	ID         int64     `json:"id"`
	ServerID   string    `json:"server_id,omitempty"`
	Name       string    `json:"name" validate:"required"`
	Price      int64     `json:"price" validate:"gte=0"`
	CostPrice  int64     `json:"cost_price" validate:"gte=0"`
	Stock      float64   `json:"stock" validate:"gte=0"`
	MinStock   float64   `json:"min_stock" validate:"gte=0"`
	Barcode    string    `json:"barcode,omitempty"`
	CategoryID *int64    `json:"category_id,omitempty"`
	Image      string    `json:"image,omitempty"`
	IsPLU      bool      `json:"is_plu"`
	Deleted    bool      `json:"deleted"`
	Version    int64     `json:"version"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// LowStock reports whether the product is at or below its threshold.
func (p Product) LowStock() bool {
	return p.Stock <= p.MinStock
}

// Item is one line of a Transaction.
//
// ProductName is a snapshot taken at sale time so receipts survive
// product deletion. ProductID is zero once the product is gone.
type Item struct {
	ID            int64   `json:"id"`
	TransactionID int64   `json:"transaction_id"`
	ProductID     int64   `json:"product_id"`
	ProductName   string  `json:"product_name" validate:"required"`
	Quantity      float64 `json:"quantity" validate:"gt=0"`
	Price         int64   `json:"price" validate:"gte=0"`
	CostPrice     int64   `json:"cost_price" validate:"gte=0"`
	Subtotal      int64   `json:"subtotal"`
	Profit        int64   `json:"total_profit"`
}

// Transaction is a sale recorded on this device.
type Transaction struct {
	ID              int64         `json:"id"`
	Number          string        `json:"transaction_number" validate:"required"`
	CustomerName    string        `json:"name,omitempty"`
	Total           int64         `json:"total" validate:"gte=0"`
	CashReceived    int64         `json:"cash_received" validate:"gte=0"`
	Change          int64         `json:"change_amount" validate:"gte=0"`
	Method          PaymentMethod `json:"payment_method" validate:"oneof=cash credit"`
	PaymentMethodID int64         `json:"payment_method_id"`
	Status          Status        `json:"status" validate:"oneof=pending paid cancelled refunded"`
	CreatedAt       time.Time     `json:"created_at"`
	Synced          bool          `json:"synced"`
	SyncedAt        *time.Time    `json:"synced_at,omitempty"`
	Deleted         bool          `json:"deleted"`

	// Version increases on every local status change. The reconciler only
	// marks a row synced if the version it uploaded is still current.
	Version int64 `json:"version"`

	Items []Item `json:"items" validate:"dive"`
}

// IsBON reports whether the sale was recorded on credit.
func (t Transaction) IsBON() bool {
	return t.Method == PaymentCredit
}
