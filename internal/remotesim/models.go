package remotesim

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Afifwhdi/KasirAdmin-sub000/internal/remote"
)

// Category is the server's category row.
type Category struct {
	ID        string `gorm:"type:varchar(36);primaryKey"`
	Name      string `gorm:"type:varchar(255);uniqueIndex;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BeforeCreate assigns a UUID when none was given.
func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Product is the server's authoritative catalog row.
type Product struct {
	ID         string    `gorm:"type:varchar(36);primaryKey"`
	Name       string    `gorm:"type:varchar(255);not null;index"`
	Price      int64     `gorm:"default:0"`
	CostPrice  int64     `gorm:"default:0"`
	Stock      float64   `gorm:"default:0"`
	MinStock   float64   `gorm:"default:0"`
	Barcode    string    `gorm:"type:varchar(64);index"`
	CategoryID *string   `gorm:"type:varchar(36);index"`
	Category   *Category `gorm:"constraint:OnDelete:CASCADE"`
	Image      string
	IsPLU      bool
	Deleted    bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// BeforeCreate assigns a UUID when none was given.
func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Transaction is the server's sale row, unique by transaction number.
type Transaction struct {
	ID                string            `gorm:"type:varchar(36);primaryKey"`
	TransactionNumber string            `gorm:"type:varchar(64);uniqueIndex;not null"`
	Name              string
	PaymentMethodID   int64
	Total             int64
	CashReceived      int64
	ChangeAmount      int64
	Status            string            `gorm:"type:varchar(16);not null"`
	DeviceID          string            `gorm:"type:varchar(64)"`
	Items             []TransactionItem `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// BeforeCreate assigns a UUID when none was given.
func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// TransactionItem is one line of a server transaction.
type TransactionItem struct {
	ID                  uint   `gorm:"primaryKey"`
	TransactionID       string `gorm:"type:varchar(36);index;not null"`
	ProductID           string `gorm:"type:varchar(36)"`
	ProductNameSnapshot string
	Quantity            float64
	Price               int64
	Subtotal            int64
	CostPrice           int64
	TotalProfit         int64
}

func (c Category) wire() remote.Category {
	return remote.Category{ID: c.ID, Name: c.Name}
}

func (p Product) wire() remote.Product {
	out := remote.Product{
		ID:        p.ID,
		Name:      p.Name,
		Price:     p.Price,
		CostPrice: p.CostPrice,
		Stock:     p.Stock,
		MinStock:  p.MinStock,
		Barcode:   p.Barcode,
		Image:     p.Image,
		IsPLU:     p.IsPLU,
		Deleted:   p.Deleted,
	}
	if p.CategoryID != nil {
		out.CategoryID = *p.CategoryID
	}
	return out
}

func (t Transaction) wire() remote.Transaction {
	created := t.CreatedAt.UTC()
	out := remote.Transaction{
		ID:                t.ID,
		TransactionNumber: t.TransactionNumber,
		Name:              t.Name,
		PaymentMethodID:   t.PaymentMethodID,
		Total:             t.Total,
		CashReceived:      t.CashReceived,
		ChangeAmount:      t.ChangeAmount,
		Status:            t.Status,
		CreatedAt:         &created,
		Items:             make([]remote.TransactionItem, 0, len(t.Items)),
	}
	for _, it := range t.Items {
		out.Items = append(out.Items, remote.TransactionItem{
			ProductID:           it.ProductID,
			ProductNameSnapshot: it.ProductNameSnapshot,
			Quantity:            it.Quantity,
			Price:               it.Price,
			Subtotal:            it.Subtotal,
			CostPrice:           it.CostPrice,
			TotalProfit:         it.TotalProfit,
		})
	}
	return out
}
