package remotesim

import (
	"errors"
	"net"

	"gorm.io/gorm"
)

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

// SeedCategory inserts a category and returns its id.
func (s *Server) SeedCategory(name string) (string, error) {
	c := Category{Name: name}
	if err := s.db.Create(&c).Error; err != nil {
		return "", err
	}
	return c.ID, nil
}

// SeedProduct inserts p as given and returns its id.
func (s *Server) SeedProduct(p Product) (string, error) {
	if err := s.db.Create(&p).Error; err != nil {
		return "", err
	}
	return p.ID, nil
}

// SetProductStock overwrites a product's stock, as an admin edit would.
func (s *Server) SetProductStock(id string, stock float64) error {
	return s.db.Model(&Product{}).Where("id = ?", id).Update("stock", stock).Error
}

// Transaction returns the stored transaction and its items by number.
// The second result is false when none exists.
func (s *Server) Transaction(number string) (Transaction, bool, error) {
	var t Transaction
	err := s.db.Preload("Items").Where("transaction_number = ?", number).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Transaction{}, false, nil
	}
	if err != nil {
		return Transaction{}, false, err
	}
	return t, true, nil
}

// CountTransactions returns how many transactions the server holds.
func (s *Server) CountTransactions() (int64, error) {
	var n int64
	err := s.db.Model(&Transaction{}).Count(&n).Error
	return n, err
}
