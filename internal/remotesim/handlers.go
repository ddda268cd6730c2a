package remotesim

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/Afifwhdi/KasirAdmin-sub000/internal/remote"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 500
)

type itemRequest struct {
	ProductID           string  `json:"product_id"`
	ProductNameSnapshot string  `json:"product_name_snapshot" validate:"required"`
	Quantity            float64 `json:"quantity" validate:"gt=0"`
	Price               int64   `json:"price" validate:"gte=0"`
	Subtotal            int64   `json:"subtotal" validate:"gte=0"`
	CostPrice           int64   `json:"cost_price" validate:"gte=0"`
	TotalProfit         int64   `json:"total_profit"`
}

type transactionRequest struct {
	TransactionNumber string        `json:"transaction_number" validate:"required"`
	Name              string        `json:"name"`
	PaymentMethodID   int64         `json:"payment_method_id" validate:"oneof=1 2"`
	Total             int64         `json:"total" validate:"gte=0"`
	CashReceived      int64         `json:"cash_received" validate:"gte=0"`
	ChangeAmount      int64         `json:"change_amount" validate:"gte=0"`
	Status            string        `json:"status" validate:"oneof=pending paid cancelled refunded"`
	CreatedAt         *time.Time    `json:"created_at"`
	Items             []itemRequest `json:"items" validate:"required,min=1,dive"`
}

type categoryRequest struct {
	Name string `json:"name" validate:"required"`
}

type statusRequest struct {
	Status string `json:"status" validate:"oneof=pending paid cancelled refunded"`
}

type payRequest struct {
	CashReceived int64 `json:"cash_received" validate:"gte=0"`
	ChangeAmount int64 `json:"change_amount" validate:"gte=0"`
}

// bind parses and validates a JSON body. A bad body yields a *fiber.Error
// that the app's ErrorHandler renders, so the handler must return it.
func (s *Server) bind(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON")
	}
	if err := s.validate.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.StructNamespace()+" "+fe.Tag())
			}
			return fiber.NewError(fiber.StatusUnprocessableEntity, "validation failed: "+strings.Join(fields, ", "))
		}
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}
	return nil
}

func paging(c *fiber.Ctx) (page, limit int) {
	page = c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit = c.QueryInt("limit", defaultPageLimit)
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func meta(page, limit int, total int64) remote.Meta {
	pages := int((total + int64(limit) - 1) / int64(limit))
	return remote.Meta{Page: page, Limit: limit, Total: int(total), TotalPages: pages}
}

func (s *Server) listProducts(c *fiber.Ctx) error {
	page, limit := paging(c)

	var total int64
	if err := s.db.Model(&Product{}).Count(&total).Error; err != nil {
		return err
	}
	var rows []Product
	if err := s.db.Order("name ASC, id ASC").Offset((page - 1) * limit).Limit(limit).Find(&rows).Error; err != nil {
		return err
	}

	data := make([]remote.Product, 0, len(rows))
	for _, p := range rows {
		data = append(data, p.wire())
	}
	return respond(c, fiber.StatusOK, data, meta(page, limit, total))
}

func (s *Server) listCategories(c *fiber.Ctx) error {
	var rows []Category
	if err := s.db.Order("name ASC").Find(&rows).Error; err != nil {
		return err
	}
	data := make([]remote.Category, 0, len(rows))
	for _, cat := range rows {
		data = append(data, cat.wire())
	}
	return respond(c, fiber.StatusOK, data, nil)
}

func (s *Server) createCategory(c *fiber.Ctx) error {
	var req categoryRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	var existing int64
	if err := s.db.Model(&Category{}).Where("name = ?", req.Name).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return fail(c, fiber.StatusConflict, "category already exists")
	}

	cat := Category{Name: req.Name}
	if err := s.db.Create(&cat).Error; err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, cat.wire(), nil)
}

func (s *Server) listTransactions(c *fiber.Ctx) error {
	page, limit := paging(c)

	var total int64
	if err := s.db.Model(&Transaction{}).Count(&total).Error; err != nil {
		return err
	}
	var rows []Transaction
	err := s.db.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Order("created_at ASC, id ASC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&rows).Error
	if err != nil {
		return err
	}

	data := make([]remote.Transaction, 0, len(rows))
	for _, t := range rows {
		data = append(data, t.wire())
	}
	return respond(c, fiber.StatusOK, data, meta(page, limit, total))
}

// upsertTransaction creates a transaction or, if its number exists,
// updates it in place and replaces its items.
func (s *Server) upsertTransaction(c *fiber.Ctx) error {
	var req transactionRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	if msg, rejected := s.rejection(req.TransactionNumber); rejected {
		return fail(c, fiber.StatusUnprocessableEntity, msg)
	}

	var sum int64
	for _, it := range req.Items {
		sum += it.Subtotal
	}
	if sum != req.Total {
		return fail(c, fiber.StatusUnprocessableEntity, "total does not match item subtotals")
	}

	var (
		id      string
		updated bool
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing Transaction
		err := tx.Where("transaction_number = ?", req.TransactionNumber).First(&existing).Error
		switch {
		case err == nil:
			updated = true
			id = existing.ID
			if err := tx.Model(&existing).Updates(map[string]any{
				"name":              req.Name,
				"payment_method_id": req.PaymentMethodID,
				"total":             req.Total,
				"cash_received":     req.CashReceived,
				"change_amount":     req.ChangeAmount,
				"status":            req.Status,
				"device_id":         c.Get("X-Device-ID"),
			}).Error; err != nil {
				return err
			}
			if err := tx.Where("transaction_id = ?", id).Delete(&TransactionItem{}).Error; err != nil {
				return err
			}
			items := itemsFrom(id, req.Items)
			return tx.Create(&items).Error

		case errors.Is(err, gorm.ErrRecordNotFound):
			t := Transaction{
				TransactionNumber: req.TransactionNumber,
				Name:              req.Name,
				PaymentMethodID:   req.PaymentMethodID,
				Total:             req.Total,
				CashReceived:      req.CashReceived,
				ChangeAmount:      req.ChangeAmount,
				Status:            req.Status,
				DeviceID:          c.Get("X-Device-ID"),
			}
			if req.CreatedAt != nil {
				t.CreatedAt = req.CreatedAt.UTC()
			}
			if err := tx.Omit("Items").Create(&t).Error; err != nil {
				return err
			}
			id = t.ID
			items := itemsFrom(id, req.Items)
			return tx.Create(&items).Error

		default:
			return err
		}
	})
	if err != nil {
		return err
	}

	s.logger.Info("transaction upserted", "number", req.TransactionNumber, "updated", updated)
	return respond(c, fiber.StatusOK, remote.CreateResult{ID: id, Updated: updated}, nil)
}

func itemsFrom(transactionID string, reqs []itemRequest) []TransactionItem {
	items := make([]TransactionItem, 0, len(reqs))
	for _, r := range reqs {
		items = append(items, TransactionItem{
			TransactionID:       transactionID,
			ProductID:           r.ProductID,
			ProductNameSnapshot: r.ProductNameSnapshot,
			Quantity:            r.Quantity,
			Price:               r.Price,
			Subtotal:            r.Subtotal,
			CostPrice:           r.CostPrice,
			TotalProfit:         r.TotalProfit,
		})
	}
	return items
}

// findTransaction resolves :id as a server id or a transaction number.
func (s *Server) findTransaction(ref string) (Transaction, error) {
	var t Transaction
	err := s.db.Where("id = ? OR transaction_number = ?", ref, ref).First(&t).Error
	return t, err
}

func (s *Server) updateStatus(c *fiber.Ctx) error {
	var req statusRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	t, err := s.findTransaction(c.Params("id"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, fiber.StatusNotFound, "transaction not found")
	}
	if err != nil {
		return err
	}
	if err := s.db.Model(&t).Update("status", req.Status).Error; err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, fiber.Map{"id": t.ID, "status": req.Status}, nil)
}

func (s *Server) payTransaction(c *fiber.Ctx) error {
	var req payRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	t, err := s.findTransaction(c.Params("id"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, fiber.StatusNotFound, "transaction not found")
	}
	if err != nil {
		return err
	}
	if t.Status != "pending" {
		return fail(c, fiber.StatusConflict, "transaction is "+t.Status+", not pending")
	}
	if req.CashReceived < t.Total {
		return fail(c, fiber.StatusUnprocessableEntity, "cash received is below total")
	}

	if err := s.db.Model(&t).Updates(map[string]any{
		"status":        "paid",
		"cash_received": req.CashReceived,
		"change_amount": req.ChangeAmount,
	}).Error; err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, fiber.Map{"id": t.ID, "status": "paid"}, nil)
}
