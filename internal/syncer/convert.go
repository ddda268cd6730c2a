package syncer

import (
	"context"
	"fmt"

	"github.com/Afifwhdi/KasirAdmin-sub000/internal/pos"
	"github.com/Afifwhdi/KasirAdmin-sub000/internal/remote"
)

// toRemote builds the upload body. Items reference products by their
// remote id; products created locally and never merged are sent without
// one and identified by the name snapshot.
func (r *Reconciler) toRemote(ctx context.Context, tx pos.Transaction) (remote.Transaction, error) {
	created := tx.CreatedAt.UTC()
	out := remote.Transaction{
		TransactionNumber: tx.Number,
		Name:              tx.CustomerName,
		PaymentMethodID:   tx.PaymentMethodID,
		Total:             tx.Total,
		CashReceived:      tx.CashReceived,
		ChangeAmount:      tx.Change,
		Status:            string(tx.Status),
		CreatedAt:         &created,
		Items:             make([]remote.TransactionItem, 0, len(tx.Items)),
	}
	if out.PaymentMethodID == 0 {
		out.PaymentMethodID = tx.Method.ID()
	}

	for _, it := range tx.Items {
		serverID, err := r.store.ProductServerID(ctx, it.ProductID)
		if err != nil {
			return remote.Transaction{}, fmt.Errorf("resolve product %d: %w", it.ProductID, err)
		}
		out.Items = append(out.Items, remote.TransactionItem{
			ProductID:           serverID,
			ProductNameSnapshot: it.ProductName,
			Quantity:            it.Quantity,
			Price:               it.Price,
			Subtotal:            it.Subtotal,
			CostPrice:           it.CostPrice,
			TotalProfit:         it.Profit,
		})
	}
	return out, nil
}

// fromRemoteProduct maps a catalog entry to a local product. categoryID is
// the already-resolved local category, or nil.
func fromRemoteProduct(p remote.Product, categoryID *int64) pos.Product {
	return pos.Product{
		ServerID:   p.ID,
		Name:       p.Name,
		Price:      p.Price,
		CostPrice:  p.CostPrice,
		Stock:      p.Stock,
		MinStock:   p.MinStock,
		Barcode:    p.Barcode,
		CategoryID: categoryID,
		Image:      p.Image,
		IsPLU:      p.IsPLU,
		Deleted:    p.Deleted,
	}
}

// fromRemoteTransaction maps a history entry to a local transaction.
// Items lose their product link; the name snapshot is kept.
func fromRemoteTransaction(t remote.Transaction) pos.Transaction {
	method := pos.PaymentMethodFromID(t.PaymentMethodID)
	tx := pos.Transaction{
		Number:          t.TransactionNumber,
		CustomerName:    t.Name,
		Total:           t.Total,
		CashReceived:    t.CashReceived,
		Change:          t.ChangeAmount,
		Method:          method,
		PaymentMethodID: t.PaymentMethodID,
		Status:          pos.Status(t.Status),
		Items:           make([]pos.Item, 0, len(t.Items)),
	}
	if t.CreatedAt != nil {
		tx.CreatedAt = t.CreatedAt.UTC()
	}
	for _, it := range t.Items {
		tx.Items = append(tx.Items, pos.Item{
			ProductName: it.ProductNameSnapshot,
			Quantity:    it.Quantity,
			Price:       it.Price,
			CostPrice:   it.CostPrice,
			Subtotal:    it.Subtotal,
			Profit:      it.TotalProfit,
		})
	}
	return tx
}
