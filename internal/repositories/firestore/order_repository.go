package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/termitepreston/wigvana/internal/domain"
	pfirestore "github.com/termitepreston/wigvana/internal/platform/firestore"
	"github.com/termitepreston/wigvana/internal/repositories"
)

const orderCollection = "orders"

// OrderRepository persists orders as single documents with embedded lines, returns and refunds.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.Collection[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewCollection[orderDocument](provider, orderCollection),
	}, nil
}

// Insert creates the order document.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order repository: order id is required")
	}
	if order.Version == 0 {
		order.Version = 1
	}
	return r.orders.Create(ctx, order.ID, newOrderDocument(order))
}

// Update writes the order when the stored version matches. Inside a caller-owned transaction the
// order must have been read in that transaction.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) (domain.Order, error) {
	if strings.TrimSpace(order.ID) == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	write := func(ctx context.Context) error {
		order.Version++
		return r.orders.Set(ctx, order.ID, newOrderDocument(order))
	}

	if _, inTx := pfirestore.TransactionFromContext(ctx); inTx {
		if err := write(ctx); err != nil {
			return domain.Order{}, err
		}
		return order.Clone(), nil
	}

	expected := order.Version
	err := r.provider.RunInTx(ctx, func(ctx context.Context) error {
		order.Version = expected
		current, err := r.orders.Get(ctx, order.ID)
		if err != nil {
			return err
		}
		if current.Data.Version != expected {
			return pfirestore.ConflictError("orders.update", "order %s version %d is stale", order.ID, expected)
		}
		return write(ctx)
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order.Clone(), nil
}

// FindByID loads an order by identifier.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}
	doc, err := r.orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// List returns orders newest first. Seller filtering relies on the denormalised sellerIds array.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.Page[domain.Order], error) {
	paging := filter.Pagination.Normalize()
	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		if buyer := strings.TrimSpace(filter.BuyerID); buyer != "" {
			q = q.Where("buyerId", "==", buyer)
		}
		if seller := strings.TrimSpace(filter.SellerID); seller != "" {
			q = q.Where("sellerIds", "array-contains", seller)
		}
		switch len(filter.Statuses) {
		case 0:
		case 1:
			q = q.Where("status", "==", string(filter.Statuses[0]))
		default:
			statuses := make([]string, 0, len(filter.Statuses))
			for _, status := range filter.Statuses {
				statuses = append(statuses, string(status))
			}
			q = q.Where("status", "in", statuses)
		}
		return q.OrderBy("createdAt", firestore.Desc).
			OrderBy(firestore.DocumentID, firestore.Desc).
			Offset(paging.Offset()).
			Limit(paging.Limit + 1)
	})
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}

	page := domain.Page[domain.Order]{Page: paging.Page, Limit: paging.Limit, Items: make([]domain.Order, 0, len(docs))}
	if len(docs) > paging.Limit {
		page.HasMore = true
		docs = docs[:paging.Limit]
	}
	for _, doc := range docs {
		page.Items = append(page.Items, doc.Data.toDomain(doc.ID))
	}
	return page, nil
}

type orderDocument struct {
	BuyerID         string                   `firestore:"buyerId"`
	CartID          string                   `firestore:"cartId,omitempty"`
	Status          string                   `firestore:"status"`
	PaymentStatus   string                   `firestore:"paymentStatus"`
	Currency        string                   `firestore:"currency"`
	Totals          orderTotalsDocument      `firestore:"totals"`
	ShippingAddress addressDocument          `firestore:"shippingAddress"`
	BillingAddress  addressDocument          `firestore:"billingAddress"`
	PaymentMethod   paymentSummaryDocument   `firestore:"paymentMethod"`
	ShippingMethod  string                   `firestore:"shippingMethod,omitempty"`
	Tracking        orderTrackingDocument    `firestore:"tracking"`
	Lines           []orderLineDocument      `firestore:"lines"`
	SellerIDs       []string                 `firestore:"sellerIds"`
	Notes           []orderNoteDocument      `firestore:"notes,omitempty"`
	Returns         []returnRequestDocument  `firestore:"returns,omitempty"`
	Refunds         []refundDocument         `firestore:"refunds,omitempty"`
	CancelReason    string                   `firestore:"cancelReason,omitempty"`
	Version         int64                    `firestore:"version"`
	CreatedAt       time.Time                `firestore:"createdAt"`
	UpdatedAt       time.Time                `firestore:"updatedAt"`
	CancelledAt     *time.Time               `firestore:"cancelledAt,omitempty"`
	ShippedAt       *time.Time               `firestore:"shippedAt,omitempty"`
	DeliveredAt     *time.Time               `firestore:"deliveredAt,omitempty"`
	CompletedAt     *time.Time               `firestore:"completedAt,omitempty"`
}

type orderTotalsDocument struct {
	Subtotal int64 `firestore:"subtotal"`
	Tax      int64 `firestore:"tax"`
	Shipping int64 `firestore:"shipping"`
	Total    int64 `firestore:"total"`
	Refunded int64 `firestore:"refunded"`
}

type paymentSummaryDocument struct {
	ID       string `firestore:"id,omitempty"`
	Provider string `firestore:"provider,omitempty"`
	Brand    string `firestore:"brand,omitempty"`
	Last4    string `firestore:"last4,omitempty"`
}

type orderTrackingDocument struct {
	Number  string `firestore:"number,omitempty"`
	Carrier string `firestore:"carrier,omitempty"`
}

type orderLineDocument struct {
	ID        string    `firestore:"id"`
	ProductID string    `firestore:"productId"`
	VariantID string    `firestore:"variantId"`
	SellerID  string    `firestore:"sellerId"`
	Title     string    `firestore:"title,omitempty"`
	SKU       string    `firestore:"sku,omitempty"`
	Quantity  int       `firestore:"quantity"`
	UnitPrice int64     `firestore:"unitPrice"`
	LineTotal int64     `firestore:"lineTotal"`
	Status    string    `firestore:"status"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

type orderNoteDocument struct {
	ActorID   string    `firestore:"actorId"`
	ActorRole string    `firestore:"actorRole"`
	Message   string    `firestore:"message"`
	CreatedAt time.Time `firestore:"createdAt"`
}

type returnRequestDocument struct {
	ID             string     `firestore:"id"`
	LineID         string     `firestore:"lineId"`
	Quantity       int        `firestore:"quantity"`
	Reason         string     `firestore:"reason,omitempty"`
	Status         string     `firestore:"status"`
	PreviousStatus string     `firestore:"previousStatus"`
	RequestedAt    time.Time  `firestore:"requestedAt"`
	ResolvedAt     *time.Time `firestore:"resolvedAt,omitempty"`
	ResolvedBy     string     `firestore:"resolvedBy,omitempty"`
}

type refundDocument struct {
	ID        string    `firestore:"id"`
	Amount    int64     `firestore:"amount"`
	Reason    string    `firestore:"reason,omitempty"`
	ActorID   string    `firestore:"actorId"`
	CreatedAt time.Time `firestore:"createdAt"`
}

func newOrderDocument(order domain.Order) orderDocument {
	doc := orderDocument{
		BuyerID:       order.BuyerID,
		CartID:        order.CartID,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		Currency:      order.Currency,
		Totals: orderTotalsDocument{
			Subtotal: order.Totals.Subtotal,
			Tax:      order.Totals.Tax,
			Shipping: order.Totals.Shipping,
			Total:    order.Totals.Total,
			Refunded: order.Totals.Refunded,
		},
		ShippingAddress: newAddressDocument(order.ShippingAddress),
		BillingAddress:  newAddressDocument(order.BillingAddress),
		PaymentMethod: paymentSummaryDocument{
			ID:       order.PaymentMethod.ID,
			Provider: order.PaymentMethod.Provider,
			Brand:    order.PaymentMethod.Brand,
			Last4:    order.PaymentMethod.Last4,
		},
		ShippingMethod: order.ShippingMethod,
		Tracking:       orderTrackingDocument{Number: order.Tracking.Number, Carrier: order.Tracking.Carrier},
		Lines:          make([]orderLineDocument, 0, len(order.Lines)),
		SellerIDs:      append([]string{}, order.SellerIDs...),
		CancelReason:   order.CancelReason,
		Version:        order.Version,
		CreatedAt:      order.CreatedAt.UTC(),
		UpdatedAt:      order.UpdatedAt.UTC(),
		CancelledAt:    utcPtr(order.CancelledAt),
		ShippedAt:      utcPtr(order.ShippedAt),
		DeliveredAt:    utcPtr(order.DeliveredAt),
		CompletedAt:    utcPtr(order.CompletedAt),
	}
	for _, line := range order.Lines {
		doc.Lines = append(doc.Lines, orderLineDocument{
			ID:        line.ID,
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			SellerID:  line.SellerID,
			Title:     line.Title,
			SKU:       line.SKU,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: line.LineTotal,
			Status:    string(line.Status),
			UpdatedAt: line.UpdatedAt.UTC(),
		})
	}
	for _, note := range order.Notes {
		doc.Notes = append(doc.Notes, orderNoteDocument(note))
	}
	for _, ret := range order.Returns {
		doc.Returns = append(doc.Returns, returnRequestDocument{
			ID:             ret.ID,
			LineID:         ret.LineID,
			Quantity:       ret.Quantity,
			Reason:         ret.Reason,
			Status:         string(ret.Status),
			PreviousStatus: string(ret.PreviousStatus),
			RequestedAt:    ret.RequestedAt.UTC(),
			ResolvedAt:     utcPtr(ret.ResolvedAt),
			ResolvedBy:     ret.ResolvedBy,
		})
	}
	for _, refund := range order.Refunds {
		doc.Refunds = append(doc.Refunds, refundDocument(refund))
	}
	return doc
}

func (d orderDocument) toDomain(id string) domain.Order {
	order := domain.Order{
		ID:            id,
		BuyerID:       d.BuyerID,
		CartID:        d.CartID,
		Status:        domain.OrderStatus(d.Status),
		PaymentStatus: domain.PaymentStatus(d.PaymentStatus),
		Currency:      d.Currency,
		Totals: domain.OrderTotals{
			Subtotal: d.Totals.Subtotal,
			Tax:      d.Totals.Tax,
			Shipping: d.Totals.Shipping,
			Total:    d.Totals.Total,
			Refunded: d.Totals.Refunded,
		},
		ShippingAddress: d.ShippingAddress.toDomain(""),
		BillingAddress:  d.BillingAddress.toDomain(""),
		PaymentMethod: domain.PaymentMethodSummary{
			ID:       d.PaymentMethod.ID,
			Provider: d.PaymentMethod.Provider,
			Brand:    d.PaymentMethod.Brand,
			Last4:    d.PaymentMethod.Last4,
		},
		ShippingMethod: d.ShippingMethod,
		Tracking:       domain.OrderTracking{Number: d.Tracking.Number, Carrier: d.Tracking.Carrier},
		Lines:          make([]domain.OrderLine, 0, len(d.Lines)),
		SellerIDs:      append([]string(nil), d.SellerIDs...),
		CancelReason:   d.CancelReason,
		Version:        d.Version,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
		CancelledAt:    d.CancelledAt,
		ShippedAt:      d.ShippedAt,
		DeliveredAt:    d.DeliveredAt,
		CompletedAt:    d.CompletedAt,
	}
	for _, line := range d.Lines {
		order.Lines = append(order.Lines, domain.OrderLine{
			ID:        line.ID,
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			SellerID:  line.SellerID,
			Title:     line.Title,
			SKU:       line.SKU,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: line.LineTotal,
			Status:    domain.LineStatus(line.Status),
			UpdatedAt: line.UpdatedAt,
		})
	}
	for _, note := range d.Notes {
		order.Notes = append(order.Notes, domain.OrderNote(note))
	}
	for _, ret := range d.Returns {
		order.Returns = append(order.Returns, domain.ReturnRequest{
			ID:             ret.ID,
			LineID:         ret.LineID,
			Quantity:       ret.Quantity,
			Reason:         ret.Reason,
			Status:         domain.ReturnStatus(ret.Status),
			PreviousStatus: domain.LineStatus(ret.PreviousStatus),
			RequestedAt:    ret.RequestedAt,
			ResolvedAt:     ret.ResolvedAt,
			ResolvedBy:     ret.ResolvedBy,
		})
	}
	for _, refund := range d.Refunds {
		order.Refunds = append(order.Refunds, domain.Refund(refund))
	}
	return order
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
