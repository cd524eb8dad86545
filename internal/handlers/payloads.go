package handlers

import (
	domain "github.com/termitepreston/wigvana/internal/domain"
	"github.com/termitepreston/wigvana/internal/services"
)

var knownOrderStatuses = []domain.OrderStatus{
	domain.OrderStatusPendingPayment,
	domain.OrderStatusProcessing,
	domain.OrderStatusShipped,
	domain.OrderStatusOutForDelivery,
	domain.OrderStatusDelivered,
	domain.OrderStatusCompleted,
	domain.OrderStatusCancelledByUser,
	domain.OrderStatusCancelledBySeller,
	domain.OrderStatusRefunded,
}

func orderStatusValues() []string {
	values := make([]string, 0, len(knownOrderStatuses))
	for _, status := range knownOrderStatuses {
		values = append(values, string(status))
	}
	return values
}

type cartResponse struct {
	Cart         cartPayload `json:"cart"`
	CartToken    string      `json:"cart_token,omitempty"`
	TokenExpires string      `json:"cart_token_expires_at,omitempty"`
}

type cartPayload struct {
	ID         string            `json:"id"`
	Status     string            `json:"status"`
	Currency   string            `json:"currency,omitempty"`
	Subtotal   int64             `json:"subtotal"`
	ItemsCount int               `json:"items_count"`
	Items      []cartItemPayload `json:"items"`
	Version    int64             `json:"version"`
	CreatedAt  string            `json:"created_at,omitempty"`
	UpdatedAt  string            `json:"updated_at,omitempty"`
}

type cartItemPayload struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	SellerID  string `json:"seller_id"`
	Title     string `json:"title"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	LineTotal int64  `json:"line_total"`
	Currency  string `json:"currency"`
	AddedAt   string `json:"added_at,omitempty"`
}

type cartMergeAdjustmentPayload struct {
	VariantID string `json:"variant_id"`
	Requested int    `json:"requested"`
	Applied   int    `json:"applied"`
	Reason    string `json:"reason"`
}

type cartMergeResponse struct {
	Cart        cartPayload                  `json:"cart"`
	Adjustments []cartMergeAdjustmentPayload `json:"adjustments"`
}

// buildCartPayload recomputes the summary from the current lines on every response.
func buildCartPayload(cart services.Cart) cartPayload {
	summary := cart.Summary()
	payload := cartPayload{
		ID:         cart.ID,
		Status:     string(cart.Status),
		Currency:   summary.Currency,
		Subtotal:   summary.Subtotal,
		ItemsCount: summary.ItemCount,
		Items:      make([]cartItemPayload, 0, len(cart.Lines)),
		Version:    cart.Version,
		CreatedAt:  formatTime(cart.CreatedAt),
		UpdatedAt:  formatTime(cart.UpdatedAt),
	}
	for _, line := range cart.Lines {
		payload.Items = append(payload.Items, cartItemPayload{
			ID:        line.ID,
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			SellerID:  line.SellerID,
			Title:     line.Title,
			SKU:       line.SKU,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: line.LineTotal(),
			Currency:  line.Currency,
			AddedAt:   formatTime(line.AddedAt),
		})
	}
	return payload
}

type orderListResponse struct {
	Items   []orderSummaryPayload `json:"items"`
	Page    int                   `json:"page"`
	Limit   int                   `json:"limit"`
	HasMore bool                  `json:"has_more"`
}

type orderSummaryPayload struct {
	ID            string `json:"id"`
	BuyerID       string `json:"buyer_id"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	Currency      string `json:"currency"`
	Total         int64  `json:"total"`
	ItemsCount    int    `json:"items_count"`
	CreatedAt     string `json:"created_at"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderTotalsPayload struct {
	Subtotal   int64 `json:"subtotal"`
	Tax        int64 `json:"tax"`
	Shipping   int64 `json:"shipping"`
	Total      int64 `json:"total"`
	Refunded   int64 `json:"refunded"`
	Refundable int64 `json:"refundable"`
}

type orderAddressPayload struct {
	ID         string `json:"id"`
	Recipient  string `json:"recipient,omitempty"`
	Company    string `json:"company,omitempty"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

type orderPaymentMethodPayload struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Brand    string `json:"brand,omitempty"`
	Last4    string `json:"last4,omitempty"`
}

type orderLinePayload struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	SellerID  string `json:"seller_id"`
	Title     string `json:"title"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	LineTotal int64  `json:"line_total"`
	Status    string `json:"status"`
}

type orderReturnPayload struct {
	ID          string `json:"id"`
	LineID      string `json:"line_id"`
	Quantity    int    `json:"quantity"`
	Reason      string `json:"reason,omitempty"`
	Status      string `json:"status"`
	RequestedAt string `json:"requested_at"`
	ResolvedAt  string `json:"resolved_at,omitempty"`
}

type orderRefundPayload struct {
	ID        string `json:"id"`
	Amount    int64  `json:"amount"`
	Reason    string `json:"reason,omitempty"`
	CreatedAt string `json:"created_at"`
}

type orderNotePayload struct {
	ActorID   string `json:"actor_id"`
	ActorRole string `json:"actor_role"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

type orderPayload struct {
	ID              string                     `json:"id"`
	BuyerID         string                     `json:"buyer_id"`
	CartID          string                     `json:"cart_id,omitempty"`
	Status          string                     `json:"status"`
	PaymentStatus   string                     `json:"payment_status"`
	Currency        string                     `json:"currency"`
	Totals          orderTotalsPayload         `json:"totals"`
	SellerSubtotal  *int64                     `json:"seller_subtotal,omitempty"`
	ShippingAddress *orderAddressPayload       `json:"shipping_address,omitempty"`
	BillingAddress  *orderAddressPayload       `json:"billing_address,omitempty"`
	PaymentMethod   *orderPaymentMethodPayload `json:"payment_method,omitempty"`
	ShippingMethod  string                     `json:"shipping_method,omitempty"`
	TrackingNumber  string                     `json:"tracking_number,omitempty"`
	Carrier         string                     `json:"carrier,omitempty"`
	Lines           []orderLinePayload         `json:"lines"`
	Returns         []orderReturnPayload       `json:"returns,omitempty"`
	Refunds         []orderRefundPayload       `json:"refunds,omitempty"`
	Notes           []orderNotePayload         `json:"notes,omitempty"`
	CancelReason    string                     `json:"cancel_reason,omitempty"`
	CreatedAt       string                     `json:"created_at"`
	UpdatedAt       string                     `json:"updated_at,omitempty"`
	ShippedAt       string                     `json:"shipped_at,omitempty"`
	DeliveredAt     string                     `json:"delivered_at,omitempty"`
	CompletedAt     string                     `json:"completed_at,omitempty"`
	CancelledAt     string                     `json:"cancelled_at,omitempty"`
}

func buildOrderSummary(order services.Order) orderSummaryPayload {
	items := 0
	for _, line := range order.Lines {
		items += line.Quantity
	}
	return orderSummaryPayload{
		ID:            order.ID,
		BuyerID:       order.BuyerID,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		Currency:      order.Currency,
		Total:         order.Totals.Total,
		ItemsCount:    items,
		CreatedAt:     formatTime(order.CreatedAt),
	}
}

func buildOrderList(page domain.Page[services.Order], summarize func(services.Order) orderSummaryPayload) orderListResponse {
	items := make([]orderSummaryPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, summarize(order))
	}
	return orderListResponse{Items: items, Page: page.Page, Limit: page.Limit, HasMore: page.HasMore}
}

// buildOrderPayload renders the full order. Notes are included only for administrators.
func buildOrderPayload(order services.Order, includeNotes bool) orderPayload {
	payload := orderPayload{
		ID:            order.ID,
		BuyerID:       order.BuyerID,
		CartID:        order.CartID,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		Currency:      order.Currency,
		Totals: orderTotalsPayload{
			Subtotal:   order.Totals.Subtotal,
			Tax:        order.Totals.Tax,
			Shipping:   order.Totals.Shipping,
			Total:      order.Totals.Total,
			Refunded:   order.Totals.Refunded,
			Refundable: order.Totals.Refundable(),
		},
		ShippingMethod: order.ShippingMethod,
		TrackingNumber: order.Tracking.Number,
		Carrier:        order.Tracking.Carrier,
		Lines:          make([]orderLinePayload, 0, len(order.Lines)),
		CancelReason:   order.CancelReason,
		CreatedAt:      formatTime(order.CreatedAt),
		UpdatedAt:      formatTime(order.UpdatedAt),
		ShippedAt:      formatTimePtr(order.ShippedAt),
		DeliveredAt:    formatTimePtr(order.DeliveredAt),
		CompletedAt:    formatTimePtr(order.CompletedAt),
		CancelledAt:    formatTimePtr(order.CancelledAt),
	}
	if order.ShippingAddress.ID != "" {
		addr := buildOrderAddress(order.ShippingAddress)
		payload.ShippingAddress = &addr
	}
	if order.BillingAddress.ID != "" {
		addr := buildOrderAddress(order.BillingAddress)
		payload.BillingAddress = &addr
	}
	if order.PaymentMethod.ID != "" {
		payload.PaymentMethod = &orderPaymentMethodPayload{
			ID:       order.PaymentMethod.ID,
			Provider: order.PaymentMethod.Provider,
			Brand:    order.PaymentMethod.Brand,
			Last4:    order.PaymentMethod.Last4,
		}
	}
	for _, line := range order.Lines {
		payload.Lines = append(payload.Lines, orderLinePayload{
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
		})
	}
	for _, ret := range order.Returns {
		payload.Returns = append(payload.Returns, orderReturnPayload{
			ID:          ret.ID,
			LineID:      ret.LineID,
			Quantity:    ret.Quantity,
			Reason:      ret.Reason,
			Status:      string(ret.Status),
			RequestedAt: formatTime(ret.RequestedAt),
			ResolvedAt:  formatTimePtr(ret.ResolvedAt),
		})
	}
	for _, refund := range order.Refunds {
		payload.Refunds = append(payload.Refunds, orderRefundPayload{
			ID:        refund.ID,
			Amount:    refund.Amount,
			Reason:    refund.Reason,
			CreatedAt: formatTime(refund.CreatedAt),
		})
	}
	if includeNotes {
		for _, note := range order.Notes {
			payload.Notes = append(payload.Notes, orderNotePayload{
				ActorID:   note.ActorID,
				ActorRole: note.ActorRole,
				Message:   note.Message,
				CreatedAt: formatTime(note.CreatedAt),
			})
		}
	}
	return payload
}

// buildSellerOrderPayload expects an order already restricted to the seller's lines and adds the
// seller's share of the subtotal.
func buildSellerOrderPayload(order services.Order) orderPayload {
	payload := buildOrderPayload(order, false)
	var subtotal int64
	for _, line := range order.Lines {
		subtotal += line.LineTotal
	}
	payload.SellerSubtotal = &subtotal
	return payload
}

func buildOrderAddress(addr domain.Address) orderAddressPayload {
	return orderAddressPayload{
		ID:         addr.ID,
		Recipient:  addr.Recipient,
		Company:    addr.Company,
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		City:       addr.City,
		State:      addr.State,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
		Phone:      addr.Phone,
	}
}
