package domain

import "time"

// OrderStatus enumerates order-level lifecycle states.
type OrderStatus string

const (
	OrderStatusPendingPayment    OrderStatus = "pending_payment"
	OrderStatusProcessing        OrderStatus = "processing"
	OrderStatusShipped           OrderStatus = "shipped"
	OrderStatusOutForDelivery    OrderStatus = "out_for_delivery"
	OrderStatusDelivered         OrderStatus = "delivered"
	OrderStatusCompleted         OrderStatus = "completed"
	OrderStatusCancelledByUser   OrderStatus = "cancelled_by_user"
	OrderStatusCancelledBySeller OrderStatus = "cancelled_by_seller"
	OrderStatusRefunded          OrderStatus = "refunded"
)

// ValidOrderStatus reports whether the status is a known order status.
func ValidOrderStatus(status OrderStatus) bool {
	switch status {
	case OrderStatusPendingPayment, OrderStatusProcessing, OrderStatusShipped, OrderStatusOutForDelivery,
		OrderStatusDelivered, OrderStatusCompleted, OrderStatusCancelledByUser, OrderStatusCancelledBySeller,
		OrderStatusRefunded:
		return true
	default:
		return false
	}
}

// LineStatus enumerates per-line fulfilment states driven by sellers and returns.
type LineStatus string

const (
	LineStatusProcessing      LineStatus = "processing"
	LineStatusShipped         LineStatus = "shipped"
	LineStatusOutForDelivery  LineStatus = "out_for_delivery"
	LineStatusDelivered       LineStatus = "delivered"
	LineStatusCompleted       LineStatus = "completed"
	LineStatusCancelled       LineStatus = "cancelled"
	LineStatusReturnRequested LineStatus = "return_requested"
	LineStatusReturned        LineStatus = "returned"
	LineStatusRefunded        LineStatus = "refunded"
)

// PaymentStatus tracks the simulated payment state of an order.
type PaymentStatus string

const (
	PaymentStatusAuthorized        PaymentStatus = "authorized"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusVoided            PaymentStatus = "voided"
)

// ReturnStatus tracks a buyer return request.
type ReturnStatus string

const (
	ReturnStatusRequested ReturnStatus = "requested"
	ReturnStatusApproved  ReturnStatus = "approved"
	ReturnStatusRejected  ReturnStatus = "rejected"
)

// OrderTotals are computed once at placement and adjusted only by refunds.
type OrderTotals struct {
	Subtotal int64
	Tax      int64
	Shipping int64
	Total    int64
	Refunded int64
}

// Refundable returns the amount that can still be refunded.
func (t OrderTotals) Refundable() int64 {
	remaining := t.Total - t.Refunded
	if remaining < 0 {
		return 0
	}
	return remaining
}

// OrderTracking carries shipment tracking details.
type OrderTracking struct {
	Number  string
	Carrier string
}

// OrderNote is an internal audit entry appended by state changes.
type OrderNote struct {
	ActorID   string
	ActorRole string
	Message   string
	CreatedAt time.Time
}

// OrderLine is a seller-scoped line created once per distinct variant at placement.
type OrderLine struct {
	ID        string
	ProductID string
	VariantID string
	SellerID  string
	Title     string
	SKU       string
	Quantity  int
	UnitPrice int64
	LineTotal int64
	Status    LineStatus
	UpdatedAt time.Time
}

// ReturnRequest records a buyer-initiated return for a single order line.
type ReturnRequest struct {
	ID             string
	LineID         string
	Quantity       int
	Reason         string
	Status         ReturnStatus
	PreviousStatus LineStatus
	RequestedAt    time.Time
	ResolvedAt     *time.Time
	ResolvedBy     string
}

// Refund records an administrator refund.
type Refund struct {
	ID        string
	Amount    int64
	Reason    string
	ActorID   string
	CreatedAt time.Time
}

// Order is the financial record produced by placement. Orders are never deleted.
type Order struct {
	ID              string
	BuyerID         string
	CartID          string
	Status          OrderStatus
	PaymentStatus   PaymentStatus
	Currency        string
	Totals          OrderTotals
	ShippingAddress Address
	BillingAddress  Address
	PaymentMethod   PaymentMethodSummary
	ShippingMethod  string
	Tracking        OrderTracking
	Lines           []OrderLine
	SellerIDs       []string
	Notes           []OrderNote
	Returns         []ReturnRequest
	Refunds         []Refund
	CancelReason    string
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CancelledAt     *time.Time
	ShippedAt       *time.Time
	DeliveredAt     *time.Time
	CompletedAt     *time.Time
}

// HasSeller reports whether any line belongs to the seller.
func (o Order) HasSeller(sellerID string) bool {
	for _, line := range o.Lines {
		if line.SellerID == sellerID {
			return true
		}
	}
	return false
}

// LineIndex returns the index of the line with the given id, or -1.
func (o Order) LineIndex(lineID string) int {
	for i, line := range o.Lines {
		if line.ID == lineID {
			return i
		}
	}
	return -1
}

// ReturnIndex returns the index of the return request with the given id, or -1.
func (o Order) ReturnIndex(returnID string) int {
	for i, ret := range o.Returns {
		if ret.ID == returnID {
			return i
		}
	}
	return -1
}

// SellerView returns a copy of the order restricted to the seller's lines.
func (o Order) SellerView(sellerID string) Order {
	view := o.Clone()
	lines := make([]OrderLine, 0, len(view.Lines))
	for _, line := range view.Lines {
		if line.SellerID == sellerID {
			lines = append(lines, line)
		}
	}
	view.Lines = lines
	view.SellerIDs = []string{sellerID}
	view.Notes = nil
	view.Refunds = nil
	view.PaymentMethod = PaymentMethodSummary{}
	view.BillingAddress = Address{}
	return view
}

// Clone returns a deep copy of the order.
func (o Order) Clone() Order {
	dup := o
	dup.Lines = append([]OrderLine(nil), o.Lines...)
	dup.SellerIDs = append([]string(nil), o.SellerIDs...)
	dup.Notes = append([]OrderNote(nil), o.Notes...)
	dup.Returns = append([]ReturnRequest(nil), o.Returns...)
	dup.Refunds = append([]Refund(nil), o.Refunds...)
	return dup
}
