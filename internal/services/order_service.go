package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/termitepreston/wigvana/internal/domain"
	"github.com/termitepreston/wigvana/internal/platform/textutil"
	"github.com/termitepreston/wigvana/internal/repositories"
)

const (
	returnIDPrefix = "ret_"
	refundIDPrefix = "rfd_"

	maxNoteLength     = 1000
	maxReasonLength   = 500
	maxTrackingLength = 120

	actorRoleBuyer  = "buyer"
	actorRoleSeller = "seller"
	actorRoleAdmin  = "admin"
)

var buyerCancellableStatuses = []OrderStatus{
	domain.OrderStatusPendingPayment,
	domain.OrderStatusProcessing,
}

var sellerTargetStatuses = []OrderStatus{
	domain.OrderStatusProcessing,
	domain.OrderStatusShipped,
	domain.OrderStatusOutForDelivery,
	domain.OrderStatusDelivered,
	domain.OrderStatusCancelledBySeller,
}

var terminalOrderStatuses = []OrderStatus{
	domain.OrderStatusCompleted,
	domain.OrderStatusCancelledByUser,
	domain.OrderStatusCancelledBySeller,
	domain.OrderStatusRefunded,
}

var returnableOrderStatuses = []OrderStatus{
	domain.OrderStatusDelivered,
	domain.OrderStatusCompleted,
}

// lineProgression ranks the fulfilment statuses a line moves through. Lines outside this table
// are no longer driven by sellers.
var lineProgression = map[domain.LineStatus]int{
	domain.LineStatusProcessing:     1,
	domain.LineStatusShipped:        2,
	domain.LineStatusOutForDelivery: 3,
	domain.LineStatusDelivered:      4,
	domain.LineStatusCompleted:      5,
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Inventory   InventoryService
	UnitOfWork  repositories.UnitOfWork
	Events      OrderEventPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders     repositories.OrderRepository
	inventory  InventoryService
	unitOfWork repositories.UnitOfWork
	events     eventPublisher
	clock      func() time.Time
	newID      func() string
	logger     func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Inventory == nil {
		return nil, errors.New("order service: inventory service is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:     deps.Orders,
		inventory:  deps.Inventory,
		unitOfWork: deps.UnitOfWork,
		events:     eventPublisher{events: deps.Events, logger: logger},
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *orderService) ListBuyerOrders(ctx context.Context, buyerID string, filter OrderListFilter) (domain.Page[Order], error) {
	buyerID = strings.TrimSpace(buyerID)
	if buyerID == "" {
		return domain.Page[Order]{}, badRequest("buyer id is required")
	}
	return s.list(ctx, repositories.OrderListFilter{BuyerID: buyerID}, filter)
}

func (s *orderService) GetBuyerOrder(ctx context.Context, buyerID string, orderID string) (Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if order.BuyerID != strings.TrimSpace(buyerID) {
		return Order{}, notFound("order %s", orderID)
	}
	return order, nil
}

func (s *orderService) ListSellerOrders(ctx context.Context, sellerID string, filter OrderListFilter) (domain.Page[Order], error) {
	sellerID = strings.TrimSpace(sellerID)
	if sellerID == "" {
		return domain.Page[Order]{}, ErrForbidden
	}
	page, err := s.list(ctx, repositories.OrderListFilter{SellerID: sellerID}, filter)
	if err != nil {
		return domain.Page[Order]{}, err
	}
	for i := range page.Items {
		page.Items[i] = page.Items[i].SellerView(sellerID)
	}
	return page, nil
}

func (s *orderService) GetSellerOrder(ctx context.Context, sellerID string, orderID string) (Order, error) {
	sellerID = strings.TrimSpace(sellerID)
	if sellerID == "" {
		return Order{}, ErrForbidden
	}
	order, err := s.load(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if !order.HasSeller(sellerID) {
		return Order{}, notFound("order %s", orderID)
	}
	return order.SellerView(sellerID), nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.Page[Order], error) {
	return s.list(ctx, repositories.OrderListFilter{}, filter)
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	return s.load(ctx, orderID)
}

// Cancel moves a buyer's unshipped order to cancelled_by_user and restores the stock of every line.
func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	buyerID := strings.TrimSpace(cmd.BuyerID)
	if buyerID == "" {
		return Order{}, badRequest("buyer id is required")
	}
	reason := textutil.SanitizeText(cmd.Reason, maxReasonLength)

	saved, previous, err := s.mutate(ctx, cmd.OrderID, func(order *Order, now time.Time) ([]StockLine, error) {
		if order.BuyerID != buyerID {
			return nil, notFound("order %s", order.ID)
		}
		if !slices.Contains(buyerCancellableStatuses, order.Status) {
			return nil, badRequest("order in status %s cannot be cancelled", order.Status)
		}
		release := make([]StockLine, 0, len(order.Lines))
		for _, line := range order.Lines {
			switch line.Status {
			case domain.LineStatusCancelled:
				continue
			case domain.LineStatusProcessing:
			default:
				return nil, badRequest("line %s is already %s", line.ID, line.Status)
			}
			release = append(release, StockLine{VariantID: line.VariantID, Quantity: line.Quantity})
		}
		for i := range order.Lines {
			setLineStatus(&order.Lines[i], domain.LineStatusCancelled, now)
		}
		order.Status = domain.OrderStatusCancelledByUser
		order.CancelReason = reason
		voidPayment(order)
		stampStatus(order, now)
		appendNote(order, buyerID, actorRoleBuyer, withDetail("order cancelled by buyer", reason), now)
		return release, nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishStatus(ctx, OrderEventCancelled, saved, previous, buyerID, actorRoleBuyer)
	return saved, nil
}

// SellerTransition moves the seller's active lines in lockstep. The order-level status follows the
// last seller to act, except that a seller cancellation only cancels the order once no line remains
// active.
func (s *orderService) SellerTransition(ctx context.Context, cmd SellerTransitionCommand) (Order, error) {
	sellerID := strings.TrimSpace(cmd.SellerID)
	if sellerID == "" {
		return Order{}, ErrForbidden
	}
	target := OrderStatus(strings.ToLower(strings.TrimSpace(string(cmd.Status))))
	if !slices.Contains(sellerTargetStatuses, target) {
		return Order{}, badRequest("sellers cannot move an order to %q", cmd.Status)
	}
	tracking := textutil.SanitizeText(cmd.TrackingNumber, maxTrackingLength)
	carrier := textutil.SanitizeText(cmd.Carrier, maxTrackingLength)
	if target == domain.OrderStatusShipped && tracking == "" {
		return Order{}, badRequest("tracking number is required to mark an order shipped")
	}
	note := textutil.SanitizeText(cmd.Note, maxNoteLength)

	saved, previous, err := s.mutate(ctx, cmd.OrderID, func(order *Order, now time.Time) ([]StockLine, error) {
		if !order.HasSeller(sellerID) {
			return nil, fmt.Errorf("%w: order %s has no lines for seller", ErrForbidden, order.ID)
		}
		if slices.Contains(terminalOrderStatuses, order.Status) {
			return nil, badRequest("order in status %s can no longer change", order.Status)
		}

		active := make([]int, 0, len(order.Lines))
		for i, line := range order.Lines {
			if line.SellerID != sellerID {
				continue
			}
			if _, ok := lineProgression[line.Status]; ok && line.Status != domain.LineStatusCompleted {
				active = append(active, i)
			}
		}
		if len(active) == 0 {
			return nil, badRequest("order has no active lines for seller")
		}

		if target == domain.OrderStatusCancelledBySeller {
			release := make([]StockLine, 0, len(active))
			for _, i := range active {
				line := order.Lines[i]
				if line.Status != domain.LineStatusProcessing {
					return nil, badRequest("line %s is already %s", line.ID, line.Status)
				}
				release = append(release, StockLine{VariantID: line.VariantID, Quantity: line.Quantity})
			}
			for _, i := range active {
				setLineStatus(&order.Lines[i], domain.LineStatusCancelled, now)
			}
			if !hasOpenLines(*order) {
				order.Status = domain.OrderStatusCancelledBySeller
				voidPayment(order)
				stampStatus(order, now)
			}
			order.UpdatedAt = now
			appendNote(order, sellerID, actorRoleSeller, withDetail("seller cancelled their lines", note), now)
			return release, nil
		}

		lineTarget := domain.LineStatus(target)
		targetRank := lineProgression[lineTarget]
		for _, i := range active {
			line := order.Lines[i]
			if lineProgression[line.Status] > targetRank {
				return nil, badRequest("line %s is already %s and cannot move back to %s", line.ID, line.Status, lineTarget)
			}
		}
		for _, i := range active {
			setLineStatus(&order.Lines[i], lineTarget, now)
		}
		if tracking != "" {
			order.Tracking = domain.OrderTracking{Number: tracking, Carrier: carrier}
		}
		order.Status = target
		stampStatus(order, now)
		appendNote(order, sellerID, actorRoleSeller, withDetail(fmt.Sprintf("seller moved lines to %s", target), note), now)
		return nil, nil
	})
	if err != nil {
		return Order{}, err
	}

	eventType := OrderEventStatusChanged
	if saved.Status == domain.OrderStatusCancelledBySeller {
		eventType = OrderEventCancelled
	}
	s.publishStatus(ctx, eventType, saved, previous, sellerID, actorRoleSeller)
	return saved.SellerView(sellerID), nil
}

// AdminTransition overrides the order status. Cancellation restores stock for undelivered lines;
// fulfilment targets are mirrored onto every line still in fulfilment.
func (s *orderService) AdminTransition(ctx context.Context, cmd AdminTransitionCommand) (Order, error) {
	actorID := strings.TrimSpace(cmd.ActorID)
	target := OrderStatus(strings.ToLower(strings.TrimSpace(string(cmd.Status))))
	if !domain.ValidOrderStatus(target) {
		return Order{}, badRequest("unknown order status %q", cmd.Status)
	}
	tracking := textutil.SanitizeText(cmd.TrackingNumber, maxTrackingLength)
	carrier := textutil.SanitizeText(cmd.Carrier, maxTrackingLength)
	note := textutil.SanitizeText(cmd.Note, maxNoteLength)

	saved, previous, err := s.mutate(ctx, cmd.OrderID, func(order *Order, now time.Time) ([]StockLine, error) {
		var release []StockLine
		switch target {
		case domain.OrderStatusCancelledByUser, domain.OrderStatusCancelledBySeller:
			for i, line := range order.Lines {
				switch line.Status {
				case domain.LineStatusProcessing, domain.LineStatusShipped, domain.LineStatusOutForDelivery:
					release = append(release, StockLine{VariantID: line.VariantID, Quantity: line.Quantity})
					setLineStatus(&order.Lines[i], domain.LineStatusCancelled, now)
				}
			}
			voidPayment(order)
		case domain.OrderStatusProcessing, domain.OrderStatusShipped, domain.OrderStatusOutForDelivery,
			domain.OrderStatusDelivered, domain.OrderStatusCompleted:
			for i, line := range order.Lines {
				if _, ok := lineProgression[line.Status]; ok {
					setLineStatus(&order.Lines[i], domain.LineStatus(target), now)
				}
			}
		}
		if tracking != "" {
			order.Tracking = domain.OrderTracking{Number: tracking, Carrier: carrier}
		}
		message := fmt.Sprintf("admin override %s -> %s", order.Status, target)
		order.Status = target
		stampStatus(order, now)
		appendNote(order, actorID, actorRoleAdmin, withDetail(message, note), now)
		return release, nil
	})
	if err != nil {
		return Order{}, err
	}

	eventType := OrderEventStatusChanged
	if target == domain.OrderStatusCancelledByUser || target == domain.OrderStatusCancelledBySeller {
		eventType = OrderEventCancelled
	}
	s.publishStatus(ctx, eventType, saved, previous, actorID, actorRoleAdmin)
	return saved, nil
}

// Refund records a refund of at most the remaining refundable amount.
func (s *orderService) Refund(ctx context.Context, cmd RefundOrderCommand) (Order, error) {
	actorID := strings.TrimSpace(cmd.ActorID)
	if cmd.Amount <= 0 {
		return Order{}, badRequest("refund amount must be positive")
	}
	reason := textutil.SanitizeText(cmd.Reason, maxReasonLength)

	var refund domain.Refund
	saved, previous, err := s.mutate(ctx, cmd.OrderID, func(order *Order, now time.Time) ([]StockLine, error) {
		if order.PaymentStatus == domain.PaymentStatusVoided {
			return nil, badRequest("payment for order %s was voided", order.ID)
		}
		if refundable := order.Totals.Refundable(); cmd.Amount > refundable {
			return nil, badRequest("refund amount %d exceeds refundable amount %d", cmd.Amount, refundable)
		}
		for _, lineID := range cmd.LineIDs {
			idx := order.LineIndex(strings.TrimSpace(lineID))
			if idx < 0 {
				return nil, notFound("order line %s", lineID)
			}
			setLineStatus(&order.Lines[idx], domain.LineStatusRefunded, now)
		}

		order.Totals.Refunded += cmd.Amount
		if order.Totals.Refundable() == 0 {
			order.PaymentStatus = domain.PaymentStatusRefunded
			order.Status = domain.OrderStatusRefunded
		} else {
			order.PaymentStatus = domain.PaymentStatusPartiallyRefunded
		}
		refund = domain.Refund{
			ID:        refundIDPrefix + s.newID(),
			Amount:    cmd.Amount,
			Reason:    reason,
			ActorID:   actorID,
			CreatedAt: now,
		}
		order.Refunds = append(order.Refunds, refund)
		order.UpdatedAt = now
		message := fmt.Sprintf("refunded %s", domain.FormatAmount(cmd.Amount, order.Currency))
		appendNote(order, actorID, actorRoleAdmin, withDetail(message, reason), now)
		return nil, nil
	})
	if err != nil {
		return Order{}, err
	}

	s.events.publish(ctx, OrderEvent{
		Type:           OrderEventRefunded,
		OrderID:        saved.ID,
		BuyerID:        saved.BuyerID,
		SellerIDs:      append([]string(nil), saved.SellerIDs...),
		ActorID:        actorID,
		ActorRole:      actorRoleAdmin,
		PreviousStatus: string(previous),
		Status:         string(saved.Status),
		Amount:         refund.Amount,
		Currency:       saved.Currency,
		OccurredAt:     refund.CreatedAt,
		Metadata:       map[string]any{"refund_id": refund.ID},
	})
	return saved, nil
}

// RequestReturn opens a return request for one delivered line.
func (s *orderService) RequestReturn(ctx context.Context, cmd RequestReturnCommand) (Order, error) {
	buyerID := strings.TrimSpace(cmd.BuyerID)
	lineID := strings.TrimSpace(cmd.LineID)
	if buyerID == "" {
		return Order{}, badRequest("buyer id is required")
	}
	if lineID == "" {
		return Order{}, badRequest("line id is required")
	}
	if cmd.Quantity < 1 {
		return Order{}, badRequest("return quantity must be at least 1")
	}
	reason := textutil.SanitizeText(cmd.Reason, maxReasonLength)

	var request ReturnRequest
	saved, previous, err := s.mutate(ctx, cmd.OrderID, func(order *Order, now time.Time) ([]StockLine, error) {
		if order.BuyerID != buyerID {
			return nil, notFound("order %s", order.ID)
		}
		if !slices.Contains(returnableOrderStatuses, order.Status) {
			return nil, badRequest("returns require a delivered or completed order, got %s", order.Status)
		}
		idx := order.LineIndex(lineID)
		if idx < 0 {
			return nil, notFound("order line %s", lineID)
		}
		line := order.Lines[idx]
		switch line.Status {
		case domain.LineStatusReturnRequested, domain.LineStatusReturned, domain.LineStatusRefunded:
			return nil, conflict("line %s is already %s", line.ID, line.Status)
		case domain.LineStatusCancelled:
			return nil, badRequest("line %s was cancelled", line.ID)
		}
		if cmd.Quantity > line.Quantity {
			return nil, badRequest("return quantity %d exceeds ordered quantity %d", cmd.Quantity, line.Quantity)
		}

		request = ReturnRequest{
			ID:             returnIDPrefix + s.newID(),
			LineID:         line.ID,
			Quantity:       cmd.Quantity,
			Reason:         reason,
			Status:         domain.ReturnStatusRequested,
			PreviousStatus: line.Status,
			RequestedAt:    now,
		}
		order.Returns = append(order.Returns, request)
		setLineStatus(&order.Lines[idx], domain.LineStatusReturnRequested, now)
		order.UpdatedAt = now
		appendNote(order, buyerID, actorRoleBuyer, withDetail(fmt.Sprintf("return requested for %d x %s", cmd.Quantity, line.SKU), reason), now)
		return nil, nil
	})
	if err != nil {
		return Order{}, err
	}

	s.events.publish(ctx, OrderEvent{
		Type:           OrderEventReturnRequested,
		OrderID:        saved.ID,
		BuyerID:        saved.BuyerID,
		SellerIDs:      append([]string(nil), saved.SellerIDs...),
		ActorID:        buyerID,
		ActorRole:      actorRoleBuyer,
		PreviousStatus: string(previous),
		Status:         string(saved.Status),
		OccurredAt:     request.RequestedAt,
		Metadata:       map[string]any{"return_id": request.ID, "line_id": request.LineID, "quantity": request.Quantity},
	})
	return saved, nil
}

// ResolveReturn approves or rejects a pending return. Approval restocks the returned quantity;
// rejection restores the line's previous status.
func (s *orderService) ResolveReturn(ctx context.Context, cmd ResolveReturnCommand) (Order, error) {
	actorID := strings.TrimSpace(cmd.ActorID)
	returnID := strings.TrimSpace(cmd.ReturnID)
	decision := ReturnDecision(strings.ToLower(strings.TrimSpace(string(cmd.Decision))))
	if decision != ReturnDecisionApprove && decision != ReturnDecisionReject {
		return Order{}, badRequest("decision must be approve or reject")
	}
	note := textutil.SanitizeText(cmd.Note, maxNoteLength)

	var resolved ReturnRequest
	saved, previous, err := s.mutate(ctx, cmd.OrderID, func(order *Order, now time.Time) ([]StockLine, error) {
		ri := order.ReturnIndex(returnID)
		if ri < 0 {
			return nil, notFound("return %s", returnID)
		}
		ret := &order.Returns[ri]
		if ret.Status != domain.ReturnStatusRequested {
			return nil, conflict("return %s is already %s", ret.ID, ret.Status)
		}
		li := order.LineIndex(ret.LineID)
		if li < 0 {
			return nil, notFound("order line %s", ret.LineID)
		}

		var release []StockLine
		resolvedAt := now
		ret.ResolvedAt = &resolvedAt
		ret.ResolvedBy = actorID
		if decision == ReturnDecisionApprove {
			ret.Status = domain.ReturnStatusApproved
			setLineStatus(&order.Lines[li], domain.LineStatusReturned, now)
			release = []StockLine{{VariantID: order.Lines[li].VariantID, Quantity: ret.Quantity}}
		} else {
			ret.Status = domain.ReturnStatusRejected
			setLineStatus(&order.Lines[li], ret.PreviousStatus, now)
		}
		resolved = *ret
		order.UpdatedAt = now
		appendNote(order, actorID, actorRoleAdmin, withDetail(fmt.Sprintf("return %s %s", ret.ID, ret.Status), note), now)
		return release, nil
	})
	if err != nil {
		return Order{}, err
	}

	s.events.publish(ctx, OrderEvent{
		Type:           OrderEventReturnResolved,
		OrderID:        saved.ID,
		BuyerID:        saved.BuyerID,
		SellerIDs:      append([]string(nil), saved.SellerIDs...),
		ActorID:        actorID,
		ActorRole:      actorRoleAdmin,
		PreviousStatus: string(previous),
		Status:         string(saved.Status),
		OccurredAt:     saved.UpdatedAt,
		Metadata: map[string]any{
			"return_id": resolved.ID,
			"line_id":   resolved.LineID,
			"decision":  string(resolved.Status),
		},
	})
	return saved, nil
}

// mutate loads the order, applies fn, releases the returned stock and saves, all in one unit of
// work. It returns the saved order and the status it had before fn ran.
func (s *orderService) mutate(ctx context.Context, orderID string, fn func(order *Order, now time.Time) ([]StockLine, error)) (Order, OrderStatus, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return Order{}, "", badRequest("order id is required")
	}

	var (
		saved    Order
		previous OrderStatus
	)
	err := s.runInTx(ctx, func(ctx context.Context) error {
		order, err := s.orders.FindByID(ctx, id)
		if err != nil {
			return lookupError(err, "order %s", id)
		}
		previous = order.Status

		release, err := fn(&order, s.clock())
		if err != nil {
			return err
		}
		if err := s.inventory.ReleaseAll(ctx, release); err != nil {
			return err
		}
		updated, err := s.orders.Update(ctx, order)
		if err != nil {
			return err
		}
		saved = updated
		return nil
	})
	if err != nil {
		return Order{}, "", translateRepoError(err)
	}
	return saved, previous, nil
}

func (s *orderService) load(ctx context.Context, orderID string) (Order, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return Order{}, badRequest("order id is required")
	}
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return Order{}, translateRepoError(lookupError(err, "order %s", id))
	}
	return order, nil
}

func (s *orderService) list(ctx context.Context, scope repositories.OrderListFilter, filter OrderListFilter) (domain.Page[Order], error) {
	for _, status := range filter.Statuses {
		if !domain.ValidOrderStatus(status) {
			return domain.Page[Order]{}, badRequest("unknown order status %q", status)
		}
	}
	scope.Statuses = append([]OrderStatus(nil), filter.Statuses...)
	scope.Pagination = filter.Pagination.Normalize()
	page, err := s.orders.List(ctx, scope)
	if err != nil {
		return domain.Page[Order]{}, translateRepoError(err)
	}
	return page, nil
}

func (s *orderService) publishStatus(ctx context.Context, eventType OrderEventType, order Order, previous OrderStatus, actorID, role string) {
	s.events.publish(ctx, OrderEvent{
		Type:           eventType,
		OrderID:        order.ID,
		BuyerID:        order.BuyerID,
		SellerIDs:      append([]string(nil), order.SellerIDs...),
		ActorID:        actorID,
		ActorRole:      role,
		PreviousStatus: string(previous),
		Status:         string(order.Status),
		Currency:       order.Currency,
		OccurredAt:     order.UpdatedAt,
	})
	s.logger(ctx, "order.status.changed", map[string]any{
		"order":    order.ID,
		"from":     string(previous),
		"to":       string(order.Status),
		"actor":    actorID,
		"role":     role,
		"sellerID": strings.Join(order.SellerIDs, ","),
	})
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func setLineStatus(line *OrderLine, status domain.LineStatus, now time.Time) {
	if line.Status == status {
		return
	}
	line.Status = status
	line.UpdatedAt = now
}

// hasOpenLines reports whether any line is still in fulfilment.
func hasOpenLines(order Order) bool {
	for _, line := range order.Lines {
		if _, ok := lineProgression[line.Status]; ok {
			return true
		}
	}
	return false
}

func voidPayment(order *Order) {
	if order.PaymentStatus == domain.PaymentStatusAuthorized {
		order.PaymentStatus = domain.PaymentStatusVoided
	}
}

func stampStatus(order *Order, now time.Time) {
	order.UpdatedAt = now
	switch order.Status {
	case domain.OrderStatusShipped:
		if order.ShippedAt == nil {
			order.ShippedAt = &now
		}
	case domain.OrderStatusDelivered:
		if order.DeliveredAt == nil {
			order.DeliveredAt = &now
		}
	case domain.OrderStatusCompleted:
		if order.CompletedAt == nil {
			order.CompletedAt = &now
		}
	case domain.OrderStatusCancelledByUser, domain.OrderStatusCancelledBySeller:
		if order.CancelledAt == nil {
			order.CancelledAt = &now
		}
	}
}

func appendNote(order *Order, actorID, role, message string, now time.Time) {
	order.Notes = append(order.Notes, domain.OrderNote{
		ActorID:   actorID,
		ActorRole: role,
		Message:   message,
		CreatedAt: now,
	})
}

func withDetail(message, detail string) string {
	if detail == "" {
		return message
	}
	return message + ": " + detail
}
