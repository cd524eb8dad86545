package services

import (
	"context"
	"errors"
	"slices"
	"testing"

	domain "github.com/termitepreston/wigvana/internal/domain"
)

func TestOrderServiceBuyerCancelRestoresStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t, map[string]int{"var-a": 2, "var-b": 1})
	if f.store.Stock("var-a") != 8 || f.store.Stock("var-b") != 2 {
		t.Fatalf("unexpected stock after placement")
	}

	cancelled, err := f.orders.Cancel(ctx, CancelOrderCommand{BuyerID: testBuyer, OrderID: order.ID, Reason: "<b>changed</b> my mind"})
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelledByUser || cancelled.CancelledAt == nil {
		t.Fatalf("unexpected order %#v", cancelled)
	}
	if cancelled.CancelReason != "changed my mind" {
		t.Fatalf("expected sanitised reason, got %q", cancelled.CancelReason)
	}
	if cancelled.PaymentStatus != domain.PaymentStatusVoided {
		t.Fatalf("expected voided payment, got %s", cancelled.PaymentStatus)
	}
	for _, line := range cancelled.Lines {
		if line.Status != domain.LineStatusCancelled {
			t.Fatalf("expected cancelled line, got %s", line.Status)
		}
	}
	if f.store.Stock("var-a") != 10 || f.store.Stock("var-b") != 3 {
		t.Fatalf("expected stock restored, got a=%d b=%d", f.store.Stock("var-a"), f.store.Stock("var-b"))
	}
	if f.events.last().Type != OrderEventCancelled {
		t.Fatalf("expected cancellation event, got %v", f.events.types())
	}

	_, err = f.orders.Cancel(ctx, CancelOrderCommand{BuyerID: testBuyer, OrderID: order.ID})
	expectErr(t, err, ErrBadRequest)
	if f.store.Stock("var-a") != 10 {
		t.Fatalf("second cancel must not release stock again")
	}
}

func TestOrderServiceCancelRejectsForeignAndShippedOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t, map[string]int{"var-a": 1})

	_, err := f.orders.Cancel(ctx, CancelOrderCommand{BuyerID: "buyer-2", OrderID: order.ID})
	expectErr(t, err, ErrNotFound)

	if _, err := f.orders.SellerTransition(ctx, SellerTransitionCommand{
		SellerID: testSellerA, OrderID: order.ID, Status: domain.OrderStatusShipped, TrackingNumber: "TRACK123",
	}); err != nil {
		t.Fatalf("SellerTransition: %v", err)
	}
	_, err = f.orders.Cancel(ctx, CancelOrderCommand{BuyerID: testBuyer, OrderID: order.ID})
	expectErr(t, err, ErrBadRequest)
}

func TestOrderServiceSellerShipRequiresTracking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t, map[string]int{"var-a": 1, "var-b": 1})

	_, err := f.orders.SellerTransition(ctx, SellerTransitionCommand{
		SellerID: testSellerA, OrderID: order.ID, Status: domain.OrderStatusShipped,
	})
	expectErr(t, err, ErrBadRequest)

	view, err := f.orders.SellerTransition(ctx, SellerTransitionCommand{
		SellerID: testSellerA, OrderID: order.ID, Status: domain.OrderStatusShipped, TrackingNumber: "TRACK123", Carrier: "UPS",
	})
	if err != nil {
		t.Fatalf("SellerTransition: %v", err)
	}
	if view.Status != domain.OrderStatusShipped || view.Tracking.Number != "TRACK123" {
		t.Fatalf("unexpected view %#v", view)
	}
	if len(view.Lines) != 1 || view.Lines[0].SellerID != testSellerA {
		t.Fatalf("seller view must only contain the seller's lines, got %#v", view.Lines)
	}

	full, err := f.orders.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if lineFor(t, full, "var-a").Status != domain.LineStatusShipped {
		t.Fatalf("expected seller line shipped")
	}
	if lineFor(t, full, "var-b").Status != domain.LineStatusProcessing {
		t.Fatalf("other seller's line must be untouched")
	}
	if full.ShippedAt == nil || len(full.Notes) == 0 {
		t.Fatalf("expected shipped timestamp and audit note")
	}
}

func TestOrderServiceSellerScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t, map[string]int{"var-a": 1})

	_, err := f.orders.SellerTransition(ctx, SellerTransitionCommand{
		SellerID: testSellerB, OrderID: order.ID, Status: domain.OrderStatusProcessing,
	})
	expectErr(t, err, ErrForbidden)

	_, err = f.orders.GetSellerOrder(ctx, testSellerB, order.ID)
	expectErr(t, err, ErrNotFound)

	page, err := f.orders.ListSellerOrders(ctx, testSellerA, OrderListFilter{})
	if err != nil {
		t.Fatalf("ListSellerOrders: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != order.ID {
		t.Fatalf("unexpected seller listing %#v", page.Items)
	}

	empty, err := f.orders.ListSellerOrders(ctx, testSellerB, OrderListFilter{})
	if err != nil {
		t.Fatalf("ListSellerOrders: %v", err)
	}
	if len(empty.Items) != 0 {
		t.Fatalf("expected no orders for seller b, got %d", len(empty.Items))
	}

	_, err = f.orders.SellerTransition(ctx, SellerTransitionCommand{
		SellerID: testSellerA, OrderID: order.ID, Status: domain.OrderStatusCompleted,
	})
	expectErr(t, err, ErrBadRequest)
}

func TestOrderServiceSellerCannotMoveLinesBackwards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t, map[string]int{"var-a": 1})

	for _, status := range []OrderStatus{domain.OrderStatusShipped, domain.OrderStatusOutForDelivery, domain.OrderStatusDelivered} {
		if _, err := f.orders.SellerTransition(ctx, SellerTransitionCommand{
			SellerID: testSellerA, OrderID: order.ID, Status: status, TrackingNumber: "TRACK123",
		}); err != nil {
			t.Fatalf("SellerTransition %s: %v", status, err)
		}
	}

	_, err := f.orders.SellerTransition(ctx, SellerTransitionCommand{
		SellerID: testSellerA, OrderID: order.ID, Status: domain.OrderStatusProcessing,
	})
	expectErr(t, err, ErrBadRequest)

	_, err = f.orders.SellerTransition(ctx, SellerTransitionCommand{
		SellerID: testSellerA, OrderID: order.ID, Status: domain.OrderStatusCancelledBySeller,
	})
	expectErr(t, err, ErrBadRequest)
}

func TestOrderServiceSellerCancellationReleasesOwnLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t, map[string]int{"var-a": 2, "var-b": 1})

	if _, err := f.orders.SellerTransition(ctx, SellerTransitionCommand{
		SellerID: testSellerB, OrderID: order.ID, Status: domain.OrderStatusCancelledBySeller,
	}); err != nil {
		t.Fatalf("SellerTransition: %v", err)
	}
	if f.store.Stock("var-b") != 3 || f.store.Stock("var-a") != 8 {
		t.Fatalf("expected only seller b stock restored, got a=%d b=%d", f.store.Stock("var-a"), f.store.Stock("var-b"))
	}
	partial, err := f.orders.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if partial.Status != domain.OrderStatusProcessing {
		t.Fatalf("order with open lines must stay processing, got %s", partial.Status)
	}

	if _, err := f.orders.SellerTransition(ctx, SellerTransitionCommand{
		SellerID: testSellerA, OrderID: order.ID, Status: domain.OrderStatusCancelledBySeller,
	}); err != nil {
		t.Fatalf("SellerTransition: %v", err)
	}
	final, err := f.orders.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if final.Status != domain.OrderStatusCancelledBySeller || f.store.Stock("var-a") != 10 {
		t.Fatalf("expected fully cancelled order and restored stock, got %s a=%d", final.Status, f.store.Stock("var-a"))
	}
}

func TestOrderServiceAdminTransitionAndRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t, map[string]int{"var-a": 2})

	overridden, err := f.orders.AdminTransition(ctx, AdminTransitionCommand{
		ActorID: "admin-1", OrderID: order.ID, Status: domain.OrderStatusDelivered, Note: "carrier confirmed",
	})
	if err != nil {
		t.Fatalf("AdminTransition: %v", err)
	}
	if overridden.Status != domain.OrderStatusDelivered || overridden.Lines[0].Status != domain.LineStatusDelivered {
		t.Fatalf("unexpected override result %#v", overridden)
	}
	note := overridden.Notes[len(overridden.Notes)-1]
	if note.ActorRole != "admin" || note.Message != "admin override processing -> delivered: carrier confirmed" {
		t.Fatalf("unexpected audit note %#v", note)
	}

	_, err = f.orders.AdminTransition(ctx, AdminTransitionCommand{ActorID: "admin-1", OrderID: order.ID, Status: "lost"})
	expectErr(t, err, ErrBadRequest)

	_, err = f.orders.Refund(ctx, RefundOrderCommand{ActorID: "admin-1", OrderID: order.ID, Amount: 0})
	expectErr(t, err, ErrBadRequest)
	_, err = f.orders.Refund(ctx, RefundOrderCommand{ActorID: "admin-1", OrderID: order.ID, Amount: 21901})
	expectErr(t, err, ErrBadRequest)

	partial, err := f.orders.Refund(ctx, RefundOrderCommand{ActorID: "admin-1", OrderID: order.ID, Amount: 1900, Reason: "late"})
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if partial.Totals.Refunded != 1900 || partial.PaymentStatus != domain.PaymentStatusPartiallyRefunded {
		t.Fatalf("unexpected partial refund %#v", partial.Totals)
	}
	if partial.Status != domain.OrderStatusDelivered || len(partial.Refunds) != 1 {
		t.Fatalf("partial refund must not change status, got %s", partial.Status)
	}

	full, err := f.orders.Refund(ctx, RefundOrderCommand{ActorID: "admin-1", OrderID: order.ID, Amount: 20000})
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if full.Status != domain.OrderStatusRefunded || full.PaymentStatus != domain.PaymentStatusRefunded || full.Totals.Refundable() != 0 {
		t.Fatalf("unexpected full refund %#v", full)
	}
	if got := f.events.last(); got.Type != OrderEventRefunded || got.Amount != 20000 {
		t.Fatalf("unexpected event %#v", got)
	}

	_, err = f.orders.Refund(ctx, RefundOrderCommand{ActorID: "admin-1", OrderID: order.ID, Amount: 1})
	expectErr(t, err, ErrBadRequest)
}

func TestOrderServiceAdminCancellationReleasesUndeliveredLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t, map[string]int{"var-a": 3})

	cancelled, err := f.orders.AdminTransition(ctx, AdminTransitionCommand{
		ActorID: "admin-1", OrderID: order.ID, Status: domain.OrderStatusCancelledBySeller,
	})
	if err != nil {
		t.Fatalf("AdminTransition: %v", err)
	}
	if cancelled.Lines[0].Status != domain.LineStatusCancelled || f.store.Stock("var-a") != 10 {
		t.Fatalf("expected released stock, got %d", f.store.Stock("var-a"))
	}
}

func TestOrderServiceReturns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t, map[string]int{"var-a": 2})
	lineID := order.Lines[0].ID

	_, err := f.orders.RequestReturn(ctx, RequestReturnCommand{BuyerID: testBuyer, OrderID: order.ID, LineID: lineID, Quantity: 1})
	expectErr(t, err, ErrBadRequest)

	if _, err := f.orders.AdminTransition(ctx, AdminTransitionCommand{ActorID: "admin-1", OrderID: order.ID, Status: domain.OrderStatusDelivered}); err != nil {
		t.Fatalf("AdminTransition: %v", err)
	}

	_, err = f.orders.RequestReturn(ctx, RequestReturnCommand{BuyerID: testBuyer, OrderID: order.ID, LineID: lineID, Quantity: 3})
	expectErr(t, err, ErrBadRequest)
	_, err = f.orders.RequestReturn(ctx, RequestReturnCommand{BuyerID: "buyer-2", OrderID: order.ID, LineID: lineID, Quantity: 1})
	expectErr(t, err, ErrNotFound)
	_, err = f.orders.RequestReturn(ctx, RequestReturnCommand{BuyerID: testBuyer, OrderID: order.ID, LineID: "oln_missing", Quantity: 1})
	expectErr(t, err, ErrNotFound)

	requested, err := f.orders.RequestReturn(ctx, RequestReturnCommand{BuyerID: testBuyer, OrderID: order.ID, LineID: lineID, Quantity: 2, Reason: "wrong colour"})
	if err != nil {
		t.Fatalf("RequestReturn: %v", err)
	}
	if len(requested.Returns) != 1 || requested.Returns[0].Status != domain.ReturnStatusRequested {
		t.Fatalf("unexpected returns %#v", requested.Returns)
	}
	if requested.Lines[0].Status != domain.LineStatusReturnRequested {
		t.Fatalf("expected line return_requested, got %s", requested.Lines[0].Status)
	}

	_, err = f.orders.RequestReturn(ctx, RequestReturnCommand{BuyerID: testBuyer, OrderID: order.ID, LineID: lineID, Quantity: 1})
	expectErr(t, err, ErrConflict)

	returnID := requested.Returns[0].ID
	approved, err := f.orders.ResolveReturn(ctx, ResolveReturnCommand{ActorID: "admin-1", OrderID: order.ID, ReturnID: returnID, Decision: ReturnDecisionApprove})
	if err != nil {
		t.Fatalf("ResolveReturn: %v", err)
	}
	if approved.Lines[0].Status != domain.LineStatusReturned || approved.Returns[0].ResolvedAt == nil {
		t.Fatalf("unexpected resolution %#v", approved.Returns[0])
	}
	if f.store.Stock("var-a") != 10 {
		t.Fatalf("expected returned units back in stock, got %d", f.store.Stock("var-a"))
	}

	_, err = f.orders.ResolveReturn(ctx, ResolveReturnCommand{ActorID: "admin-1", OrderID: order.ID, ReturnID: returnID, Decision: ReturnDecisionReject})
	expectErr(t, err, ErrConflict)
	_, err = f.orders.RequestReturn(ctx, RequestReturnCommand{BuyerID: testBuyer, OrderID: order.ID, LineID: lineID, Quantity: 1})
	expectErr(t, err, ErrConflict)

	if !slices.Contains(f.events.types(), OrderEventReturnResolved) {
		t.Fatalf("expected return resolved event, got %v", f.events.types())
	}
}

func TestOrderServiceRejectedReturnRestoresLineStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t, map[string]int{"var-a": 1})
	if _, err := f.orders.AdminTransition(ctx, AdminTransitionCommand{ActorID: "admin-1", OrderID: order.ID, Status: domain.OrderStatusCompleted}); err != nil {
		t.Fatalf("AdminTransition: %v", err)
	}

	requested, err := f.orders.RequestReturn(ctx, RequestReturnCommand{BuyerID: testBuyer, OrderID: order.ID, LineID: order.Lines[0].ID, Quantity: 1})
	if err != nil {
		t.Fatalf("RequestReturn: %v", err)
	}
	rejected, err := f.orders.ResolveReturn(ctx, ResolveReturnCommand{ActorID: "admin-1", OrderID: order.ID, ReturnID: requested.Returns[0].ID, Decision: ReturnDecisionReject})
	if err != nil {
		t.Fatalf("ResolveReturn: %v", err)
	}
	if rejected.Lines[0].Status != domain.LineStatusCompleted || rejected.Returns[0].Status != domain.ReturnStatusRejected {
		t.Fatalf("unexpected rejection %#v", rejected.Lines[0])
	}
	if f.store.Stock("var-a") != 9 {
		t.Fatalf("rejected return must not restock, got %d", f.store.Stock("var-a"))
	}

	_, err = f.orders.ResolveReturn(ctx, ResolveReturnCommand{ActorID: "admin-1", OrderID: order.ID, ReturnID: "ret_missing", Decision: ReturnDecisionApprove})
	expectErr(t, err, ErrNotFound)
	_, err = f.orders.ResolveReturn(ctx, ResolveReturnCommand{ActorID: "admin-1", OrderID: order.ID, ReturnID: requested.Returns[0].ID, Decision: "maybe"})
	expectErr(t, err, ErrBadRequest)
}

func TestOrderServiceBuyerReadsAndPagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.placeOrder(t, map[string]int{"var-a": 1})
	f.placeOrder(t, map[string]int{"var-b": 1})

	_, err := f.orders.GetBuyerOrder(ctx, "buyer-2", first.ID)
	expectErr(t, err, ErrNotFound)
	got, err := f.orders.GetBuyerOrder(ctx, testBuyer, first.ID)
	if err != nil || got.ID != first.ID {
		t.Fatalf("GetBuyerOrder: %v", err)
	}

	page, err := f.orders.ListBuyerOrders(ctx, testBuyer, OrderListFilter{Pagination: Pagination{Page: 1, Limit: 1}})
	if err != nil {
		t.Fatalf("ListBuyerOrders: %v", err)
	}
	if len(page.Items) != 1 || !page.HasMore {
		t.Fatalf("expected one item with more pages, got %d more=%v", len(page.Items), page.HasMore)
	}

	filtered, err := f.orders.ListOrders(ctx, OrderListFilter{Statuses: []OrderStatus{domain.OrderStatusRefunded}})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(filtered.Items) != 0 {
		t.Fatalf("expected no refunded orders")
	}

	_, err = f.orders.ListOrders(ctx, OrderListFilter{Statuses: []OrderStatus{"bogus"}})
	expectErr(t, err, ErrBadRequest)

	_, err = f.orders.GetOrder(ctx, "ord_missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
