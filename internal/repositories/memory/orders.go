package memory

import (
	"context"
	"errors"

	domain "github.com/termitepreston/wigvana/internal/domain"
	"github.com/termitepreston/wigvana/internal/repositories"
)

type orderRepository struct{ s *Store }

func (r orderRepository) Insert(ctx context.Context, order domain.Order) error {
	if order.ID == "" {
		return errors.New("memory orders: order id is required")
	}
	defer r.s.lock(ctx)()

	if _, exists := r.s.orders[order.ID]; exists {
		return conflict("orders.insert", "order %s already exists", order.ID)
	}
	if order.Version == 0 {
		order.Version = 1
	}
	r.s.orders[order.ID] = order.Clone()
	return nil
}

func (r orderRepository) Update(ctx context.Context, order domain.Order) (domain.Order, error) {
	defer r.s.lock(ctx)()

	current, ok := r.s.orders[order.ID]
	if !ok {
		return domain.Order{}, notFound("orders.update", "order %s not found", order.ID)
	}
	if current.Version != order.Version {
		return domain.Order{}, conflict("orders.update", "order %s version %d is stale", order.ID, order.Version)
	}
	order.Version = current.Version + 1
	r.s.orders[order.ID] = order.Clone()
	return order.Clone(), nil
}

func (r orderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	defer r.s.lock(ctx)()

	order, ok := r.s.orders[orderID]
	if !ok {
		return domain.Order{}, notFound("orders.get", "order %s not found", orderID)
	}
	return order.Clone(), nil
}

func (r orderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.Page[domain.Order], error) {
	defer r.s.lock(ctx)()

	statuses := make(map[domain.OrderStatus]struct{}, len(filter.Statuses))
	for _, status := range filter.Statuses {
		statuses[status] = struct{}{}
	}

	matched := make([]domain.Order, 0)
	for _, order := range r.s.orders {
		if filter.BuyerID != "" && order.BuyerID != filter.BuyerID {
			continue
		}
		if filter.SellerID != "" && !order.HasSeller(filter.SellerID) {
			continue
		}
		if len(statuses) > 0 {
			if _, ok := statuses[order.Status]; !ok {
				continue
			}
		}
		matched = append(matched, order.Clone())
	}
	sortOrdersNewestFirst(matched)

	pager := filter.Pagination.Normalize()
	offset := pager.Offset()
	page := domain.Page[domain.Order]{Page: pager.Page, Limit: pager.Limit, Items: []domain.Order{}}
	if offset >= len(matched) {
		return page, nil
	}
	end := offset + pager.Limit
	if end < len(matched) {
		page.HasMore = true
	} else {
		end = len(matched)
	}
	page.Items = matched[offset:end]
	return page, nil
}
