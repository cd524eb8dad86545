package memory

import (
	"context"
	"errors"

	domain "github.com/termitepreston/wigvana/internal/domain"
)

type cartRepository struct{ s *Store }

func (r cartRepository) Insert(ctx context.Context, cart domain.Cart) error {
	if cart.ID == "" {
		return errors.New("memory carts: cart id is required")
	}
	defer r.s.lock(ctx)()

	if _, exists := r.s.carts[cart.ID]; exists {
		return conflict("carts.insert", "cart %s already exists", cart.ID)
	}
	if cart.Status == domain.CartStatusActive {
		key := cart.Owner.Key()
		if _, exists := r.s.activeCarts[key]; exists {
			return conflict("carts.insert", "owner already has an active cart")
		}
		r.s.activeCarts[key] = cart.ID
	}
	if cart.Version == 0 {
		cart.Version = 1
	}
	r.s.carts[cart.ID] = cart.Clone()
	return nil
}

func (r cartRepository) Update(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	defer r.s.lock(ctx)()

	current, ok := r.s.carts[cart.ID]
	if !ok {
		return domain.Cart{}, notFound("carts.update", "cart %s not found", cart.ID)
	}
	if current.Version != cart.Version {
		return domain.Cart{}, conflict("carts.update", "cart %s version %d is stale", cart.ID, cart.Version)
	}

	if cart.Status == domain.CartStatusActive {
		if other, exists := r.s.activeCarts[cart.Owner.Key()]; exists && other != cart.ID {
			return domain.Cart{}, conflict("carts.update", "owner already has an active cart")
		}
	}

	oldKey := current.Owner.Key()
	if current.Status == domain.CartStatusActive && r.s.activeCarts[oldKey] == cart.ID {
		delete(r.s.activeCarts, oldKey)
	}
	if cart.Status == domain.CartStatusActive {
		r.s.activeCarts[cart.Owner.Key()] = cart.ID
	}

	cart.Version = current.Version + 1
	r.s.carts[cart.ID] = cart.Clone()
	return cart.Clone(), nil
}

func (r cartRepository) FindByID(ctx context.Context, cartID string) (domain.Cart, error) {
	defer r.s.lock(ctx)()

	cart, ok := r.s.carts[cartID]
	if !ok {
		return domain.Cart{}, notFound("carts.get", "cart %s not found", cartID)
	}
	return cart.Clone(), nil
}

func (r cartRepository) FindActiveByOwner(ctx context.Context, owner domain.CartOwner) (domain.Cart, error) {
	defer r.s.lock(ctx)()

	id, ok := r.s.activeCarts[owner.Key()]
	if !ok {
		return domain.Cart{}, notFound("carts.active", "no active cart for owner")
	}
	return r.s.carts[id].Clone(), nil
}
