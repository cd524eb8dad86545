package memory

import (
	"context"

	domain "github.com/termitepreston/wigvana/internal/domain"
)

type catalogReader struct{ s *Store }

func (r catalogReader) GetVariant(ctx context.Context, variantID string) (domain.CatalogVariant, error) {
	defer r.s.lock(ctx)()

	variant, ok := r.s.variants[variantID]
	if !ok {
		return domain.CatalogVariant{}, notFound("catalog.variant", "variant %s not found", variantID)
	}
	return cloneVariant(variant), nil
}

type addressRepository struct{ s *Store }

func (r addressRepository) Get(ctx context.Context, userID string, addressID string) (domain.Address, error) {
	defer r.s.lock(ctx)()

	addr, ok := r.s.addresses[addressID]
	if !ok || addr.UserID != userID {
		return domain.Address{}, notFound("addresses.get", "address %s not found", addressID)
	}
	return addr, nil
}

type paymentMethodRepository struct{ s *Store }

func (r paymentMethodRepository) Get(ctx context.Context, userID string, paymentMethodID string) (domain.PaymentMethod, error) {
	defer r.s.lock(ctx)()

	method, ok := r.s.paymentMeths[paymentMethodID]
	if !ok || method.UserID != userID {
		return domain.PaymentMethod{}, notFound("payment_methods.get", "payment method %s not found", paymentMethodID)
	}
	return method, nil
}
