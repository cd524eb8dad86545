package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/termitepreston/wigvana/internal/domain"
	pfirestore "github.com/termitepreston/wigvana/internal/platform/firestore"
)

const paymentMethodCollectionPattern = "users/%s/paymentMethods"

// PaymentMethodRepository reads stored PSP payment references.
type PaymentMethodRepository struct {
	provider *pfirestore.Provider
}

// NewPaymentMethodRepository constructs a Firestore-backed payment method repository.
func NewPaymentMethodRepository(provider *pfirestore.Provider) (*PaymentMethodRepository, error) {
	if provider == nil {
		return nil, errors.New("payment method repository requires firestore provider")
	}
	return &PaymentMethodRepository{provider: provider}, nil
}

// Get loads one payment method owned by the user.
func (r *PaymentMethodRepository) Get(ctx context.Context, userID string, paymentMethodID string) (domain.PaymentMethod, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.PaymentMethod{}, errors.New("payment method repository: user id is required")
	}
	id := strings.TrimSpace(paymentMethodID)
	if id == "" {
		return domain.PaymentMethod{}, errors.New("payment method repository: payment method id is required")
	}

	coll := pfirestore.NewCollection[paymentMethodDocument](r.provider, fmt.Sprintf(paymentMethodCollectionPattern, uid))
	doc, err := coll.Get(ctx, id)
	if err != nil {
		return domain.PaymentMethod{}, err
	}
	return domain.PaymentMethod{
		ID:        doc.ID,
		UserID:    uid,
		Provider:  doc.Data.Provider,
		Brand:     doc.Data.Brand,
		Last4:     doc.Data.Last4,
		ExpMonth:  doc.Data.ExpMonth,
		ExpYear:   doc.Data.ExpYear,
		CreatedAt: doc.Data.CreatedAt,
	}, nil
}

type paymentMethodDocument struct {
	Provider  string    `firestore:"provider"`
	Brand     string    `firestore:"brand,omitempty"`
	Last4     string    `firestore:"last4,omitempty"`
	ExpMonth  int       `firestore:"expMonth,omitempty"`
	ExpYear   int       `firestore:"expYear,omitempty"`
	CreatedAt time.Time `firestore:"createdAt"`
}
