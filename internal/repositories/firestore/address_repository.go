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

const addressCollectionPattern = "users/%s/addresses"

// AddressRepository reads buyer addresses stored under the user document.
type AddressRepository struct {
	provider *pfirestore.Provider
}

// NewAddressRepository constructs a Firestore-backed address repository.
func NewAddressRepository(provider *pfirestore.Provider) (*AddressRepository, error) {
	if provider == nil {
		return nil, errors.New("address repository requires firestore provider")
	}
	return &AddressRepository{provider: provider}, nil
}

// Get loads one address owned by the user.
func (r *AddressRepository) Get(ctx context.Context, userID string, addressID string) (domain.Address, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Address{}, errors.New("address repository: user id is required")
	}
	id := strings.TrimSpace(addressID)
	if id == "" {
		return domain.Address{}, errors.New("address repository: address id is required")
	}

	coll := pfirestore.NewCollection[addressDocument](r.provider, fmt.Sprintf(addressCollectionPattern, uid))
	doc, err := coll.Get(ctx, id)
	if err != nil {
		return domain.Address{}, err
	}
	addr := doc.Data.toDomain(doc.ID)
	addr.UserID = uid
	return addr, nil
}

type addressDocument struct {
	ID         string    `firestore:"id,omitempty"`
	Label      string    `firestore:"label,omitempty"`
	Recipient  string    `firestore:"recipient"`
	Company    string    `firestore:"company,omitempty"`
	Line1      string    `firestore:"line1"`
	Line2      string    `firestore:"line2,omitempty"`
	City       string    `firestore:"city"`
	State      string    `firestore:"state,omitempty"`
	PostalCode string    `firestore:"postalCode"`
	Country    string    `firestore:"country"`
	Phone      string    `firestore:"phone,omitempty"`
	CreatedAt  time.Time `firestore:"createdAt,omitempty"`
	UpdatedAt  time.Time `firestore:"updatedAt,omitempty"`
}

func newAddressDocument(addr domain.Address) addressDocument {
	return addressDocument{
		ID:         addr.ID,
		Label:      strings.TrimSpace(addr.Label),
		Recipient:  addr.Recipient,
		Company:    strings.TrimSpace(addr.Company),
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		City:       addr.City,
		State:      addr.State,
		PostalCode: addr.PostalCode,
		Country:    strings.ToUpper(strings.TrimSpace(addr.Country)),
		Phone:      addr.Phone,
		CreatedAt:  addr.CreatedAt.UTC(),
		UpdatedAt:  addr.UpdatedAt.UTC(),
	}
}

func (d addressDocument) toDomain(id string) domain.Address {
	if id == "" {
		id = d.ID
	}
	return domain.Address{
		ID:         id,
		Label:      d.Label,
		Recipient:  d.Recipient,
		Company:    d.Company,
		Line1:      d.Line1,
		Line2:      d.Line2,
		City:       d.City,
		State:      d.State,
		PostalCode: d.PostalCode,
		Country:    d.Country,
		Phone:      d.Phone,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}
