package firestore

import (
	"context"
	"errors"
	"strings"

	domain "github.com/termitepreston/wigvana/internal/domain"
	pfirestore "github.com/termitepreston/wigvana/internal/platform/firestore"
	"github.com/termitepreston/wigvana/internal/platform/textutil"
)

const productCollection = "products"

// CatalogReader projects catalog documents into the read model used at cart and order time.
type CatalogReader struct {
	variants *pfirestore.Collection[variantDocument]
	products *pfirestore.Collection[productDocument]
}

// NewCatalogReader constructs a Firestore-backed catalog reader.
func NewCatalogReader(provider *pfirestore.Provider) (*CatalogReader, error) {
	if provider == nil {
		return nil, errors.New("catalog reader requires firestore provider")
	}
	return &CatalogReader{
		variants: pfirestore.NewCollection[variantDocument](provider, variantCollection),
		products: pfirestore.NewCollection[productDocument](provider, productCollection),
	}, nil
}

// GetVariant loads the variant together with its product's moderation status.
func (r *CatalogReader) GetVariant(ctx context.Context, variantID string) (domain.CatalogVariant, error) {
	id := strings.TrimSpace(variantID)
	if id == "" {
		return domain.CatalogVariant{}, errors.New("catalog reader: variant id is required")
	}
	variant, err := r.variants.Get(ctx, id)
	if err != nil {
		return domain.CatalogVariant{}, err
	}
	product, err := r.products.Get(ctx, variant.Data.ProductID)
	if err != nil {
		return domain.CatalogVariant{}, err
	}

	title := strings.TrimSpace(variant.Data.Title)
	if title == "" {
		title = product.Data.Title
	}
	sellerID := variant.Data.SellerID
	if sellerID == "" {
		sellerID = product.Data.SellerID
	}
	return domain.CatalogVariant{
		ProductID:     variant.Data.ProductID,
		VariantID:     variant.ID,
		SellerID:      sellerID,
		Title:         title,
		SKU:           variant.Data.SKU,
		Price:         variant.Data.Price,
		Currency:      variant.Data.Currency,
		ProductStatus: domain.ProductStatus(product.Data.Status),
		VariantActive: variant.Data.Active,
		Stock:         variant.Data.Stock,
		Attributes:    textutil.VariantAttributes(variant.Data.Attributes),
	}, nil
}

type productDocument struct {
	SellerID string `firestore:"sellerId"`
	Title    string `firestore:"title"`
	Status   string `firestore:"status"`
}
