package domain

// ProductStatus is the moderation state of a catalog product.
type ProductStatus string

const (
	ProductStatusDraft     ProductStatus = "draft"
	ProductStatusPending   ProductStatus = "pending_approval"
	ProductStatusPublished ProductStatus = "published"
	ProductStatusApproved  ProductStatus = "approved"
	ProductStatusRejected  ProductStatus = "rejected"
	ProductStatusArchived  ProductStatus = "archived"
)

// CatalogVariant is the read model the commerce engine consumes from the catalog.
type CatalogVariant struct {
	ProductID     string
	VariantID     string
	SellerID      string
	Title         string
	SKU           string
	Price         int64
	Currency      string
	ProductStatus ProductStatus
	VariantActive bool
	Stock         int
	Attributes    map[string]string
}

// Purchasable reports whether the variant can be added to a cart or ordered.
func (v CatalogVariant) Purchasable() bool {
	if !v.VariantActive {
		return false
	}
	return v.ProductStatus == ProductStatusPublished || v.ProductStatus == ProductStatusApproved
}

// StockLine is a (variant, quantity) pair handled by the inventory ledger.
type StockLine struct {
	VariantID string
	Quantity  int
}

// StockShortfall describes a variant that could not be reserved in full.
type StockShortfall struct {
	VariantID string
	Requested int
	Available int
}
