package memory

import (
	"time"

	domain "github.com/termitepreston/wigvana/internal/domain"
)

// SeedDemoCatalog loads a small two-seller catalog and a demo buyer for local runs.
func SeedDemoCatalog(s *Store, buyerID string) {
	for _, v := range []domain.CatalogVariant{
		{
			ProductID: "prod_wig_classic", VariantID: "var_wig_classic_black", SellerID: "seller_aster",
			Title: "Classic Bob Wig", SKU: "WIG-CB-BLK", Price: 10000, Currency: "USD",
			ProductStatus: domain.ProductStatusPublished, VariantActive: true, Stock: 25,
			Attributes: map[string]string{"color": "black", "length": "12in"},
		},
		{
			ProductID: "prod_wig_classic", VariantID: "var_wig_classic_blonde", SellerID: "seller_aster",
			Title: "Classic Bob Wig", SKU: "WIG-CB-BLD", Price: 10500, Currency: "USD",
			ProductStatus: domain.ProductStatusPublished, VariantActive: true, Stock: 3,
			Attributes: map[string]string{"color": "blonde", "length": "12in"},
		},
		{
			ProductID: "prod_lace_glue", VariantID: "var_lace_glue_std", SellerID: "seller_birch",
			Title: "Lace Adhesive", SKU: "GLUE-STD", Price: 1299, Currency: "USD",
			ProductStatus: domain.ProductStatusApproved, VariantActive: true, Stock: 100,
		},
		{
			ProductID: "prod_draft_cap", VariantID: "var_draft_cap", SellerID: "seller_birch",
			Title: "Wig Cap (draft)", SKU: "CAP-DRAFT", Price: 499, Currency: "USD",
			ProductStatus: domain.ProductStatusDraft, VariantActive: true, Stock: 50,
		},
	} {
		s.PutVariant(v)
	}

	if buyerID == "" {
		return
	}
	now := time.Now().UTC()
	s.PutAddress(domain.Address{
		ID: "addr_home", UserID: buyerID, Label: "Home", Recipient: "Demo Buyer",
		Line1: "1 Market Street", City: "Springfield", State: "IL", PostalCode: "62701", Country: "US",
		CreatedAt: now, UpdatedAt: now,
	})
	s.PutPaymentMethod(domain.PaymentMethod{
		ID: "pm_demo_card", UserID: buyerID, Provider: "simulated", Brand: "visa", Last4: "4242",
		ExpMonth: 12, ExpYear: now.Year() + 3, CreatedAt: now,
	})
}
