// Package commerce reads product variant prices from the commerce platform's
// admin REST API.
package commerce

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/prisvakt/compliance-service/internal/compliance"
)

// Variant is the price state of one product variant as reported by the platform
type Variant struct {
	ProductID      string
	VariantID      string
	ProductTitle   string
	Title          string
	Price          decimal.Decimal
	CompareAtPrice decimal.NullDecimal
}

// Key returns the compliance key of the variant within shop
func (v Variant) Key(shop string) compliance.VariantKey {
	return compliance.VariantKey{Shop: shop, ProductID: v.ProductID, VariantID: v.VariantID}
}

// Observation converts the variant into a price observation for shop
func (v Variant) Observation(shop string) compliance.PriceObservation {
	return compliance.PriceObservation{
		Shop:           shop,
		ProductID:      v.ProductID,
		VariantID:      v.VariantID,
		Price:          v.Price,
		CompareAtPrice: v.CompareAtPrice,
	}
}

type productsResponse struct {
	Products []productPayload `json:"products"`
}

type variantResponse struct {
	Variant variantPayload `json:"variant"`
}

type productPayload struct {
	ID       int64            `json:"id"`
	Title    string           `json:"title"`
	Variants []variantPayload `json:"variants"`
}

type variantPayload struct {
	ID             int64               `json:"id"`
	ProductID      int64               `json:"product_id"`
	Title          string              `json:"title"`
	Price          decimal.Decimal     `json:"price"`
	CompareAtPrice decimal.NullDecimal `json:"compare_at_price"`
}

func (p variantPayload) toVariant(productTitle string) Variant {
	return Variant{
		ProductID:      strconv.FormatInt(p.ProductID, 10),
		VariantID:      strconv.FormatInt(p.ID, 10),
		ProductTitle:   productTitle,
		Title:          p.Title,
		Price:          p.Price,
		CompareAtPrice: p.CompareAtPrice,
	}
}
