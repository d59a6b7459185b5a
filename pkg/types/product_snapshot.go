package types

// ProductSnapshot freezes the catalog view of a line item at order time.
type ProductSnapshot struct {
	Name              string            `json:"name"`
	SKU               string            `json:"sku"`
	Description       *string           `json:"description,omitempty"`
	ProductType       string            `json:"product_type,omitempty"`
	Images            []string          `json:"images,omitempty"`
	VariantName       *string           `json:"variant_name,omitempty"`
	VariantSKU        *string           `json:"variant_sku,omitempty"`
	VariantAttributes map[string]string `json:"variant_attributes,omitempty"`
}
