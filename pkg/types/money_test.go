package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCents(t *testing.T) {
	cases := map[int64]string{
		0:      "0.00",
		5:      "0.05",
		1999:   "19.99",
		100000: "1000.00",
		-250:   "-2.50",
	}
	for cents, want := range cases {
		assert.Equal(t, want, FormatCents(cents), "cents=%d", cents)
	}
	assert.Equal(t, "USD 12.50", FormatMoney(1250, " usd "))
	assert.Equal(t, "12.50", FormatMoney(1250, ""))
}

func TestAddressNormalizeAndValidate(t *testing.T) {
	addr := Address{Line1: " 1 Main St ", City: "Austin", PostalCode: " 78701 "}.Normalize()
	require.NoError(t, addr.Validate())
	assert.Equal(t, "US", addr.Country)
	assert.Equal(t, "1 Main St", addr.Line1)
	assert.Equal(t, "78701", addr.PostalCode)

	assert.Error(t, Address{City: "Austin", PostalCode: "1"}.Validate())
}

func TestProductSnapshotJSONOmitsEmptyVariant(t *testing.T) {
	raw, err := json.Marshal(ProductSnapshot{Name: "Mug", SKU: "MUG-1"})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "variant_")
}
