package ordernumber

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow/pkg/db/dbtest"
	"github.com/angelmondragon/orderflow/pkg/db/models"
	"github.com/angelmondragon/orderflow/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow/pkg/errors"
)

var numberPattern = regexp.MustCompile(`^ORD-\d{8}-[0-9A-HJKMNP-TV-Z]{8}$`)

func fixedClock() time.Time {
	return time.Date(2025, 3, 14, 23, 30, 0, 0, time.FixedZone("PDT", -7*3600))
}

func seedOrder(t *testing.T, conn *gorm.DB, number string) {
	t.Helper()
	require.NoError(t, conn.Create(&models.Order{
		OrderNumber:   number,
		Status:        enums.OrderStatusPending,
		CartID:        uuid.New(),
		PaymentMethod: enums.PaymentMethodNone,
	}).Error)
}

func TestAllocateFormat(t *testing.T) {
	client := dbtest.Open(t)
	issuer := NewIssuer(0, WithClock(fixedClock))
	assert.Equal(t, defaultAttempts, issuer.MaxAttempts())

	number, err := issuer.Allocate(context.Background(), client.DB())
	require.NoError(t, err)
	assert.Regexp(t, numberPattern, number)
	assert.Contains(t, number, "ORD-20250315-", "date segment is UTC")
}

func TestAllocateRetriesOnCollision(t *testing.T) {
	client := dbtest.Open(t)
	seedOrder(t, client.DB(), "ORD-20250315-AAAAAAAA")

	suffixes := []string{"AAAAAAAA", "BBBBBBBB"}
	calls := 0
	issuer := NewIssuer(3, WithClock(fixedClock), WithSuffixSource(func(int) (string, error) {
		s := suffixes[calls]
		calls++
		return s, nil
	}))

	number, err := issuer.Allocate(context.Background(), client.DB())
	require.NoError(t, err)
	assert.Equal(t, "ORD-20250315-BBBBBBBB", number)
	assert.Equal(t, 2, calls)
}

func TestAllocateExhaustsAttempts(t *testing.T) {
	client := dbtest.Open(t)
	seedOrder(t, client.DB(), "ORD-20250315-AAAAAAAA")

	calls := 0
	issuer := NewIssuer(2, WithClock(fixedClock), WithSuffixSource(func(int) (string, error) {
		calls++
		return "AAAAAAAA", nil
	}))

	_, err := issuer.Allocate(context.Background(), client.DB())
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeOrderNumberCollisionExhausted))
	assert.Equal(t, 2, calls)
}

func TestRandomSuffixUsesAlphabet(t *testing.T) {
	for i := 0; i < 50; i++ {
		s, err := randomSuffix(suffixLength)
		require.NoError(t, err)
		require.Len(t, s, suffixLength)
		for _, r := range s {
			require.Contains(t, alphabet, string(r))
		}
	}
}
