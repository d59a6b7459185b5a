// Package ordernumber allocates human-facing order numbers.
package ordernumber

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderflow/pkg/errors"
)

const (
	prefix          = "ORD"
	suffixLength    = 8
	defaultAttempts = 5

	// Crockford base32 without I, L, O, U.
	alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
)

// Issuer produces ORD-YYYYMMDD-XXXXXXXX numbers unique against orders.order_number.
type Issuer struct {
	maxAttempts int
	now         func() time.Time
	random      func(n int) (string, error)
}

type Option func(*Issuer)

// WithClock overrides the clock used for the date segment.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// WithSuffixSource overrides the random suffix generator.
func WithSuffixSource(fn func(n int) (string, error)) Option {
	return func(i *Issuer) { i.random = fn }
}

func NewIssuer(maxAttempts int, opts ...Option) *Issuer {
	if maxAttempts <= 0 {
		maxAttempts = defaultAttempts
	}
	i := &Issuer{maxAttempts: maxAttempts, now: time.Now, random: randomSuffix}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// MaxAttempts reports how many candidates Allocate tries before giving up.
func (i *Issuer) MaxAttempts() int {
	return i.maxAttempts
}

// Allocate returns a number not yet used by any order visible to tx. The
// unique index on orders.order_number still guards against a concurrent
// insert of the same candidate.
func (i *Issuer) Allocate(ctx context.Context, tx *gorm.DB) (string, error) {
	if tx == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "transaction required for order number allocation")
	}
	date := i.now().UTC().Format("20060102")
	for attempt := 0; attempt < i.maxAttempts; attempt++ {
		suffix, err := i.random(suffixLength)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
		}
		candidate := fmt.Sprintf("%s-%s-%s", prefix, date, suffix)

		var count int64
		if err := tx.WithContext(ctx).Model(&models.Order{}).Where("order_number = ?", candidate).Count(&count).Error; err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check order number")
		}
		if count == 0 {
			return candidate, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeOrderNumberCollisionExhausted,
		fmt.Sprintf("no unique order number after %d attempts", i.maxAttempts))
}

func randomSuffix(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out), nil
}
