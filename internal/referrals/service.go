// Package referrals hands completed referred orders to the commission bookkeeper via the outbox.
package referrals

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow/pkg/db/models"
	"github.com/angelmondragon/orderflow/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow/pkg/errors"
	"github.com/angelmondragon/orderflow/pkg/logger"
	"github.com/angelmondragon/orderflow/pkg/outbox"
	"github.com/angelmondragon/orderflow/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type Service struct {
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
}

func NewService(tx txRunner, publisher outboxPublisher, logg *logger.Logger) (*Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{tx: tx, outbox: publisher, logg: logg}, nil
}

// CreateCommission queues a commission request for an order that carries a
// referral code. Orders without one are ignored.
func (s *Service) CreateCommission(ctx context.Context, order models.Order) error {
	if order.ReferralCodeID == nil {
		return nil
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReferralCommissionRequested,
			AggregateType: enums.AggregateReferral,
			AggregateID:   *order.ReferralCodeID,
			Actor:         outbox.ActorFor(nil),
			Data: payloads.ReferralCommissionRequestedEvent{
				OrderID:         order.ID,
				OrderNumber:     order.OrderNumber,
				ReferralCodeID:  *order.ReferralCodeID,
				UserID:          order.UserID,
				SubtotalCents:   order.SubtotalCents,
				GrandTotalCents: order.GrandTotalCents,
			},
		})
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue referral commission")
	}
	s.logg.Info(s.logg.WithField(ctx, "referral_code_id", order.ReferralCodeID.String()), "referral commission requested")
	return nil
}
