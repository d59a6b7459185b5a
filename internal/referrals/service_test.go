package referrals

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderflow/pkg/db/dbtest"
	"github.com/angelmondragon/orderflow/pkg/db/models"
	"github.com/angelmondragon/orderflow/pkg/enums"
	"github.com/angelmondragon/orderflow/pkg/outbox"
	"github.com/angelmondragon/orderflow/pkg/outbox/payloads"
)

func TestCreateCommissionQueuesEvent(t *testing.T) {
	client := dbtest.Open(t)
	repo := outbox.NewRepository(client.DB())
	svc, err := NewService(client, outbox.NewService(repo, nil), nil)
	require.NoError(t, err)

	code := uuid.New()
	order := models.Order{ID: uuid.New(), OrderNumber: "ORD-20250101-ABCDEFGH", ReferralCodeID: &code, SubtotalCents: 900, GrandTotalCents: 1000}
	require.NoError(t, svc.CreateCommission(context.Background(), order))

	rows, err := repo.ListByAggregate(context.Background(), enums.AggregateReferral, code)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.EventReferralCommissionRequested, rows[0].EventType)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	var data payloads.ReferralCommissionRequestedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, order.ID, data.OrderID)
	assert.EqualValues(t, 1000, data.GrandTotalCents)
}

func TestCreateCommissionSkipsUnreferredOrders(t *testing.T) {
	client := dbtest.Open(t)
	repo := outbox.NewRepository(client.DB())
	svc, err := NewService(client, outbox.NewService(repo, nil), nil)
	require.NoError(t, err)

	require.NoError(t, svc.CreateCommission(context.Background(), models.Order{ID: uuid.New()}))
	pending, err := repo.CountPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, pending)
}
