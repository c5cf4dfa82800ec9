package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orchestrator "github.com/dmehra2102/vending-machine/internal/orchestrator/domain"
	order "github.com/dmehra2102/vending-machine/internal/order/domain"
)

func TestGateway_NeverLogsUnit(t *testing.T) {
	var buf bytes.Buffer
	g := NewGateway(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := g.Deliver(context.Background(), "buyer-1", orchestrator.Payload{
		DeliveryKey: "guild-1/1", ProductKey: "p1", Unit: "SECRET-KEY-123", Attempt: 1,
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"delivery_key":"guild-1/1"`)
	assert.NotContains(t, buf.String(), "SECRET-KEY-123")
}

func TestGateway_Notices(t *testing.T) {
	var buf bytes.Buffer
	g := NewGateway(slog.New(slog.NewJSONHandler(&buf, nil)))
	s := order.OrderSummary{TenantID: "guild-1", OrderID: 2, BuyerID: "b"}

	require.NoError(t, g.NotifyAdmins(context.Background(), "guild-1", []string{"ops"}, s))
	require.NoError(t, g.NotifyAchievement(context.Background(), "guild-1", "wins", s))
	require.NoError(t, g.NotifyCancelled(context.Background(), "b", s))
	assert.Contains(t, buf.String(), "admin notice")
	assert.Contains(t, buf.String(), "achievement notice")
	assert.Contains(t, buf.String(), "cancellation notice")
}
