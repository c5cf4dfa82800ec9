package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/vending-machine/internal/orchestrator/application"
	"github.com/dmehra2102/vending-machine/pkg/apperr"
	"github.com/dmehra2102/vending-machine/pkg/tracing"
)

const (
	CommandCreateOrder = "create_order"
	CommandApprove     = "approve"
	CommandCancel      = "cancel"
)

// Command is one line of work on the command topic.
type Command struct {
	Type        string `json:"type"`
	TenantID    string `json:"tenant_id"`
	OrderID     int64  `json:"order_id,omitempty"`
	ActorID     string `json:"actor_id,omitempty"`
	ProductKey  string `json:"product_key,omitempty"`
	ContextRef  string `json:"context_ref,omitempty"`
	PaymentLink string `json:"payment_link,omitempty"`
}

// Deduper is satisfied by idempotency.Store.
type Deduper interface {
	Key(topic string, partition int, offset int64) string
	Seen(ctx context.Context, key string) (bool, error)
}

type Consumer struct {
	log    *slog.Logger
	reader *kafka.Reader
	coord  *application.Coordinator
	idem   Deduper
	tracer trace.Tracer
}

// NewConsumer builds a consumer group reader. idem may be nil, in which case
// redelivered messages are applied again.
func NewConsumer(log *slog.Logger, brokers []string, topic, group string, coord *application.Coordinator, idem Deduper) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return &Consumer{
		log:    log,
		reader: r,
		coord:  coord,
		idem:   idem,
		tracer: otel.Tracer("command-consumer"),
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if c.duplicate(ctx, msg) {
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}
		if err := c.Handle(ctx, msg); err != nil {
			c.log.Error("command failed", "offset", msg.Offset, "partition", msg.Partition, "err", err)
		}
		_ = c.reader.CommitMessages(ctx, msg)
	}
}

func (c *Consumer) duplicate(ctx context.Context, msg kafka.Message) bool {
	if c.idem == nil {
		return false
	}
	key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
	seen, err := c.idem.Seen(ctx, key)
	if err != nil {
		c.log.Error("idempotency check failed", "err", err)
		return false
	}
	if seen {
		c.log.Info("duplicate message skipped", "key", key)
	}
	return seen
}

// Handle applies one command. Domain rejections such as an already processed
// order are returned like any other error; the caller logs and commits.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) error {
	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeCommand")
	defer span.End()

	var cmd Command
	if err := json.Unmarshal(msg.Value, &cmd); err != nil {
		return fmt.Errorf("%w: decode command: %v", apperr.ErrInvalidInput, err)
	}
	span.SetAttributes(attribute.String("command.type", cmd.Type), attribute.String("tenant.id", cmd.TenantID))
	if cmd.TenantID == "" {
		return fmt.Errorf("%w: tenant_id required", apperr.ErrInvalidInput)
	}

	switch cmd.Type {
	case CommandCreateOrder:
		o, err := c.coord.CreateOrder(msgCtx, cmd.TenantID, application.CreateOrderRequest{
			BuyerID:     cmd.ActorID,
			ProductKey:  cmd.ProductKey,
			ContextRef:  cmd.ContextRef,
			PaymentLink: cmd.PaymentLink,
		})
		if err != nil {
			return err
		}
		c.coord.NotifyAdmins(msgCtx, cmd.TenantID, o)
		c.log.Info("order created from command", "tenant_id", cmd.TenantID, "order_id", o.ID)
		return nil
	case CommandApprove:
		_, err := c.coord.ApproveAndDeliver(msgCtx, cmd.TenantID, cmd.OrderID, cmd.ActorID)
		return err
	case CommandCancel:
		return c.coord.Cancel(msgCtx, cmd.TenantID, cmd.OrderID, cmd.ActorID)
	default:
		return fmt.Errorf("%w: unknown command %q", apperr.ErrInvalidInput, cmd.Type)
	}
}
