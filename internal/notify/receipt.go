package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/air593-booking/internal/events"
)

// TaskReceiptEmail is the asynq task type carrying a booking receipt.
const TaskReceiptEmail = "email:receipt"

// ReceiptItem is a trip listed on a receipt.
type ReceiptItem struct {
	ID          string          `json:"id"`
	Destination string          `json:"destination"`
	Price       decimal.Decimal `json:"price"`
}

// Receipt is the payload of order.completed events and of receipt tasks.
type Receipt struct {
	OrderID    string          `json:"orderId"`
	HolderName string          `json:"holderName"`
	Email      string          `json:"email"`
	Total      decimal.Decimal `json:"total"`
	Discount   decimal.Decimal `json:"discount"`
	Timestamp  time.Time       `json:"timestamp"`
	Items      []ReceiptItem   `json:"items"`
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ReceiptNotifier turns order.completed events into receipt email tasks.
type ReceiptNotifier struct {
	Client   Enqueuer
	Queue    string
	MaxRetry int
}

// Sink implements events.Sink.
func (n ReceiptNotifier) Sink() string { return "receipt" }

// Notify implements events.Notifier. Other topics are ignored, as are orders
// without a recipient.
func (n ReceiptNotifier) Notify(ctx context.Context, ev events.Event) error {
	if n.Client == nil || ev.Topic != events.TopicOrderCompleted {
		return nil
	}
	var receipt Receipt
	if err := json.Unmarshal(ev.Payload, &receipt); err != nil {
		return fmt.Errorf("receipt notify: decode payload: %w", err)
	}
	if strings.TrimSpace(receipt.Email) == "" {
		return nil
	}
	if receipt.OrderID == "" {
		receipt.OrderID = ev.AggregateID
	}
	body, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("receipt notify: encode task: %w", err)
	}

	opts := []asynq.Option{asynq.TaskID("receipt:" + receipt.OrderID)}
	if n.Queue != "" {
		opts = append(opts, asynq.Queue(n.Queue))
	}
	if n.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(n.MaxRetry))
	}
	_, err = n.Client.EnqueueContext(ctx, asynq.NewTask(TaskReceiptEmail, body), opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("receipt notify: enqueue: %w", err)
	}
	return nil
}
