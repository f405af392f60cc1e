package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/air593-booking/internal/events"
)

type captureNotifier struct {
	events []events.Event
	err    error
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return c.err
}

func TestEmitFansOut(t *testing.T) {
	first := &captureNotifier{}
	second := &captureNotifier{}
	at := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	bus := events.Bus{Notifiers: []events.Notifier{first, nil, second}, Now: func() time.Time { return at }}

	ev, err := bus.Emit(context.Background(), events.TopicOrderCompleted, "-M0000001", map[string]any{"orderId": "-M0000001"})
	require.NoError(t, err)
	require.NotEmpty(t, ev.ID)
	require.Equal(t, at, ev.OccurredAt)
	require.JSONEq(t, `{"orderId":"-M0000001"}`, string(ev.Payload))
	require.Len(t, first.events, 1)
	require.Len(t, second.events, 1)
	require.Equal(t, ev.ID, second.events[0].ID)
}

func TestEmitJoinsNotifierErrors(t *testing.T) {
	broken := &captureNotifier{err: errors.New("broker down")}
	ok := &captureNotifier{}
	bus := events.Bus{Notifiers: []events.Notifier{broken, ok}}

	_, err := bus.Emit(context.Background(), events.TopicOrderCompleted, "o1", nil)
	require.ErrorContains(t, err, "broker down")
	require.Len(t, ok.events, 1)
}

func TestEmitValidates(t *testing.T) {
	bus := events.Bus{}
	_, err := bus.Emit(context.Background(), " ", "o1", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicOrderCompleted, "", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicOrderCompleted, "o1", []byte("{broken"))
	require.Error(t, err)
}

type fakeChannel struct {
	exchange string
	kind     string
	key      string
	msg      amqp.Publishing
	closed   bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp.Table) error {
	f.exchange, f.kind = name, kind
	return nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestAMQPPublisherRoutesByTopic(t *testing.T) {
	ch := &fakeChannel{}
	pub, err := events.NewAMQPPublisher(ch, "")
	require.NoError(t, err)
	require.Equal(t, "air593.events", ch.exchange)
	require.Equal(t, "topic", ch.kind)

	bus := events.Bus{Notifiers: []events.Notifier{pub}}
	ev, err := bus.Emit(context.Background(), events.TopicOrderCompleted, "o1", map[string]string{"orderId": "o1"})
	require.NoError(t, err)

	require.Equal(t, events.TopicOrderCompleted, ch.key)
	require.Equal(t, "application/json", ch.msg.ContentType)
	require.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	require.Equal(t, ev.ID, ch.msg.MessageId)

	var decoded events.Event
	require.NoError(t, json.Unmarshal(ch.msg.Body, &decoded))
	require.Equal(t, "o1", decoded.AggregateID)

	require.NoError(t, pub.Close())
	require.True(t, ch.closed)
}
