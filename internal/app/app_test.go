package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"gozon/storefront/pkg/contracts"

	"github.com/rabbitmq/amqp091-go"
)

type fakeBroadcaster struct {
	got []contracts.OrderStatusChanged
}

func (f *fakeBroadcaster) Broadcast(evt contracts.OrderStatusChanged) {
	f.got = append(f.got, evt)
}

type fakeAck struct {
	acks, nacks int
	requeued    bool
}

func (f *fakeAck) Ack(uint64, bool) error { f.acks++; return nil }
func (f *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacks++
	f.requeued = f.requeued || requeue
	return nil
}
func (f *fakeAck) Reject(uint64, bool) error { return nil }

func newTestApp() (*App, *fakeBroadcaster) {
	b := &fakeBroadcaster{}
	return &App{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		updates: b,
	}, b
}

func TestHandleStatusMessageForwards(t *testing.T) {
	a, b := newTestApp()
	ack := &fakeAck{}

	a.handleStatusMessage(context.Background(), amqp091.Delivery{
		Acknowledger: ack,
		Body:         []byte(`{"order_id":42,"status":"PAID"}`),
	})

	if len(b.got) != 1 || b.got[0] != (contracts.OrderStatusChanged{OrderID: 42, Status: "PAID"}) {
		t.Fatalf("broadcast %v", b.got)
	}
	if ack.acks != 1 || ack.nacks != 0 {
		t.Errorf("acks=%d nacks=%d", ack.acks, ack.nacks)
	}
}

func TestHandleStatusMessageRejectsMalformed(t *testing.T) {
	bodies := map[string]string{
		"not json":       `nope`,
		"missing order":  `{"status":"PAID"}`,
		"negative order": `{"order_id":-1,"status":"PAID"}`,
		"empty status":   `{"order_id":3,"status":""}`,
		"wrong type":     `{"order_id":"3","status":"PAID"}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			a, b := newTestApp()
			ack := &fakeAck{}

			a.handleStatusMessage(context.Background(), amqp091.Delivery{Acknowledger: ack, Body: []byte(body)})

			if len(b.got) != 0 {
				t.Errorf("malformed event broadcast: %v", b.got)
			}
			if ack.nacks != 1 || ack.acks != 0 || ack.requeued {
				t.Errorf("acks=%d nacks=%d requeued=%v", ack.acks, ack.nacks, ack.requeued)
			}
		})
	}
}
