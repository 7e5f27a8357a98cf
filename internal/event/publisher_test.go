package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

type sent struct {
	exchange, key string
	msg           amqp.Publishing
}

type fakeChannel struct {
	sent   []sent
	err    error
	closed bool
}

func (f *fakeChannel) Publish(exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sent{exchange, key, msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func newTestPublisher(ch *fakeChannel) *Publisher {
	at := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	return &Publisher{channel: ch, exchange: "certexam", now: func() time.Time { return at }}
}

func TestPublishEnvelope(t *testing.T) {
	ch := &fakeChannel{}
	p := newTestPublisher(ch)

	payload := map[string]string{"generatedExamId": "abc"}
	if err := p.Publish(context.Background(), ExamGenerated, payload); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(ch.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(ch.sent))
	}
	got := ch.sent[0]
	if got.exchange != "certexam" || got.key != ExamGenerated {
		t.Errorf("published to %s/%s, want certexam/%s", got.exchange, got.key, ExamGenerated)
	}
	if got.msg.ContentType != "application/json" || got.msg.DeliveryMode != amqp.Persistent {
		t.Errorf("unexpected message properties: %+v", got.msg)
	}

	var env struct {
		ID      string            `json:"id"`
		Type    string            `json:"type"`
		Payload map[string]string `json:"payload"`
	}
	if err := json.Unmarshal(got.msg.Body, &env); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if _, err := uuid.Parse(env.ID); err != nil {
		t.Errorf("envelope id %q is not a uuid: %v", env.ID, err)
	}
	if env.ID != got.msg.MessageId {
		t.Errorf("MessageId %q does not match envelope id %q", got.msg.MessageId, env.ID)
	}
	if env.Type != ExamGenerated || env.Payload["generatedExamId"] != "abc" {
		t.Errorf("unexpected envelope: %+v", env)
	}
}

func TestPublishErrors(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	p := newTestPublisher(ch)
	if err := p.Publish(context.Background(), AttemptSubmitted, nil); err == nil {
		t.Errorf("expected channel error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Publish(ctx, AttemptSubmitted, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	p.Close()
	if !ch.closed {
		t.Errorf("Close did not close channel")
	}
}
