// Package memory provides an in-memory queue and topic broker for tests and local runs.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/wolfeidau/orgpurge/internal/queue"
)

// Operation names accepted by FailOn.
const (
	OpReceive = "Receive"
	OpDelete  = "Delete"
)

var (
	_ queue.Sender    = (*Broker)(nil)
	_ queue.Publisher = (*Broker)(nil)
	_ queue.Receiver  = (*Broker)(nil)
)

// SendHook is called before a message is accepted; a non nil error rejects it.
type SendHook func(destination string, body []byte) error

type entry struct {
	msg      queue.Message
	inFlight bool
}

type subscription struct {
	queueURL string
	raw      bool
}

// Broker implements queue.Sender, queue.Publisher and queue.Receiver using in-memory storage.
// Received messages stay invisible until deleted or until ExpireVisibility is called.
type Broker struct {
	mu sync.Mutex

	queues map[string][]*entry
	topics map[string][]subscription

	sendHook    SendHook
	publishHook SendHook
	failures    map[string]error
	seq         int
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{
		queues:   make(map[string][]*entry),
		topics:   make(map[string][]subscription),
		failures: make(map[string]error),
	}
}

// Subscribe delivers every message published to topicARN to queueURL.
// Without raw delivery the body is wrapped in a notification envelope.
func (b *Broker) Subscribe(topicARN, queueURL string, raw bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.topics[topicARN] = append(b.topics[topicARN], subscription{queueURL: queueURL, raw: raw})
}

// OnSend installs a hook run before every Send.
func (b *Broker) OnSend(hook SendHook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sendHook = hook
}

// OnPublish installs a hook run before every Publish.
func (b *Broker) OnPublish(hook SendHook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publishHook = hook
}

// FailOn makes every subsequent call to op return err. A nil err clears it.
func (b *Broker) FailOn(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		delete(b.failures, op)
		return
	}
	b.failures[op] = err
}

// Send implements queue.Sender.
func (b *Broker) Send(ctx context.Context, queueURL string, body []byte) (string, error) {
	b.mu.Lock()
	hook := b.sendHook
	b.mu.Unlock()

	if hook != nil {
		if err := hook(queueURL, body); err != nil {
			return "", err
		}
	}

	encoded, attrs, err := queue.Encode(body)
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.enqueue(queueURL, encoded, attrs), nil
}

// Publish implements queue.Publisher.
func (b *Broker) Publish(ctx context.Context, topicARN string, body []byte) (string, error) {
	b.mu.Lock()
	hook := b.publishHook
	b.mu.Unlock()

	if hook != nil {
		if err := hook(topicARN, body); err != nil {
			return "", err
		}
	}

	encoded, attrs, err := queue.Encode(body)
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	publishID := fmt.Sprintf("pub-%d", b.seq)

	for _, sub := range b.topics[topicARN] {
		if sub.raw {
			b.enqueue(sub.queueURL, encoded, attrs)
			continue
		}

		envelope, err := notificationEnvelope(publishID, topicARN, encoded, attrs)
		if err != nil {
			return "", err
		}
		b.enqueue(sub.queueURL, envelope, nil)
	}

	return publishID, nil
}

// Receive implements queue.Receiver.
func (b *Broker) Receive(ctx context.Context, queueURL string, opts queue.ReceiveOptions) ([]queue.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.failures[OpReceive]; err != nil {
		return nil, err
	}

	limit := int(opts.MaxMessages)
	if limit <= 0 {
		limit = queue.DefaultBatchSize
	}

	var msgs []queue.Message
	for _, e := range b.queues[queueURL] {
		if len(msgs) == limit {
			break
		}
		if e.inFlight {
			continue
		}

		b.seq++
		e.inFlight = true
		e.msg.ReceiveCount++
		e.msg.ReceiptHandle = fmt.Sprintf("rh-%d", b.seq)
		msgs = append(msgs, cloneMessage(e.msg))
	}

	return msgs, nil
}

// Delete implements queue.Receiver.
func (b *Broker) Delete(ctx context.Context, queueURL string, receiptHandle string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.failures[OpDelete]; err != nil {
		return err
	}

	entries := b.queues[queueURL]
	for i, e := range entries {
		if e.inFlight && e.msg.ReceiptHandle == receiptHandle {
			b.queues[queueURL] = append(entries[:i], entries[i+1:]...)
			return nil
		}
	}

	return fmt.Errorf("receipt handle %s not found on %s", receiptHandle, queueURL)
}

// ExpireVisibility makes every in-flight message on queueURL visible again.
func (b *Broker) ExpireVisibility(queueURL string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range b.queues[queueURL] {
		e.inFlight = false
	}
}

// Messages returns every message on queueURL, visible or not, in send order.
func (b *Broker) Messages(queueURL string) []queue.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	msgs := make([]queue.Message, 0, len(b.queues[queueURL]))
	for _, e := range b.queues[queueURL] {
		msgs = append(msgs, cloneMessage(e.msg))
	}
	return msgs
}

// Payloads returns the decoded bodies of every message on queueURL.
func (b *Broker) Payloads(queueURL string) ([][]byte, error) {
	var payloads [][]byte
	for _, msg := range b.Messages(queueURL) {
		payload, err := queue.Decode(queue.Unwrap(msg))
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, payload)
	}
	return payloads, nil
}

// enqueue must be called with b.mu held.
func (b *Broker) enqueue(queueURL, body string, attrs map[string]string) string {
	b.seq++
	id := fmt.Sprintf("msg-%d", b.seq)

	msg := queue.Message{ID: id, Body: body, Attributes: make(map[string]string, len(attrs))}
	for k, v := range attrs {
		msg.Attributes[k] = v
	}

	b.queues[queueURL] = append(b.queues[queueURL], &entry{msg: msg})
	return id
}

func cloneMessage(m queue.Message) queue.Message {
	clone := m
	clone.Attributes = make(map[string]string, len(m.Attributes))
	for k, v := range m.Attributes {
		clone.Attributes[k] = v
	}
	return clone
}

type envelopeAttribute struct {
	Type  string `json:"Type"`
	Value string `json:"Value"`
}

func notificationEnvelope(id, topicARN, body string, attrs map[string]string) (string, error) {
	env := struct {
		Type              string                       `json:"Type"`
		MessageID         string                       `json:"MessageId"`
		TopicArn          string                       `json:"TopicArn"`
		Message           string                       `json:"Message"`
		MessageAttributes map[string]envelopeAttribute `json:"MessageAttributes,omitempty"`
	}{
		Type:      "Notification",
		MessageID: id,
		TopicArn:  topicARN,
		Message:   body,
	}

	if len(attrs) > 0 {
		env.MessageAttributes = make(map[string]envelopeAttribute, len(attrs))
		for k, v := range attrs {
			env.MessageAttributes[k] = envelopeAttribute{Type: "String", Value: v}
		}
	}

	data, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("failed to marshal notification envelope: %w", err)
	}
	return string(data), nil
}
