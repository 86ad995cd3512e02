/**
 * @description
 * This package publishes wallet-service events to RabbitMQ. Events are best
 * effort: the coordinator logs and continues when a publish fails, and main
 * falls back to the no-op producer when the broker is not reachable at
 * startup, so the wallet workflows never block on the event stream.
 *
 * @dependencies
 * - context, encoding/json, time: Standard Go libraries.
 * - github.com/rabbitmq/amqp091-go: The RabbitMQ client library.
 */
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// WalletEventsExchange is the durable topic exchange all wallet-service
// events are published to.
const WalletEventsExchange = "lumapay.events"

// Routing keys for the wallet-service event stream.
const (
	RoutingKeySessionAuthenticated = "wallet.session.authenticated"
	RoutingKeyBeneficiaryCreated   = "wallet.beneficiary.created"
	RoutingKeyTransferExecuted     = "wallet.transfer.executed"
)

// Publisher is the interface implemented by types that can publish events.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
	Close()
}

// EventProducer publishes JSON messages over a single shared channel,
// declaring each exchange the first time it is used.
type EventProducer struct {
	conn *amqp091.Connection

	mu       sync.Mutex
	ch       *amqp091.Channel
	declared map[string]bool
}

// EventProducerFallback is a no-op publisher used when RabbitMQ is
// unavailable at startup.
type EventProducerFallback struct{}

func (p *EventProducerFallback) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	log.Printf("level=warn component=rabbitmq_producer mode=fallback msg=\"publish skipped\" exchange=%s routing_key=%s", exchange, routingKey)
	return nil
}

func (p *EventProducerFallback) Close() {}

// NewEventProducer dials the broker and opens the publishing channel.
func NewEventProducer(amqpURL string) (*EventProducer, error) {
	target, err := normalizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	// Bound the dial so a dead broker cannot hang startup
	conn, err := amqp091.DialConfig(target, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &EventProducer{conn: conn, ch: ch, declared: make(map[string]bool)}, nil
}

// Publish marshals the body and sends it to the exchange under the routing
// key. A failed publish is retried once on a fresh channel; a closed channel
// is the usual failure mode after a broker restart.
func (p *EventProducer) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		log.Printf("level=error component=rabbitmq_producer msg=\"json marshal failed\" exchange=%s routing_key=%s err=%v", exchange, routingKey, err)
		return err
	}

	message := amqp091.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now(),
		Body:        payload,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureExchange(exchange); err != nil {
		return err
	}
	if err := p.ch.PublishWithContext(ctx, exchange, routingKey, false, false, message); err != nil {
		log.Printf("level=warn component=rabbitmq_producer msg=\"publish failed; reopening channel\" exchange=%s routing_key=%s err=%v", exchange, routingKey, err)
		if reopenErr := p.reopen(exchange); reopenErr != nil {
			return err
		}
		return p.ch.PublishWithContext(ctx, exchange, routingKey, false, false, message)
	}
	return nil
}

// ensureExchange declares the durable topic exchange on first use. Callers
// hold p.mu.
func (p *EventProducer) ensureExchange(exchange string) error {
	if p.declared[exchange] {
		return nil
	}
	if err := p.ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		log.Printf("level=warn component=rabbitmq_producer msg=\"exchange declare failed; reopening channel\" exchange=%s err=%v", exchange, err)
		return p.reopen(exchange)
	}
	p.declared[exchange] = true
	return nil
}

// reopen replaces the channel and re-declares the exchange. Callers hold p.mu.
func (p *EventProducer) reopen(exchange string) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return err
	}
	p.ch = ch
	p.declared = map[string]bool{exchange: true}
	return nil
}

// Close gracefully closes the channel and connection to RabbitMQ.
func (p *EventProducer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

func normalizeAMQPURL(raw string) (string, error) {
	cleaned := strings.Trim(strings.TrimSpace(raw), `"'`)
	// Stray characters from copy-pasted env values sometimes precede the scheme
	if at := strings.Index(strings.ToLower(cleaned), "amqp"); at > 0 {
		cleaned = cleaned[at:]
	}
	parsed, err := url.Parse(cleaned)
	if err != nil {
		return "", err
	}
	switch parsed.Scheme {
	case "amqp", "amqps":
		return cleaned, nil
	default:
		return "", fmt.Errorf("unsupported amqp scheme %q", parsed.Scheme)
	}
}
