package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

type publishFunc func(ctx context.Context, exchange, key string, msg amqp091.Publishing) error

// confirmChannel is the part of *amqp091.Channel the publisher uses once the
// channel is in confirm mode.
type confirmChannel interface {
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) (*amqp091.DeferredConfirmation, error)
	IsClosed() bool
	Close() error
}

// Publisher sends events to a topic exchange and waits for the broker to
// confirm each one. It holds a single confirm-mode channel and reopens it
// after the broker closes it.
type Publisher struct {
	conn     *amqp091.Connection
	exchange string
	publish  publishFunc
	logger   *zap.Logger
	now      func() time.Time

	mu          sync.Mutex
	ch          confirmChannel
	openChannel func() (confirmChannel, error)
}

func NewPublisher(url, exchange string, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, eris.Wrap(err, "dial broker")
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, eris.Wrap(err, "open channel")
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, eris.Wrapf(err, "declare exchange %s", exchange)
	}

	p := &Publisher{
		conn:     conn,
		exchange: exchange,
		logger:   logger,
		now:      time.Now,
	}
	p.openChannel = p.openConfirmChannel
	p.publish = p.publishConfirmed
	return p, nil
}

func (p *Publisher) openConfirmChannel() (confirmChannel, error) {
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, eris.Wrap(err, "open channel")
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return nil, eris.Wrap(err, "enable confirms")
	}
	return ch, nil
}

func (p *Publisher) Notify(ctx context.Context, e Event) error {
	env := NewEnvelope(e, p.now())
	body, err := json.Marshal(env)
	if err != nil {
		return eris.Wrap(err, "encode event")
	}

	msg := amqp091.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp091.Persistent,
		MessageId:     env.Meta.ID,
		CorrelationId: env.Meta.CorrelationID,
		Timestamp:     env.Meta.Time,
		Type:          env.Meta.Type,
		Body:          body,
	}
	if err := p.publish(ctx, p.exchange, string(e.Kind), msg); err != nil {
		return eris.Wrapf(err, "publish %s for %s", e.Kind, e.RecordID)
	}

	p.logger.Debug("published",
		zap.String("key", string(e.Kind)),
		zap.String("exchange", p.exchange),
		zap.String("record", e.RecordID))
	return nil
}

func (p *Publisher) publishConfirmed(ctx context.Context, exchange, key string, msg amqp091.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.ch.IsClosed() {
		ch, err := p.openChannel()
		if err != nil {
			return err
		}
		p.ch = ch
	}

	dc, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, exchange, key, false, false, msg)
	if err != nil {
		p.dropChannel()
		return err
	}
	ok, err := dc.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return eris.New("broker nacked message")
	}
	return nil
}

// dropChannel closes the held channel so the next publish opens a fresh one.
// Callers hold p.mu.
func (p *Publisher) dropChannel() {
	if p.ch == nil {
		return
	}
	if err := p.ch.Close(); err != nil && !eris.Is(err, amqp091.ErrClosed) {
		p.logger.Debug("close channel", zap.Error(err))
	}
	p.ch = nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	p.dropChannel()
	p.mu.Unlock()

	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}
