package mq

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	headerID        = "x-message-id"
	headerTimestamp = "x-message-ts"
)

// KafkaConfig defines configuration for the Kafka implementation.
type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	ClientID string   `yaml:"clientID"`
	GroupID  string   `yaml:"groupID"`

	// Producer settings
	BatchSize    int           `yaml:"batchSize"`
	BatchTimeout time.Duration `yaml:"batchTimeout"`

	// Consumer settings
	MinBytes int           `yaml:"minBytes"`
	MaxBytes int           `yaml:"maxBytes"`
	MaxWait  time.Duration `yaml:"maxWait"`

	// Dialer settings
	DialTimeout time.Duration `yaml:"dialTimeout"`
}

// KafkaQueue implements MessageQueue using Kafka.
type KafkaQueue struct {
	config KafkaConfig
	writer *kafka.Writer
	dialer *kafka.Dialer

	mu            sync.Mutex
	subscriptions []*kafkaSubscription
	started       bool
	closed        bool
}

type kafkaSubscription struct {
	topic   string
	handler HandlerFunc
	baseCtx context.Context

	reader *kafka.Reader
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewKafkaQueue creates a Kafka-backed message queue.
func NewKafkaQueue(cfg KafkaConfig) (*KafkaQueue, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("brokers are required")
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 50 * time.Millisecond
	}
	if cfg.MinBytes == 0 {
		cfg.MinBytes = 1 << 10
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 10 << 20
	}
	if cfg.MaxWait == 0 {
		cfg.MaxWait = time.Second
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}

	dialer := &kafka.Dialer{
		ClientID:  cfg.ClientID,
		Timeout:   cfg.DialTimeout,
		DualStack: true,
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		Transport: &kafka.Transport{
			Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
				return dialer.DialContext(ctx, network, address)
			},
			ClientID: cfg.ClientID,
		},
	}

	return &KafkaQueue{
		config: cfg,
		writer: writer,
		dialer: dialer,
	}, nil
}

// Publish publishes a message to a topic.
func (k *KafkaQueue) Publish(ctx context.Context, topic string, message *Message) error {
	if message == nil {
		return errors.New("message is nil")
	}
	if topic == "" {
		return errors.New("topic is required")
	}
	return k.writer.WriteMessages(ctx, toKafkaMessage(topic, message))
}

// Subscribe registers a handler; consumption begins when Start is called.
func (k *KafkaQueue) Subscribe(ctx context.Context, topic string, handler HandlerFunc) error {
	if topic == "" {
		return errors.New("topic is required")
	}
	if handler == nil {
		return errors.New("handler is required")
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return errors.New("queue is closed")
	}
	if k.started {
		return errors.New("cannot subscribe after start")
	}
	k.subscriptions = append(k.subscriptions, &kafkaSubscription{
		topic:   topic,
		handler: handler,
		baseCtx: ctx,
	})
	return nil
}

// Start launches one reader goroutine per subscription.
func (k *KafkaQueue) Start() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return errors.New("queue is closed")
	}
	if k.started {
		return nil
	}

	for _, sub := range k.subscriptions {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  k.config.Brokers,
			GroupID:  k.config.GroupID,
			Topic:    sub.topic,
			Dialer:   k.dialer,
			MinBytes: k.config.MinBytes,
			MaxBytes: k.config.MaxBytes,
			MaxWait:  k.config.MaxWait,
		})
		sub.reader = reader

		baseCtx := sub.baseCtx
		if baseCtx == nil {
			baseCtx = context.Background()
		}
		ctx, cancel := context.WithCancel(baseCtx)
		sub.cancel = cancel

		sub.wg.Add(1)
		go func(sub *kafkaSubscription, ctx context.Context) {
			defer sub.wg.Done()
			for {
				msg, err := sub.reader.ReadMessage(ctx)
				if err != nil {
					if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
						return
					}
					continue
				}
				_ = sub.handler(ctx, fromKafkaMessage(msg))
			}
		}(sub, ctx)
	}

	k.started = true
	return nil
}

// Stop cancels all readers and waits for them to drain.
func (k *KafkaQueue) Stop() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.started {
		return nil
	}
	for _, sub := range k.subscriptions {
		if sub.cancel != nil {
			sub.cancel()
		}
		if sub.reader != nil {
			_ = sub.reader.Close()
		}
		sub.wg.Wait()
	}
	k.started = false
	return nil
}

// Ping verifies at least one broker is reachable.
func (k *KafkaQueue) Ping(ctx context.Context) error {
	conn, err := k.dialer.DialContext(ctx, "tcp", k.config.Brokers[0])
	if err != nil {
		return err
	}
	return conn.Close()
}

// Close stops consumers and closes the producer.
func (k *KafkaQueue) Close() error {
	if err := k.Stop(); err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	k.closed = true
	return k.writer.Close()
}

func toKafkaMessage(topic string, message *Message) kafka.Message {
	headers := make([]kafka.Header, 0, len(message.Headers)+2)
	for key, value := range message.Headers {
		headers = append(headers, kafka.Header{Key: key, Value: []byte(value)})
	}
	if message.ID != "" {
		headers = append(headers, kafka.Header{Key: headerID, Value: []byte(message.ID)})
	}
	ts := message.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	headers = append(headers, kafka.Header{Key: headerTimestamp, Value: []byte(ts.Format(time.RFC3339Nano))})

	return kafka.Message{
		Topic:   topic,
		Key:     []byte(message.ID),
		Value:   message.Body,
		Headers: headers,
	}
}

func fromKafkaMessage(msg kafka.Message) *Message {
	message := &Message{
		Body:      msg.Value,
		Headers:   make(map[string]string, len(msg.Headers)),
		Timestamp: msg.Time,
	}
	for _, header := range msg.Headers {
		switch header.Key {
		case headerID:
			message.ID = string(header.Value)
		case headerTimestamp:
			if ts, err := time.Parse(time.RFC3339Nano, string(header.Value)); err == nil {
				message.Timestamp = ts
			}
		default:
			message.Headers[header.Key] = string(header.Value)
		}
	}
	return message
}
