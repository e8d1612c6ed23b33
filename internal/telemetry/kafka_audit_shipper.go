package telemetry

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"time"

	cfg "github.com/adshield/fraudguard/internal/config"
	"github.com/adshield/fraudguard/internal/models"
	"github.com/segmentio/kafka-go"
)

// KafkaAuditShipper buffers audit events in a channel and ships them to
// Kafka from a background loop. Publish never blocks: on backpressure the
// event is dropped, since the verdict must not wait on the audit path.
type KafkaAuditShipper struct {
	cfg    cfg.KafkaAuditConfig
	w      *kafka.Writer
	ch     chan any
	stop   chan struct{}
	onDrop func()
}

// SetDropHook registers a callback invoked once per dropped event.
func (s *KafkaAuditShipper) SetDropHook(fn func()) {
	s.onDrop = fn
}

func NewKafkaAuditShipper(cfgIn cfg.KafkaAuditConfig) (*KafkaAuditShipper, error) {
	c := cfgIn
	if !c.Enabled {
		return &KafkaAuditShipper{cfg: c, ch: make(chan any), stop: make(chan struct{})}, nil
	}
	if len(c.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if c.TopicChecks == "" {
		return nil, errors.New("kafka: no checks topic configured")
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
	if c.FlushEvery <= 0 {
		c.FlushEvery = 2 * time.Second
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = c.BatchSize * 4
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}

	tr := &kafka.Transport{
		DialTimeout: c.DialTimeout,
	}
	if c.TLS {
		tr.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(c.Brokers...),
		Topic:                  c.TopicChecks,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Transport:              tr,
		AllowAutoTopicCreation: false,
		Async:                  true,
		BatchTimeout:           c.FlushEvery,
		BatchSize:              c.BatchSize,
		WriteTimeout:           c.WriteTimeout,
	}

	return &KafkaAuditShipper{
		cfg:  c,
		w:    w,
		ch:   make(chan any, c.QueueCapacity),
		stop: make(chan struct{}),
	}, nil
}

func (s *KafkaAuditShipper) Start() {
	if !s.cfg.Enabled {
		return
	}
	go s.loop()
}

func (s *KafkaAuditShipper) Stop(ctx context.Context) {
	if !s.cfg.Enabled {
		return
	}
	close(s.stop)
	drain := time.After(500 * time.Millisecond)
	for {
		select {
		case ev := <-s.ch:
			_ = s.dispatch(ev)
		case <-drain:
			_ = s.w.Close()
			return
		}
	}
}

// Publish enqueues an event, dropping on backpressure.
func (s *KafkaAuditShipper) Publish(ev any) {
	if !s.cfg.Enabled {
		return
	}
	select {
	case s.ch <- ev:
	default:
		if s.onDrop != nil {
			s.onDrop()
		}
	}
}

func (s *KafkaAuditShipper) loop() {
	for {
		select {
		case ev := <-s.ch:
			_ = s.dispatch(ev)
		case <-s.stop:
			for {
				select {
				case ev := <-s.ch:
					_ = s.dispatch(ev)
				default:
					return
				}
			}
		}
	}
}

func (s *KafkaAuditShipper) dispatch(ev any) error {
	out := toEvent(ev)
	payload, err := json.Marshal(out)
	if err != nil {
		return err
	}

	var key []byte
	if out.IP != "" {
		key = []byte(out.IP)
	}

	return s.w.WriteMessages(context.Background(), kafka.Message{
		Key:   key,
		Value: payload,
		Time:  out.Timestamp,
	})
}

func toEvent(ev any) CheckAuditEvent {
	switch v := ev.(type) {
	case CheckAuditEvent:
		if v.Timestamp.IsZero() {
			v.Timestamp = time.Now().UTC()
		}
		return v
	case models.CheckRecord:
		return CheckAuditEvent{
			Timestamp:      v.CreatedAt,
			RequestID:      v.RequestID,
			IP:             v.IP,
			DeviceType:     string(v.DeviceType),
			Browser:        v.Browser,
			IsAutomated:    v.IsAutomated,
			IsHeadless:     v.IsHeadless,
			IsFakeMobile:   v.IsFakeMobile,
			MouseMoves:     v.MouseMoves,
			TouchEvents:    v.TouchEvents,
			Classification: string(v.Classification),
			Score:          v.Score,
			Reason:         v.Reason,
			Flags:          v.Flags,
		}
	default:
		return CheckAuditEvent{Timestamp: time.Now().UTC()}
	}
}
