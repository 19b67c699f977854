package events

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Event subjects
const (
	SubjectSyncRequested  = "analytics.sync.requested"
	SubjectReportComputed = "analytics.report.computed"
	SubjectReportFailed   = "analytics.report.failed"

	// queue group so only one replica handles a sync request
	syncQueueGroup = "seller-analytics"
)

// ErrNotConnected is returned when publishing without a NATS connection.
var ErrNotConnected = errors.New("nats connection not available")

// SyncRequestedEvent asks for every report of a seller to be recomputed
type SyncRequestedEvent struct {
	EventID     uuid.UUID `json:"event_id"`
	SellerID    uuid.UUID `json:"seller_id"`
	DateFrom    time.Time `json:"date_from"`
	DateTo      time.Time `json:"date_to"`
	Reason      string    `json:"reason"` // manual, scheduled
	RequestedAt time.Time `json:"requested_at"`
}

// ReportComputedEvent is published after a sync stored its snapshots
type ReportComputedEvent struct {
	EventID   uuid.UUID         `json:"event_id"`
	SellerID  uuid.UUID         `json:"seller_id"`
	Reports   []string          `json:"reports"`
	DateFrom  time.Time         `json:"date_from"`
	DateTo    time.Time         `json:"date_to"`
	Source    string            `json:"source"`
	Failures  map[string]string `json:"failures,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// ReportFailedEvent is published when a sync could not complete
type ReportFailedEvent struct {
	EventID   uuid.UUID `json:"event_id"`
	SellerID  uuid.UUID `json:"seller_id"`
	DateFrom  time.Time `json:"date_from"`
	DateTo    time.Time `json:"date_to"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// EventHandler defines the interface for handling events
type EventHandler interface {
	HandleSyncRequested(event *SyncRequestedEvent) error
}

// Subscriber handles NATS event subscriptions
type Subscriber struct {
	nc      *nats.Conn
	logger  *zap.Logger
	handler EventHandler
	subs    []*nats.Subscription
}

// NewSubscriber creates a new NATS subscriber
func NewSubscriber(nc *nats.Conn, handler EventHandler, logger *zap.Logger) *Subscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Subscriber{
		nc:      nc,
		logger:  logger,
		handler: handler,
		subs:    make([]*nats.Subscription, 0),
	}
}

// Start subscribes to all relevant events
func (s *Subscriber) Start() error {
	if s.nc == nil {
		return ErrNotConnected
	}

	sub, err := s.nc.QueueSubscribe(SubjectSyncRequested, syncQueueGroup, s.handleSyncRequested)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	s.logger.Info("Subscribed to event", zap.String("subject", SubjectSyncRequested), zap.String("queue", syncQueueGroup))
	return nil
}

// Stop unsubscribes from all events
func (s *Subscriber) Stop() {
	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil {
			s.logger.Warn("Failed to unsubscribe", zap.String("subject", sub.Subject), zap.Error(err))
		}
	}
	s.subs = s.subs[:0]
	s.logger.Info("NATS subscriber stopped")
}

// handleSyncRequested processes sync request events
func (s *Subscriber) handleSyncRequested(msg *nats.Msg) {
	var event SyncRequestedEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		s.logger.Error("Failed to unmarshal sync requested event", zap.Error(err))
		return
	}
	if event.SellerID == uuid.Nil {
		s.logger.Warn("Ignoring sync request without seller", zap.String("event_id", event.EventID.String()))
		return
	}

	s.logger.Info("Received sync requested event",
		zap.String("seller_id", event.SellerID.String()),
		zap.String("reason", event.Reason),
	)

	if err := s.handler.HandleSyncRequested(&event); err != nil {
		s.logger.Error("Failed to handle sync requested event",
			zap.String("seller_id", event.SellerID.String()),
			zap.Error(err),
		)
	}
}

// Publisher handles publishing events to NATS
type Publisher struct {
	nc     *nats.Conn
	logger *zap.Logger
}

// NewPublisher creates a new NATS publisher. A nil connection makes every
// publish return ErrNotConnected.
func NewPublisher(nc *nats.Conn, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{nc: nc, logger: logger}
}

// Connected reports whether the publisher can reach NATS.
func (p *Publisher) Connected() bool {
	return p != nil && p.nc != nil && p.nc.IsConnected()
}

func (p *Publisher) publish(subject string, event any) error {
	if !p.Connected() {
		return ErrNotConnected
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.nc.Publish(subject, data); err != nil {
		return err
	}
	p.logger.Debug("Published event", zap.String("subject", subject))
	return nil
}

// PublishSyncRequested publishes a sync request
func (p *Publisher) PublishSyncRequested(event *SyncRequestedEvent) error {
	return p.publish(SubjectSyncRequested, event)
}

// PublishReportComputed publishes a report computed event
func (p *Publisher) PublishReportComputed(event *ReportComputedEvent) error {
	return p.publish(SubjectReportComputed, event)
}

// PublishReportFailed publishes a report failed event
func (p *Publisher) PublishReportFailed(event *ReportFailedEvent) error {
	return p.publish(SubjectReportFailed, event)
}
