package events

import (
	"context"
	"encoding/json"
	"time"

	"roomly/pkg/logger"
	"roomly/pkg/model"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const (
	TypeBookingCreated   = "booking.created"
	TypeBookingCancelled = "booking.cancelled"
)

// BookingEvent is the envelope published for every engine mutation.
// Downstream consumers (notification senders, analytics) subscribe to these;
// the engine itself never depends on them being delivered.
type BookingEvent struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`

	BookingID   string `json:"booking_id"`
	RoomID      string `json:"room_id"`
	RoomName    string `json:"room_name"`
	UserID      string `json:"user_id"`
	BookingDate string `json:"booking_date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	CancelledBy string `json:"cancelled_by,omitempty"`
}

// Publisher emits booking events. The nop implementation is used when no
// brokers are configured.
type Publisher interface {
	Publish(ctx context.Context, event BookingEvent)
	Close() error
}

type kafkaPublisher struct {
	writer *kafka.Writer
	log    *logger.Logger
}

// NewKafkaPublisher builds a publisher over the given brokers. Messages are
// hash-balanced by room id so per-room ordering is preserved.
func NewKafkaPublisher(brokers []string, topic string, log *logger.Logger) Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		BatchTimeout: 50 * time.Millisecond,
		Logger:       kafka.LoggerFunc(func(string, ...any) {}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			log.Error("Kafka writer error", "message", msg, "args", args)
		}),
	}
	return &kafkaPublisher{writer: writer, log: log}
}

// Publish is best-effort: a failed publish is logged, never propagated, so
// event delivery can never fail a committed booking mutation.
func (p *kafkaPublisher) Publish(ctx context.Context, event BookingEvent) {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	value, err := json.Marshal(event)
	if err != nil {
		p.log.Error("Failed to encode booking event", "type", event.Type, "error", err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(event.RoomID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-id", Value: []byte(event.EventID)},
			{Key: "event-type", Value: []byte(event.Type)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("Failed to publish booking event",
			"type", event.Type,
			"booking_id", event.BookingID,
			"error", err,
		)
		return
	}

	p.log.Debug("Booking event published", "type", event.Type, "booking_id", event.BookingID)
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}

type nopPublisher struct{}

// NewNopPublisher returns a publisher that drops everything.
func NewNopPublisher() Publisher {
	return nopPublisher{}
}

func (nopPublisher) Publish(context.Context, BookingEvent) {}
func (nopPublisher) Close() error                          { return nil }

// FromBooking fills the envelope from a booking record.
func FromBooking(eventType string, b *model.Booking) BookingEvent {
	return BookingEvent{
		Type:        eventType,
		BookingID:   b.ID,
		RoomID:      b.RoomID,
		RoomName:    b.RoomName,
		UserID:      b.UserID,
		BookingDate: b.BookingDate,
		StartTime:   b.StartTime,
		EndTime:     b.EndTime,
		CancelledBy: b.CancelledBy,
	}
}
