package kafka

import (
	"context"
	"encoding/json"

	"ms-inventory/internal/models"

	"github.com/segmentio/kafka-go"
)

const (
	TopicTicketReserved  = "ticketly.ticket.reserved"
	TopicTicketConfirmed = "ticketly.ticket.confirmed"
	TopicTicketCanceled  = "ticketly.ticket.canceled"
)

type Producer struct {
	Writer *kafka.Writer
}

// NewProducer returns a producer that writes to any topic; the topic is
// set per message so one writer serves all lifecycle events.
func NewProducer(brokers []string) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{Writer: writer}
}

// Publish writes a raw message to the given topic.
func (p *Producer) Publish(topic, key string, value []byte) error {
	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Topic: topic,
			Key:   []byte(key),
			Value: value,
		},
	)
}

func (p *Producer) publishTicket(topic string, ticket models.Ticket) error {
	// QR bytes are payload for the buyer, not for downstream consumers.
	ticket.QRCode = nil
	msgBytes, err := json.Marshal(ticket)
	if err != nil {
		return err
	}
	return p.Publish(topic, ticket.TicketID, msgBytes)
}

// PublishTicketReserved streams a successful reservation to Kafka.
func (p *Producer) PublishTicketReserved(ticket models.Ticket) error {
	return p.publishTicket(TopicTicketReserved, ticket)
}

// PublishTicketConfirmed streams a pending->confirmed transition.
func (p *Producer) PublishTicketConfirmed(ticket models.Ticket) error {
	return p.publishTicket(TopicTicketConfirmed, ticket)
}

// PublishTicketCanceled streams a cancellation, after capacity has been
// released back to the event ledger.
func (p *Producer) PublishTicketCanceled(ticket models.Ticket) error {
	return p.publishTicket(TopicTicketCanceled, ticket)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
