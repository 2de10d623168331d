package mq

import (
	"fmt"

	"github.com/rabbitmq/amqp091-go"
)

// Jobs are routed by topic through one durable exchange. Each topic owns a
// work queue of the same name and a parking queue "<topic>.dlq" fed by the
// dead-letter exchange when a delivery is rejected.
const (
	ExchangeName    = "skillswap.jobs"
	DLQExchangeName = "skillswap.jobs.dlq"
)

func dial(url string) (*amqp091.Connection, *amqp091.Channel, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}
	return conn, ch, nil
}

func declareExchanges(ch *amqp091.Channel) error {
	for _, name := range []string{ExchangeName, DLQExchangeName} {
		if err := ch.ExchangeDeclare(name, "topic", true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare exchange %s: %w", name, err)
		}
	}
	return nil
}

// DLQName is the parking queue for a topic.
func DLQName(topic string) string {
	return topic + ".dlq"
}

// declareTopic declares the work queue and parking queue for topic and binds
// both. Rejected messages keep their routing key when dead-lettered.
func declareTopic(ch *amqp091.Channel, topic string) (amqp091.Queue, error) {
	if err := declareExchanges(ch); err != nil {
		return amqp091.Queue{}, err
	}

	dlq, err := ch.QueueDeclare(DLQName(topic), true, false, false, false, nil)
	if err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to declare DLQ %s: %w", DLQName(topic), err)
	}
	if err := ch.QueueBind(dlq.Name, topic, DLQExchangeName, false, nil); err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to bind DLQ %s: %w", dlq.Name, err)
	}

	q, err := ch.QueueDeclare(topic, true, false, false, false,
		amqp091.Table{"x-dead-letter-exchange": DLQExchangeName},
	)
	if err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to declare queue %s: %w", topic, err)
	}
	if err := ch.QueueBind(q.Name, topic, ExchangeName, false, nil); err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to bind queue %s: %w", topic, err)
	}
	return q, nil
}
