package queue

import (
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// AMQPQueue bridges the Queue contract onto RabbitMQ. Payloads are JSON;
// consumption uses manual acks with a bounded requeue count.
type AMQPQueue struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	logger *zap.Logger
}

func DialAMQP(url string, logger *zap.Logger) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return &AMQPQueue{conn: conn, ch: ch, logger: logger}, nil
}

func (q *AMQPQueue) Close() {
	q.ch.Close()
	q.conn.Close()
}

func (q *AMQPQueue) declare(topic string) (amqp.Queue, error) {
	return q.ch.QueueDeclare(
		topic,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
}

func (q *AMQPQueue) Publish(topic string, payload any) error {
	queue, err := q.declare(topic)
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return q.ch.Publish(
		"",
		queue.Name,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}

// Subscribe consumes the topic until the channel closes. The handler
// receives the raw JSON body as []byte; a returned error requeues the
// delivery up to three times.
func (q *AMQPQueue) Subscribe(topic string, handler func(payload any) error) error {
	queue, err := q.declare(topic)
	if err != nil {
		return err
	}
	msgs, err := q.ch.Consume(
		queue.Name,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	go func() {
		for d := range msgs {
			if err := handler(d.Body); err != nil {
				var retryCount int32
				if v, ok := d.Headers["x-retry-count"].(int32); ok {
					retryCount = v
				}
				if retryCount < 3 {
					q.logger.Warn("handler failed, requeueing",
						zap.String("topic", topic),
						zap.Int32("retry", retryCount),
						zap.Error(err))
					d.Nack(false, true)
					continue
				}
				q.logger.Error("handler failed permanently",
					zap.String("topic", topic),
					zap.Error(err))
			}
			d.Ack(false)
		}
	}()
	return nil
}

var _ Queue = (*AMQPQueue)(nil)
