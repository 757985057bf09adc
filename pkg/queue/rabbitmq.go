package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"reelshare/pkg/config"
	"reelshare/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ViewQueueName  = "film_view_queue"
	ViewExchange   = "film_events"
	ViewRoutingKey = "film.viewed"
)

// ViewEvent asks the worker to record a stream on the content contract.
type ViewEvent struct {
	ContentID  string    `json:"contentId"`
	Network    string    `json:"network"`
	ChainID    string    `json:"chainContentId"`
	ViewerID   string    `json:"viewerId"`
	OccurredAt time.Time `json:"occurredAt"`
}

type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *logger.Logger
}

func NewRabbitMQClient(cfg *config.Config, log *logger.Logger) (*Client, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%s/",
		cfg.RabbitMQUser,
		cfg.RabbitMQPassword,
		cfg.RabbitMQHost,
		cfg.RabbitMQPort,
	)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		ViewExchange, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	_, err = channel.QueueDeclare(
		ViewQueueName, // name
		true,          // durable
		false,         // delete when unused
		false,         // exclusive
		false,         // no-wait
		nil,           // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	err = channel.QueueBind(
		ViewQueueName,  // queue name
		ViewRoutingKey, // routing key
		ViewExchange,   // exchange
		false,
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	// One unacknowledged view at a time: each one is an on-chain write from the hot wallet.
	if err := channel.Qos(1, 0, false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set qos: %w", err)
	}

	log.Info("Connected to RabbitMQ at %s:%s", cfg.RabbitMQHost, cfg.RabbitMQPort)

	return &Client{
		conn:    conn,
		channel: channel,
		logger:  log,
	}, nil
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) PublishView(event ViewEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal view event: %w", err)
	}

	err = c.channel.Publish(
		ViewExchange,   // exchange
		ViewRoutingKey, // routing key
		false,          // mandatory
		false,          // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		c.logger.Error("[RABBITMQ] Failed to publish view for content %s: %v", event.ContentID, err)
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// ConsumeViews delivers view events to handler. Messages are acknowledged on
// success and dropped on failure: recordView is a chain write and is never
// replayed automatically.
func (c *Client) ConsumeViews(handler func(event ViewEvent) error) error {
	msgs, err := c.channel.Consume(
		ViewQueueName, // queue
		"",            // consumer
		false,         // auto-ack
		false,         // exclusive
		false,         // no-local
		false,         // no-wait
		nil,           // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("[RABBITMQ] Started consuming from view queue: %s", ViewQueueName)

	go func() {
		for msg := range msgs {
			var event ViewEvent
			if err := json.Unmarshal(msg.Body, &event); err != nil {
				c.logger.Error("[RABBITMQ] Failed to unmarshal view event: %v, body=%s", err, string(msg.Body))
				msg.Nack(false, false)
				continue
			}

			if err := handler(event); err != nil {
				c.logger.Error("[RABBITMQ] Failed to record view for content %s: %v", event.ContentID, err)
				msg.Nack(false, false)
				continue
			}

			msg.Ack(false)
		}
	}()

	return nil
}

// QueueLength returns the number of pending view events.
func (c *Client) QueueLength() (int, error) {
	queue, err := c.channel.QueueInspect(ViewQueueName)
	if err != nil {
		return 0, err
	}
	return queue.Messages, nil
}
