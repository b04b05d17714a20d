// Package mq carries analysis task IDs over a durable RabbitMQ queue.
package mq

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultQueue 默认队列名称
const DefaultQueue = "analysis_tasks"

var ErrEmptyURL = errors.New("rabbitmq url is required")

// Client owns one connection and a publishing channel.
type Client struct {
	conn  *amqp.Connection
	queue string

	mu sync.Mutex
	ch *amqp.Channel
}

// Dial 连接 RabbitMQ 并声明持久化队列
func Dial(url, queue string) (*Client, error) {
	if url == "" {
		return nil, ErrEmptyURL
	}
	if queue == "" {
		queue = DefaultQueue
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declare(ch, queue); err != nil {
		conn.Close()
		return nil, err
	}
	return &Client{conn: conn, queue: queue, ch: ch}, nil
}

func declare(ch *amqp.Channel, queue string) error {
	_, err := ch.QueueDeclare(
		queue,
		true,  // durable: 重启 MQ 消息还在
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return nil
}

func (c *Client) Queue() string { return c.queue }

// Publish 发送一条持久化消息
func (c *Client) Publish(ctx context.Context, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.ch.PublishWithContext(ctx,
		"",      // exchange
		c.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "text/plain",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", c.queue, err)
	}
	return nil
}

// Deliveries opens a dedicated consumer channel with manual acks.
// prefetch 设成 worker 数 * 2, 保证每个 worker 都有活干但不会积压太多
func (c *Client) Deliveries(prefetch int) (<-chan amqp.Delivery, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open consumer channel: %w", err)
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("register consumer: %w", err)
	}
	return msgs, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch != nil {
		c.ch.Close()
	}
	return c.conn.Close()
}
