package checks

import (
	"context"
	"fmt"
	"net/http"

	amqp "github.com/rabbitmq/amqp091-go"

	"deployctl/internal/config"
)

// BrokerCheck dials the message broker and opens a channel, which is what
// the task workers will do on startup.
type BrokerCheck struct {
	cfg config.BrokerConfig
}

func NewBrokerCheck(cfg config.BrokerConfig) *BrokerCheck {
	return &BrokerCheck{cfg: cfg}
}

func (c *BrokerCheck) Name() string {
	return "broker/rabbitmq"
}

func (c *BrokerCheck) Run(ctx context.Context) (string, error) {
	type dialResult struct {
		conn *amqp.Connection
		err  error
	}
	// amqp.Dial has no context variant, so bound it ourselves.
	done := make(chan dialResult, 1)
	go func() {
		conn, err := amqp.Dial(c.cfg.AMQPURL())
		done <- dialResult{conn, err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("broker dial timed out: %w", ctx.Err())
	case res := <-done:
		if res.err != nil {
			return "", fmt.Errorf("failed to connect to rabbitmq at %s:%d: %w", c.cfg.Host, c.cfg.Port, res.err)
		}
		defer res.conn.Close()

		ch, err := res.conn.Channel()
		if err != nil {
			return "", fmt.Errorf("failed to open rabbitmq channel: %w", err)
		}
		defer ch.Close()

		return fmt.Sprintf("connected to %s:%d", c.cfg.Host, c.cfg.Port), nil
	}
}

// BrokerManagementCheck probes the broker's HTTP management API with the
// configured credentials.
type BrokerManagementCheck struct {
	cfg config.BrokerConfig
	// client is replaceable in tests.
	client *http.Client
}

func NewBrokerManagementCheck(cfg config.BrokerConfig) *BrokerManagementCheck {
	return &BrokerManagementCheck{cfg: cfg, client: http.DefaultClient}
}

func (c *BrokerManagementCheck) Name() string {
	return "broker/management"
}

func (c *BrokerManagementCheck) Run(ctx context.Context) (string, error) {
	url := c.cfg.ManagementURL() + "/api/overview"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build management request: %w", err)
	}
	req.SetBasicAuth(c.cfg.User, c.cfg.Password)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach management API at %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return fmt.Sprintf("management API reachable on port %d", c.cfg.ManagementPort), nil
	case resp.StatusCode == http.StatusUnauthorized:
		return "", fmt.Errorf("management API rejected the configured credentials")
	default:
		return "", fmt.Errorf("management API returned unexpected status %d", resp.StatusCode)
	}
}
