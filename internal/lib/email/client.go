// Package email renders and sends transactional email.
//
// Templates are embedded in the binary. Delivery goes through a Sender:
// Resend, SendGrid, or a console writer for local development.
package email

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/deppfellow/schoolhub/internal/config"
)

// Client renders templates and hands the result to the configured Sender.
type Client struct {
	sender   Sender
	renderer *Renderer
	logger   *zerolog.Logger
}

// NewClient builds the client for the provider configured in cfg.
func NewClient(cfg *config.Config, logger *zerolog.Logger) (*Client, error) {
	sender, err := NewSender(cfg.Integration, os.Stdout)
	if err != nil {
		return nil, err
	}

	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}

	return NewClientWithSender(sender, renderer, logger), nil
}

func NewClientWithSender(sender Sender, renderer *Renderer, logger *zerolog.Logger) *Client {
	return &Client{
		sender:   sender,
		renderer: renderer,
		logger:   logger,
	}
}

// Provider is the name of the underlying sender.
func (c *Client) Provider() string {
	return c.sender.Name()
}

// Renderer exposes the template renderer, used by the preview endpoints.
func (c *Client) Renderer() *Renderer {
	return c.renderer
}

// SendEmail renders templateName with data and sends it to `to`.
// id is our message id, forwarded to the provider for webhook correlation.
func (c *Client) SendEmail(ctx context.Context, id, to string, templateName Template, data map[string]any) (string, error) {
	rendered, err := c.renderer.Render(templateName, data)
	if err != nil {
		return "", err
	}

	providerID, err := c.sender.Send(ctx, Message{
		ID:      id,
		To:      to,
		Subject: rendered.Subject,
		HTML:    rendered.HTML,
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to send %s email", templateName)
	}

	c.logger.Debug().
		Str("provider", c.sender.Name()).
		Str("template", string(templateName)).
		Str("provider_message_id", providerID).
		Msg("email handed to provider")

	return providerID, nil
}
