package client

import "github.com/lapworks/lapstream-go/internal/core/domain"

// Send encodes and sends an outbound command frame. Sends are only
// accepted while Connected; in any other state the command is
// rejected, never queued.
func (c *Client) Send(event string, payload any) error {
	frame, err := domain.NewFrame(event, payload)
	if err != nil {
		return err
	}
	return c.SendFrame(frame)
}

// SendFrame sends a pre-built frame, subject to the same state gate
// as Send.
func (c *Client) SendFrame(frame domain.Frame) error {
	c.mu.Lock()
	state := c.state
	conn := c.conn
	c.mu.Unlock()

	if state != Connected || conn == nil {
		if c.metrics != nil {
			c.metrics.SendsRejected.Inc()
		}
		c.log.Warn("send rejected: not connected",
			"event", frame.Event,
			"state", state.String(),
		)
		return domain.ErrSendRejected
	}

	if err := conn.WriteFrame(frame); err != nil {
		return domain.ErrConnTransient.WithCause(err)
	}
	return nil
}

// SubscribeChannel asks the server to start streaming a channel.
func (c *Client) SubscribeChannel(channel string) error {
	return c.Send(domain.EventSubscribe, domain.ChannelRequest{Channel: channel})
}

// UnsubscribeChannel asks the server to stop streaming a channel.
func (c *Client) UnsubscribeChannel(channel string) error {
	return c.Send(domain.EventUnsubscribe, domain.ChannelRequest{Channel: channel})
}
