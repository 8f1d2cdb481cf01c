// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/samber/oops"

	"github.com/holomush/holoauth/internal/auth"
)

// DefaultSubject is where reset notices are published.
const DefaultSubject = "holoauth.password.reset_requested"

// ResetRequested is the JSON payload published for a reset notice.
type ResetRequested struct {
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// publisher is the part of *nats.Conn the notifier uses.
type publisher interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// NATSNotifier publishes reset notices for a mailer service to consume.
type NATSNotifier struct {
	conn    publisher
	subject string
}

// NewNATSNotifier creates a NATSNotifier. An empty subject uses DefaultSubject.
func NewNATSNotifier(conn *nats.Conn, subject string) (*NATSNotifier, error) {
	if conn == nil {
		return nil, oops.Code("NOTIFY_INVALID_CONFIG").Errorf("nats connection is required")
	}
	return newNATSNotifier(conn, subject), nil
}

func newNATSNotifier(conn publisher, subject string) *NATSNotifier {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSNotifier{conn: conn, subject: subject}
}

// Connect dials the NATS server at url and names the connection after the service.
func Connect(url string, opts ...nats.Option) (*nats.Conn, error) {
	opts = append([]nats.Option{
		nats.Name("holoauth"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
	}, opts...)
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, oops.Code("NOTIFY_CONNECT_FAILED").With("url", url).Wrap(err)
	}
	return nc, nil
}

// NotifyReset publishes the notice and waits for the server to acknowledge
// the flush so a failure surfaces to the caller.
func (n *NATSNotifier) NotifyReset(ctx context.Context, notice auth.ResetNotice) error {
	data, err := json.Marshal(ResetRequested{
		Email:     notice.Email,
		Name:      notice.Name,
		Token:     notice.Token,
		ExpiresAt: notice.ExpiresAt.UTC(),
	})
	if err != nil {
		return oops.Code("NOTIFY_ENCODE_FAILED").Wrap(err)
	}

	if err := n.conn.Publish(n.subject, data); err != nil {
		return oops.Code("NOTIFY_PUBLISH_FAILED").
			With("subject", n.subject).
			Wrap(err)
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return oops.Code("NOTIFY_PUBLISH_FAILED").
			With("subject", n.subject).
			With("operation", "flush").
			Wrap(err)
	}
	return nil
}

var _ auth.ResetNotifier = (*NATSNotifier)(nil)
