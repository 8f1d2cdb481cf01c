// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package notify_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/notify"
)

func TestNATSNotifier_Integration(t *testing.T) {
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "nats:2-alpine",
			ExposedPorts: []string{"4222/tcp"},
			WaitingFor:   wait.ForLog("Server is ready").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "nats")
	require.NoError(t, err)

	nc, err := notify.Connect(endpoint)
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	msgs := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(notify.DefaultSubject, msgs)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Unsubscribe() })

	n, err := notify.NewNATSNotifier(nc, "")
	require.NoError(t, err)
	require.NoError(t, n.NotifyReset(ctx, auth.ResetNotice{
		Email: "ann@example.com", Token: "tok", ExpiresAt: time.Now().Add(time.Hour),
	}))

	select {
	case msg := <-msgs:
		var got notify.ResetRequested
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, "tok", got.Token)
	case <-time.After(5 * time.Second):
		t.Fatal("reset notice was not delivered")
	}
}
