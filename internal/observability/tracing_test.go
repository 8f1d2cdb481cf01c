// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/holoauth/pkg/errutil"
)

func TestInitTracing_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{ServiceName: "holoauth"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracing_InvalidEndpoint(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{ServiceName: "holoauth", Endpoint: "http://"})
	errutil.AssertErrorCode(t, err, "TRACING_INVALID_ENDPOINT")
}

func TestNewTraceExporter_Forms(t *testing.T) {
	for _, endpoint := range []string{"127.0.0.1:4318", "http://127.0.0.1:4318", "https://collector.example.com/custom/v1/traces"} {
		t.Run(endpoint, func(t *testing.T) {
			exp, err := newTraceExporter(context.Background(), endpoint)
			require.NoError(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			assert.NoError(t, exp.Shutdown(ctx))
		})
	}
}
