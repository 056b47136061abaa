package http_client

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conveyorci/conveyor/internal/ctxlog"
)

var _ Doer = &http.Client{}

func testContext() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCreateClient_AppliesTimeout(t *testing.T) {
	t.Parallel()

	client, err := CreateClient(testContext(), &Input{Timeout: "15s"})

	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, client.Timeout)
}

func TestCreateClient_InvalidTimeout(t *testing.T) {
	t.Parallel()

	_, err := CreateClient(testContext(), &Input{Timeout: "soon"})

	require.Error(t, err)
}

func TestCreateClient_InsecureSkipsVerification(t *testing.T) {
	t.Parallel()

	client, err := CreateClient(testContext(), &Input{Timeout: "1s", Insecure: true})
	require.NoError(t, err)

	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	require.NotNil(t, transport.TLSClientConfig)
	assert.True(t, transport.TLSClientConfig.InsecureSkipVerify)
}

func TestCreateClient_SecureByDefault(t *testing.T) {
	t.Parallel()

	client, err := CreateClient(testContext(), &Input{Timeout: "1s"})
	require.NoError(t, err)

	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	if transport.TLSClientConfig != nil {
		assert.False(t, transport.TLSClientConfig.InsecureSkipVerify)
	}
}
