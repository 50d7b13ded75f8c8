package exporter

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furiosa-ai/furiosa-device-api/pkg/device/devicetest"
)

func TestServerHandler(t *testing.T) {
	fixture := devicetest.NewFixture(t).AddWarboy(0)
	collector := NewCollector(fixture.Lister(), time.Second, zerolog.Nop())
	server := NewServerWithContext(context.Background(), "127.0.0.1:0", collector)

	tests := []struct {
		description      string
		path             string
		expectedStatus   int
		expectedContains string
	}{
		{
			description:      "metrics",
			path:             "/metrics",
			expectedStatus:   http.StatusOK,
			expectedContains: `furiosa_npu_alive{arch="warboy",device="npu0"`,
		},
		{
			description:      "healthz",
			path:             "/healthz",
			expectedStatus:   http.StatusOK,
			expectedContains: "ok",
		},
		{
			description:    "unknown path",
			path:           "/unknown",
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			server.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, tc.path, nil))

			assert.Equal(t, tc.expectedStatus, recorder.Code)
			assert.Contains(t, recorder.Body.String(), tc.expectedContains)
		})
	}
}

func TestServerStartAndStop(t *testing.T) {
	fixture := devicetest.NewFixture(t).AddRngd(0)
	collector := NewCollector(fixture.Lister(), time.Second, zerolog.Nop())

	ctx := zerolog.Nop().WithContext(context.Background())
	server := NewServerWithContext(ctx, "127.0.0.1:0", collector)

	httpErrChan := make(chan error, 1)
	require.NoError(t, server.StartWithContext(ctx, httpErrChan))

	resp, err := http.Get("http://" + server.Addr() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `furiosa_npu_device_info{arch="rngd",device="npu0"`)

	require.NoError(t, server.Stop())
	assert.Empty(t, httpErrChan)
}

func TestHTTPLogger(t *testing.T) {
	tests := []struct {
		description   string
		status        int
		expectedLevel string
	}{
		{
			description:   "success is logged at debug",
			status:        http.StatusOK,
			expectedLevel: `"level":"debug"`,
		},
		{
			description:   "server error is logged at error",
			status:        http.StatusInternalServerError,
			expectedLevel: `"level":"error"`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			buf := new(bytes.Buffer)
			logger := zerolog.New(buf).Level(zerolog.DebugLevel)
			handler := NewHTTPLogger(logger.WithContext(context.Background()))(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				assert.NotNil(t, zerolog.Ctx(req.Context()))
				w.WriteHeader(tc.status)
			}))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))

			assert.Contains(t, buf.String(), tc.expectedLevel)
			assert.Contains(t, buf.String(), `"path":"/metrics"`)
			assert.Contains(t, buf.String(), "http middleware event logging")
		})
	}
}
