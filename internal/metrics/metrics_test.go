package metrics

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/appnet-org/wirebench/internal/bench"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Observe(t *testing.T) {
	r := NewRecorder()

	r.Observe(bench.Cycle{
		Samples: []bench.Sample{
			{Client: "WebAPI", DataSizeKB: 1.5, NetworkSeconds: 0.25, DeserializationSeconds: 1.25},
			{Client: "gRPC v1", DataSizeKB: 0.75, NetworkSeconds: 0.1, Clamped: true},
		},
		Failures: []bench.Failure{{Client: "gRPC v2", Err: errors.New("unavailable")}},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.CyclesTotal))
	assert.Equal(t, 1.5, testutil.ToFloat64(r.DataSizeKB.WithLabelValues("WebAPI")))
	assert.Equal(t, 0.25, testutil.ToFloat64(r.NetworkSeconds.WithLabelValues("WebAPI")))
	assert.Equal(t, 1.25, testutil.ToFloat64(r.DeserializationSeconds.WithLabelValues("WebAPI")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ClampedTotal.WithLabelValues("gRPC v1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.FailuresTotal.WithLabelValues("gRPC v2")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.DataSizeKB))
}

func TestRecorder_MetricNames(t *testing.T) {
	r := NewRecorder()
	r.Observe(bench.Cycle{
		Samples:  []bench.Sample{{Client: "WebAPI", Clamped: true}},
		Failures: []bench.Failure{{Client: "gRPC v1", Err: errors.New("unavailable")}},
	})

	families, err := r.Registry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"wirebench_data_size_kb",
		"wirebench_network_seconds",
		"wirebench_deserialization_seconds",
		"wirebench_clamped_total",
		"wirebench_failures_total",
		"wirebench_cycles_total",
	} {
		assert.True(t, names[want], want)
	}
}

func TestRecorder_GaugesAreOverwritten(t *testing.T) {
	r := NewRecorder()

	r.Observe(bench.Cycle{Samples: []bench.Sample{{Client: "WebAPI", NetworkSeconds: 0.5}}})
	r.Observe(bench.Cycle{Samples: []bench.Sample{{Client: "WebAPI", NetworkSeconds: 0.2}}})
	assert.Equal(t, 0.2, testutil.ToFloat64(r.NetworkSeconds.WithLabelValues("WebAPI")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.CyclesTotal))

	r.Observe(bench.Cycle{Failures: []bench.Failure{{Client: "WebAPI"}}})
	assert.Equal(t, 0, testutil.CollectAndCount(r.NetworkSeconds), "failed client's gauges are dropped")
}

func TestHandler(t *testing.T) {
	r := NewRecorder()
	r.Observe(bench.Cycle{Samples: []bench.Sample{{Client: "WebAPI", DataSizeKB: 3}}})

	srv := httptest.NewServer(Handler(r.Registry()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `wirebench_data_size_kb{client="WebAPI"} 3`)
	assert.Contains(t, string(body), "go_goroutines")

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_ServeAndStop(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := NewServer(0, NewRecorder().Registry())
	done := make(chan error, 1)
	go func() { done <- s.Serve(lis) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + lis.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.NoError(t, <-done)
}
