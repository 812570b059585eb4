package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveCountsByStatus(t *testing.T) {
	t.Parallel()

	r := New()
	now := time.Unix(1700000000, 0)
	r.Observe("debian", "10", "succeeded", 90*time.Second, now)
	r.Observe("debian", "10", "failed", time.Minute, now)
	r.Observe("debian", "10", "succeeded", 2*time.Minute, now)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.builds.WithLabelValues("debian", "10", "succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.builds.WithLabelValues("debian", "10", "failed")))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(r.lastSuccess.WithLabelValues("debian", "10")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.duration))
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	r := New()
	r.Observe("alpine", "edge", "succeeded", time.Minute, time.Now())

	path := filepath.Join(t.TempDir(), "vagrantizer.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `vagrantizer_builds_total{family="alpine",revision="edge",status="succeeded"} 1`)
	assert.Contains(t, string(data), "vagrantizer_build_duration_seconds_bucket")
}

func TestNilRecorderIsNoop(t *testing.T) {
	t.Parallel()

	var r *Recorder
	r.Observe("debian", "10", "failed", time.Second, time.Now())
	assert.NoError(t, r.WriteTextfile("/nonexistent/dir/file.prom"))
	assert.NoError(t, New().WriteTextfile(""))
}
