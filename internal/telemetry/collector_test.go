package telemetry

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/novabind/internal/config"
	"github.com/san-kum/novabind/internal/scene"
	"github.com/san-kum/novabind/internal/sim"
	"github.com/san-kum/novabind/native"
	"github.com/san-kum/novabind/native/chipmunk"
	"github.com/san-kum/novabind/nova"
)

func TestCollectorObserve(t *testing.T) {
	c := NewCollector("unit", nil)
	f := sim.Frame{{Name: "a", Mass: 2, Velocity: native.V(3, 4)}}
	c.Observe(f, nova.Profiler{Step: 2 * time.Millisecond}, 0.5)

	assert.Equal(t, 1.0, c.Value())

	expected := `
# HELP novasim_kinetic_energy Total kinetic energy of the last frame
# TYPE novasim_kinetic_energy gauge
novasim_kinetic_energy{scene="unit"} 25
# HELP novasim_sim_time_seconds Simulated time of the current run
# TYPE novasim_sim_time_seconds gauge
novasim_sim_time_seconds{scene="unit"} 0.5
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"novasim_kinetic_energy", "novasim_sim_time_seconds"))

	c.Reset()
	assert.Zero(t, c.Value())
}

func TestCollectorWithRunner(t *testing.T) {
	e := chipmunk.New()
	sc := config.GetPreset("pendulum")
	w, err := scene.Build(e, sc, nil)
	require.NoError(t, err)
	defer w.Close()

	c := NewCollector(sc.Name, e)
	r := sim.New(nil)
	r.AddMetric(c)

	cfg := sim.DefaultConfig()
	cfg.Dt, cfg.Duration = sc.Dt, 0.5
	res, err := r.Run(context.Background(), w, cfg)
	require.NoError(t, err)
	assert.Equal(t, float64(res.StepsTaken), res.Metrics["steps_observed"])

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(c))

	n, err := testutil.GatherAndCount(reg, "novasim_step_phase_seconds")
	require.NoError(t, err)
	assert.Equal(t, len(nova.Profiler{}.Phases()), n)

	live, err := testutil.GatherAndCount(reg, "novasim_live_handles")
	require.NoError(t, err)
	assert.Equal(t, 1, live)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
}
