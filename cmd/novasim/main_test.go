package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/san-kum/novabind/internal/config"
	"github.com/san-kum/novabind/nova"
)

func sceneCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	sceneFlags(cmd)
	return cmd
}

func TestParseVec(t *testing.T) {
	v, err := parseVec(" 1.5, -2 ")
	require.NoError(t, err)
	assert.Equal(t, nova.V(1.5, -2), v)

	for _, bad := range []string{"", "1", "1,2,3", "a,2"} {
		_, err := parseVec(bad)
		assert.Error(t, err, bad)
	}
}

func TestLoadScenePresetAndOverrides(t *testing.T) {
	cmd := sceneCmd()
	require.NoError(t, cmd.Flags().Set("time", "0.25"))
	require.NoError(t, cmd.Flags().Set("broadphase", "spatial_hash"))

	sc, err := loadScene(cmd, "pendulum")
	require.NoError(t, err)
	assert.Equal(t, 0.25, sc.Duration)
	assert.Equal(t, "spatial_hash", sc.Broadphase)
	assert.Equal(t, config.DefaultDt, sc.Dt)
}

func TestLoadSceneFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.yaml")
	sc := config.GetPreset("ray")
	sc.Name = "from_file"
	require.NoError(t, config.Save(path, sc))

	got, err := loadScene(sceneCmd(), path)
	require.NoError(t, err)
	assert.Equal(t, "from_file", got.Name)
	assert.Len(t, got.Bodies, 2)
}

func TestLoadSceneUnknown(t *testing.T) {
	_, err := loadScene(sceneCmd(), filepath.Join(os.TempDir(), "does-not-exist.yaml"))
	assert.ErrorContains(t, err, "unknown scene")
}

func TestLoadSceneInvalidOverride(t *testing.T) {
	cmd := sceneCmd()
	require.NoError(t, cmd.Flags().Set("broadphase", "octree"))
	_, err := loadScene(cmd, "pendulum")
	assert.Error(t, err)
}

func TestRayEnds(t *testing.T) {
	t.Cleanup(func() { rayFrom, rayTo = "", "" })

	from, to, err := rayEnds(config.GetPreset("ray"))
	require.NoError(t, err)
	assert.Equal(t, nova.V(0, 0), from)
	assert.Equal(t, nova.V(12, 0), to)

	_, _, err = rayEnds(config.GetPreset("pendulum"))
	assert.Error(t, err)

	rayFrom, rayTo = "0,1", "3,1"
	from, to, err = rayEnds(config.GetPreset("pendulum"))
	require.NoError(t, err)
	assert.Equal(t, nova.V(0, 1), from)
	assert.Equal(t, nova.V(3, 1), to)
}

func TestNewLogger(t *testing.T) {
	l, err := newLogger("debug")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = newLogger("warn")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))

	_, err = newLogger("loud")
	assert.Error(t, err)
}

func TestParseParam(t *testing.T) {
	name, vals, err := parseParam("iterations= 5, 10,20")
	require.NoError(t, err)
	assert.Equal(t, "iterations", name)
	assert.Equal(t, []float64{5, 10, 20}, vals)

	_, _, err = parseParam("iterations")
	assert.Error(t, err)
	_, _, err = parseParam("dt=fast")
	assert.Error(t, err)
}
