package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenic-route-planner/internal/routing"
)

func TestSolverOptionsDefaults(t *testing.T) {
	opts, err := solverOptions()

	require.NoError(t, err)
	assert.Equal(t, routing.DefaultOptions(), opts)
}

func TestSolverOptionsFromEnv(t *testing.T) {
	t.Setenv("SOLVER_TRIALS", "250")
	t.Setenv("SOLVER_LENGTH", "6")
	t.Setenv("SOLVER_WORKERS", "3")
	t.Setenv("SOLVER_POWER", "2.5")
	t.Setenv("SOLVER_SEED", "99")

	opts, err := solverOptions()

	require.NoError(t, err)
	assert.Equal(t, 250, opts.Trials)
	assert.Equal(t, 6, opts.LengthParam)
	assert.Equal(t, 3, opts.Workers)
	assert.Equal(t, 2.5, opts.PowerParam)
	assert.Equal(t, int64(99), opts.Seed)
}

func TestSolverOptionsRejectsGarbage(t *testing.T) {
	t.Setenv("SOLVER_TRIALS", "lots")

	_, err := solverOptions()

	assert.ErrorContains(t, err, "SOLVER_TRIALS")
}

func TestGetEnv(t *testing.T) {
	t.Setenv("SCENIC_TEST_VALUE", "set")

	assert.Equal(t, "set", getEnv("SCENIC_TEST_VALUE", "default"))
	assert.Equal(t, "default", getEnv("SCENIC_TEST_MISSING", "default"))
}
