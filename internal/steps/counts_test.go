package steps_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/buildprops/internal/steps"
	"github.com/kode4food/buildprops/pkg/api"
)

func results() api.TestResults {
	return api.TestResults{
		Passed: []api.TestCase{
			{ClassName: "com.acme.api.UserTest"},
			{ClassName: "com.acme.api.OrderTest"},
			{ClassName: "com.acme.ui.LoginTest"},
			{ClassName: ""},
		},
		Failed: []api.TestCase{
			{ClassName: "com.acme.api.UserTest", Age: 3},
			{ClassName: "com.acme.ui.LoginTest", Age: 7},
		},
	}
}

func TestSetTestCounts(t *testing.T) {
	e := newEnv(t)
	id := e.run(t, "build")

	res, err := e.steps.SetTestCounts(context.Background(), id,
		api.TestCountsRequest{Results: results(), KeyPrefix: "all"},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"allPassedCount", "allFailedCount", "allFailedAge",
	}, res.Keys())

	v, _, _ := e.steps.GetProperty(id, "allPassedCount")
	assert.Equal(t, int32(3), v)
	v, _, _ = e.steps.GetProperty(id, "allFailedCount")
	assert.Equal(t, int32(2), v)
	v, _, _ = e.steps.GetProperty(id, "allFailedAge")
	assert.Equal(t, int32(7), v)
}

func TestSetTestCountsFilters(t *testing.T) {
	e := newEnv(t)
	id := e.run(t, "build")

	_, err := e.steps.SetTestCounts(context.Background(), id,
		api.TestCountsRequest{
			Results:   results(),
			KeyPrefix: "api",
			Include:   `com\.acme\.api\..*`,
			Exclude:   `.*Order.*`,
		},
	)
	require.NoError(t, err)

	v, _, _ := e.steps.GetProperty(id, "apiPassedCount")
	assert.Equal(t, int32(1), v)
	v, _, _ = e.steps.GetProperty(id, "apiFailedCount")
	assert.Equal(t, int32(1), v)
	v, _, _ = e.steps.GetProperty(id, "apiFailedAge")
	assert.Equal(t, int32(3), v)
}

func TestSetTestCountsIncludeIsFullMatch(t *testing.T) {
	e := newEnv(t)
	id := e.run(t, "build")

	_, err := e.steps.SetTestCounts(context.Background(), id,
		api.TestCountsRequest{Results: results(), Include: "api"},
	)
	require.NoError(t, err)

	v, _, _ := e.steps.GetProperty(id, "PassedCount")
	assert.Equal(t, int32(0), v)
}

func TestSetTestCountsOnlyIfAbsent(t *testing.T) {
	e := newEnv(t)
	id := e.run(t, "build")
	ctx := context.Background()

	_, err := e.steps.SetProperty(ctx, steps.SetRequest{
		RunID: id, Key: "xPassedCount", Value: int32(99),
	})
	require.NoError(t, err)

	res, err := e.steps.SetTestCounts(ctx, id, api.TestCountsRequest{
		Results: results(), KeyPrefix: "x", OnlyIfAbsent: true,
	})
	require.NoError(t, err)

	v, _ := res.Get("xPassedCount")
	assert.Equal(t, int32(99), v)
	v, _, _ = e.steps.GetProperty(id, "xFailedCount")
	assert.Equal(t, int32(2), v)
}

func TestSetTestCountsBadPattern(t *testing.T) {
	e := newEnv(t)
	id := e.run(t, "build")

	_, err := e.steps.SetTestCounts(context.Background(), id,
		api.TestCountsRequest{Results: results(), Include: "(broken"},
	)
	assert.ErrorIs(t, err, steps.ErrInvalidPattern)
	_, ok, _ := e.steps.GetProperty(id, "PassedCount")
	assert.False(t, ok)
}

func TestSetTestCountsSaturatesAge(t *testing.T) {
	e := newEnv(t)
	id := e.run(t, "build")

	_, err := e.steps.SetTestCounts(context.Background(), id,
		api.TestCountsRequest{
			Results: api.TestResults{
				Failed: []api.TestCase{
					{ClassName: "com.acme.OldTest", Age: math.MaxInt32 + 1},
					{ClassName: "com.acme.NewTest", Age: 5},
				},
			},
			KeyPrefix: "big",
		},
	)
	require.NoError(t, err)
	v, _, _ := e.steps.GetProperty(id, "bigFailedAge")
	assert.Equal(t, int32(math.MaxInt32), v)

	_, err = e.steps.SetTestCounts(context.Background(), id,
		api.TestCountsRequest{
			Results: api.TestResults{
				Failed: []api.TestCase{
					{ClassName: "com.acme.BadTest", Age: -4},
				},
			},
			KeyPrefix: "neg",
		},
	)
	require.NoError(t, err)
	v, _, _ = e.steps.GetProperty(id, "negFailedAge")
	assert.Equal(t, int32(0), v)
}
