package runs_test

import (
	"context"
	"math/big"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/buildprops/internal/runs"
	"github.com/kode4food/buildprops/pkg/api"
)

func newRedisPersister(t *testing.T) (*runs.RedisPersister, *miniredis.Miniredis) {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	p := runs.NewRedisPersister(
		redis.NewClient(&redis.Options{Addr: server.Addr()}), "buildprops",
	)
	t.Cleanup(func() { _ = p.Close() })
	return p, server
}

func TestRedisRoundTrip(t *testing.T) {
	p, server := newRedisPersister(t)
	ctx := context.Background()
	require.NoError(t, p.Ping(ctx))

	when := time.Date(2001, 10, 26, 21, 32, 52, 0, time.UTC)
	snap := &runs.Snapshot{
		Run: api.Run{
			ID:        "run-1",
			Job:       "build",
			Number:    4,
			Status:    api.RunActive,
			CreatedAt: when,
		},
		Properties: api.Properties{
			{Key: "Count", Value: int64(3)},
			{Key: "Flag", Value: true},
			{Key: "Big", Value: big.NewInt(99)},
			{Key: "When", Value: when},
			{Key: "Name", Value: "box"},
		},
	}
	require.NoError(t, p.SaveRun(ctx, snap))
	assert.True(t, server.Exists("buildprops:run:run-1"))
	assert.True(t, server.Exists("buildprops:props:run-1"))

	loaded, err := p.LoadRuns(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	got := loaded[0]
	assert.Equal(t, snap.Run.ID, got.Run.ID)
	assert.Equal(t, snap.Run.Number, got.Run.Number)
	assert.True(t, when.Equal(got.Run.CreatedAt))
	assert.Equal(t, []string{"Big", "Count", "Flag", "Name", "When"},
		got.Properties.Keys())

	v, _ := got.Properties.Get("Count")
	assert.Equal(t, int64(3), v)
	v, _ = got.Properties.Get("Flag")
	assert.Equal(t, true, v)
	v, _ = got.Properties.Get("Big")
	assert.Equal(t, "99", v.(*big.Int).String())
	v, _ = got.Properties.Get("When")
	assert.True(t, when.Equal(v.(time.Time)))
}

func TestRedisSaveReplacesProperties(t *testing.T) {
	p, _ := newRedisPersister(t)
	ctx := context.Background()
	run := api.Run{ID: "run-1", Job: "build", Number: 1}

	require.NoError(t, p.SaveRun(ctx, &runs.Snapshot{
		Run:        run,
		Properties: api.Properties{{Key: "A", Value: "1"}},
	}))
	require.NoError(t, p.SaveRun(ctx, &runs.Snapshot{
		Run:        run,
		Properties: api.Properties{{Key: "B", Value: "2"}},
	}))

	loaded, err := p.LoadRuns(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, []string{"B"}, loaded[0].Properties.Keys())
}

func TestRedisWaits(t *testing.T) {
	p, _ := newRedisPersister(t)
	ctx := context.Background()

	st := &api.WaitStatus{
		ID:    "w1",
		RunID: "run-1",
		Keys:  []string{"A"},
		State: api.WaitPending,
	}
	require.NoError(t, p.SaveWait(ctx, st))

	waits, err := p.LoadWaits(ctx)
	require.NoError(t, err)
	require.Len(t, waits, 1)
	assert.Equal(t, api.WaitPending, waits[0].State)
	assert.Equal(t, []string{"A"}, waits[0].Keys)
}

func TestRedisFinishedWaitsExpire(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)
	p := runs.NewRedisPersister(
		redis.NewClient(&redis.Options{Addr: server.Addr()}), "buildprops",
		runs.WithWaitRetention(10*time.Minute),
	)
	ctx := context.Background()

	st := &api.WaitStatus{
		ID:    "w1",
		RunID: "run-1",
		Keys:  []string{"A"},
		State: api.WaitPending,
	}
	require.NoError(t, p.SaveWait(ctx, st))
	st.State = api.WaitFailed
	st.TimedOut = true
	require.NoError(t, p.SaveWait(ctx, st))

	waits, err := p.LoadWaits(ctx)
	require.NoError(t, err)
	assert.Empty(t, waits)
	assert.True(t, server.Exists("buildprops:wait:w1"))
	assert.Equal(t, 10*time.Minute, server.TTL("buildprops:wait:w1"))

	server.FastForward(11 * time.Minute)
	assert.False(t, server.Exists("buildprops:wait:w1"))
}

func TestRegistryOverRedis(t *testing.T) {
	p, _ := newRedisPersister(t)
	ctx := context.Background()

	reg := runs.NewRegistry(nil, p, nil)
	r, err := reg.Create(ctx, "build")
	require.NoError(t, err)
	st, _ := reg.Store(r.ID)
	st.Set("A", "x")
	require.NoError(t, reg.Save(ctx, r.ID))

	restored := runs.NewRegistry(nil, p, nil)
	require.NoError(t, restored.Load(ctx))
	got, err := restored.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, "build", got.Job)

	rst, _ := restored.Store(r.ID)
	v, ok := rst.Get("A")
	assert.True(t, ok)
	assert.Equal(t, "x", v)
}

func TestRedisRoundTripKeepsTimeKinds(t *testing.T) {
	p, _ := newRedisPersister(t)
	ctx := context.Background()

	cases := map[string]string{
		string(api.KindDate):           "2001-10-26T21:32:52Z",
		string(api.KindInstant):        "2001-10-26T21:32:52Z",
		string(api.KindOffsetDateTime): "2001-10-26T23:32:52+02:00",
		string(api.KindZonedDateTime):  "2001-10-26T21:32:52+02:00[Europe/Berlin]",
		string(api.KindLocalDateTime):  "2001-10-26T21:32:52",
		string(api.KindLocalDate):      "2001-10-26",
		string(api.KindLocalTime):      "21:32:52",
	}
	var props api.Properties
	for key, text := range cases {
		v, err := api.Kind(key).Parse(text)
		require.NoError(t, err)
		props = append(props, api.Property{Key: key, Value: v})
	}
	require.NoError(t, p.SaveRun(ctx, &runs.Snapshot{
		Run:        api.Run{ID: "run-1", Job: "build", Number: 1},
		Properties: props.Sorted(),
	}))

	loaded, err := p.LoadRuns(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	for key, text := range cases {
		v, ok := loaded[0].Properties.Get(key)
		require.True(t, ok, key)
		pv := api.EncodeValue(v)
		assert.Equal(t, api.Kind(key), pv.Kind)
		assert.Equal(t, text, pv.Text)
	}
}
