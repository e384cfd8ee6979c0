package client_test

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/buildprops/internal/notify"
	"github.com/kode4food/buildprops/internal/runs"
	"github.com/kode4food/buildprops/internal/scheduler"
	"github.com/kode4food/buildprops/internal/server"
	"github.com/kode4food/buildprops/internal/steps"
	"github.com/kode4food/buildprops/internal/tables"
	"github.com/kode4food/buildprops/internal/wait"
	"github.com/kode4food/buildprops/pkg/api"
	"github.com/kode4food/buildprops/pkg/client"
)

func testClient(t *testing.T) *client.Client {
	t.Helper()
	n := notify.NewRegistry()
	reg := runs.NewRegistry(n, nil, nil)

	sched := scheduler.NewSystem()
	ctx, cancel := context.WithCancel(context.Background())
	go sched.Run(ctx)
	t.Cleanup(cancel)

	waits := wait.NewManager(wait.Dependencies{
		Lookup:    wait.LookupOf(reg.Store),
		Listeners: n,
		Scheduler: sched,
	}, nil)
	t.Cleanup(waits.Close)

	feed := server.NewFeed(n)
	t.Cleanup(feed.Close)

	srv := server.NewServer(server.Dependencies{
		Steps: steps.New(reg, waits, tables.New()),
		Runs:  reg,
		Waits: waits,
		Feed:  feed,
	})
	hs := httptest.NewServer(srv.SetupRoutes())
	t.Cleanup(hs.Close)
	t.Cleanup(srv.CloseWebSockets)

	return client.NewClient(hs.URL+"/", 5*time.Second)
}

func TestRunLifecycle(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	h, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)

	run, err := c.CreateRun(ctx, "build")
	require.NoError(t, err)
	assert.Equal(t, 1, run.Number)

	rc := c.Run(run.ID)
	assert.Equal(t, run.ID, rc.ID())

	got, err := rc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "build", got.Job)

	list, err := c.ListRuns(ctx, "build")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	done, err := rc.Complete(ctx)
	require.NoError(t, err)
	assert.True(t, done.IsCompleted())

	_, err = rc.Set(ctx, "A", "late")
	assert.ErrorIs(t, err, client.ErrRequestFailed)
}

func TestTypedValues(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	run, err := c.CreateRun(ctx, "build")
	require.NoError(t, err)
	rc := c.Run(run.ID)

	when := time.Date(2001, 10, 26, 21, 32, 52, 0, time.UTC)
	values := map[string]any{
		"flag":  true,
		"count": int32(3),
		"ratio": 0.5,
		"big":   big.NewInt(1234567890123),
		"when":  when,
		"name":  "box",
	}
	for k, v := range values {
		res, err := rc.Set(ctx, k, v)
		require.NoError(t, err)
		assert.True(t, res.Changed)
	}

	p, err := rc.Property(ctx, "count")
	require.NoError(t, err)
	assert.Equal(t, int32(3), p.Value)

	p, err = rc.Property(ctx, "when")
	require.NoError(t, err)
	assert.True(t, when.Equal(p.Value.(time.Time)))

	p, err = rc.Property(ctx, "big")
	require.NoError(t, err)
	assert.Equal(t, "1234567890123", p.Value.(*big.Int).String())

	props, err := rc.Properties(ctx)
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"big", "count", "flag", "name", "ratio", "when"},
		props.Keys())

	_, err = rc.Property(ctx, "missing")
	assert.ErrorIs(t, err, client.ErrNotFound)
}

func TestSetIfAbsentAndText(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	run, err := c.CreateRun(ctx, "build")
	require.NoError(t, err)
	rc := c.Run(run.ID)

	_, err = rc.SetIfAbsent(ctx, "A", "one")
	require.NoError(t, err)
	res, err := rc.SetIfAbsent(ctx, "A", "two")
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, "one", res.Property.Value)

	res, err = rc.SetText(ctx, "B", "12", api.KindByte, false)
	require.NoError(t, err)
	assert.Equal(t, int8(12), res.Property.Value)

	_, err = rc.SetText(ctx, "C", "x", api.Kind("weird"), false)
	assert.ErrorIs(t, err, client.ErrRequestFailed)
}

func TestAncestorTablesAndCounts(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	first, err := c.CreateRun(ctx, "build")
	require.NoError(t, err)
	second, err := c.CreateRun(ctx, "build")
	require.NoError(t, err)

	_, err = c.Run(first.ID).Set(ctx, "Version", "1.0")
	require.NoError(t, err)

	p, err := c.Run(second.ID).Ancestor(ctx, "Version")
	require.NoError(t, err)
	assert.Equal(t, "1.0", p.Value)

	props, err := c.Run(second.ID).TestCounts(ctx, api.TestCountsRequest{
		KeyPrefix: "t",
		Results: api.TestResults{
			Passed: []api.TestCase{{ClassName: "A"}, {ClassName: "B"}},
		},
	})
	require.NoError(t, err)
	v, _ := props.Get("tPassedCount")
	assert.Equal(t, int32(2), v)

	tables, err := c.Run(second.ID).Tables(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, api.FallbackTable, tables[0].Title)
}

func TestWaits(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	run, err := c.CreateRun(ctx, "build")
	require.NoError(t, err)
	rc := c.Run(run.ID)

	st, err := rc.StartWait(ctx, api.WaitRequest{Keys: []string{"A"}})
	require.NoError(t, err)
	assert.Equal(t, api.WaitPending, st.State)

	_, err = rc.Set(ctx, "A", "ready")
	require.NoError(t, err)

	res, err := c.AwaitWait(ctx, st.ID, time.Second)
	require.NoError(t, err)
	assert.Equal(t, api.WaitSucceeded, res.State)

	st, err = rc.StartWait(ctx, api.WaitRequest{Keys: []string{"B"}})
	require.NoError(t, err)
	res, err = c.CancelWait(ctx, st.ID, "stop")
	require.NoError(t, err)
	assert.Equal(t, api.WaitFailed, res.State)

	_, err = c.WaitStatus(ctx, "missing", 0)
	assert.ErrorIs(t, err, client.ErrNotFound)
}

func TestWatch(t *testing.T) {
	c := testClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	run, err := c.CreateRun(ctx, "build")
	require.NoError(t, err)

	ch, err := c.Watch(ctx, run.ID)
	require.NoError(t, err)

	_, err = c.Run(run.ID).Set(ctx, "A", int64(7))
	require.NoError(t, err)

	select {
	case ev := <-ch:
		require.NotNil(t, ev)
		assert.Equal(t, "A", ev.Key)
		assert.Equal(t, api.KindLong, ev.New.Kind)
	case <-time.After(time.Second):
		t.Fatal("change not received")
	}

	cancel()
	select {
	case _, ok := <-ch:
		for ok {
			_, ok = <-ch
		}
	case <-time.After(time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestErrorBody(t *testing.T) {
	hs := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("internal error"))
		},
	))
	defer hs.Close()

	c := client.NewClient(hs.URL, time.Second)
	_, err := c.CreateRun(context.Background(), "build")
	assert.ErrorIs(t, err, client.ErrRequestFailed)
	assert.Contains(t, err.Error(), "internal error")
}
