package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"

	app "github.com/kode4food/buildprops"
	"github.com/kode4food/buildprops/internal/archive"
	"github.com/kode4food/buildprops/internal/notify"
	"github.com/kode4food/buildprops/internal/runs"
	"github.com/kode4food/buildprops/internal/scheduler"
	"github.com/kode4food/buildprops/internal/server"
	"github.com/kode4food/buildprops/internal/steps"
	"github.com/kode4food/buildprops/internal/tables"
	"github.com/kode4food/buildprops/internal/wait"
	"github.com/kode4food/buildprops/pkg/api"
)

type testServerEnv struct {
	Server   *server.Server
	Router   *gin.Engine
	Runs     *runs.Registry
	Waits    *wait.Manager
	Redis    *miniredis.Miniredis
	Archive  *archive.BlobArchiver
	Notifier *notify.Registry
	Feed     *server.Feed
}

func init() {
	gin.SetMode(gin.TestMode)
}

func testServer(t *testing.T) *testServerEnv {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	persister := runs.NewRedisPersister(
		redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test",
	)
	t.Cleanup(func() { _ = persister.Close() })

	arch, err := archive.NewBlobArchiver(memblob.OpenBucket(nil), "archive")
	require.NoError(t, err)
	t.Cleanup(func() { _ = arch.Close() })

	n := notify.NewRegistry()
	reg := runs.NewRegistry(n, persister, arch)

	sched := scheduler.NewSystem()
	ctx, cancel := context.WithCancel(context.Background())
	go sched.Run(ctx)
	t.Cleanup(cancel)

	waits := wait.NewManager(wait.Dependencies{
		Lookup:    wait.LookupOf(reg.Store),
		Listeners: n,
		Scheduler: sched,
	}, persister)
	t.Cleanup(waits.Close)

	feed := server.NewFeed(n)
	t.Cleanup(feed.Close)

	srv := server.NewServer(server.Dependencies{
		Steps:   steps.New(reg, waits, tables.New()),
		Runs:    reg,
		Waits:   waits,
		Feed:    feed,
		Archive: arch,
		Health:  persister,
	})
	t.Cleanup(srv.CloseWebSockets)

	return &testServerEnv{
		Server:   srv,
		Router:   srv.SetupRoutes(),
		Runs:     reg,
		Waits:    waits,
		Redis:    mr,
		Archive:  arch,
		Notifier: n,
		Feed:     feed,
	}
}

func (e *testServerEnv) do(
	t *testing.T, method, path string, body any,
) *httptest.ResponseRecorder {
	t.Helper()
	var data []byte
	switch b := body.(type) {
	case nil:
	case string:
		data = []byte(b)
	default:
		var err error
		data, err = json.Marshal(b)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

func (e *testServerEnv) createRun(t *testing.T, job string) *api.Run {
	t.Helper()
	w := e.do(t, "POST", "/runs", api.CreateRunRequest{Job: job})
	require.Equal(t, http.StatusCreated, w.Code)
	var run api.Run
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
	return &run
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var res T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res
}

func TestHealthEndpoint(t *testing.T) {
	env := testServer(t)

	w := env.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	res := decode[api.HealthResponse](t, w)
	assert.Equal(t, app.Name, res.Service)
	assert.Equal(t, "healthy", res.Status)
}

func TestHealthUnavailable(t *testing.T) {
	env := testServer(t)
	env.Redis.Close()

	w := env.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "unhealthy", decode[api.HealthResponse](t, w).Status)
}

func TestCreateRun(t *testing.T) {
	env := testServer(t)

	first := env.createRun(t, "build")
	second := env.createRun(t, "build")
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, 2, second.Number)
	assert.Equal(t, api.RunActive, first.Status)
	assert.True(t, env.Redis.Exists("test:run:"+string(first.ID)))

	w := env.do(t, "GET", "/runs/"+string(first.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, first.ID, decode[api.Run](t, w).ID)

	w = env.do(t, "GET", "/runs?job=build", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]api.Run](t, w), 2)
}

func TestCreateRunErrors(t *testing.T) {
	env := testServer(t)

	w := env.do(t, "POST", "/runs", "not-json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, "POST", "/runs", api.CreateRunRequest{Job: " "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	res := decode[api.ErrorResponse](t, w)
	assert.Contains(t, res.Error, runs.ErrJobRequired.Error())
}

func TestGetRunNotFound(t *testing.T) {
	env := testServer(t)

	w := env.do(t, "GET", "/runs/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, http.StatusNotFound, decode[api.ErrorResponse](t, w).Status)
}

func TestCompleteRunArchives(t *testing.T) {
	env := testServer(t)
	run := env.createRun(t, "build")

	w := env.do(t, "PUT", "/runs/"+string(run.ID)+"/properties/A",
		`{"value": 1}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, "POST", "/runs/"+string(run.ID)+"/complete", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, api.RunCompleted, decode[api.Run](t, w).Status)

	w = env.do(t, "POST", "/runs/"+string(run.ID)+"/complete", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, "PUT", "/runs/"+string(run.ID)+"/properties/B",
		`{"value": 2}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, "GET", "/archive/build/"+string(run.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decode[runs.Snapshot](t, w)
	assert.Equal(t, run.ID, snap.Run.ID)
	v, ok := snap.Properties.Get("A")
	assert.True(t, ok)
	assert.Equal(t, int64(1), v)

	w = env.do(t, "GET", "/archive/build/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestArchiveDisabled(t *testing.T) {
	srv := server.NewServer(server.Dependencies{})
	req := httptest.NewRequest("GET", "/archive/build/run-1", nil)
	w := httptest.NewRecorder()
	srv.SetupRoutes().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
