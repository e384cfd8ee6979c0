package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/kode4food/buildprops/pkg/api"
)

type (
	// Client talks to a build properties server
	Client struct {
		httpClient *http.Client
		baseURL    string
	}

	// RunClient scopes property operations to a single run
	RunClient struct {
		client *Client
		runID  api.RunID
	}

	// ArchivedRun is a completed run read back from the archive
	ArchivedRun struct {
		Run        api.Run        `json:"run"`
		Properties api.Properties `json:"properties"`
	}
)

var (
	ErrNotFound      = errors.New("not found")
	ErrRequestFailed = errors.New("request failed")
)

const (
	DefaultTimeout = 30 * time.Second

	routeRuns    = "/runs"
	routeWaits   = "/waits"
	routeArchive = "/archive"
	routeHealth  = "/health"
)

// NewClient creates a Client for the server at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Health reports the server's health
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var res api.HealthResponse
	if err := c.doJSON(ctx, "GET", routeHealth, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CreateRun starts a new run of job
func (c *Client) CreateRun(ctx context.Context, job string) (*api.Run, error) {
	var res api.Run
	err := c.doJSON(ctx, "POST", routeRuns, api.CreateRunRequest{Job: job},
		&res, http.StatusCreated)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ListRuns returns the runs of job ordered by number
func (c *Client) ListRuns(ctx context.Context, job string) ([]api.Run, error) {
	var res []api.Run
	path := routeRuns + "?job=" + url.QueryEscape(job)
	if err := c.doJSON(ctx, "GET", path, nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// Run returns a client scoped to the run with the given ID
func (c *Client) Run(id api.RunID) *RunClient {
	return &RunClient{client: c, runID: id}
}

// WaitStatus returns the status of a wait. A positive block holds the
// request until the wait completes or block elapses
func (c *Client) WaitStatus(
	ctx context.Context, id api.WaitID, block time.Duration,
) (*api.WaitStatus, error) {
	path := c.waitPath(id)
	if block > 0 {
		path += "?block=" + url.QueryEscape(block.String())
	}
	var res api.WaitStatus
	if err := c.doJSON(ctx, "GET", path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// AwaitWait polls a wait until it reaches a terminal state or ctx ends
func (c *Client) AwaitWait(
	ctx context.Context, id api.WaitID, block time.Duration,
) (*api.WaitStatus, error) {
	for {
		st, err := c.WaitStatus(ctx, id, block)
		if err != nil {
			return nil, err
		}
		if st.IsDone() {
			return st, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// CancelWait cancels a pending wait with cause
func (c *Client) CancelWait(
	ctx context.Context, id api.WaitID, cause string,
) (*api.WaitStatus, error) {
	path := c.waitPath(id)
	if cause != "" {
		path += "?cause=" + url.QueryEscape(cause)
	}
	var res api.WaitStatus
	if err := c.doJSON(ctx, "DELETE", path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Archived reads a completed run back from the archive
func (c *Client) Archived(
	ctx context.Context, job string, id api.RunID,
) (*ArchivedRun, error) {
	path := fmt.Sprintf("%s/%s/%s",
		routeArchive, url.PathEscape(job), url.PathEscape(string(id)))
	var res ArchivedRun
	if err := c.doJSON(ctx, "GET", path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ID returns the run's identifier
func (rc *RunClient) ID() api.RunID {
	return rc.runID
}

// Get returns the run itself
func (rc *RunClient) Get(ctx context.Context) (*api.Run, error) {
	var res api.Run
	if err := rc.client.doJSON(ctx, "GET", rc.path(""), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Complete finalizes the run
func (rc *RunClient) Complete(ctx context.Context) (*api.Run, error) {
	var res api.Run
	err := rc.client.doJSON(ctx, "POST", rc.path("/complete"), nil, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Set stores a typed value under key. The value's kind travels with it
func (rc *RunClient) Set(
	ctx context.Context, key string, value any,
) (*api.SetPropertyResponse, error) {
	return rc.set(ctx, key, value, false)
}

// SetIfAbsent stores a typed value only when key has no value yet
func (rc *RunClient) SetIfAbsent(
	ctx context.Context, key string, value any,
) (*api.SetPropertyResponse, error) {
	return rc.set(ctx, key, value, true)
}

// SetText parses text as kind on the server and stores the result
func (rc *RunClient) SetText(
	ctx context.Context, key, text string, kind api.Kind, onlyIfAbsent bool,
) (*api.SetPropertyResponse, error) {
	var res api.SetPropertyResponse
	err := rc.client.doJSON(ctx, "PUT", rc.propertyPath(key),
		api.SetPropertyRequest{
			Value:        text,
			Type:         kind,
			OnlyIfAbsent: onlyIfAbsent,
		}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Property returns the value stored under key on this run
func (rc *RunClient) Property(
	ctx context.Context, key string,
) (*api.Property, error) {
	var res api.Property
	err := rc.client.doJSON(ctx, "GET", rc.propertyPath(key), nil, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Ancestor returns the most recent value of key among earlier runs of the
// same job
func (rc *RunClient) Ancestor(
	ctx context.Context, key string,
) (*api.Property, error) {
	var res api.Property
	path := rc.path("/ancestors/" + url.PathEscape(key))
	if err := rc.client.doJSON(ctx, "GET", path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Properties returns every property of the run ordered by key
func (rc *RunClient) Properties(ctx context.Context) (api.Properties, error) {
	var res api.Properties
	err := rc.client.doJSON(ctx, "GET", rc.path("/properties"), nil, &res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Tables returns the display tables of the run
func (rc *RunClient) Tables(ctx context.Context) ([]api.Table, error) {
	var res []api.Table
	err := rc.client.doJSON(ctx, "GET", rc.path("/tables"), nil, &res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// TestCounts stores pass and fail counts derived from results
func (rc *RunClient) TestCounts(
	ctx context.Context, req api.TestCountsRequest,
) (api.Properties, error) {
	var res api.Properties
	err := rc.client.doJSON(ctx, "POST", rc.path("/test-counts"), req, &res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// StartWait begins waiting for keys on the run
func (rc *RunClient) StartWait(
	ctx context.Context, req api.WaitRequest,
) (*api.WaitStatus, error) {
	var res api.WaitStatus
	err := rc.client.doJSON(ctx, "POST", rc.path("/waits"), req, &res,
		http.StatusAccepted)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (rc *RunClient) set(
	ctx context.Context, key string, value any, onlyIfAbsent bool,
) (*api.SetPropertyResponse, error) {
	pv := api.EncodeValue(value)
	return rc.SetText(ctx, key, pv.Text, pv.Kind, onlyIfAbsent)
}

func (rc *RunClient) path(suffix string) string {
	return routeRuns + "/" + url.PathEscape(string(rc.runID)) + suffix
}

func (rc *RunClient) propertyPath(key string) string {
	return rc.path("/properties/" + url.PathEscape(key))
}

func (c *Client) waitPath(id api.WaitID) string {
	return routeWaits + "/" + url.PathEscape(string(id))
}

func (c *Client) doJSON(
	ctx context.Context, method, path string, in, out any, ok ...int,
) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if len(ok) == 0 {
		ok = []int{http.StatusOK}
	}
	if !slices.Contains(ok, resp.StatusCode) {
		return responseError(resp)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func responseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var res api.ErrorResponse
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &res) == nil && res.Error != "" {
		msg = res.Error
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	}
	return fmt.Errorf("%w: status %d, body: %s",
		ErrRequestFailed, resp.StatusCode, msg)
}
