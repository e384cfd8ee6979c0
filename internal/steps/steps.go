package steps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kode4food/buildprops/internal/runs"
	"github.com/kode4food/buildprops/internal/store"
	"github.com/kode4food/buildprops/internal/tables"
	"github.com/kode4food/buildprops/internal/wait"
	"github.com/kode4food/buildprops/pkg/api"
	"github.com/kode4food/buildprops/pkg/log"
)

type (
	// Steps binds the pipeline operations to a run registry, a wait manager
	// and a table synthesizer
	Steps struct {
		runs   *runs.Registry
		waits  *wait.Manager
		tables *tables.Synthesizer
	}

	// SetRequest sets one typed property on a run
	SetRequest struct {
		Value        any
		RunID        api.RunID
		Key          string
		OnlyIfAbsent bool
	}
)

var (
	ErrKeyRequired      = errors.New("key is required")
	ErrPropertyNotFound = errors.New("property not found")
)

// New creates the pipeline operations
func New(
	r *runs.Registry, w *wait.Manager, t *tables.Synthesizer,
) *Steps {
	return &Steps{runs: r, waits: w, tables: t}
}

// SetProperty stores a typed value on a run and persists the run. With
// OnlyIfAbsent an existing value is left untouched and reported as the
// previous value
func (s *Steps) SetProperty(
	ctx context.Context, req SetRequest,
) (*api.SetPropertyResponse, error) {
	if req.Key == "" {
		return nil, ErrKeyRequired
	}

	var res *api.SetPropertyResponse
	err := s.runs.Update(ctx, req.RunID, func(st *store.Store) bool {
		res = setValue(st, req)
		return res.Changed
	})
	if err != nil {
		return nil, err
	}
	if res.Changed {
		slog.Debug("Property set",
			log.RunID(req.RunID),
			log.Key(req.Key))
	}
	return res, nil
}

func setValue(st *store.Store, req SetRequest) *api.SetPropertyResponse {
	var old any
	var had bool
	if req.OnlyIfAbsent {
		old, had = st.SetIfAbsent(req.Key, req.Value)
	} else {
		old, had = st.Set(req.Key, req.Value)
	}

	res := &api.SetPropertyResponse{
		Property: api.Property{Key: req.Key, Value: req.Value},
		Changed:  !had || (!req.OnlyIfAbsent && !store.Equal(old, req.Value)),
	}
	if had {
		res.Previous = &api.Property{Key: req.Key, Value: old}
		if req.OnlyIfAbsent {
			res.Property.Value = old
		}
	}
	return res
}

// SetText parses text as the kind named by kindTag, then sets it. An empty
// tag stores a string, and an unknown tag is rejected without applying
// anything
func (s *Steps) SetText(
	ctx context.Context, runID api.RunID, key, text, kindTag string,
	onlyIfAbsent bool,
) (*api.SetPropertyResponse, error) {
	kind, err := api.ParseKind(kindTag)
	if err != nil {
		return nil, err
	}
	v, err := kind.Parse(text)
	if err != nil {
		return nil, err
	}
	return s.SetProperty(ctx, SetRequest{
		RunID:        runID,
		Key:          key,
		Value:        v,
		OnlyIfAbsent: onlyIfAbsent,
	})
}

// GetProperty returns a property of the run itself
func (s *Steps) GetProperty(runID api.RunID, key string) (any, bool, error) {
	st, err := s.runs.Store(runID)
	if err != nil {
		return nil, false, err
	}
	v, ok := st.Get(key)
	return v, ok, nil
}

// Properties returns the sorted snapshot of a run's properties
func (s *Steps) Properties(runID api.RunID) (api.Properties, error) {
	st, err := s.runs.Store(runID)
	if err != nil {
		return nil, err
	}
	return st.Snapshot(), nil
}

// Tables synthesizes the display tables of a run
func (s *Steps) Tables(runID api.RunID) ([]api.Table, error) {
	props, err := s.Properties(runID)
	if err != nil {
		return nil, err
	}
	return s.tables.Synthesize(props), nil
}

// GetFromAncestors walks the previous runs of the same job, starting with
// the run immediately before runID, and returns the first value found for
// key together with the run that holds it
func (s *Steps) GetFromAncestors(
	runID api.RunID, key string,
) (*api.Property, *api.Run, error) {
	if key == "" {
		return nil, nil, ErrKeyRequired
	}
	cur := runID
	for {
		prev, ok, err := s.runs.Previous(cur)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrPropertyNotFound, key)
		}
		st, err := s.runs.Store(prev.ID)
		if err != nil {
			return nil, nil, err
		}
		if v, ok := st.Get(key); ok {
			return &api.Property{Key: key, Value: v}, prev, nil
		}
		cur = prev.ID
	}
}

// WaitForProperties starts waiting for keys on a run. The timeout is scaled
// by unit, which defaults to minutes. A zero or negative timeout waits
// forever
func (s *Steps) WaitForProperties(
	ctx context.Context, runID api.RunID, req api.WaitRequest,
) (*api.WaitStatus, error) {
	unit, err := api.ParseTimeUnit(req.Unit)
	if err != nil {
		return nil, err
	}
	if _, err := s.runs.Get(runID); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(req.Keys))
	for _, k := range req.Keys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return s.waits.Start(ctx, runID, keys, unit.Duration(req.Timeout))
}
