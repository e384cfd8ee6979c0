package runs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kode4food/buildprops/pkg/api"
)

type (
	// RedisPersister stores runs, their properties and wait records in
	// Redis. A run is kept as a JSON string at <prefix>:run:<id> and its
	// properties as a hash at <prefix>:props:<id>, with one field per key
	// holding the kind and text of the value. Pending waits are indexed in
	// <prefix>:waits, and finished wait records expire
	RedisPersister struct {
		rdb           *redis.Client
		prefix        string
		waitRetention time.Duration
	}

	// PersisterOption adjusts a RedisPersister at construction
	PersisterOption func(*RedisPersister)
)

// DefaultWaitRetention is how long a finished wait record is kept
const DefaultWaitRetention = time.Hour

// NewRedisPersister creates a persister over an existing client. Every key
// it writes is namespaced under prefix
func NewRedisPersister(
	rdb *redis.Client, prefix string, opts ...PersisterOption,
) *RedisPersister {
	p := &RedisPersister{
		rdb:           rdb,
		prefix:        prefix,
		waitRetention: DefaultWaitRetention,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithWaitRetention sets how long finished wait records are kept. A zero
// or negative retention leaves the default in place
func WithWaitRetention(d time.Duration) PersisterOption {
	return func(p *RedisPersister) {
		if d > 0 {
			p.waitRetention = d
		}
	}
}

// Ping verifies Redis connectivity
func (p *RedisPersister) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

// Close closes the underlying client
func (p *RedisPersister) Close() error {
	return p.rdb.Close()
}

// SaveRun replaces the stored run and its properties atomically
func (p *RedisPersister) SaveRun(ctx context.Context, snap *Snapshot) error {
	runJSON, err := json.Marshal(snap.Run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}
	fields := make(map[string]any, len(snap.Properties))
	for _, prop := range snap.Properties {
		data, err := json.Marshal(api.EncodeValue(prop.Value))
		if err != nil {
			return fmt.Errorf("failed to marshal property %q: %w",
				prop.Key, err)
		}
		fields[prop.Key] = data
	}

	id := string(snap.Run.ID)
	propsKey := p.key("props", id)
	_, err = p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, p.key("run", id), runJSON, 0)
		pipe.Del(ctx, propsKey)
		if len(fields) > 0 {
			pipe.HSet(ctx, propsKey, fields)
		}
		pipe.SAdd(ctx, p.key("runs"), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write run to Redis: %w", err)
	}
	return nil
}

// LoadRuns reads every stored run with its properties
func (p *RedisPersister) LoadRuns(ctx context.Context) ([]*Snapshot, error) {
	ids, err := p.rdb.SMembers(ctx, p.key("runs")).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	res := make([]*Snapshot, 0, len(ids))
	for _, id := range ids {
		snap, err := p.loadRun(ctx, id)
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		res = append(res, snap)
	}
	return res, nil
}

// SaveWait records the status of a wait. A finished wait leaves the
// pending index and its record expires after the wait retention
func (p *RedisPersister) SaveWait(
	ctx context.Context, st *api.WaitStatus,
) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal wait: %w", err)
	}
	id := string(st.ID)
	_, err = p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if st.IsDone() {
			pipe.Set(ctx, p.key("wait", id), data, p.waitRetention)
			pipe.SRem(ctx, p.key("waits"), id)
			return nil
		}
		pipe.Set(ctx, p.key("wait", id), data, 0)
		pipe.SAdd(ctx, p.key("waits"), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write wait to Redis: %w", err)
	}
	return nil
}

// LoadWaits reads every pending wait
func (p *RedisPersister) LoadWaits(
	ctx context.Context,
) ([]*api.WaitStatus, error) {
	ids, err := p.rdb.SMembers(ctx, p.key("waits")).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list waits: %w", err)
	}

	res := make([]*api.WaitStatus, 0, len(ids))
	for _, id := range ids {
		data, err := p.rdb.Get(ctx, p.key("wait", id)).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read wait %s: %w", id, err)
		}
		var st api.WaitStatus
		if err := json.Unmarshal(data, &st); err != nil {
			return nil, fmt.Errorf("failed to decode wait %s: %w", id, err)
		}
		res = append(res, &st)
	}
	return res, nil
}

func (p *RedisPersister) loadRun(
	ctx context.Context, id string,
) (*Snapshot, error) {
	data, err := p.rdb.Get(ctx, p.key("run", id)).Bytes()
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{}
	if err := json.Unmarshal(data, &snap.Run); err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", id, err)
	}

	fields, err := p.rdb.HGetAll(ctx, p.key("props", id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read properties of %s: %w", id, err)
	}
	for key, raw := range fields {
		var pv api.PropertyValue
		if err := json.Unmarshal([]byte(raw), &pv); err != nil {
			return nil, fmt.Errorf("failed to decode %s/%s: %w", id, key, err)
		}
		v, err := pv.Decode()
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s/%s: %w", id, key, err)
		}
		snap.Properties = append(snap.Properties,
			api.Property{Key: key, Value: v},
		)
	}
	snap.Properties = snap.Properties.Sorted()
	return snap, nil
}

func (p *RedisPersister) key(parts ...string) string {
	res := p.prefix
	for _, part := range parts {
		if res != "" {
			res += ":"
		}
		res += part
	}
	return res
}
