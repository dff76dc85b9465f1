// Package knownusers keeps the persisted set of user ids this client has
// touched. The set is always positive, unique and sorted ascending.
package knownusers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// DefaultKey names the single persisted entry.
const DefaultKey = "knownUsers"

type Store interface {
	Read(ctx context.Context) []int64
	Write(ctx context.Context, ids []int64) ([]int64, error)
	Remember(ctx context.Context, id int64) ([]int64, error)
}

type Cache struct {
	backend Backend
	logger  *slog.Logger
	mu      sync.Mutex
}

func New(backend Backend, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{backend: backend, logger: logger}
}

// Read never fails: anything that is not a JSON array yields an empty set.
func (c *Cache) Read(ctx context.Context) []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.read(ctx)
}

func (c *Cache) Write(ctx context.Context, ids []int64) ([]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.write(ctx, ids)
}

// Remember ignores non-positive ids and returns the current set unchanged.
func (c *Cache) Remember(ctx context.Context, id int64) ([]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.read(ctx)
	if id <= 0 {
		return current, nil
	}
	return c.write(ctx, append(current, id))
}

// RememberRaw is Remember for unparsed input.
func (c *Cache) RememberRaw(ctx context.Context, raw string) ([]int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return c.Read(ctx), nil
	}
	return c.Remember(ctx, id)
}

func (c *Cache) read(ctx context.Context) []int64 {
	data, err := c.backend.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Debug("known users unreadable, starting empty", "err", err)
		}
		return []int64{}
	}
	ids, ok := decode(data)
	if !ok {
		c.logger.Debug("known users malformed, starting empty")
	}
	return ids
}

func (c *Cache) write(ctx context.Context, ids []int64) ([]int64, error) {
	normalized := normalize(ids)
	payload, err := json.Marshal(normalized)
	if err != nil {
		return normalized, err
	}
	if err := c.backend.Save(ctx, payload); err != nil {
		return normalized, err
	}
	return normalized, nil
}

func normalize(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id > 0 {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func decode(data []byte) ([]int64, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return []int64{}, false
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return []int64{}, false
	}

	ids := make([]int64, 0, len(raw))
	for _, v := range raw {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if id, ok := positiveInt(n); ok {
			ids = append(ids, id)
		}
	}
	return normalize(ids), true
}

func positiveInt(n json.Number) (int64, bool) {
	if id, err := n.Int64(); err == nil {
		return id, id > 0
	}
	f, err := n.Float64()
	if err != nil || f <= 0 || f != math.Trunc(f) || f > 1<<53 {
		return 0, false
	}
	return int64(f), true
}
