// Package sandbox implements the per-request context controller of
// spec §4.8: a fixed-memory-budget arena, one-way lifecycle state
// machine, and ownership of every per-request resource (effect
// registry, cache, gas meter, seed, DB pool, HTTP client) — no
// package-level mutable state, unlike original_source's
// `__thread g_db_pool`/`__thread g_http_cache` thread-locals.
package sandbox

import (
	"context"
	"crypto/ecdsa"
	"net/http"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/mtpscript/runtime/effect"
	"github.com/mtpscript/runtime/effects"
	"github.com/mtpscript/runtime/gas"
	"github.com/mtpscript/runtime/mtperr"
	"github.com/mtpscript/runtime/seed"
	"github.com/mtpscript/runtime/snapshot"
	"github.com/mtpscript/runtime/value"
)

// Context owns every resource a single request's execution touches.
// It is never shared across requests and is pinned to the goroutine
// that created it for its lifetime (spec §5).
type Context struct {
	mu sync.Mutex

	cfg   Config
	state State

	arena []byte
	used  int

	Snapshot *snapshot.Snapshot
	Metadata snapshot.Metadata

	Seed  [32]byte
	Meter *gas.Meter

	Registry *effect.Registry
	cache    map[effect.CacheKey]effect.CacheEntry

	dbPool     *pgxpool.Pool
	httpClient *http.Client
	logger     *logrus.Entry

	trapErr *mtperr.Error
}

// New allocates a Fresh context with a fixed arena sized by
// cfg.MemoryBudgetBytes (spec §4.8 step 1). No snapshot is loaded yet;
// Bootstrap does that.
func New(cfg Config, logger *logrus.Logger) *Context {
	if logger == nil {
		logger = logrus.New()
	}
	return &Context{
		cfg:    cfg,
		state:  Fresh,
		arena:  make([]byte, cfg.MemoryBudgetBytes),
		cache:  map[effect.CacheKey]effect.CacheEntry{},
		logger: logger.WithField("component", "sandbox"),
	}
}

// Bootstrap performs spec §4.8 steps 2–4: verify+load the snapshot,
// install the declared-effects table, inject the gas limit, derive
// the seed. It transitions Fresh -> Bootstrapped on success, never
// reaching Running on failure.
func (c *Context) Bootstrap(
	snapshotBytes []byte,
	pub *ecdsa.PublicKey,
	reqID, accID, version string,
	gasLimit uint64,
) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.transition(Bootstrapped); err != nil {
		return err
	}

	snap, err := snapshot.Parse(snapshotBytes, pub)
	if err != nil {
		return c.trap(err)
	}
	c.Snapshot = snap

	meta, err := snapshot.ParseMetadata(snap.Metadata)
	if err != nil {
		return c.trap(err)
	}
	c.Metadata = meta

	meter, err := gas.NewMeter(gasLimit)
	if err != nil {
		return c.trap(err)
	}
	c.Meter = meter

	c.Seed = seed.Derive(reqID, accID, version, snap.Hash(), gasLimit)
	c.Registry = effect.NewRegistry(meta.DeclaredEffects)

	c.logger = c.logger.WithFields(logrus.Fields{
		"request_id": reqID,
		"account_id": accID,
	})
	return nil
}

// RegisterEffects installs the concrete effect.Handler implementations
// for this context (spec §4.7/§4.8: dbPool and httpClient are Context
// fields, never package-level state). httpClient may be nil, in which
// case one is built from cfg.VerifyTLS/HTTPTimeout.
func (c *Context) RegisterEffects(dbPool *pgxpool.Pool, httpClient *http.Client) error {
	c.dbPool = dbPool
	if httpClient != nil {
		c.httpClient = httpClient
	} else {
		c.httpClient = effects.NewHTTPClient(c.cfg.VerifyTLS, c.cfg.HTTPTimeout)
	}

	registrations := []struct {
		name    string
		handler effect.Handler
	}{
		{"DbRead", effects.DbRead{Pool: c.dbPool}},
		{"DbWrite", effects.DbWrite{Pool: c.dbPool}},
		{"HttpOut", effects.HTTPOut{Client: c.httpClient}},
		{"Log", effects.Log{Logger: c.logger.Logger, Seed: c.Seed}},
	}
	for _, r := range registrations {
		if err := c.Registry.Register(r.name, r.handler); err != nil {
			return err
		}
	}
	return c.Registry.Register("Async", effects.Async{Resolve: func(name string) (effects.Handler, bool) {
		return c.Registry.Handler(name)
	}})
}

// Run marks the context Running (spec §4.8 step 5). The caller drives
// opcode dispatch and calls InvokeEffect for each effect call; this
// package only owns lifecycle and resource state, not interpretation.
func (c *Context) Run() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transition(Running)
}

// Charge decrements the gas meter for op, trapping the context on
// GasExhausted so a caller driving opcode dispatch never has to
// separately remember to call Trap on underflow (spec §4.4/§4.8: gas
// exhaustion is fatal at the context level, not a recoverable error).
func (c *Context) Charge(op gas.Opcode) error {
	if err := c.Meter.Charge(op); err != nil {
		return c.Trap(err)
	}
	return nil
}

// InvokeEffect is the sole path a running interpreter uses to perform
// an effect call, threading this context's seed/cache/registry through
// effect.Registry.Invoke (spec §4.6). The determinism cache itself
// counts against the arena budget (spec Open Question (c)): whenever
// the call actually grows the cache (a miss), InvokeEffect charges a
// flat per-entry cost against the arena after the fact, so a request
// that would grow the cache past cfg.MemoryBudgetBytes traps
// deterministically rather than letting the host process grow
// unbounded. A cache hit never touches the budget, matching spec §4.6:
// a replay of the same call is free.
func (c *Context) InvokeEffect(ctx context.Context, fn string, contID uint64, name string, args value.Value) (value.JSON, error) {
	before := len(c.cache)
	result, err := c.Registry.Invoke(ctx, c.cache, c.Seed, fn, contID, name, args)
	if len(c.cache) > before {
		if allocErr := c.Alloc(estimatedEffectEntrySize); allocErr != nil {
			return value.JSON{}, c.Trap(allocErr)
		}
	}
	return result, err
}

// estimatedEffectEntrySize is the flat per-entry cost charged against
// the arena budget for each distinct effect call a request makes. It is
// a coarse accounting unit, not a byte-exact measurement: the cache
// entry holds a JSON result of unbounded shape, so no cheap exact size
// exists without walking the value tree on every call.
const estimatedEffectEntrySize = 256

// Alloc charges n bytes against the arena's fixed budget (spec §4.8
// step 1 / Open Question (c)). Its only caller is InvokeEffect, for
// each new effect cache entry; the guest interpreter's value stack is
// not charged against the budget. Exceeding the budget returns
// mtperr.MemoryLimitExceeded, which InvokeEffect turns into a trap.
func (c *Context) Alloc(n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.used+n > len(c.arena) {
		return mtperr.New(mtperr.MemoryLimitExceeded, "request exceeded its memory budget")
	}
	c.used += n
	return nil
}

// Complete transitions Running -> Completed: the program's entry point
// returned a value without tripping the gas meter or any fatal error.
func (c *Context) Complete() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transition(Completed)
}

// trap transitions Running -> Trapped, recording err as the fatal
// cause (spec §7: gas/signature/memory-controller errors are fatal at
// the context level; no further opcode executes). Must be called with
// c.mu held.
func (c *Context) trap(err error) error {
	mtpErr, ok := err.(*mtperr.Error)
	if !ok {
		mtpErr = mtperr.Wrap(mtperr.Internal, err, "context trapped")
	}
	c.trapErr = mtpErr
	if tErr := c.transition(Trapped); tErr != nil {
		return tErr
	}
	return mtpErr
}

// Trap is the exported form of trap, for interpreter loops outside
// this package that hit a gas/signature/memory fault mid-execution.
func (c *Context) Trap(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trap(err)
}

// TrapError returns the error that caused a Trapped transition, or nil
// if the context never trapped.
func (c *Context) TrapError() *mtperr.Error { return c.trapErr }

// Wipe performs spec §4.8 step 8: a five-pass overwrite of the entire
// arena (0xFF, 0x00, 0xFF, 0xAA, 0x00) plus the snapshot's program
// bytes, then closes any pooled DB connection, before transitioning to
// Wiped. Both Completed and Trapped lead here — Trapped always passes
// through Wiped before Released (spec §4.8).
func (c *Context) Wipe() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.transition(Wiped); err != nil {
		return err
	}

	wipePatterns := [5]byte{0xFF, 0x00, 0xFF, 0xAA, 0x00}
	for _, pattern := range wipePatterns {
		for i := range c.arena {
			c.arena[i] = pattern
		}
	}
	if c.Snapshot != nil {
		c.Snapshot.Wipe()
	}
	c.cache = nil

	if c.dbPool != nil {
		c.dbPool.Close()
	}
	return nil
}

// Release transitions Wiped -> Released, the terminal state. After
// this call the context must never be reused (spec §4.8: "no allocator
// reuse across requests is permitted without a prior wipe" — Release
// marks that the wipe already happened and the context is now inert).
func (c *Context) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transition(Released)
}
