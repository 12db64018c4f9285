package effect

import (
	"context"
	"errors"
	"testing"

	"github.com/mtpscript/runtime/mtperr"
	"github.com/mtpscript/runtime/value"
	"github.com/stretchr/testify/require"
)

type countingHandler struct {
	calls int
	out   value.JSON
	err   error
}

func (h *countingHandler) Invoke(ctx context.Context, args value.Value) (value.JSON, error) {
	h.calls++
	return h.out, h.err
}

func mustInt(t *testing.T, i int64) value.Value {
	t.Helper()
	v, err := value.Int(i)
	require.NoError(t, err)
	return v
}

func TestInvokeRejectsUndeclaredEffect(t *testing.T) {
	reg := NewRegistry(map[string][]string{"main": {"Log"}})
	h := &countingHandler{}
	require.NoError(t, reg.Register("DbRead", h))

	cache := map[CacheKey]CacheEntry{}
	_, err := reg.Invoke(context.Background(), cache, [32]byte{1}, "main", 0, "DbRead", mustInt(t, 0))
	require.Error(t, err)
	var mtpErr *mtperr.Error
	require.True(t, errors.As(err, &mtpErr))
	require.Equal(t, mtperr.UndeclaredEffect, mtpErr.Kind)
	require.Equal(t, 0, h.calls)
}

func TestInvokeCachesAndNeverReinvokesOnHit(t *testing.T) {
	reg := NewRegistry(map[string][]string{"main": {"Log"}})
	want, err := value.JSONFromInt(7)
	require.NoError(t, err)
	h := &countingHandler{out: want}
	require.NoError(t, reg.Register("Log", h))

	cache := map[CacheKey]CacheEntry{}
	seed := [32]byte{9, 9, 9}

	got1, err := reg.Invoke(context.Background(), cache, seed, "main", 3, "Log", mustInt(t, 1))
	require.NoError(t, err)
	require.True(t, want.Equal(got1))
	require.Equal(t, 1, h.calls)

	got2, err := reg.Invoke(context.Background(), cache, seed, "main", 3, "Log", mustInt(t, 1))
	require.NoError(t, err)
	require.True(t, want.Equal(got2))
	require.Equal(t, 1, h.calls, "cache hit must not re-invoke the handler")
}

func TestInvokeCachesErrorsToo(t *testing.T) {
	reg := NewRegistry(map[string][]string{"main": {"DbWrite"}})
	h := &countingHandler{err: mtperr.New(mtperr.DbWriteFailed, "boom")}
	require.NoError(t, reg.Register("DbWrite", h))

	cache := map[CacheKey]CacheEntry{}
	seed := [32]byte{1}

	_, err1 := reg.Invoke(context.Background(), cache, seed, "main", 0, "DbWrite", mustInt(t, 1))
	_, err2 := reg.Invoke(context.Background(), cache, seed, "main", 0, "DbWrite", mustInt(t, 1))
	require.Error(t, err1)
	require.Error(t, err2)
	require.Equal(t, 1, h.calls)
}

func TestAsyncDedupsOnPromiseHashAcrossContinuations(t *testing.T) {
	reg := NewRegistry(map[string][]string{"main": {"Async"}})
	h := &countingHandler{out: value.JSON{}}
	require.NoError(t, reg.Register("Async", h))

	cache := map[CacheKey]CacheEntry{}
	seed := [32]byte{1}

	innerArgs, err := value.Int(1)
	require.NoError(t, err)
	args := value.Record([]value.Field{
		{Name: "promiseHash", Value: value.String("ph-shared")},
		{Name: "effect", Value: value.String("Log")},
		{Name: "innerArgs", Value: innerArgs},
	})

	_, err = reg.Invoke(context.Background(), cache, seed, "main", 1, "Async", args)
	require.NoError(t, err)
	_, err = reg.Invoke(context.Background(), cache, seed, "main", 2, "Async", args)
	require.NoError(t, err)

	require.Equal(t, 1, h.calls, "two awaits of the same promise_hash at different call sites must invoke the backend once")
	require.Len(t, cache, 1)
}

func TestDifferentContinuationsDoNotCollide(t *testing.T) {
	reg := NewRegistry(map[string][]string{"main": {"Log"}})
	h := &countingHandler{out: value.JSON{}}
	require.NoError(t, reg.Register("Log", h))

	cache := map[CacheKey]CacheEntry{}
	seed := [32]byte{1}

	_, err := reg.Invoke(context.Background(), cache, seed, "main", 1, "Log", mustInt(t, 1))
	require.NoError(t, err)
	_, err = reg.Invoke(context.Background(), cache, seed, "main", 2, "Log", mustInt(t, 1))
	require.NoError(t, err)
	require.Equal(t, 2, h.calls)
	require.Len(t, cache, 2)
}
