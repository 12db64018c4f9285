// Package runtime wires every in-scope component — snapshot, gas,
// seed, effect, value, guest — into the single entry point spec §6
// names: run(snapshot_bytes, request, gas_limit) → { response_bytes,
// response_sha256, gas_used, error? }. Everything this package does is
// orchestration; the subsystems it calls own their own semantics.
package runtime

import (
	"context"
	"crypto/ecdsa"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/mtpscript/runtime/guest"
	"github.com/mtpscript/runtime/mtperr"
	"github.com/mtpscript/runtime/reqres"
	"github.com/mtpscript/runtime/sandbox"
	"github.com/mtpscript/runtime/value"
)

// Result is the entry point's output (spec §6): the canonical-JSON
// response body, its digest, the gas actually spent, and the error
// that produced a fatal trap, if any. ResponseBytes is always
// populated, including on a trapped request — the error envelope is
// itself a deterministic JSON body (spec §7).
type Result struct {
	ResponseBytes  []byte
	ResponseSHA256 [32]byte
	GasUsed        uint64
	Error          *mtperr.Error
}

// Core owns the host-level resources that outlive any single request:
// the snapshot's verification key and the DB pool. Each
// Run call builds and tears down its own sandbox.Context, matching
// spec §4.8's per-request isolation.
type Core struct {
	cfg    sandbox.Config
	pub    *ecdsa.PublicKey
	dbPool *pgxpool.Pool
	logger *logrus.Logger
}

// New constructs a Core. dbPool may be nil when no snapshot in use
// declares DbRead/DbWrite.
func New(cfg sandbox.Config, pub *ecdsa.PublicKey, dbPool *pgxpool.Pool, logger *logrus.Logger) (*Core, error) {
	cfg, err := sandbox.NewConfig(cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Core{cfg: cfg, pub: pub, dbPool: dbPool, logger: logger}, nil
}

// Run executes spec §6's entry point: verify+load the snapshot, derive
// the seed, meter and run the guest program's entry point, canonicalise
// the response, and wipe the request's sandbox before returning.
//
// A fatal trap (bad signature, gas exhaustion, memory budget overrun,
// an internal invariant violation) never returns a Go error from Run
// itself — it is folded into Result.Error and rendered as the error
// envelope, because the response body must always be a deterministic
// value a caller can hash and compare (spec §8 property 1), whether or
// not execution succeeded.
func (c *Core) Run(snapshotBytes []byte, req reqres.Request, gasLimit uint64) (*Result, error) {
	sc := sandbox.New(c.cfg, c.logger)
	reqID, accID, version := req.Identity()

	// Bootstrap traps internally on failure (bad signature, malformed
	// metadata, an out-of-range gas limit): its returned error is
	// already the trapped *mtperr.Error, so it needs no re-wrapping.
	if err := sc.Bootstrap(snapshotBytes, c.pub, reqID, accID, version, gasLimit); err != nil {
		return c.finish(sc, nil, err)
	}
	if err := sc.RegisterEffects(c.dbPool, nil); err != nil {
		return c.finish(sc, nil, sc.Trap(err))
	}
	if err := sc.Run(); err != nil {
		return c.finish(sc, nil, sc.Trap(err))
	}

	prog, err := guest.Decode(sc.Snapshot.Program)
	if err != nil {
		return c.finish(sc, nil, sc.Trap(mtperr.Wrap(mtperr.ForbiddenSyntax, err, "decoding program bytes")))
	}

	entryPoint := sc.Metadata.EntryPointName
	if entryPoint == "" {
		entryPoint = "main"
	}

	result, execErr := guest.Execute(context.Background(), sc, prog, entryPoint)
	if execErr != nil {
		// Gas exhaustion (sc.Charge) and a memory-budget overrun
		// (sc.InvokeEffect) have already trapped sc; any other failure
		// (an effect error, a malformed program such as a missing entry
		// point) has not yet trapped the context, so trap it here.
		if sc.State() != sandbox.Trapped {
			return c.finish(sc, nil, sc.Trap(execErr))
		}
		return c.finish(sc, nil, execErr)
	}

	if err := sc.Complete(); err != nil {
		return c.finish(sc, nil, sc.Trap(err))
	}
	return c.finish(sc, &result, nil)
}

// finish canonicalises either a successful guest value or a fatal
// error into the response envelope, hashes it, wipes and releases sc,
// and assembles the Result. It is the single exit path out of Run so
// every branch — success or trap — wipes the context exactly once.
func (c *Core) finish(sc *sandbox.Context, resultValue *value.Value, runErr error) (*Result, error) {
	var body value.JSON
	var mtpErr *mtperr.Error

	if runErr != nil {
		var ok bool
		mtpErr, ok = runErr.(*mtperr.Error)
		if !ok {
			mtpErr = mtperr.Wrap(mtperr.Internal, runErr, "unclassified execution failure")
		}
		body = reqres.FromError(mtpErr).ToJSON()
	} else {
		j, err := value.ToJSON(*resultValue)
		if err != nil {
			mtpErr = mtperr.Wrap(mtperr.Internal, err, "canonicalising response value")
			body = reqres.FromError(mtpErr).ToJSON()
		} else {
			body = j
		}
	}

	responseBytes := value.EmitCanonicalJSON(body)
	digest := value.SHA256(responseBytes)

	var gasUsed uint64
	if sc.Meter != nil {
		gasUsed = sc.Meter.Used()
	}

	// Every Run() exit path leaves sc in Completed or Trapped, a failing
	// Bootstrap included (it traps from Bootstrapped, which state.go
	// allows), so this covers every call to finish.
	if sc.State() == sandbox.Completed || sc.State() == sandbox.Trapped {
		if err := sc.Wipe(); err != nil {
			return nil, err
		}
		if err := sc.Release(); err != nil {
			return nil, err
		}
	}

	return &Result{
		ResponseBytes:  responseBytes,
		ResponseSHA256: digest,
		GasUsed:        gasUsed,
		Error:          mtpErr,
	}, nil
}
