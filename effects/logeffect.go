package effects

import (
	"context"
	"encoding/hex"

	"github.com/sirupsen/logrus"

	"github.com/mtpscript/runtime/mtperr"
	"github.com/mtpscript/runtime/value"
)

// Log writes a structured log line and returns a fixed, parser-built
// JSON null to the guest (spec §4.7), because a replay's cached result
// must never depend on the timestamp the real log line carries.
type Log struct {
	Logger *logrus.Logger
	Seed   [32]byte
}

func logArgs(args value.Value) (level, message string, data value.Value, hasData bool, err error) {
	if args.Kind() != value.KindRecord {
		return "", "", value.Value{}, false, mtperr.New(mtperr.InvalidEffect, "Log args must be a record")
	}
	level = "info"
	for _, f := range args.RecordFields() {
		switch f.Name {
		case "level":
			if f.Value.Kind() == value.KindString {
				level = f.Value.AsString()
			}
		case "message":
			if f.Value.Kind() == value.KindString {
				message = f.Value.AsString()
			}
		case "data":
			data, hasData = f.Value, true
		}
	}
	return level, message, data, hasData, nil
}

func (h Log) Invoke(ctx context.Context, args value.Value) (value.JSON, error) {
	level, message, data, hasData, err := logArgs(args)
	if err != nil {
		return value.JSON{}, err
	}

	entry := h.Logger.WithField("correlation_id", hex.EncodeToString(h.Seed[:]))
	if hasData {
		if dataJSON, err := value.ToJSON(data); err == nil {
			entry = entry.WithField("data", dataJSON)
		}
	}

	switch level {
	case "warn", "warning":
		entry.Warn(message)
	case "error":
		entry.Error(message)
	case "debug":
		entry.Debug(message)
	default:
		entry.Info(message)
	}

	return nullResult(), nil
}

// nullResult obtains Log's JSONNull result from value.ParseJSON rather
// than from any constructor: the host boundary, not guest code, builds
// it (spec §4.7).
func nullResult() value.JSON {
	parsed, _ := value.ParseJSON("null")
	return parsed
}
