package effects

import (
	"bytes"
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/mtpscript/runtime/value"
)

func TestLogReturnsParserNullAndWritesStructuredLine(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.Out = &buf
	logger.Formatter = &logrus.JSONFormatter{}

	h := Log{Logger: logger, Seed: [32]byte{0xAB, 0xCD}}
	args := value.Record([]value.Field{
		{Name: "level", Value: value.String("info")},
		{Name: "message", Value: value.String("hello")},
	})

	result, err := h.Invoke(context.Background(), args)
	require.NoError(t, err)
	require.True(t, result.IsNull())
	require.Contains(t, buf.String(), "abcd")
	require.Contains(t, buf.String(), "hello")
}

func TestLogResultIsStableAcrossCalls(t *testing.T) {
	logger := logrus.New()
	logger.Out = bytes.NewBuffer(nil)
	h := Log{Logger: logger, Seed: [32]byte{1}}
	args := value.Record([]value.Field{{Name: "message", Value: value.String("x")}})

	r1, err := h.Invoke(context.Background(), args)
	require.NoError(t, err)
	r2, err := h.Invoke(context.Background(), args)
	require.NoError(t, err)
	require.True(t, r1.Equal(r2))
}
