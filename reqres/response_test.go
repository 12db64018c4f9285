package reqres

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mtpscript/runtime/mtperr"
)

func TestErrorEnvelopeToJSON(t *testing.T) {
	err := mtperr.New(mtperr.GasExhausted, "out of gas at opcode 7")
	env := FromError(err)
	j := env.ToJSON()

	var gotError, gotMessage string
	for _, m := range j.Members() {
		switch m.Key {
		case "error":
			gotError = m.Value.Str()
		case "message":
			gotMessage = m.Value.Str()
		}
	}
	require.Equal(t, "GasExhausted", gotError)
	require.Equal(t, "out of gas at opcode 7", gotMessage)
}
