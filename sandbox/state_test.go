package sandbox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLifecycleHappyPath(t *testing.T) {
	c := &Context{state: Fresh}
	require.NoError(t, c.transition(Bootstrapped))
	require.NoError(t, c.transition(Running))
	require.NoError(t, c.transition(Completed))
	require.NoError(t, c.transition(Wiped))
	require.NoError(t, c.transition(Released))
}

func TestTrappedAlwaysPassesThroughWiped(t *testing.T) {
	c := &Context{state: Running}
	require.NoError(t, c.transition(Trapped))
	require.Error(t, c.transition(Released), "Trapped must not skip Wiped")
	require.NoError(t, c.transition(Wiped))
	require.NoError(t, c.transition(Released))
}

func TestIllegalTransitionsRejected(t *testing.T) {
	c := &Context{state: Fresh}
	require.Error(t, c.transition(Running))
	require.Error(t, c.transition(Completed))
	require.Error(t, c.transition(Wiped))
}

func TestReleasedIsTerminal(t *testing.T) {
	c := &Context{state: Released}
	for _, next := range []State{Fresh, Bootstrapped, Running, Completed, Trapped, Wiped, Released} {
		require.Error(t, c.transition(next))
	}
}
