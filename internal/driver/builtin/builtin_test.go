package builtin

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/witoldo7/gowmbus/internal/frame"
)

func TestNewRegistry(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	var names []string
	for _, info := range reg.Drivers() {
		names = append(names, info.Name())
	}
	require.Equal(t, []string{"amiplus", "hydrodigit", "hydrocalm4"}, names)

	got := reg.Resolve(frame.ManufacturerAPA, 0x02, 0x02)
	require.Len(t, got, 1)
	require.Equal(t, "amiplus", got[0].Name())
}

func TestBundledDriversDoNotShareDetections(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	for _, w := range reg.Lint() {
		require.NotContains(t, w.Message, "shared with", w.String())
	}
}

func TestHookOutputsAreNotFlagged(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	for _, w := range reg.Lint() {
		require.NotEqual(t, "hydrodigit", w.Driver, w.String())
		require.NotEqual(t, "hydrocalm4", w.Driver, w.String())
	}
}
