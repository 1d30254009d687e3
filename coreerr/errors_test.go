package coreerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCoordErrorIsMatchesKind(t *testing.T) {
	err := Wrap(ProviderTransient, "rate limited", errors.New("429"))
	require.True(t, errors.Is(err, New(ProviderTransient, "")))
	require.False(t, errors.Is(err, New(ProviderFatal, "")))
}

func TestKindOf(t *testing.T) {
	err := New(StageInputMissing, "stage 1 artifact absent")
	kind, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, StageInputMissing, kind)

	_, ok = KindOf(errors.New("plain"))
	require.False(t, ok)
}

func TestIsKindHelper(t *testing.T) {
	err := New(NoProviderAvailable, "no endpoint")
	require.True(t, IsKind(err, NoProviderAvailable))
	require.False(t, IsKind(err, ConfigMissing))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(PersistenceFailure, "write failed", cause)
	require.Equal(t, cause, errors.Unwrap(err))
}
