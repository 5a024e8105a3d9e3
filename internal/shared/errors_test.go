package shared_test

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/MikhailWahib/luksmeta/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := shared.Wrap("load", 3, shared.Newf(shared.Corrupt, "payload checksum mismatch"))

	assert.True(t, errors.Is(err, shared.Corrupt))
	assert.False(t, errors.Is(err, shared.NoData))
	assert.Equal(t, shared.Corrupt, shared.KindOf(err))
	assert.Equal(t, "luksmeta: load: slot 3: corrupt: payload checksum mismatch", err.Error())
}

func TestWrap_PreservesIOCause(t *testing.T) {
	cause := &fs.PathError{Op: "open", Path: "/dev/nope", Err: fs.ErrNotExist}
	err := shared.Wrap("init", shared.NoSlot, cause)

	require.Error(t, err)
	assert.Equal(t, shared.IO, shared.KindOf(err))
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	var pe *fs.PathError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "/dev/nope", pe.Path)
}

func TestWrap_DoesNotMutateShared(t *testing.T) {
	base := shared.New(shared.NotInitialized, nil)
	first := shared.Wrap("test", shared.NoSlot, base)
	second := shared.Wrap("wipe", 2, base)

	assert.Equal(t, "", base.Op)
	assert.Contains(t, first.Error(), "test:")
	assert.Contains(t, second.Error(), "wipe: slot 2:")
}

func TestWrap_Nil(t *testing.T) {
	assert.NoError(t, shared.Wrap("save", 0, nil))
}

func TestKindOf_WrappedTwice(t *testing.T) {
	err := fmt.Errorf("outer: %w", shared.Wrap("save", 1, shared.New(shared.OutOfSpace, nil)))
	assert.Equal(t, shared.OutOfSpace, shared.KindOf(err))
	assert.True(t, errors.Is(err, shared.OutOfSpace))

	assert.Equal(t, shared.KeyRejected, shared.KindOf(shared.KeyRejected))
	assert.Equal(t, shared.IO, shared.KindOf(errors.New("boom")))
}
