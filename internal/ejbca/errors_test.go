package ejbca

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 200))

	long := strings.Repeat("x", 500)
	got := truncate(long, 200)
	assert.Len(t, got, 203)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestTransportErrorTruncatesDetail(t *testing.T) {
	err := &TransportError{
		Operation: "findUser",
		Err:       fmt.Errorf("%s", strings.Repeat("y", 1000)),
	}

	assert.Less(t, len(err.Error()), 250)
	assert.ErrorIs(t, err, err.Err)
}

func TestErrorPredicates(t *testing.T) {
	unknown := &UnknownOperationError{Operation: "foo"}
	assert.True(t, IsUnknownOperation(unknown))
	assert.False(t, IsUnknownOperation(ErrNotInitialized))

	fault := &RemoteFault{Operation: "editUser", Message: "denied"}
	got, ok := IsRemoteFault(fault)
	assert.True(t, ok)
	assert.Equal(t, "denied", got.Message)

	wrapped := fmt.Errorf("request failed: %w", fault)
	_, ok = IsRemoteFault(wrapped)
	assert.True(t, ok)

	_, ok = IsRemoteFault(ErrNotInitialized)
	assert.False(t, ok)
}
