package db

import (
	"fmt"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djpki/ejbca-rest-gateway/internal/alogger"
	"github.com/djpki/ejbca-rest-gateway/internal/ejbca"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	logger := alogger.New(io.Discard, zerolog.ErrorLevel)
	database, err := NewDB("sqlite", "file::memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestNewDBUnsupportedType(t *testing.T) {
	logger := alogger.New(io.Discard, zerolog.ErrorLevel)
	_, err := NewDB("oracle", "dsn", logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database type")
}

func TestSaveAndListDispatches(t *testing.T) {
	database := newTestDB(t)

	database.SaveDispatch("req-1", "getEjbcaVersion", nil)
	database.SaveDispatch("req-2", "findUser", &ejbca.RemoteFault{
		Operation: "findUser", Message: "no such user",
	})
	database.SaveDispatch("req-3", "dropAllTables", &ejbca.UnknownOperationError{
		Operation: "dropAllTables",
	})
	database.SaveDispatch("req-4", "editUser", ejbca.ErrNotInitialized)

	records, err := database.RecentDispatches(10)
	require.NoError(t, err)
	require.Len(t, records, 4)

	// Newest first.
	assert.Equal(t, OutcomeUnavailable, records[0].Outcome)
	assert.Equal(t, OutcomeUnknownOp, records[1].Outcome)
	assert.Equal(t, OutcomeRemoteFault, records[2].Outcome)
	assert.Equal(t, OutcomeOK, records[3].Outcome)
	assert.Empty(t, records[3].Detail)
	assert.Contains(t, records[2].Detail, "no such user")
}

func TestClassifyOutcome(t *testing.T) {
	assert.Equal(t, OutcomeOK, classifyOutcome(nil))
	assert.Equal(t, OutcomeTransport, classifyOutcome(&ejbca.TransportError{
		Operation: "findUser", Err: fmt.Errorf("timeout"),
	}))
}

func TestRecentRequests(t *testing.T) {
	database := newTestDB(t)

	for i := 0; i < 3; i++ {
		database.SaveRequest(&RequestLog{
			RequestID:  fmt.Sprintf("req-%d", i),
			Method:     "GET",
			Path:       "/api/v1/health",
			RemoteIP:   "127.0.0.1",
			StatusCode: 200,
			DurationMS: int64(i),
		})
	}

	records, err := database.RecentRequests(2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "req-2", records[0].RequestID)
}
