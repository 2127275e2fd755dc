package db

import (
	"errors"

	"github.com/djpki/ejbca-rest-gateway/internal/ejbca"
)

// SaveRequest records a completed REST request.
func (db *DB) SaveRequest(record *RequestLog) {
	if err := db.Create(record); err != nil {
		db.logger.Errorw("failed to save request audit record", "error", err)
	}
}

// SaveDispatch records the outcome of one remote operation call. Audit
// failures are logged and swallowed: they must never fail the request.
func (db *DB) SaveDispatch(requestID, operation string, callErr error) {
	record := &DispatchLog{
		RequestID: requestID,
		Operation: operation,
		Outcome:   classifyOutcome(callErr),
	}
	if callErr != nil {
		record.Detail = callErr.Error()
	}

	if err := db.Create(record); err != nil {
		db.logger.Errorw("failed to save dispatch audit record",
			"operation", operation, "error", err)
	}
}

func classifyOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ejbca.ErrNotInitialized):
		return OutcomeUnavailable
	case ejbca.IsUnknownOperation(err):
		return OutcomeUnknownOp
	default:
		if _, ok := ejbca.IsRemoteFault(err); ok {
			return OutcomeRemoteFault
		}
		return OutcomeTransport
	}
}

// RecentDispatches returns the most recent dispatch records, newest first.
func (db *DB) RecentDispatches(limit int) ([]DispatchLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []DispatchLog
	err := db.conn.Order("id desc").Limit(limit).Find(&records).Error
	return records, err
}

// RecentRequests returns the most recent request records, newest first.
func (db *DB) RecentRequests(limit int) ([]RequestLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []RequestLog
	err := db.conn.Order("id desc").Limit(limit).Find(&records).Error
	return records, err
}
