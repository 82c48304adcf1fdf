package activitystore

import (
	"errors"
)

var ErrActivityNotFound = errors.New("activity not found")
var ErrNilDatabaseConnection = errors.New("database connection must not be nil")
var ErrOpeningConnectionFailed = errors.New("opening database connection failed")
var ErrInvalidBackendURL = errors.New("invalid backend url")
var ErrEmptyTableNameSupplied = errors.New("empty table name supplied")
var ErrBuildingQueryFailed = errors.New("building query failed")
var ErrQueryingActivitiesFailed = errors.New("querying activities failed")
var ErrScanningDBRowFailed = errors.New("scanning db row failed")
var ErrDecodingColumnFailed = errors.New("decoding column value failed")
var ErrWritingActivityFailed = errors.New("writing activity failed")
var ErrGettingRowsAffectedFailed = errors.New("getting rows affected failed")
var ErrBackendResponseInvalid = errors.New("backend response invalid")
var ErrInvalidFallbackRecord = errors.New("invalid fallback record")
