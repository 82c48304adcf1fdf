package postgresengine

import (
	"context"
	"time"
)

const dbSystemPostgres = "postgresql"

// logQueryWithDuration logs SQL statements with execution time at debug level.
func (s *Store) logQueryWithDuration(ctx context.Context, sqlQuery string, action string, duration time.Duration) {
	s.obs.LogStatement(ctx, logMsgSQLExecuted+action, logAttrQuery, sqlQuery, duration)
}
