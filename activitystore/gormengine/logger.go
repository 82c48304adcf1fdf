package gormengine

import (
	"context"
	"fmt"
	"time"

	gormlogger "gorm.io/gorm/logger"

	"github.com/mallorca-activities/activitystore-go/activitystore/internal/instrument"
)

// statementLogger forwards the statements gorm executes to the store's loggers.
// Failures are logged by the Store itself, with the operation they belong to.
type statementLogger struct {
	obs *instrument.Observer
}

func (l statementLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface {
	return l
}

func (l statementLogger) Info(context.Context, string, ...any) {}

func (l statementLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.obs.LogWarn(ctx, logMsgGormWarning, fmt.Errorf(msg, data...))
}

func (l statementLogger) Error(context.Context, string, ...any) {}

func (l statementLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), _ error) {
	statement, _ := fc()
	l.obs.LogStatement(ctx, logMsgSQLExecuted, logAttrQuery, statement, time.Since(begin))
}
