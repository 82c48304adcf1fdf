package postgresengine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mallorca-activities/activitystore-go/activitystore"
	"github.com/mallorca-activities/activitystore-go/activitystore/internal/instrument"
)

// CreateActivity inserts a new activity and returns the stored row.
// A missing id is generated (UUIDv7), a missing slug is derived from the title and a missing status becomes draft.
func (s *Store) CreateActivity(ctx context.Context, input activitystore.NewActivity) (activitystore.Activity, error) {
	tracing, ctx := s.obs.StartTracing(ctx, operationCreateActivity)
	metrics := s.obs.StartMetrics(ctx, operationCreateActivity)
	start := time.Now()

	if input.ID == "" {
		id, idErr := uuid.NewV7()
		if idErr != nil {
			tracing.FinishError(errorTypeBuildQuery, time.Since(start))
			metrics.RecordError(errorTypeBuildQuery, time.Since(start))

			return activitystore.Activity{}, errors.Join(activitystore.ErrBuildingQueryFailed, idErr)
		}

		input.ID = id.String()
	}

	if input.Slug == "" {
		input.Slug = activitystore.Slugify(input.Title)
	}

	sqlQuery, buildErr := s.buildInsertActivityQuery(input)
	if buildErr != nil {
		s.logBuildError(ctx, buildErr)
		tracing.FinishError(errorTypeBuildQuery, time.Since(start))
		metrics.RecordError(errorTypeBuildQuery, time.Since(start))

		return activitystore.Activity{}, errors.Join(activitystore.ErrBuildingQueryFailed, buildErr)
	}

	activity, found, writeErr := s.writeReturningActivity(ctx, sqlQuery, logActionInsert)
	if writeErr == nil && !found {
		writeErr = activitystore.ErrWritingActivityFailed
	}

	if writeErr != nil {
		tracing.FinishError(errorTypeFor(writeErr), time.Since(start))
		metrics.RecordError(errorTypeFor(writeErr), time.Since(start))

		return activitystore.Activity{}, writeErr
	}

	duration := time.Since(start)
	s.obs.LogOperation(ctx, logMsgActivityCreated, logAttrActivityID, activity.ID, logAttrDurationMS, instrument.ToMilliseconds(duration))
	tracing.FinishSuccess(1, duration)
	metrics.RecordSuccess(1, duration)

	return activity, nil
}

// UpdateActivity writes the non-nil fields of the update and bumps updated_at.
func (s *Store) UpdateActivity(
	ctx context.Context,
	id string,
	update activitystore.ActivityUpdate,
) (activitystore.Activity, error) {

	if _, parseErr := uuid.Parse(id); parseErr != nil {
		return activitystore.Activity{}, activitystore.ErrActivityNotFound
	}

	tracing, ctx := s.obs.StartTracing(ctx, operationUpdateActivity)
	metrics := s.obs.StartMetrics(ctx, operationUpdateActivity)
	start := time.Now()

	sqlQuery, buildErr := s.buildUpdateActivityQuery(id, update)
	if buildErr != nil {
		s.logBuildError(ctx, buildErr)
		tracing.FinishError(errorTypeBuildQuery, time.Since(start))
		metrics.RecordError(errorTypeBuildQuery, time.Since(start))

		return activitystore.Activity{}, errors.Join(activitystore.ErrBuildingQueryFailed, buildErr)
	}

	activity, found, writeErr := s.writeReturningActivity(ctx, sqlQuery, logActionUpdate)
	if writeErr != nil {
		tracing.FinishError(errorTypeFor(writeErr), time.Since(start))
		metrics.RecordError(errorTypeFor(writeErr), time.Since(start))

		return activitystore.Activity{}, writeErr
	}

	if !found {
		tracing.FinishNotFound(time.Since(start))
		metrics.RecordNotFound(time.Since(start))

		return activitystore.Activity{}, activitystore.ErrActivityNotFound
	}

	duration := time.Since(start)
	s.obs.LogOperation(ctx, logMsgActivityUpdated, logAttrActivityID, activity.ID, logAttrDurationMS, instrument.ToMilliseconds(duration))
	tracing.FinishSuccess(1, duration)
	metrics.RecordSuccess(1, duration)

	return activity, nil
}

// DeleteActivity removes an activity; images, pricing and availability are removed by the foreign key cascade.
func (s *Store) DeleteActivity(ctx context.Context, id string) error {
	if _, parseErr := uuid.Parse(id); parseErr != nil {
		return activitystore.ErrActivityNotFound
	}

	tracing, ctx := s.obs.StartTracing(ctx, operationDeleteActivity)
	metrics := s.obs.StartMetrics(ctx, operationDeleteActivity)
	start := time.Now()

	sqlQuery, buildErr := s.buildDeleteActivityQuery(id)
	if buildErr != nil {
		s.logBuildError(ctx, buildErr)
		tracing.FinishError(errorTypeBuildQuery, time.Since(start))
		metrics.RecordError(errorTypeBuildQuery, time.Since(start))

		return errors.Join(activitystore.ErrBuildingQueryFailed, buildErr)
	}

	execStart := time.Now()
	result, execErr := s.db.Exec(ctx, sqlQuery)
	s.logQueryWithDuration(ctx, sqlQuery, logActionDelete, time.Since(execStart))

	if execErr != nil {
		s.obs.LogError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
		tracing.FinishError(errorTypeDatabaseExec, time.Since(start))
		metrics.RecordError(errorTypeDatabaseExec, time.Since(start))

		return errors.Join(activitystore.ErrWritingActivityFailed, execErr)
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		s.obs.LogError(ctx, logMsgRowsAffectedFailed, rowsAffectedErr)
		tracing.FinishError(errorTypeRowsAffected, time.Since(start))
		metrics.RecordError(errorTypeRowsAffected, time.Since(start))

		return errors.Join(activitystore.ErrGettingRowsAffectedFailed, rowsAffectedErr)
	}

	if rowsAffected == 0 {
		tracing.FinishNotFound(time.Since(start))
		metrics.RecordNotFound(time.Since(start))

		return activitystore.ErrActivityNotFound
	}

	duration := time.Since(start)
	s.obs.LogOperation(ctx, logMsgActivityDeleted, logAttrActivityID, id, logAttrRowsAffected, rowsAffected)
	tracing.FinishSuccess(int(rowsAffected), duration)
	metrics.RecordSuccess(int(rowsAffected), duration)

	return nil
}

// AddImage attaches an image to an existing activity.
func (s *Store) AddImage(ctx context.Context, input activitystore.NewActivityImage) (activitystore.ActivityImage, error) {
	if _, parseErr := uuid.Parse(input.ActivityID); parseErr != nil {
		return activitystore.ActivityImage{}, activitystore.ErrActivityNotFound
	}

	tracing, ctx := s.obs.StartTracing(ctx, operationAddImage)
	metrics := s.obs.StartMetrics(ctx, operationAddImage)
	start := time.Now()

	if input.ID == "" {
		id, idErr := uuid.NewV7()
		if idErr != nil {
			tracing.FinishError(errorTypeBuildQuery, time.Since(start))
			metrics.RecordError(errorTypeBuildQuery, time.Since(start))

			return activitystore.ActivityImage{}, errors.Join(activitystore.ErrBuildingQueryFailed, idErr)
		}

		input.ID = id.String()
	}

	sqlQuery, buildErr := s.buildInsertImageQuery(input)
	if buildErr != nil {
		s.logBuildError(ctx, buildErr)
		tracing.FinishError(errorTypeBuildQuery, time.Since(start))
		metrics.RecordError(errorTypeBuildQuery, time.Since(start))

		return activitystore.ActivityImage{}, errors.Join(activitystore.ErrBuildingQueryFailed, buildErr)
	}

	rows, queryErr := s.db.QueryPrimary(ctx, sqlQuery)
	s.logQueryWithDuration(ctx, sqlQuery, logActionInsert, time.Since(start))

	if queryErr != nil {
		s.obs.LogError(ctx, logMsgDBExecFailed, queryErr, logAttrQuery, sqlQuery)
		tracing.FinishError(errorTypeDatabaseExec, time.Since(start))
		metrics.RecordError(errorTypeDatabaseExec, time.Since(start))

		return activitystore.ActivityImage{}, errors.Join(activitystore.ErrWritingActivityFailed, queryErr)
	}
	defer s.closeRows(ctx, rows)

	if !rows.Next() {
		err := errors.Join(activitystore.ErrWritingActivityFailed, rows.Err())
		tracing.FinishError(errorTypeDatabaseExec, time.Since(start))
		metrics.RecordError(errorTypeDatabaseExec, time.Since(start))

		return activitystore.ActivityImage{}, err
	}

	var r imageRow
	if scanErr := rows.Scan(r.dest()...); scanErr != nil {
		s.obs.LogError(ctx, logMsgScanRowFailed, scanErr)
		tracing.FinishError(errorTypeRowScan, time.Since(start))
		metrics.RecordError(errorTypeRowScan, time.Since(start))

		return activitystore.ActivityImage{}, errors.Join(activitystore.ErrScanningDBRowFailed, scanErr)
	}

	image := r.toImage()
	duration := time.Since(start)
	s.obs.LogOperation(ctx, logMsgImageAdded, logAttrActivityID, image.ActivityID, logAttrDurationMS, instrument.ToMilliseconds(duration))
	tracing.FinishSuccess(1, duration)
	metrics.RecordSuccess(1, duration)

	return *image, nil
}

// writeReturningActivity runs an INSERT or UPDATE with a RETURNING clause on the primary connection.
func (s *Store) writeReturningActivity(
	ctx context.Context,
	sqlQuery string,
	action string,
) (activitystore.Activity, bool, error) {

	start := time.Now()
	rows, queryErr := s.db.QueryPrimary(ctx, sqlQuery)
	s.logQueryWithDuration(ctx, sqlQuery, action, time.Since(start))

	if queryErr != nil {
		s.obs.LogError(ctx, logMsgDBExecFailed, queryErr, logAttrQuery, sqlQuery)
		return activitystore.Activity{}, false, errors.Join(activitystore.ErrWritingActivityFailed, queryErr)
	}
	defer s.closeRows(ctx, rows)

	activity, found, scanErr := s.scanSingleActivity(ctx, rows)
	if scanErr != nil && errors.Is(scanErr, activitystore.ErrQueryingActivitiesFailed) {
		return activitystore.Activity{}, false, errors.Join(activitystore.ErrWritingActivityFailed, scanErr)
	}

	return activity, found, scanErr
}
