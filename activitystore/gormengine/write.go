package gormengine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mallorca-activities/activitystore-go/activitystore"
	"github.com/mallorca-activities/activitystore-go/activitystore/internal/instrument"
)

// CreateActivity inserts a new activity.
// A missing id is generated (UUIDv7), a missing slug is derived from the title and a missing status becomes draft.
func (s *Store) CreateActivity(ctx context.Context, input activitystore.NewActivity) (activitystore.Activity, error) {
	tracing, ctx := s.obs.StartTracing(ctx, operationCreateActivity)
	metrics := s.obs.StartMetrics(ctx, operationCreateActivity)
	start := time.Now()

	if input.ID == "" {
		id, idErr := uuid.NewV7()
		if idErr != nil {
			tracing.FinishError(errorTypeGenerateID, time.Since(start))
			metrics.RecordError(errorTypeGenerateID, time.Since(start))

			return activitystore.Activity{}, errors.Join(activitystore.ErrBuildingQueryFailed, idErr)
		}

		input.ID = id.String()
	}

	if input.Slug == "" {
		input.Slug = activitystore.Slugify(input.Title)
	}

	record := newActivityRecord(input, s.now())

	if err := s.db.WithContext(ctx).Table(s.tables.activities).Create(&record).Error; err != nil {
		s.obs.LogError(ctx, logMsgDBExecFailed, err)
		tracing.FinishError(errorTypeDatabaseExec, time.Since(start))
		metrics.RecordError(errorTypeDatabaseExec, time.Since(start))

		return activitystore.Activity{}, errors.Join(activitystore.ErrWritingActivityFailed, err)
	}

	duration := time.Since(start)
	s.obs.LogOperation(ctx, logMsgActivityCreated, logAttrActivityID, record.ID, logAttrDurationMS, instrument.ToMilliseconds(duration))
	tracing.FinishSuccess(1, duration)
	metrics.RecordSuccess(1, duration)

	return record.toActivity(), nil
}

// UpdateActivity writes the non-nil fields of the update, bumps updated_at and returns the stored row.
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

	result := s.db.WithContext(ctx).
		Table(s.tables.activities).
		Where("id = ?", id).
		Updates(updateColumns(update, s.now()))
	if result.Error != nil {
		s.obs.LogError(ctx, logMsgDBExecFailed, result.Error)
		tracing.FinishError(errorTypeDatabaseExec, time.Since(start))
		metrics.RecordError(errorTypeDatabaseExec, time.Since(start))

		return activitystore.Activity{}, errors.Join(activitystore.ErrWritingActivityFailed, result.Error)
	}

	if result.RowsAffected == 0 {
		tracing.FinishNotFound(time.Since(start))
		metrics.RecordNotFound(time.Since(start))

		return activitystore.Activity{}, activitystore.ErrActivityNotFound
	}

	record, found, lookupErr := s.findActivity(ctx, "id", id, activitystore.ScopeAdmin)
	if lookupErr != nil || !found {
		if lookupErr == nil {
			lookupErr = activitystore.ErrActivityNotFound
		}

		tracing.FinishError(errorTypeDatabaseQuery, time.Since(start))
		metrics.RecordError(errorTypeDatabaseQuery, time.Since(start))

		return activitystore.Activity{}, lookupErr
	}

	duration := time.Since(start)
	s.obs.LogOperation(ctx, logMsgActivityUpdated, logAttrActivityID, record.ID, logAttrDurationMS, instrument.ToMilliseconds(duration))
	tracing.FinishSuccess(1, duration)
	metrics.RecordSuccess(1, duration)

	return record.toActivity(), nil
}

// DeleteActivity removes an activity; child rows are removed by the foreign key cascade.
func (s *Store) DeleteActivity(ctx context.Context, id string) error {
	if _, parseErr := uuid.Parse(id); parseErr != nil {
		return activitystore.ErrActivityNotFound
	}

	tracing, ctx := s.obs.StartTracing(ctx, operationDeleteActivity)
	metrics := s.obs.StartMetrics(ctx, operationDeleteActivity)
	start := time.Now()

	result := s.db.WithContext(ctx).Table(s.tables.activities).Where("id = ?", id).Delete(&ActivityRecord{})
	if result.Error != nil {
		s.obs.LogError(ctx, logMsgDBExecFailed, result.Error)
		tracing.FinishError(errorTypeDatabaseExec, time.Since(start))
		metrics.RecordError(errorTypeDatabaseExec, time.Since(start))

		return errors.Join(activitystore.ErrWritingActivityFailed, result.Error)
	}

	if result.RowsAffected == 0 {
		tracing.FinishNotFound(time.Since(start))
		metrics.RecordNotFound(time.Since(start))

		return activitystore.ErrActivityNotFound
	}

	duration := time.Since(start)
	s.obs.LogOperation(ctx, logMsgActivityDeleted, logAttrActivityID, id, logAttrRowsAffected, result.RowsAffected)
	tracing.FinishSuccess(int(result.RowsAffected), duration)
	metrics.RecordSuccess(int(result.RowsAffected), duration)

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
			tracing.FinishError(errorTypeGenerateID, time.Since(start))
			metrics.RecordError(errorTypeGenerateID, time.Since(start))

			return activitystore.ActivityImage{}, errors.Join(activitystore.ErrBuildingQueryFailed, idErr)
		}

		input.ID = id.String()
	}

	record := imageRecord{
		ID:         input.ID,
		ActivityID: input.ActivityID,
		ImageURL:   input.ImageURL,
		AltText:    input.AltText,
		Caption:    input.Caption,
		IsPrimary:  ptr(input.IsPrimary),
		SortOrder:  ptr(input.SortOrder),
		CreatedAt:  s.now(),
	}

	if err := s.db.WithContext(ctx).Table(s.tables.images).Create(&record).Error; err != nil {
		s.obs.LogError(ctx, logMsgDBExecFailed, err)
		tracing.FinishError(errorTypeDatabaseExec, time.Since(start))
		metrics.RecordError(errorTypeDatabaseExec, time.Since(start))

		return activitystore.ActivityImage{}, errors.Join(activitystore.ErrWritingActivityFailed, err)
	}

	duration := time.Since(start)
	s.obs.LogOperation(ctx, logMsgImageAdded, logAttrActivityID, record.ActivityID, logAttrDurationMS, instrument.ToMilliseconds(duration))
	tracing.FinishSuccess(1, duration)
	metrics.RecordSuccess(1, duration)

	return record.toImage(), nil
}
