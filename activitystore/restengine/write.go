package restengine

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/mallorca-activities/activitystore-go/activitystore"
	"github.com/mallorca-activities/activitystore-go/activitystore/internal/instrument"
)

var returnRepresentation = map[string]string{headerPrefer: preferRepresentation}

func byID(id string) url.Values {
	params := url.Values{}
	params.Set("id", "eq."+id)

	return params
}

// CreateActivity inserts a new activity and returns the representation the backend stored.
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

	var rows []activityRow

	err := s.do(ctx, request{
		method:  http.MethodPost,
		table:   tableActivities,
		params:  url.Values{},
		body:    newActivityPayload(input, s.now()),
		headers: returnRepresentation,
	}, &rows)
	if err == nil && len(rows) == 0 {
		err = activitystore.ErrBackendResponseInvalid
	}

	if err != nil {
		s.obs.LogError(ctx, logMsgRequestFailed, err)
		tracing.FinishError(errorTypeBackendRequest, time.Since(start))
		metrics.RecordError(errorTypeBackendRequest, time.Since(start))

		return activitystore.Activity{}, errors.Join(activitystore.ErrWritingActivityFailed, err)
	}

	duration := time.Since(start)
	s.obs.LogOperation(ctx, logMsgActivityCreated, logAttrActivityID, rows[0].ID, logAttrDurationMS, instrument.ToMilliseconds(duration))
	tracing.FinishSuccess(1, duration)
	metrics.RecordSuccess(1, duration)

	return rows[0].toActivity(), nil
}

// UpdateActivity patches the non-nil fields of the update. An empty representation means the id does not exist.
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

	var rows []activityRow

	err := s.do(ctx, request{
		method:  http.MethodPatch,
		table:   tableActivities,
		params:  byID(id),
		body:    updatePayload(update, s.now()),
		headers: returnRepresentation,
	}, &rows)
	if err != nil {
		s.obs.LogError(ctx, logMsgRequestFailed, err)
		tracing.FinishError(errorTypeBackendRequest, time.Since(start))
		metrics.RecordError(errorTypeBackendRequest, time.Since(start))

		return activitystore.Activity{}, errors.Join(activitystore.ErrWritingActivityFailed, err)
	}

	if len(rows) == 0 {
		tracing.FinishNotFound(time.Since(start))
		metrics.RecordNotFound(time.Since(start))

		return activitystore.Activity{}, activitystore.ErrActivityNotFound
	}

	duration := time.Since(start)
	s.obs.LogOperation(ctx, logMsgActivityUpdated, logAttrActivityID, id, logAttrDurationMS, instrument.ToMilliseconds(duration))
	tracing.FinishSuccess(1, duration)
	metrics.RecordSuccess(1, duration)

	return rows[0].toActivity(), nil
}

// DeleteActivity removes an activity; the backend cascades to the child tables.
func (s *Store) DeleteActivity(ctx context.Context, id string) error {
	if _, parseErr := uuid.Parse(id); parseErr != nil {
		return activitystore.ErrActivityNotFound
	}

	tracing, ctx := s.obs.StartTracing(ctx, operationDeleteActivity)
	metrics := s.obs.StartMetrics(ctx, operationDeleteActivity)
	start := time.Now()

	var rows []statusRow

	params := byID(id)
	params.Set(paramSelect, string(activitystore.FieldStatus))

	err := s.do(ctx, request{
		method:  http.MethodDelete,
		table:   tableActivities,
		params:  params,
		headers: returnRepresentation,
	}, &rows)
	if err != nil {
		s.obs.LogError(ctx, logMsgRequestFailed, err)
		tracing.FinishError(errorTypeBackendRequest, time.Since(start))
		metrics.RecordError(errorTypeBackendRequest, time.Since(start))

		return errors.Join(activitystore.ErrWritingActivityFailed, err)
	}

	if len(rows) == 0 {
		tracing.FinishNotFound(time.Since(start))
		metrics.RecordNotFound(time.Since(start))

		return activitystore.ErrActivityNotFound
	}

	duration := time.Since(start)
	s.obs.LogOperation(ctx, logMsgActivityDeleted, logAttrActivityID, id, logAttrDurationMS, instrument.ToMilliseconds(duration))
	tracing.FinishSuccess(len(rows), duration)
	metrics.RecordSuccess(len(rows), duration)

	return nil
}

// AddImage attaches an image to an existing activity. A foreign key violation means the activity does not exist.
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

	var rows []imageRow

	err := s.do(ctx, request{
		method: http.MethodPost,
		table:  tableImages,
		params: url.Values{},
		body: imagePayload{
			ID:         input.ID,
			ActivityID: input.ActivityID,
			ImageURL:   input.ImageURL,
			AltText:    input.AltText,
			Caption:    input.Caption,
			IsPrimary:  input.IsPrimary,
			SortOrder:  input.SortOrder,
			CreatedAt:  s.now().UTC(),
		},
		headers: returnRepresentation,
	}, &rows)

	if isForeignKeyViolation(err) {
		tracing.FinishNotFound(time.Since(start))
		metrics.RecordNotFound(time.Since(start))

		return activitystore.ActivityImage{}, activitystore.ErrActivityNotFound
	}

	if err == nil && len(rows) == 0 {
		err = activitystore.ErrBackendResponseInvalid
	}

	if err != nil {
		s.obs.LogError(ctx, logMsgRequestFailed, err)
		tracing.FinishError(errorTypeBackendRequest, time.Since(start))
		metrics.RecordError(errorTypeBackendRequest, time.Since(start))

		return activitystore.ActivityImage{}, errors.Join(activitystore.ErrWritingActivityFailed, err)
	}

	duration := time.Since(start)
	s.obs.LogOperation(ctx, logMsgImageAdded, logAttrActivityID, input.ActivityID, logAttrDurationMS, instrument.ToMilliseconds(duration))
	tracing.FinishSuccess(1, duration)
	metrics.RecordSuccess(1, duration)

	return rows[0].toImage(), nil
}
