package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mallorca-activities/activitystore-go/activitystore"
)

const (
	paramIdentifier = "identifier"
	paramCategory   = "category"
	paramID         = "id"
	queryLimit      = "limit"
	queryTerm       = "q"
	msgInvalidInput = "Invalid input: "
)

// statusFor maps an envelope code to the HTTP status.
func statusFor(code activitystore.ResultCode) int {
	switch code {
	case activitystore.CodeOK, activitystore.CodeFallback:
		return http.StatusOK
	case activitystore.CodeNotFound:
		return http.StatusNotFound
	case activitystore.CodeInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusServiceUnavailable
	}
}

func respond[T any](c *gin.Context, result activitystore.Result[T]) {
	c.AbortWithStatusJSON(statusFor(result.Code), result)
}

func invalidInput(c *gin.Context, err error) {
	respond(c, activitystore.Failure[struct{}](activitystore.CodeInvalidInput, msgInvalidInput+err.Error()))
}

// limitParam reads the optional limit query parameter; zero lets the catalog apply its default.
func limitParam(c *gin.Context) (int, bool) {
	raw := strings.TrimSpace(c.Query(queryLimit))
	if raw == "" {
		return 0, true
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		respond(c, activitystore.Failure[struct{}](activitystore.CodeInvalidInput, msgInvalidInput+"limit must be a non-negative integer"))
		return 0, false
	}

	return limit, true
}

/***** public *****/

func (r *router) listActivities(c *gin.Context) {
	var params activitystore.SearchParams
	if err := c.ShouldBindQuery(&params); err != nil {
		invalidInput(c, err)
		return
	}

	respond(c, r.catalog.ListActivities(c.Request.Context(), params))
}

func (r *router) featuredActivities(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		return
	}

	respond(c, r.catalog.GetFeaturedActivities(c.Request.Context(), limit))
}

func (r *router) searchActivities(c *gin.Context) {
	var params activitystore.SearchParams
	if err := c.ShouldBindQuery(&params); err != nil {
		invalidInput(c, err)
		return
	}

	term := c.Query(queryTerm)
	if term == "" {
		term = params.Search
	}

	respond(c, r.catalog.SearchActivities(c.Request.Context(), term, params))
}

func (r *router) activitiesByCategory(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		return
	}

	respond(c, r.catalog.GetActivitiesByCategory(c.Request.Context(), c.Param(paramCategory), limit))
}

func (r *router) activityByIDOrSlug(c *gin.Context) {
	respond(c, r.catalog.GetActivityByIDOrSlug(c.Request.Context(), c.Param(paramIdentifier)))
}

func (r *router) similarActivities(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		return
	}

	respond(c, r.catalog.GetSimilarActivities(c.Request.Context(), c.Param(paramIdentifier), limit))
}

/***** admin *****/

func (r *router) adminListActivities(c *gin.Context) {
	var params activitystore.SearchParams
	if err := c.ShouldBindQuery(&params); err != nil {
		invalidInput(c, err)
		return
	}

	respond(c, r.catalog.GetActivitiesForAdmin(c.Request.Context(), params))
}

func (r *router) activitiesStats(c *gin.Context) {
	respond(c, r.catalog.GetActivitiesStats(c.Request.Context()))
}

func (r *router) adminActivityByID(c *gin.Context) {
	respond(c, r.catalog.GetActivityByIDForAdmin(c.Request.Context(), c.Param(paramID)))
}

func (r *router) createActivity(c *gin.Context) {
	var input activitystore.NewActivity
	if err := c.ShouldBindJSON(&input); err != nil {
		invalidInput(c, err)
		return
	}

	respond(c, r.catalog.CreateActivity(c.Request.Context(), input))
}

func (r *router) updateActivity(c *gin.Context) {
	var update activitystore.ActivityUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		invalidInput(c, err)
		return
	}

	respond(c, r.catalog.UpdateActivity(c.Request.Context(), c.Param(paramID), update))
}

func (r *router) deleteActivity(c *gin.Context) {
	respond(c, r.catalog.DeleteActivity(c.Request.Context(), c.Param(paramID)))
}

// addActivityImage takes the activity id from the path; an id in the body is ignored.
func (r *router) addActivityImage(c *gin.Context) {
	var input activitystore.NewActivityImage
	if err := c.ShouldBindJSON(&input); err != nil {
		invalidInput(c, err)
		return
	}

	input.ActivityID = c.Param(paramID)

	respond(c, r.catalog.AddActivityImage(c.Request.Context(), input))
}
