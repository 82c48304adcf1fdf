package postgresengine

import (
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/lib/pq"

	"github.com/mallorca-activities/activitystore-go/activitystore"
)

const (
	dialectPostgres      = "postgres"
	tableActivities      = "activities"
	tableImages          = "activity_images"
	tablePricing         = "activity_pricing"
	tableAvailability    = "activity_availability"
	aliasActivity        = "a"
	aliasImage           = "i"
	aliasPricing         = "p"
	aliasAvailability    = "v"
	aliasListImage       = "li"
	aliasListPrice       = "lp"
	aliasCount           = "cnt"
	dateLayout           = "2006-01-02"
	castNumeric          = "?::numeric"
	castTextArray        = "?::text[]"
	sqlNow               = "NOW()"
	emptyJSONArrayColumn = "COALESCE(array_to_json(%s), '[]'::json)::text"
)

// tables resolves table identifiers, optionally inside a schema.
type tables struct {
	schema string
}

func qualifiedTables(schema string) tables {
	return tables{schema: schema}
}

func (t tables) table(name string) exp.IdentifierExpression {
	if t.schema == "" {
		return goqu.T(name)
	}

	return goqu.S(t.schema).Table(name)
}

func (t tables) aliased(name, alias string) exp.AliasedExpression {
	return t.table(name).As(alias)
}

/***** column lists; scan order in scan.go must match *****/

func activityColumns(alias string) []any {
	c := func(format string) exp.LiteralExpression {
		return goqu.L(fmt.Sprintf(format, alias))
	}
	arr := func(col string) exp.LiteralExpression {
		return goqu.L(fmt.Sprintf(emptyJSONArrayColumn, alias+"."+col))
	}

	return []any{
		c("%s.id::text"),
		c("%s.slug"),
		c("%s.title"),
		c("%s.short_description"),
		c("%s.description"),
		c("%s.category::text"),
		c("%s.location"),
		c("%s.meeting_point"),
		c("%s.latitude::text"),
		c("%s.longitude::text"),
		c("%s.duration_minutes"),
		c("COALESCE(%s.min_participants, 1)"),
		c("%s.max_participants"),
		c("%s.min_age"),
		c("%s.max_age"),
		arr("included_items"),
		arr("excluded_items"),
		arr("what_to_bring"),
		c("%s.cancellation_policy"),
		c("%s.safety_requirements"),
		c("COALESCE(%s.weather_dependent, false)"),
		c("COALESCE(%s.instant_confirmation, true)"),
		c("%s.status::text"),
		c("COALESCE(%s.featured, false)"),
		c("COALESCE(%s.avg_rating, 0)::text"),
		c("COALESCE(%s.total_reviews, 0)"),
		c("COALESCE(%s.total_bookings, 0)"),
		c("%s.video_url"),
		c("%s.created_at"),
		c("%s.updated_at"),
	}
}

func imageColumns(alias string) []any {
	c := func(format string) exp.LiteralExpression {
		return goqu.L(fmt.Sprintf(format, alias))
	}

	return []any{
		c("%s.id::text"),
		c("%s.activity_id::text"),
		c("%s.image_url"),
		c("%s.alt_text"),
		c("%s.caption"),
		c("%s.is_primary"),
		c("%s.sort_order"),
		c("%s.created_at"),
	}
}

func pricingColumns(alias string) []any {
	c := func(format string) exp.LiteralExpression {
		return goqu.L(fmt.Sprintf(format, alias))
	}

	return []any{
		c("%s.id::text"),
		c("%s.activity_id::text"),
		c("%s.price_type::text"),
		c("%s.base_price::text"),
		c("%s.currency"),
		c("%s.seasonal_multiplier::text"),
		c("%s.valid_from::text"),
		c("%s.valid_until::text"),
		c("%s.is_active"),
	}
}

func availabilityColumns(alias string) []any {
	c := func(format string) exp.LiteralExpression {
		return goqu.L(fmt.Sprintf(format, alias))
	}

	return []any{
		c("%s.id::text"),
		c("%s.activity_id::text"),
		c("%s.date::text"),
		c("%s.time_slot::text"),
		c("%s.max_capacity"),
		c("%s.available_spots"),
		c("%s.price_override::text"),
		c("%s.status::text"),
		c("%s.weather_status::text"),
		c("%s.notes"),
	}
}

/***** field mapping *****/

// filterExpression maps a Field to the expression used in WHERE clauses.
// Enum columns are compared as text so that unknown values match nothing instead of failing.
func filterExpression(field activitystore.Field) exp.Comparable {
	switch field {
	case activitystore.FieldID:
		return goqu.L("a.id::text")
	case activitystore.FieldCategory:
		return goqu.L("a.category::text")
	case activitystore.FieldStatus:
		return goqu.L("a.status::text")
	case activitystore.FieldFeatured:
		return goqu.L("COALESCE(a.featured, false)")
	case activitystore.FieldAdultPrice:
		return goqu.I("p.base_price")
	default:
		return goqu.I(aliasActivity + "." + string(field))
	}
}

func likeExpression(field activitystore.Field) exp.Likeable {
	switch field {
	case activitystore.FieldTitle, activitystore.FieldShortDescription, activitystore.FieldLocation:
		return goqu.I(aliasActivity + "." + string(field))
	default:
		return goqu.L(fmt.Sprintf("%s.%s::text", aliasActivity, field))
	}
}

func orderExpression(term activitystore.OrderTerm) exp.OrderedExpression {
	var col exp.Orderable

	switch term.Field {
	case activitystore.FieldAdultPrice:
		col = goqu.I("p.base_price")
	case activitystore.FieldFeatured:
		col = goqu.L("COALESCE(a.featured, false)")
	case activitystore.FieldAvgRating:
		col = goqu.L("COALESCE(a.avg_rating, 0)")
	case activitystore.FieldTotalBookings:
		col = goqu.L("COALESCE(a.total_bookings, 0)")
	default:
		col = goqu.I(aliasActivity + "." + string(term.Field))
	}

	ordered := col.Asc()
	if term.Descending {
		ordered = col.Desc()
	}

	if term.NullsLast {
		ordered = ordered.NullsLast()
	}

	return ordered
}

func predicateExpression(p activitystore.Predicate) exp.Expression {
	switch p.Operator() {
	case activitystore.OpNotEquals:
		return filterExpression(p.Field()).Neq(p.Val())
	case activitystore.OpContains:
		return likeExpression(p.Field()).ILike("%" + p.Val() + "%")
	case activitystore.OpAnyContains:
		ors := make([]exp.Expression, 0, len(p.Fields()))
		for _, f := range p.Fields() {
			ors = append(ors, likeExpression(f).ILike("%"+p.Val()+"%"))
		}

		return goqu.Or(ors...)
	case activitystore.OpAtLeast:
		return filterExpression(p.Field()).Gte(goqu.L(castNumeric, p.Val()))
	case activitystore.OpAtMost:
		return filterExpression(p.Field()).Lte(goqu.L(castNumeric, p.Val()))
	default:
		if p.Field() == activitystore.FieldFeatured {
			return filterExpression(p.Field()).Eq(p.BoolVal())
		}

		return filterExpression(p.Field()).Eq(p.Val())
	}
}

/***** statements *****/

// buildListQuery joins every activity to at most one primary image and one active adult price.
// is_primary is not unique and seasonal adult prices can overlap, so both sides are lateral LIMIT 1
// subqueries; otherwise LIMIT and OFFSET would count joined rows instead of activities.
func (s Store) buildListQuery(query activitystore.Query) (string, error) {
	cols := activityColumns(aliasActivity)
	cols = append(cols, imageColumns(aliasImage)...)
	cols = append(cols, pricingColumns(aliasPricing)...)

	where := make([]exp.Expression, 0, len(query.Predicates()))
	for _, p := range query.Predicates() {
		where = append(where, predicateExpression(p))
	}

	order := make([]exp.OrderedExpression, 0, len(query.Ordering()))
	for _, term := range query.Ordering() {
		order = append(order, orderExpression(term))
	}

	builder := goqu.Dialect(dialectPostgres).
		From(s.tables.aliased(tableActivities, aliasActivity)).
		Select(cols...).
		LeftJoin(goqu.Lateral(s.primaryImageSubquery()), goqu.On(goqu.V(true))).
		LeftJoin(goqu.Lateral(s.adultPriceSubquery()), goqu.On(goqu.V(true))).
		Where(where...).
		Order(order...).
		Limit(uint(query.Limit())).
		Offset(uint(query.Offset()))

	sqlQuery, _, err := builder.ToSQL()

	return sqlQuery, err
}

// primaryImageSubquery picks the first primary image by sort order.
func (s Store) primaryImageSubquery() *goqu.SelectDataset {
	return goqu.Dialect(dialectPostgres).
		From(s.tables.aliased(tableImages, aliasListImage)).
		Where(
			goqu.I("li.activity_id").Eq(goqu.I("a.id")),
			goqu.I("li.is_primary").IsTrue(),
		).
		Order(
			goqu.L("COALESCE(li.sort_order, 0)").Asc(),
			goqu.I("li.created_at").Asc(),
			goqu.I("li.id").Asc(),
		).
		Limit(1).
		As(aliasImage)
}

// adultPriceSubquery picks the oldest active adult price, the same one ActivityWithDetails.AdultPrice reports.
func (s Store) adultPriceSubquery() *goqu.SelectDataset {
	return goqu.Dialect(dialectPostgres).
		From(s.tables.aliased(tablePricing, aliasListPrice)).
		Where(
			goqu.I("lp.activity_id").Eq(goqu.I("a.id")),
			goqu.L("lp.price_type::text").Eq(string(activitystore.PriceTypeAdult)),
			goqu.I("lp.is_active").IsTrue(),
		).
		Order(goqu.I("lp.created_at").Asc(), goqu.I("lp.id").Asc()).
		Limit(1).
		As(aliasPricing)
}

// buildActivityLookupQuery selects one activity by an exact column match.
func (s Store) buildActivityLookupQuery(column string, value string, scope activitystore.Scope) (string, error) {
	where := []exp.Expression{goqu.I(aliasActivity + "." + column).Eq(value)}
	if scope == activitystore.ScopeCustomer {
		where = append(where, goqu.L("a.status::text").Eq(string(activitystore.StatusActive)))
	}

	sqlQuery, _, err := goqu.Dialect(dialectPostgres).
		From(s.tables.aliased(tableActivities, aliasActivity)).
		Select(activityColumns(aliasActivity)...).
		Where(where...).
		Limit(1).
		ToSQL()

	return sqlQuery, err
}

func (s Store) buildImagesQuery(activityIDs []string) (string, error) {
	sqlQuery, _, err := goqu.Dialect(dialectPostgres).
		From(s.tables.aliased(tableImages, aliasImage)).
		Select(imageColumns(aliasImage)...).
		Where(goqu.I("i.activity_id").In(activityIDs)).
		Order(
			goqu.I("i.activity_id").Asc(),
			goqu.L("COALESCE(i.sort_order, 0)").Asc(),
			goqu.I("i.created_at").Asc(),
			goqu.I("i.id").Asc(),
		).
		ToSQL()

	return sqlQuery, err
}

func (s Store) buildPricingQuery(activityIDs []string, onlyActive bool) (string, error) {
	where := []exp.Expression{goqu.I("p.activity_id").In(activityIDs)}
	if onlyActive {
		where = append(where, goqu.I("p.is_active").IsTrue())
	}

	sqlQuery, _, err := goqu.Dialect(dialectPostgres).
		From(s.tables.aliased(tablePricing, aliasPricing)).
		Select(pricingColumns(aliasPricing)...).
		Where(where...).
		Order(goqu.I("p.activity_id").Asc(), goqu.I("p.created_at").Asc(), goqu.I("p.id").Asc()).
		ToSQL()

	return sqlQuery, err
}

func (s Store) buildAvailabilityQuery(activityID string, day time.Time) (string, error) {
	sqlQuery, _, err := goqu.Dialect(dialectPostgres).
		From(s.tables.aliased(tableAvailability, aliasAvailability)).
		Select(availabilityColumns(aliasAvailability)...).
		Where(
			goqu.I("v.activity_id").Eq(activityID),
			goqu.I("v.date").Eq(goqu.L("?::date", day.Format(dateLayout))),
		).
		Order(goqu.I("v.time_slot").Asc().NullsLast()).
		ToSQL()

	return sqlQuery, err
}

func (s Store) buildCountByStatusQuery() (string, error) {
	sqlQuery, _, err := goqu.Dialect(dialectPostgres).
		From(s.tables.aliased(tableActivities, aliasActivity)).
		Select(goqu.L("a.status::text"), goqu.COUNT(goqu.Star()).As(aliasCount)).
		GroupBy(goqu.I("a.status")).
		ToSQL()

	return sqlQuery, err
}

func (s Store) buildInsertActivityQuery(a activitystore.NewActivity) (string, error) {
	status := a.Status
	if status == "" {
		status = activitystore.StatusDraft
	}

	record := goqu.Record{
		"id":                   a.ID,
		"title":                a.Title,
		"slug":                 a.Slug,
		"short_description":    a.ShortDescription,
		"description":          a.Description,
		"category":             string(a.Category),
		"location":             a.Location,
		"meeting_point":        a.MeetingPoint,
		"latitude":             a.Latitude,
		"longitude":            a.Longitude,
		"duration_minutes":     a.DurationMinutes,
		"min_participants":     max(a.MinParticipants, 1),
		"max_participants":     a.MaxParticipants,
		"min_age":              a.MinAge,
		"max_age":              a.MaxAge,
		"included_items":       goqu.L(castTextArray, pq.Array(nonNil(a.IncludedItems))),
		"excluded_items":       goqu.L(castTextArray, pq.Array(nonNil(a.ExcludedItems))),
		"what_to_bring":        goqu.L(castTextArray, pq.Array(nonNil(a.WhatToBring))),
		"cancellation_policy":  a.CancellationPolicy,
		"safety_requirements":  a.SafetyRequirements,
		"weather_dependent":    a.WeatherDependent,
		"instant_confirmation": a.InstantConfirmation,
		"status":               string(status),
		"featured":             a.Featured,
		"video_url":            a.VideoURL,
	}

	if a.OperatorID != nil {
		record["operator_id"] = *a.OperatorID
	}

	sqlQuery, _, err := goqu.Dialect(dialectPostgres).
		Insert(s.tables.table(tableActivities)).
		Rows(record).
		Returning(activityColumns(tableActivities)...).
		ToSQL()

	return sqlQuery, err
}

func (s Store) buildUpdateActivityQuery(id string, u activitystore.ActivityUpdate) (string, error) {
	record := goqu.Record{"updated_at": goqu.L(sqlNow)}

	setIf := func(col string, v any, present bool) {
		if present {
			record[col] = v
		}
	}

	setIf("title", deref(u.Title), u.Title != nil)
	setIf("slug", deref(u.Slug), u.Slug != nil)
	setIf("short_description", deref(u.ShortDescription), u.ShortDescription != nil)
	setIf("description", deref(u.Description), u.Description != nil)
	setIf("category", string(deref(u.Category)), u.Category != nil)
	setIf("location", deref(u.Location), u.Location != nil)
	setIf("meeting_point", deref(u.MeetingPoint), u.MeetingPoint != nil)
	setIf("duration_minutes", deref(u.DurationMinutes), u.DurationMinutes != nil)
	setIf("max_participants", deref(u.MaxParticipants), u.MaxParticipants != nil)
	setIf("status", string(deref(u.Status)), u.Status != nil)
	setIf("featured", deref(u.Featured), u.Featured != nil)
	setIf("weather_dependent", deref(u.WeatherDependent), u.WeatherDependent != nil)
	setIf("instant_confirmation", deref(u.InstantConfirmation), u.InstantConfirmation != nil)
	setIf("video_url", deref(u.VideoURL), u.VideoURL != nil)

	if u.IncludedItems != nil {
		record["included_items"] = goqu.L(castTextArray, pq.Array(nonNil(*u.IncludedItems)))
	}

	sqlQuery, _, err := goqu.Dialect(dialectPostgres).
		Update(s.tables.table(tableActivities)).
		Set(record).
		Where(goqu.I("id").Eq(id)).
		Returning(activityColumns(tableActivities)...).
		ToSQL()

	return sqlQuery, err
}

func (s Store) buildDeleteActivityQuery(id string) (string, error) {
	sqlQuery, _, err := goqu.Dialect(dialectPostgres).
		Delete(s.tables.table(tableActivities)).
		Where(goqu.I("id").Eq(id)).
		ToSQL()

	return sqlQuery, err
}

func (s Store) buildInsertImageQuery(img activitystore.NewActivityImage) (string, error) {
	sqlQuery, _, err := goqu.Dialect(dialectPostgres).
		Insert(s.tables.table(tableImages)).
		Rows(goqu.Record{
			"id":          img.ID,
			"activity_id": img.ActivityID,
			"image_url":   img.ImageURL,
			"alt_text":    img.AltText,
			"caption":     img.Caption,
			"is_primary":  img.IsPrimary,
			"sort_order":  img.SortOrder,
		}).
		Returning(imageColumns(tableImages)...).
		ToSQL()

	return sqlQuery, err
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}

	return items
}

func deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}

	return *p
}
