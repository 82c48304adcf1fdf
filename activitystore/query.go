package activitystore

import (
	"slices"
	"strconv"
	"strings"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
	allSentinel  = "all"
)

/***** Field *****/

// Field is a backend-neutral column reference that every engine maps to its own naming.
type Field string

const (
	FieldID               Field = "id"
	FieldTitle            Field = "title"
	FieldShortDescription Field = "short_description"
	FieldLocation         Field = "location"
	FieldCategory         Field = "category"
	FieldStatus           Field = "status"
	FieldFeatured         Field = "featured"
	FieldTotalBookings    Field = "total_bookings"
	FieldAvgRating        Field = "avg_rating"
	FieldDurationMinutes  Field = "duration_minutes"
	FieldCreatedAt        Field = "created_at"
	FieldAdultPrice       Field = "adult_price"
)

// SearchFields are the fields matched by free-text search, combined with OR.
func SearchFields() []Field {
	return []Field{FieldTitle, FieldShortDescription, FieldLocation}
}

/***** Predicate *****/

type Operator string

const (
	OpEquals      Operator = "eq"
	OpNotEquals   Operator = "neq"
	OpContains    Operator = "contains"
	OpAnyContains Operator = "any_contains"
	OpAtLeast     Operator = "gte"
	OpAtMost      Operator = "lte"
)

// Predicate is one condition of a Query. All predicates of a Query are combined with AND.
// For OpAnyContains the value is matched case-insensitively against any of the fields (OR).
type Predicate struct {
	fields []Field
	op     Operator
	val    string
}

func (p Predicate) Field() Field {
	return p.fields[0]
}

func (p Predicate) Fields() []Field {
	return p.fields
}

func (p Predicate) Operator() Operator {
	return p.op
}

func (p Predicate) Val() string {
	return p.val
}

// BoolVal interprets the value of a featured predicate.
func (p Predicate) BoolVal() bool {
	return p.val == "true"
}

/***** Ordering *****/

// OrderTerm is one ORDER BY key; NullsLast applies to fields that may be missing (the joined price).
type OrderTerm struct {
	Field      Field
	Descending bool
	NullsLast  bool
}

type SortKey string

const (
	SortPopular   SortKey = "popular"
	SortPriceLow  SortKey = "price_low"
	SortPriceHigh SortKey = "price_high"
	SortRating    SortKey = "rating"
	SortDuration  SortKey = "duration"
	sortSimilar   SortKey = "similar"
	sortNewest    SortKey = "newest"
)

func (s SortKey) IsValid() bool {
	switch s {
	case SortPopular, SortPriceLow, SortPriceHigh, SortRating, SortDuration:
		return true
	default:
		return false
	}
}

// OrderingFor returns the ORDER BY terms of a sort key. Unknown keys fall back to popular.
// Every ordering ends with id ascending so that pages are stable.
func OrderingFor(key SortKey) []OrderTerm {
	var terms []OrderTerm

	switch key {
	case SortPriceLow:
		terms = []OrderTerm{{Field: FieldAdultPrice, NullsLast: true}}
	case SortPriceHigh:
		terms = []OrderTerm{{Field: FieldAdultPrice, Descending: true, NullsLast: true}}
	case SortRating:
		terms = []OrderTerm{{Field: FieldAvgRating, Descending: true}}
	case SortDuration:
		terms = []OrderTerm{{Field: FieldDurationMinutes}}
	case sortSimilar:
		terms = []OrderTerm{
			{Field: FieldAvgRating, Descending: true},
			{Field: FieldTotalBookings, Descending: true},
		}
	case sortNewest:
		terms = []OrderTerm{{Field: FieldCreatedAt, Descending: true}}
	default:
		terms = []OrderTerm{
			{Field: FieldFeatured, Descending: true},
			{Field: FieldTotalBookings, Descending: true},
			{Field: FieldAvgRating, Descending: true},
		}
	}

	return append(terms, OrderTerm{Field: FieldID})
}

/***** Query *****/

type Scope int

const (
	ScopeCustomer Scope = iota
	ScopeAdmin
)

type DetailLevel int

const (
	// DetailsListView joins at most one primary image and one active adult price per activity.
	DetailsListView DetailLevel = iota
	// DetailsFull loads all images by sort order and the pricing rows.
	DetailsFull
)

// Query is the backend-neutral output of the QueryBuilder.
type Query struct {
	predicates []Predicate
	ordering   []OrderTerm
	limit      int
	offset     int
	details    DetailLevel
	scope      Scope
}

func (q Query) Predicates() []Predicate {
	return q.predicates
}

func (q Query) Ordering() []OrderTerm {
	return q.ordering
}

func (q Query) Limit() int {
	return q.limit
}

func (q Query) Offset() int {
	return q.offset
}

func (q Query) Details() DetailLevel {
	return q.details
}

func (q Query) Scope() Scope {
	return q.scope
}

// OrdersByAdultPrice reports whether the ordering needs the joined adult price.
func (q Query) OrdersByAdultPrice() bool {
	return slices.ContainsFunc(q.ordering, func(t OrderTerm) bool { return t.Field == FieldAdultPrice })
}

// FiltersByAdultPrice reports whether any predicate needs the joined adult price.
func (q Query) FiltersByAdultPrice() bool {
	return slices.ContainsFunc(q.predicates, func(p Predicate) bool { return p.Field() == FieldAdultPrice })
}

/***** QueryBuilder *****/

// QueryBuilder builds a Query with value semantics; every method returns a modified copy.
//
// It sanitizes the input:
//   - trimming whitespace
//   - ignoring empty values and the sentinel "all"
//   - ignoring negative price bounds
//   - clamping the limit to (0, MaxLimit] and the offset to >= 0
type QueryBuilder struct {
	query   Query
	sortKey SortKey
}

// BuildQuery creates a QueryBuilder for customers with the default ordering and pagination.
func BuildQuery() QueryBuilder {
	return QueryBuilder{
		query:   Query{limit: DefaultLimit, scope: ScopeCustomer},
		sortKey: SortPopular,
	}
}

// ForCustomers restricts the query to active activities.
func (qb QueryBuilder) ForCustomers() QueryBuilder {
	qb.query.scope = ScopeCustomer

	return qb
}

// ForAdmins removes the status restriction entirely.
func (qb QueryBuilder) ForAdmins() QueryBuilder {
	qb.query.scope = ScopeAdmin

	return qb
}

// MatchingText adds a case-insensitive substring match over title, short description and location.
func (qb QueryBuilder) MatchingText(search string) QueryBuilder {
	if v, ok := sanitize(search, false); ok {
		qb.query.predicates = append(qb.query.predicates, Predicate{fields: SearchFields(), op: OpAnyContains, val: v})
	}

	return qb
}

// InCategory adds an equality predicate on the category.
func (qb QueryBuilder) InCategory(category Category) QueryBuilder {
	if v, ok := sanitize(string(category), true); ok {
		qb.query.predicates = append(qb.query.predicates, eq(FieldCategory, v))
	}

	return qb
}

// AtLocation adds a case-insensitive substring match on the location.
func (qb QueryBuilder) AtLocation(location string) QueryBuilder {
	if v, ok := sanitize(location, true); ok {
		qb.query.predicates = append(qb.query.predicates, Predicate{fields: []Field{FieldLocation}, op: OpContains, val: v})
	}

	return qb
}

// WithStatus adds an equality predicate on the status; mostly useful for admin queries.
func (qb QueryBuilder) WithStatus(status Status) QueryBuilder {
	if v, ok := sanitize(string(status), true); ok {
		qb.query.predicates = append(qb.query.predicates, eq(FieldStatus, v))
	}

	return qb
}

// Featured adds an equality predicate on the featured flag.
func (qb QueryBuilder) Featured(featured bool) QueryBuilder {
	qb.query.predicates = append(qb.query.predicates, eq(FieldFeatured, strconv.FormatBool(featured)))

	return qb
}

// ExcludingID removes one activity from the result, e.g. the activity a similar list is built for.
func (qb QueryBuilder) ExcludingID(id string) QueryBuilder {
	if v, ok := sanitize(id, false); ok {
		qb.query.predicates = append(qb.query.predicates, Predicate{fields: []Field{FieldID}, op: OpNotEquals, val: v})
	}

	return qb
}

// PricedBetween bounds the joined adult price. Nil or negative bounds are ignored and swapped bounds are fixed.
func (qb QueryBuilder) PricedBetween(minPrice, maxPrice *float64) QueryBuilder {
	lower := validBound(minPrice)
	upper := validBound(maxPrice)

	if lower != nil && upper != nil && *lower > *upper {
		lower, upper = upper, lower
	}

	if lower != nil {
		qb.query.predicates = append(qb.query.predicates, Predicate{fields: []Field{FieldAdultPrice}, op: OpAtLeast, val: formatPrice(*lower)})
	}

	if upper != nil {
		qb.query.predicates = append(qb.query.predicates, Predicate{fields: []Field{FieldAdultPrice}, op: OpAtMost, val: formatPrice(*upper)})
	}

	return qb
}

// SortedBy sets the ordering; unknown keys fall back to popular.
func (qb QueryBuilder) SortedBy(key SortKey) QueryBuilder {
	qb.sortKey = key

	return qb
}

// SortedBySimilarity orders by rating, then bookings.
func (qb QueryBuilder) SortedBySimilarity() QueryBuilder {
	qb.sortKey = sortSimilar

	return qb
}

// SortedByNewest orders by creation time, newest first.
func (qb QueryBuilder) SortedByNewest() QueryBuilder {
	qb.sortKey = sortNewest

	return qb
}

// Paginated sets limit and offset.
func (qb QueryBuilder) Paginated(limit, offset int) QueryBuilder {
	if limit <= 0 {
		limit = DefaultLimit
	}

	qb.query.limit = min(limit, MaxLimit)
	qb.query.offset = max(offset, 0)

	return qb
}

// OnPage sets the offset from a 1-based page number using the current limit.
func (qb QueryBuilder) OnPage(page int) QueryBuilder {
	if page > 0 {
		qb.query.offset = (page - 1) * qb.query.limit
	}

	return qb
}

// WithDetails selects list-view joins or full child collections.
func (qb QueryBuilder) WithDetails(level DetailLevel) QueryBuilder {
	qb.query.details = level

	return qb
}

// Finalize returns the Query; customer scope prepends the status = active predicate.
func (qb QueryBuilder) Finalize() Query {
	q := qb.query
	q.predicates = slices.Clone(q.predicates)

	if q.scope == ScopeCustomer {
		q.predicates = append([]Predicate{eq(FieldStatus, string(StatusActive))}, q.predicates...)
	}

	q.ordering = OrderingFor(qb.sortKey)

	return q
}

/***** SearchParams *****/

// SearchParams is the user-facing parameter bag of a listing request.
type SearchParams struct {
	Search   string   `form:"search" json:"search"`
	Category string   `form:"category" json:"category" binding:"omitempty,oneof=all water_sports land_adventures cultural nightlife family_fun food_wine day_trips"`
	Location string   `form:"location" json:"location"`
	MinPrice *float64 `form:"minPrice" json:"minPrice" binding:"omitempty,gte=0"`
	MaxPrice *float64 `form:"maxPrice" json:"maxPrice" binding:"omitempty,gte=0"`
	Featured *bool    `form:"featured" json:"featured"`
	SortBy   SortKey  `form:"sortBy" json:"sortBy"`
	Limit    int      `form:"limit" json:"limit" binding:"omitempty,gte=0"`
	Offset   int      `form:"offset" json:"offset" binding:"omitempty,gte=0"`
	Page     int      `form:"page" json:"page" binding:"omitempty,gte=0"`
	Status   string   `form:"status" json:"status" binding:"omitempty,oneof=all active draft inactive suspended"`
}

// FromSearchParams translates a parameter bag into a list-view Query.
// A page number, when supplied, takes precedence over the offset.
func FromSearchParams(params SearchParams, scope Scope) Query {
	return params.Builder(scope).Finalize()
}

// Builder returns a QueryBuilder preloaded with the parameters, so callers can refine it before Finalize.
// The status filter only applies in admin scope; customers always see active activities.
func (params SearchParams) Builder(scope Scope) QueryBuilder {
	qb := BuildQuery()
	if scope == ScopeAdmin {
		qb = qb.ForAdmins().WithStatus(Status(params.Status))
	}

	qb = qb.
		MatchingText(params.Search).
		InCategory(Category(params.Category)).
		AtLocation(params.Location).
		PricedBetween(params.MinPrice, params.MaxPrice).
		SortedBy(params.SortBy).
		Paginated(params.Limit, params.Offset).
		OnPage(params.Page)

	if params.Featured != nil {
		qb = qb.Featured(*params.Featured)
	}

	return qb
}

func eq(field Field, val string) Predicate {
	return Predicate{fields: []Field{field}, op: OpEquals, val: val}
}

func sanitize(val string, allIsEmpty bool) (string, bool) {
	v := strings.TrimSpace(val)
	if v == "" {
		return "", false
	}

	if allIsEmpty && strings.EqualFold(v, allSentinel) {
		return "", false
	}

	return v, true
}

func validBound(b *float64) *float64 {
	if b == nil || *b < 0 {
		return nil
	}

	v := *b

	return &v
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
