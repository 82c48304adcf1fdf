package restengine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/mallorca-activities/activitystore-go/activitystore"
)

const (
	headerAPIKey         = "apikey"
	headerAuthorization  = "Authorization"
	headerRange          = "Range"
	headerRangeUnit      = "Range-Unit"
	headerPrefer         = "Prefer"
	headerContentRange   = "Content-Range"
	headerContentType    = "Content-Type"
	headerAccept         = "Accept"
	mediaTypeJSON        = "application/json"
	preferRepresentation = "return=representation"
	preferCountExact     = "count=exact"
	rangeUnitItems       = "items"
	paramSelect          = "select"
	paramOrder           = "order"
	paramOr              = "or"
	paramLimit           = "limit"
	embedImages          = "activity_images"
	embedPricing         = "activity_pricing"
	columnAdultPrice     = "adult_price"
	maxErrorBodyBytes    = 4096
	codeForeignKey       = "23503"
)

// restError is the error body PostgREST returns for non-2xx responses.
type restError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details"`
	Hint       string `json:"hint"`
}

func (e *restError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("backend responded with status %d: %s", e.StatusCode, e.Message)
	}

	return fmt.Sprintf("backend responded with status %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// request describes one call against a PostgREST table endpoint.
type request struct {
	method  string
	table   string
	params  url.Values
	body    any
	headers map[string]string
}

// errRangeNotSatisfiable is returned by do when the requested range starts after the last row.
var errRangeNotSatisfiable = errors.New("range not satisfiable")

// do executes the request and decodes a 2xx JSON body into out.
// Transport failures and non-2xx responses are returned as they are; the caller joins its sentinel.
func (s *Store) do(ctx context.Context, req request, out any) error {
	resp, err := s.send(ctx, req)
	if err != nil {
		return err
	}

	defer s.closeBody(ctx, resp)

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := jsoniter.ConfigFastest.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Join(activitystore.ErrBackendResponseInvalid, err)
	}

	return nil
}

// count returns the exact number of rows matching params without transferring them.
// PostgREST reports it in the total of the Content-Range header, which max-rows does not cap.
func (s *Store) count(ctx context.Context, table string, params url.Values) (int, error) {
	resp, err := s.send(ctx, request{
		method:  http.MethodHead,
		table:   table,
		params:  params,
		headers: map[string]string{headerPrefer: preferCountExact},
	})
	if err != nil {
		return 0, err
	}

	defer s.closeBody(ctx, resp)

	return contentRangeTotal(resp.Header.Get(headerContentRange))
}

// send executes the request. The caller closes the body of a returned response.
// A 416 is returned as errRangeNotSatisfiable, any other non-2xx status as *restError.
func (s *Store) send(ctx context.Context, req request) (*http.Response, error) {
	endpoint := s.baseURL.JoinPath(req.table)
	endpoint.RawQuery = req.params.Encode()

	var body io.Reader
	if req.body != nil {
		payload, err := jsoniter.ConfigFastest.Marshal(req.body)
		if err != nil {
			return nil, errors.Join(activitystore.ErrBuildingQueryFailed, err)
		}

		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint.String(), body)
	if err != nil {
		return nil, errors.Join(activitystore.ErrBuildingQueryFailed, err)
	}

	s.authorize(httpReq)
	httpReq.Header.Set(headerAccept, mediaTypeJSON)

	if body != nil {
		httpReq.Header.Set(headerContentType, mediaTypeJSON)
	}

	for key, value := range req.headers {
		httpReq.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := s.client.Do(httpReq)
	s.obs.LogStatement(ctx, logMsgRequestExecuted, logAttrRequest, req.method+" "+endpoint.RequestURI(), time.Since(start))

	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable {
		s.closeBody(ctx, resp)
		return nil, errRangeNotSatisfiable
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		restErr := decodeRestError(resp)
		s.closeBody(ctx, resp)

		return nil, restErr
	}

	return resp, nil
}

func (s *Store) closeBody(ctx context.Context, resp *http.Response) {
	if closeErr := resp.Body.Close(); closeErr != nil {
		s.obs.LogWarn(ctx, logMsgCloseBodyFailed, closeErr)
	}
}

// contentRangeTotal parses the total of "0-24/3573" or "*/0".
func contentRangeTotal(raw string) (int, error) {
	_, total, found := strings.Cut(raw, "/")
	if !found {
		return 0, errors.Join(activitystore.ErrBackendResponseInvalid, fmt.Errorf("content range %q has no total", raw))
	}

	n, err := strconv.Atoi(total)
	if err != nil || n < 0 {
		return 0, errors.Join(activitystore.ErrBackendResponseInvalid, fmt.Errorf("content range %q has no exact total", raw))
	}

	return n, nil
}

func (s *Store) authorize(req *http.Request) {
	if s.apiKey != "" {
		req.Header.Set(headerAPIKey, s.apiKey)
	}

	token := s.bearerToken
	if token == "" {
		token = s.apiKey
	}

	if token != "" {
		req.Header.Set(headerAuthorization, "Bearer "+token)
	}
}

func decodeRestError(resp *http.Response) error {
	restErr := &restError{StatusCode: resp.StatusCode}

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if readErr != nil || jsoniter.ConfigFastest.Unmarshal(raw, restErr) != nil || restErr.Message == "" {
		restErr.Message = strings.TrimSpace(string(raw))
	}

	return restErr
}

func isForeignKeyViolation(err error) bool {
	var restErr *restError
	return errors.As(err, &restErr) && restErr.Code == codeForeignKey
}

/***** query translation *****/

// listParams translates a Query into PostgREST parameters for the list view:
// every activity with at most its first primary image and its oldest active adult price.
// Filters and ordering on the adult price need the adult_price column of the listing view.
func listParams(query activitystore.Query) url.Values {
	params := url.Values{}

	params.Set(paramSelect, "*,"+embedImages+"(*),"+embedPricing+"(*)")
	params.Set(embedImages+".is_primary", "is.true")
	params.Set(embedImages+"."+paramOrder, "sort_order.asc.nullsfirst,created_at.asc,id.asc")
	params.Set(embedImages+"."+paramLimit, "1")
	params.Set(embedPricing+".price_type", "eq."+string(activitystore.PriceTypeAdult))
	params.Set(embedPricing+".is_active", "is.true")
	params.Set(embedPricing+"."+paramOrder, "created_at.asc,id.asc")
	params.Set(embedPricing+"."+paramLimit, "1")

	for _, predicate := range query.Predicates() {
		key, value := predicateParam(predicate)
		params.Add(key, value)
	}

	if order := orderParam(query.Ordering()); order != "" {
		params.Set(paramOrder, order)
	}

	return params
}

// needsListingView reports whether the query filters or orders by the adult price.
func needsListingView(query activitystore.Query) bool {
	return query.FiltersByAdultPrice() || query.OrdersByAdultPrice()
}

func columnFor(field activitystore.Field) string {
	if field == activitystore.FieldAdultPrice {
		return columnAdultPrice
	}

	return string(field)
}

func predicateParam(p activitystore.Predicate) (string, string) {
	switch p.Operator() {
	case activitystore.OpNotEquals:
		return columnFor(p.Field()), "neq." + p.Val()
	case activitystore.OpContains:
		return columnFor(p.Field()), "ilike." + likePattern(p.Val())
	case activitystore.OpAnyContains:
		conditions := make([]string, 0, len(p.Fields()))
		for _, field := range p.Fields() {
			conditions = append(conditions, columnFor(field)+".ilike."+quoteOrValue(likePattern(p.Val())))
		}

		return paramOr, "(" + strings.Join(conditions, ",") + ")"
	case activitystore.OpAtLeast:
		return columnFor(p.Field()), "gte." + p.Val()
	case activitystore.OpAtMost:
		return columnFor(p.Field()), "lte." + p.Val()
	default:
		if p.Field() == activitystore.FieldFeatured {
			if p.BoolVal() {
				return columnFor(p.Field()), "is.true"
			}

			return columnFor(p.Field()), "not.is.true"
		}

		return columnFor(p.Field()), "eq." + p.Val()
	}
}

// likePattern uses "*", which PostgREST accepts in place of "%" inside URLs.
func likePattern(val string) string {
	return "*" + val + "*"
}

// quoteOrValue quotes a value inside an or=(...) list, where commas and parentheses are reserved.
func quoteOrValue(val string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(val)
	return `"` + escaped + `"`
}

// orderParam renders the ordering. Descending keys put NULLs last, matching a NULL-as-zero reading of the counters.
func orderParam(terms []activitystore.OrderTerm) string {
	parts := make([]string, 0, len(terms))

	for _, term := range terms {
		part := columnFor(term.Field)
		switch {
		case term.Descending:
			part += ".desc.nullslast"
		case term.NullsLast:
			part += ".asc.nullslast"
		default:
			part += ".asc"
		}

		parts = append(parts, part)
	}

	return strings.Join(parts, ",")
}

func rangeHeader(offset, limit int) string {
	return strconv.Itoa(offset) + "-" + strconv.Itoa(offset+limit-1)
}

func inList(ids []string) string {
	return "in.(" + strings.Join(ids, ",") + ")"
}

// hasUnknownEnumValue reports equality predicates on enum columns with values the backend would reject.
// Such queries match nothing, so they are answered without a request.
func hasUnknownEnumValue(query activitystore.Query) bool {
	for _, p := range query.Predicates() {
		if p.Operator() != activitystore.OpEquals {
			continue
		}

		switch p.Field() {
		case activitystore.FieldCategory:
			if !activitystore.Category(p.Val()).IsValid() {
				return true
			}
		case activitystore.FieldStatus:
			if !activitystore.Status(p.Val()).IsValid() {
				return true
			}
		}
	}

	return false
}
