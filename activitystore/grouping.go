package activitystore

// JoinedRow is one row of a joined listing query: an activity with at most one image and one pricing row.
type JoinedRow struct {
	Activity Activity
	Image    *ActivityImage
	Pricing  *ActivityPricing
}

// Grouper folds joined rows into one ActivityWithDetails per activity id.
// Activities keep the order in which they were first seen; child rows are deduplicated by id.
// The zero value is not usable, use NewGrouper.
type Grouper struct {
	order []string
	byID  map[string]*ActivityWithDetails
}

// NewGrouper creates a Grouper sized for the expected number of activities.
func NewGrouper(sizeHint int) *Grouper {
	return &Grouper{
		order: make([]string, 0, sizeHint),
		byID:  make(map[string]*ActivityWithDetails, sizeHint),
	}
}

// Add merges one joined row.
func (g *Grouper) Add(row JoinedRow) {
	composite := g.seed(row.Activity)

	if row.Image != nil {
		g.AddImage(composite.ID, *row.Image)
	}

	if row.Pricing != nil {
		g.AddPricing(composite.ID, *row.Pricing)
	}
}

// AddActivity registers an activity without children.
func (g *Grouper) AddActivity(a Activity) {
	g.seed(a)
}

// AddImage appends an image to an already seen activity unless an image with the same id is present.
func (g *Grouper) AddImage(activityID string, img ActivityImage) {
	composite, ok := g.byID[activityID]
	if !ok {
		return
	}

	for _, existing := range composite.Images {
		if existing.ID == img.ID {
			return
		}
	}

	composite.Images = append(composite.Images, img)
}

// AddPricing appends a pricing row to an already seen activity unless a row with the same id is present.
func (g *Grouper) AddPricing(activityID string, p ActivityPricing) {
	composite, ok := g.byID[activityID]
	if !ok {
		return
	}

	for _, existing := range composite.Pricing {
		if existing.ID == p.ID {
			return
		}
	}

	composite.Pricing = append(composite.Pricing, p)
}

// IDs returns the activity ids in first-seen order.
func (g *Grouper) IDs() []string {
	ids := make([]string, len(g.order))
	copy(ids, g.order)

	return ids
}

// Len returns the number of distinct activities.
func (g *Grouper) Len() int {
	return len(g.order)
}

// Result returns the composites in first-seen order.
func (g *Grouper) Result() []ActivityWithDetails {
	result := make([]ActivityWithDetails, 0, len(g.order))
	for _, id := range g.order {
		result = append(result, *g.byID[id])
	}

	return result
}

func (g *Grouper) seed(a Activity) *ActivityWithDetails {
	if composite, ok := g.byID[a.ID]; ok {
		return composite
	}

	composite := &ActivityWithDetails{
		Activity: a,
		Images:   []ActivityImage{},
		Pricing:  []ActivityPricing{},
	}
	g.byID[a.ID] = composite
	g.order = append(g.order, a.ID)

	return composite
}

// GroupRows folds a complete row stream in one call.
func GroupRows(rows []JoinedRow) []ActivityWithDetails {
	g := NewGrouper(len(rows))
	for _, row := range rows {
		g.Add(row)
	}

	return g.Result()
}
