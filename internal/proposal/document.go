// Package proposal holds the canonical in-memory model of a travel
// proposal: ordered sections, their collections, and the mutation
// primitives every editing path (manual edits, drag reorders, AI
// patches, soft delete/restore) goes through.
package proposal

// ItineraryRow is one chronological line of the day-by-day schedule.
type ItineraryRow struct {
	Day       string `json:"day"`
	Date      string `json:"date"`
	Activity  string `json:"activity"`
	Night     string `json:"night"`
	HotelName string `json:"hotelName"`
}

// Lodging describes one accommodation entry shown in the lodging block.
type Lodging struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Images      []string `json:"images"`
}

// Document is the root aggregate of a travel proposal. One instance is
// owned by the active editing session; renderers read it, every edit
// writes into it directly.
//
// CustomLodgings holds only the operator-managed entries. The lodgings
// derived from the itinerary (first-seen distinct hotel names) are
// recomputed on demand by Lodgings and never stored, so they cannot
// drift out of sync with the itinerary rows.
type Document struct {
	ThemeColor string `json:"themeColor"`
	Title      string `json:"title"`
	LogoURL    string `json:"logoUrl"`
	BrandName  string `json:"brandName"`
	ClientName string `json:"clientName"`

	WishList        string `json:"wishList"`
	DetailedProgram string `json:"detailedProgram"`

	ItineraryRows  []ItineraryRow `json:"itineraryRows"`
	IncludedItems  []string       `json:"includedItems"`
	ExcludedItems  []string       `json:"excludedItems"`
	CustomLodgings []Lodging      `json:"customLodgings"`

	PricePerPerson       string `json:"pricePerPerson"`
	SingleRoomSupplement string `json:"singleRoomSupplement"`
	PricingNotes         string `json:"pricingNotes"`

	// SectionTitles overrides the rendered heading of a section. A key
	// that is present with an empty value renders as empty; a missing
	// key falls back to the section's default label.
	SectionTitles map[string]string `json:"sectionTitles"`
}

// Normalize replaces nil collections with empty ones so renderers and
// collection operations never have to branch on absence. Loading a
// partial document from the store goes through here before use.
func (d *Document) Normalize() {
	if d.ItineraryRows == nil {
		d.ItineraryRows = []ItineraryRow{}
	}
	if d.IncludedItems == nil {
		d.IncludedItems = []string{}
	}
	if d.ExcludedItems == nil {
		d.ExcludedItems = []string{}
	}
	if d.CustomLodgings == nil {
		d.CustomLodgings = []Lodging{}
	}
	for i := range d.CustomLodgings {
		if d.CustomLodgings[i].Images == nil {
			d.CustomLodgings[i].Images = []string{}
		}
	}
	if d.SectionTitles == nil {
		d.SectionTitles = map[string]string{}
	}
}

// Clone returns a deep copy. Saves and exports operate on a clone so an
// in-flight marshal never observes a later mutation.
func (d *Document) Clone() *Document {
	out := *d
	out.ItineraryRows = append([]ItineraryRow(nil), d.ItineraryRows...)
	out.IncludedItems = append([]string(nil), d.IncludedItems...)
	out.ExcludedItems = append([]string(nil), d.ExcludedItems...)
	out.CustomLodgings = make([]Lodging, len(d.CustomLodgings))
	for i, l := range d.CustomLodgings {
		l.Images = append([]string(nil), l.Images...)
		out.CustomLodgings[i] = l
	}
	out.SectionTitles = make(map[string]string, len(d.SectionTitles))
	for k, v := range d.SectionTitles {
		out.SectionTitles[k] = v
	}
	out.Normalize()
	return &out
}

// Default returns the document used when the store has nothing for the
// session's conversation yet.
func Default() *Document {
	d := &Document{
		ThemeColor: "#1f6f78",
		Title:      "Proposition de voyage",
	}
	d.Normalize()
	return d
}
