package render

import (
	"bytes"
	"fmt"
	"html/template"

	"nexus/api/internal/proposal"
)

// ExportData is the resolved input of the export template: every
// fallback already substituted, every hidden or deleted section already
// dropped, so the template itself stays a dumb serializer and the
// output is a pure function of document state.
type ExportData struct {
	ThemeColor string
	Title      string
	LogoURL    string
	BrandName  string
	ClientName string
	ShowHeader bool

	ShowItinerary  bool
	ItineraryTitle string
	ItineraryRows  []ExportRow

	ShowProgram  bool
	ProgramTitle string
	ProgramHTML  template.HTML

	ShowInclusions bool
	ShowIncluded   bool
	IncludedTitle  string
	IncludedItems  []string
	ShowExcluded   bool
	ExcludedTitle  string
	ExcludedItems  []string
	ItemFallback   string

	ShowPricing          bool
	PricingTitle         string
	PricePerPerson       string
	SingleRoomSupplement string
	PricingNotes         string

	ShowLodgings    bool
	LodgingsTitle   string
	Lodgings        []ExportLodging
	LodgingFallback string

	ShowWishList  bool
	WishListTitle string
	WishList      string
}

// ExportRow is one itinerary table line with fallbacks applied.
type ExportRow struct {
	Day      string
	Date     string
	Activity string
	Night    string
	Hotel    string
}

// ExportLodging is one lodging card.
type ExportLodging struct {
	Name        string
	Description string
	Images      []string
}

// BuildExportData resolves the document and registry into template
// input. Shared fallback helpers guarantee the export shows exactly
// what the live view shows for the same state.
func BuildExportData(d *proposal.Document, reg *proposal.Registry) ExportData {
	data := ExportData{
		ThemeColor: orFallback(d.ThemeColor, FallbackThemeColor),
		Title:      orFallback(d.Title, FallbackTitle),
		LogoURL:    d.LogoURL,
		BrandName:  orFallback(d.BrandName, FallbackBrandName),
		ClientName: orFallback(d.ClientName, FallbackClientName),
		ShowHeader: reg.IsVisible(proposal.SectionHeader),

		ShowItinerary:  reg.IsVisible(proposal.SectionItinerary),
		ItineraryTitle: SectionTitle(d, proposal.SectionItinerary),

		ShowProgram:  reg.IsVisible(proposal.SectionProgram),
		ProgramTitle: SectionTitle(d, proposal.SectionProgram),
		ProgramHTML:  template.HTML(orFallback(d.DetailedProgram, "<p>"+FallbackProgram+"</p>")),

		ShowInclusions: reg.IsVisible(proposal.SectionIncluded) || reg.IsVisible(proposal.SectionExcluded),
		ShowIncluded:   reg.IsVisible(proposal.SectionIncluded),
		IncludedTitle:  SectionTitle(d, proposal.SectionIncluded),
		ShowExcluded:   reg.IsVisible(proposal.SectionExcluded),
		ExcludedTitle:  SectionTitle(d, proposal.SectionExcluded),
		ItemFallback:   FallbackItemList,

		ShowPricing:          reg.IsVisible(proposal.SectionPricing),
		PricingTitle:         SectionTitle(d, proposal.SectionPricing),
		PricePerPerson:       orFallback(d.PricePerPerson, FallbackPrice),
		SingleRoomSupplement: orFallback(d.SingleRoomSupplement, FallbackPrice),
		PricingNotes:         orFallback(d.PricingNotes, FallbackPricingNotes),

		ShowLodgings:    reg.IsVisible(proposal.SectionLodgings),
		LodgingsTitle:   SectionTitle(d, proposal.SectionLodgings),
		LodgingFallback: FallbackLodgings,

		ShowWishList:  reg.IsVisible(proposal.SectionWishList),
		WishListTitle: SectionTitle(d, proposal.SectionWishList),
		WishList:      orFallback(d.WishList, FallbackWishList),
	}

	if data.ShowIncluded {
		data.IncludedItems = append([]string(nil), d.IncludedItems...)
	}
	if data.ShowExcluded {
		data.ExcludedItems = append([]string(nil), d.ExcludedItems...)
	}

	for _, row := range d.ItineraryRows {
		data.ItineraryRows = append(data.ItineraryRows, ExportRow{
			Day:      row.Day,
			Date:     row.Date,
			Activity: orFallback(row.Activity, FallbackActivity),
			Night:    orFallback(row.Night, FallbackNight),
			Hotel:    orFallback(row.HotelName, FallbackHotel),
		})
	}
	for _, l := range d.Lodgings() {
		data.Lodgings = append(data.Lodgings, ExportLodging{
			Name:        l.Name,
			Description: l.Description,
			Images:      append([]string(nil), l.Images...),
		})
	}
	return data
}

// ExportHTML serializes the visible document into one self-contained
// HTML artifact with an inline stylesheet. Collections are emitted in
// their current document order; no clock or counter feeds the template,
// so exporting twice over unchanged state is byte-identical.
func ExportHTML(d *proposal.Document, reg *proposal.Registry) (string, error) {
	var buf bytes.Buffer
	if err := exportTemplate.Execute(&buf, BuildExportData(d, reg)); err != nil {
		return "", fmt.Errorf("render export: %w", err)
	}
	return buf.String(), nil
}
