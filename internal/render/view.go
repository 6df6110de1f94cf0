package render

import (
	"fmt"
	"hash/fnv"

	"nexus/api/internal/proposal"
)

// View is the live editing projection: one entry per section, in render
// order, each binding document fields to editable controls. Every field
// carries the fallback the client shows when the value is empty and a
// content hash so a focused control is only re-rendered when the
// underlying value actually changed.
type View struct {
	Sections []SectionView `json:"sections"`
}

// SectionView is one section of the live view.
type SectionView struct {
	ID    proposal.SectionID `json:"id"`
	State proposal.StateKind `json:"state"`
	Title string             `json:"title"`

	Fields []FieldBinding `json:"fields,omitempty"`

	// Exactly one of the following is set for collection sections.
	ItineraryRows []proposal.ItineraryRow `json:"itineraryRows,omitempty"`
	Items         []string                `json:"items,omitempty"`
	Lodgings      []proposal.Lodging      `json:"lodgings,omitempty"`

	// Fallback is the placeholder a collection section shows when it is
	// empty; RowFallbacks carries the per-cell placeholders of itinerary
	// rows. Clients render these verbatim, the same substitutions the
	// export applies.
	Fallback     string        `json:"fallback,omitempty"`
	RowFallbacks *RowFallbacks `json:"rowFallbacks,omitempty"`
}

// RowFallbacks names the placeholder for each itinerary cell that can
// be empty.
type RowFallbacks struct {
	Activity string `json:"activity"`
	Night    string `json:"night"`
	Hotel    string `json:"hotel"`
}

// FieldBinding binds one scalar document field to an editable control.
type FieldBinding struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Value    string `json:"value"`
	Fallback string `json:"fallback,omitempty"`
	// Hash changes iff Value changes; clients use it as the dirty-check
	// guard before replacing the content of a focused control.
	Hash string `json:"hash"`
}

func binding(key, label, value, fallback string) FieldBinding {
	return FieldBinding{
		Key:      key,
		Label:    label,
		Value:    value,
		Fallback: fallback,
		Hash:     contentHash(value),
	}
}

func contentHash(value string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(value))
	return fmt.Sprintf("%016x", h.Sum64())
}

// BuildView projects the document and registry into the live view.
// Deleted sections appear with their state only, so the client can
// offer restore; hidden sections keep their bindings (fields stay
// live-editable) and the client decides not to show them.
func BuildView(d *proposal.Document, reg *proposal.Registry) View {
	view := View{Sections: make([]SectionView, 0, len(proposal.AllSections))}
	for _, id := range proposal.AllSections {
		sv := SectionView{
			ID:    id,
			State: reg.State(id),
			Title: SectionTitle(d, id),
		}
		if sv.State != proposal.StateDeleted {
			bindSection(&sv, d, id)
		}
		view.Sections = append(view.Sections, sv)
	}
	return view
}

// bindSection is the explicit field-to-control mapping table. Adding a
// document field means adding a binding here and a block in the export
// template; the equivalence test keeps the two honest.
func bindSection(sv *SectionView, d *proposal.Document, id proposal.SectionID) {
	switch id {
	case proposal.SectionHeader:
		sv.Fields = []FieldBinding{
			binding("themeColor", "Couleur", d.ThemeColor, FallbackThemeColor),
			binding("title", "Titre", d.Title, FallbackTitle),
			binding("logoUrl", "Logo", d.LogoURL, ""),
			binding("brandName", "Agence", d.BrandName, FallbackBrandName),
			binding("clientName", "Client", d.ClientName, FallbackClientName),
		}
	case proposal.SectionWishList:
		sv.Fields = []FieldBinding{
			binding("wishList", "Envies", d.WishList, FallbackWishList),
		}
	case proposal.SectionItinerary:
		sv.ItineraryRows = append([]proposal.ItineraryRow(nil), d.ItineraryRows...)
		sv.RowFallbacks = &RowFallbacks{
			Activity: FallbackActivity,
			Night:    FallbackNight,
			Hotel:    FallbackHotel,
		}
	case proposal.SectionProgram:
		sv.Fields = []FieldBinding{
			binding("detailedProgram", "Programme", d.DetailedProgram, FallbackProgram),
		}
	case proposal.SectionIncluded:
		sv.Items = append([]string(nil), d.IncludedItems...)
		sv.Fallback = FallbackItemList
	case proposal.SectionExcluded:
		sv.Items = append([]string(nil), d.ExcludedItems...)
		sv.Fallback = FallbackItemList
	case proposal.SectionPricing:
		sv.Fields = []FieldBinding{
			binding("pricePerPerson", "Prix par personne", d.PricePerPerson, FallbackPrice),
			binding("singleRoomSupplement", "Supplément single", d.SingleRoomSupplement, FallbackPrice),
			binding("pricingNotes", "Remarques", d.PricingNotes, FallbackPricingNotes),
		}
	case proposal.SectionLodgings:
		sv.Lodgings = d.Lodgings()
		sv.Fallback = FallbackLodgings
	}
}
