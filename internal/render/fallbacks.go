// Package render projects a proposal document into its two views: the
// editable live view model and the standalone export artifact. Both are
// produced from the same document state and share one fallback table,
// so they cannot disagree on what an empty field shows.
package render

import "nexus/api/internal/proposal"

// Placeholder strings shown when a field or block has no data. These
// are the single source of truth for both renderers.
const (
	FallbackBrandName    = "Votre agence"
	FallbackClientName   = "Cher voyageur"
	FallbackTitle        = "Proposition de voyage"
	FallbackActivity     = "Journée libre"
	FallbackNight        = "—"
	FallbackHotel        = "Hébergement à confirmer"
	FallbackWishList     = "À compléter avec vos envies"
	FallbackProgram      = "Programme détaillé à venir"
	FallbackItemList     = "À préciser"
	FallbackPrice        = "Nous consulter"
	FallbackPricingNotes = "Remarques : tarifs donnés à titre indicatif"
	FallbackLodgings     = "Hébergements à confirmer"
	FallbackThemeColor   = "#1f6f78"
)

// defaultSectionTitles are the headings used when the operator has not
// overridden a section title.
var defaultSectionTitles = map[proposal.SectionID]string{
	proposal.SectionWishList:  "Vos envies",
	proposal.SectionItinerary: "Itinéraire jour par jour",
	proposal.SectionProgram:   "Programme détaillé",
	proposal.SectionIncluded:  "Inclus",
	proposal.SectionExcluded:  "Non inclus",
	proposal.SectionPricing:   "Tarifs",
	proposal.SectionLodgings:  "Hébergements",
}

// SectionTitle resolves the heading for a section. An override that is
// present, even empty, wins; only a missing override falls back to
// the default label.
func SectionTitle(d *proposal.Document, id proposal.SectionID) string {
	if title, ok := d.SectionTitles[string(id)]; ok {
		return title
	}
	return defaultSectionTitles[id]
}

// orFallback substitutes the placeholder for an empty value.
func orFallback(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
