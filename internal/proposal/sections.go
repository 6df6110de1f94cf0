package proposal

import (
	"errors"
	"fmt"
)

// SectionID identifies one deletable/hideable section of the proposal.
type SectionID string

const (
	SectionHeader    SectionID = "header"
	SectionWishList  SectionID = "wishlist"
	SectionItinerary SectionID = "itinerary"
	SectionProgram   SectionID = "program"
	SectionIncluded  SectionID = "included"
	SectionExcluded  SectionID = "excluded"
	SectionPricing   SectionID = "pricing"
	SectionLodgings  SectionID = "lodgings"
)

// AllSections lists every section in render order.
var AllSections = []SectionID{
	SectionHeader,
	SectionItinerary,
	SectionProgram,
	SectionIncluded,
	SectionExcluded,
	SectionPricing,
	SectionLodgings,
	SectionWishList,
}

var ErrUnknownSection = errors.New("unknown section")

// ParseSection validates a section id from the wire.
func ParseSection(id string) (SectionID, error) {
	for _, s := range AllSections {
		if SectionID(id) == s {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSection, id)
}

// snapshotSection captures the exact sub-object of the document owned by
// the section, including its title override when one is set. The result
// is what Restore later merges back.
func snapshotSection(d *Document, id SectionID) Patch {
	var p Patch
	switch id {
	case SectionHeader:
		p.ThemeColor = strPtr(d.ThemeColor)
		p.Title = strPtr(d.Title)
		p.LogoURL = strPtr(d.LogoURL)
		p.BrandName = strPtr(d.BrandName)
		p.ClientName = strPtr(d.ClientName)
	case SectionWishList:
		p.WishList = strPtr(d.WishList)
	case SectionItinerary:
		rows := append([]ItineraryRow(nil), d.ItineraryRows...)
		p.ItineraryRows = &rows
	case SectionProgram:
		p.DetailedProgram = strPtr(d.DetailedProgram)
	case SectionIncluded:
		items := append([]string(nil), d.IncludedItems...)
		p.IncludedItems = &items
	case SectionExcluded:
		items := append([]string(nil), d.ExcludedItems...)
		p.ExcludedItems = &items
	case SectionPricing:
		p.PricePerPerson = strPtr(d.PricePerPerson)
		p.SingleRoomSupplement = strPtr(d.SingleRoomSupplement)
		p.PricingNotes = strPtr(d.PricingNotes)
	case SectionLodgings:
		lodgings := make([]Lodging, len(d.CustomLodgings))
		for i, l := range d.CustomLodgings {
			l.Images = append([]string(nil), l.Images...)
			lodgings[i] = l
		}
		p.CustomLodgings = &lodgings
	}
	if title, ok := d.SectionTitles[string(id)]; ok {
		p.SectionTitles = map[string]string{string(id): title}
	}
	return p
}

// clearSection zeroes the section's fields on the live document. Paired
// with snapshotSection inside Registry.Delete.
func clearSection(d *Document, id SectionID) {
	switch id {
	case SectionHeader:
		d.ThemeColor = ""
		d.Title = ""
		d.LogoURL = ""
		d.BrandName = ""
		d.ClientName = ""
	case SectionWishList:
		d.WishList = ""
	case SectionItinerary:
		d.ItineraryRows = []ItineraryRow{}
	case SectionProgram:
		d.DetailedProgram = ""
	case SectionIncluded:
		d.IncludedItems = []string{}
	case SectionExcluded:
		d.ExcludedItems = []string{}
	case SectionPricing:
		d.PricePerPerson = ""
		d.SingleRoomSupplement = ""
		d.PricingNotes = ""
	case SectionLodgings:
		d.CustomLodgings = []Lodging{}
	}
	delete(d.SectionTitles, string(id))
}
