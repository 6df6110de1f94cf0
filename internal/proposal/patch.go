package proposal

// Patch is a partial Document: only non-nil fields are applied. It is
// the single write path for field edits: manual keystrokes, AI rewrite
// responses, and section restores all merge through Apply, so a patch
// can never delete a field it does not mention.
type Patch struct {
	ThemeColor *string `json:"themeColor,omitempty"`
	Title      *string `json:"title,omitempty"`
	LogoURL    *string `json:"logoUrl,omitempty"`
	BrandName  *string `json:"brandName,omitempty"`
	ClientName *string `json:"clientName,omitempty"`

	WishList        *string `json:"wishList,omitempty"`
	DetailedProgram *string `json:"detailedProgram,omitempty"`

	ItineraryRows  *[]ItineraryRow `json:"itineraryRows,omitempty"`
	IncludedItems  *[]string       `json:"includedItems,omitempty"`
	ExcludedItems  *[]string       `json:"excludedItems,omitempty"`
	CustomLodgings *[]Lodging      `json:"customLodgings,omitempty"`

	PricePerPerson       *string `json:"pricePerPerson,omitempty"`
	SingleRoomSupplement *string `json:"singleRoomSupplement,omitempty"`
	PricingNotes         *string `json:"pricingNotes,omitempty"`

	// SectionTitles merges per key: present keys overwrite, including
	// with an empty string (a deliberate blank heading).
	SectionTitles map[string]string `json:"sectionTitles,omitempty"`
}

// IsZero reports whether the patch carries no fields at all.
func (p Patch) IsZero() bool {
	return p.ThemeColor == nil && p.Title == nil && p.LogoURL == nil &&
		p.BrandName == nil && p.ClientName == nil && p.WishList == nil &&
		p.DetailedProgram == nil && p.ItineraryRows == nil &&
		p.IncludedItems == nil && p.ExcludedItems == nil &&
		p.CustomLodgings == nil && p.PricePerPerson == nil &&
		p.SingleRoomSupplement == nil && p.PricingNotes == nil &&
		len(p.SectionTitles) == 0
}

// Apply merges the patch into the document, overwriting only the keys
// the patch carries. Collections are replaced wholesale when present and
// normalized afterwards so they stay non-nil.
func (d *Document) Apply(p Patch) {
	if p.ThemeColor != nil {
		d.ThemeColor = *p.ThemeColor
	}
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.LogoURL != nil {
		d.LogoURL = *p.LogoURL
	}
	if p.BrandName != nil {
		d.BrandName = *p.BrandName
	}
	if p.ClientName != nil {
		d.ClientName = *p.ClientName
	}
	if p.WishList != nil {
		d.WishList = *p.WishList
	}
	if p.DetailedProgram != nil {
		d.DetailedProgram = *p.DetailedProgram
	}
	if p.ItineraryRows != nil {
		d.ItineraryRows = append([]ItineraryRow(nil), (*p.ItineraryRows)...)
	}
	if p.IncludedItems != nil {
		d.IncludedItems = append([]string(nil), (*p.IncludedItems)...)
	}
	if p.ExcludedItems != nil {
		d.ExcludedItems = append([]string(nil), (*p.ExcludedItems)...)
	}
	if p.CustomLodgings != nil {
		next := make([]Lodging, len(*p.CustomLodgings))
		for i, l := range *p.CustomLodgings {
			l.Images = append([]string(nil), l.Images...)
			next[i] = l
		}
		d.CustomLodgings = next
	}
	if p.PricePerPerson != nil {
		d.PricePerPerson = *p.PricePerPerson
	}
	if p.SingleRoomSupplement != nil {
		d.SingleRoomSupplement = *p.SingleRoomSupplement
	}
	if p.PricingNotes != nil {
		d.PricingNotes = *p.PricingNotes
	}
	if len(p.SectionTitles) > 0 {
		if d.SectionTitles == nil {
			d.SectionTitles = map[string]string{}
		}
		for k, v := range p.SectionTitles {
			d.SectionTitles[k] = v
		}
	}
	d.Normalize()
}

func strPtr(s string) *string { return &s }
