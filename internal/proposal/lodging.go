package proposal

// DerivedLodgings extracts one lodging per distinct hotel name from the
// itinerary rows, in first-seen order. Nights without a hotel ("night"
// rows in transit, blank names) are skipped. These entries are always
// recomputed from the itinerary, never persisted, so the invariant that
// they cannot duplicate or contradict the rows holds by construction.
func (d *Document) DerivedLodgings() []Lodging {
	seen := make(map[string]bool, len(d.ItineraryRows))
	var out []Lodging
	for _, row := range d.ItineraryRows {
		name := row.HotelName
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, Lodging{Name: name, Images: []string{}})
	}
	return out
}

// Lodgings is the full list the renderers display: itinerary-derived
// entries first (enriched by a custom entry of the same name, which
// contributes description and images), then the remaining custom
// entries in their user-managed order.
func (d *Document) Lodgings() []Lodging {
	custom := make(map[string]Lodging, len(d.CustomLodgings))
	for _, l := range d.CustomLodgings {
		if _, ok := custom[l.Name]; !ok {
			custom[l.Name] = l
		}
	}

	derived := d.DerivedLodgings()
	out := make([]Lodging, 0, len(derived)+len(d.CustomLodgings))
	merged := make(map[string]bool, len(derived))
	for _, l := range derived {
		if c, ok := custom[l.Name]; ok {
			l.Description = c.Description
			if len(c.Images) > 0 {
				l.Images = append([]string(nil), c.Images...)
			}
		}
		merged[l.Name] = true
		out = append(out, l)
	}
	for _, l := range d.CustomLodgings {
		if merged[l.Name] {
			continue
		}
		merged[l.Name] = true
		out = append(out, l)
	}
	return out
}
