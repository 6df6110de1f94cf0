package proposal

import "errors"

// ErrEmptyItinerary blocks a save when the proposal has no itinerary
// rows; an empty schedule is never worth persisting over a previous
// version.
var ErrEmptyItinerary = errors.New("itinerary is empty")

// ValidateForSave runs the local checks a save must pass. The document
// is not mutated; a failed validation leaves everything as it was.
func (d *Document) ValidateForSave() error {
	if len(d.ItineraryRows) == 0 {
		return ErrEmptyItinerary
	}
	return nil
}
