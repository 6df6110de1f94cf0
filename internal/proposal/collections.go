package proposal

import (
	"errors"
	"fmt"
)

// Collection names an ordered sequence inside the Document. The values
// match the JSON field names the clients already use.
type Collection string

const (
	ColItinerary Collection = "itineraryRows"
	ColIncluded  Collection = "includedItems"
	ColExcluded  Collection = "excludedItems"
	ColLodgings  Collection = "lodgings"
)

var (
	ErrIndexOutOfRange   = errors.New("index out of range")
	ErrUnknownCollection = errors.New("unknown collection")
	ErrItemType          = errors.New("item type does not match collection")
)

// ParseCollection validates a collection name from the wire.
func ParseCollection(name string) (Collection, error) {
	switch Collection(name) {
	case ColItinerary, ColIncluded, ColExcluded, ColLodgings:
		return Collection(name), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCollection, name)
}

// InsertAt inserts item at index i of the named collection. The item
// must be an ItineraryRow, string, or Lodging matching the collection.
// On any error the document is left unchanged.
func (d *Document) InsertAt(col Collection, i int, item any) error {
	switch col {
	case ColItinerary:
		row, ok := item.(ItineraryRow)
		if !ok {
			return fmt.Errorf("%w: %s wants ItineraryRow", ErrItemType, col)
		}
		next, err := insertAt(d.ItineraryRows, i, row)
		if err != nil {
			return err
		}
		d.ItineraryRows = next
	case ColIncluded, ColExcluded:
		s, ok := item.(string)
		if !ok {
			return fmt.Errorf("%w: %s wants string", ErrItemType, col)
		}
		target := &d.IncludedItems
		if col == ColExcluded {
			target = &d.ExcludedItems
		}
		next, err := insertAt(*target, i, s)
		if err != nil {
			return err
		}
		*target = next
	case ColLodgings:
		l, ok := item.(Lodging)
		if !ok {
			return fmt.Errorf("%w: %s wants Lodging", ErrItemType, col)
		}
		if l.Images == nil {
			l.Images = []string{}
		}
		next, err := insertAt(d.CustomLodgings, i, l)
		if err != nil {
			return err
		}
		d.CustomLodgings = next
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCollection, col)
	}
	return nil
}

// RemoveAt removes the element at index i of the named collection. On
// any error the document is left unchanged.
func (d *Document) RemoveAt(col Collection, i int) error {
	switch col {
	case ColItinerary:
		next, err := removeAt(d.ItineraryRows, i)
		if err != nil {
			return err
		}
		d.ItineraryRows = next
	case ColIncluded:
		next, err := removeAt(d.IncludedItems, i)
		if err != nil {
			return err
		}
		d.IncludedItems = next
	case ColExcluded:
		next, err := removeAt(d.ExcludedItems, i)
		if err != nil {
			return err
		}
		d.ExcludedItems = next
	case ColLodgings:
		next, err := removeAt(d.CustomLodgings, i)
		if err != nil {
			return err
		}
		d.CustomLodgings = next
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCollection, col)
	}
	return nil
}

// MoveItem moves the element at from to position to, with standard
// drag-and-drop semantics (see move). from == to is a no-op. On any
// error the document is left unchanged.
func (d *Document) MoveItem(col Collection, from, to int) error {
	switch col {
	case ColItinerary:
		next, err := move(d.ItineraryRows, from, to)
		if err != nil {
			return err
		}
		d.ItineraryRows = next
	case ColIncluded:
		next, err := move(d.IncludedItems, from, to)
		if err != nil {
			return err
		}
		d.IncludedItems = next
	case ColExcluded:
		next, err := move(d.ExcludedItems, from, to)
		if err != nil {
			return err
		}
		d.ExcludedItems = next
	case ColLodgings:
		next, err := move(d.CustomLodgings, from, to)
		if err != nil {
			return err
		}
		d.CustomLodgings = next
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCollection, col)
	}
	return nil
}

// Len reports the current length of the named collection.
func (d *Document) Len(col Collection) (int, error) {
	switch col {
	case ColItinerary:
		return len(d.ItineraryRows), nil
	case ColIncluded:
		return len(d.IncludedItems), nil
	case ColExcluded:
		return len(d.ExcludedItems), nil
	case ColLodgings:
		return len(d.CustomLodgings), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCollection, col)
}
