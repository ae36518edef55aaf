package transit

import (
	"errors"
	"strings"

	"ace-status/internal/feed"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Directory indexes one stop snapshot by id and by case-insensitive name.
// It is read-only after construction.
type Directory struct {
	byID   map[feed.ID]feed.Stop
	byName map[string]feed.Stop
}

// NewDirectory builds both indexes in one pass. When names collide the first
// stop wins.
func NewDirectory(stops []feed.Stop) *Directory {
	d := &Directory{
		byID:   make(map[feed.ID]feed.Stop, len(stops)),
		byName: make(map[string]feed.Stop, len(stops)),
	}
	for _, s := range stops {
		if _, ok := d.byID[s.ID]; !ok {
			d.byID[s.ID] = s
		}
		key := nameKey(s.Name)
		if key == "" {
			continue
		}
		if _, ok := d.byName[key]; !ok {
			d.byName[key] = s
		}
	}
	return d
}

func (d *Directory) Len() int { return len(d.byID) }

func (d *Directory) ByID(id feed.ID) (feed.Stop, error) {
	if s, ok := d.byID[id]; ok {
		return s, nil
	}
	return feed.Stop{}, ErrNotFound
}

// ByName looks a stop up by name, ignoring case and surrounding space. An
// empty name is ErrInvalidArgument, never ErrNotFound.
func (d *Directory) ByName(name string) (feed.Stop, error) {
	key := nameKey(name)
	if key == "" {
		return feed.Stop{}, ErrInvalidArgument
	}
	if s, ok := d.byName[key]; ok {
		return s, nil
	}
	return feed.Stop{}, ErrNotFound
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
