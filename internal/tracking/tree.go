package tracking

import (
	"sort"
	"time"

	"cloud.google.com/go/civil"
)

// Site is one campsite or entry point. AnyDate marks a site watched on every
// open date; it wins over Dates in a merge.
type Site struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Dates   []civil.Date `json:"dates,omitempty"`
	AnyDate bool         `json:"any_date,omitempty"`
}

// Unrestricted reports whether every open date of the site is of interest.
// Documents written before AnyDate existed carry no dates for such sites.
func (s Site) Unrestricted() bool {
	return s.AnyDate || len(s.Dates) == 0
}

type StartingArea struct {
	Name  string `json:"name"`
	Sites []Site `json:"sites"`
}

type PermitArea struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	StartingAreas []StartingArea `json:"starting_areas"`
}

// List is the persisted watch list of one user.
type List struct {
	UserID      string       `json:"user_id"`
	Destination string       `json:"destination,omitempty"`
	LastUpdated time.Time    `json:"last_updated"`
	PermitAreas []PermitArea `json:"permit_areas"`
}

// SiteCount returns the number of sites across all starting areas.
func (p PermitArea) SiteCount() int {
	total := 0
	for _, area := range p.StartingAreas {
		total += len(area.Sites)
	}
	return total
}

func (l List) FindPermitArea(id string) (PermitArea, bool) {
	for _, area := range l.PermitAreas {
		if area.ID == id {
			return area, true
		}
	}
	return PermitArea{}, false
}

// Clone returns a deep copy sharing no slices with p.
func (p PermitArea) Clone() PermitArea {
	out := PermitArea{ID: p.ID, Name: p.Name}
	if p.StartingAreas != nil {
		out.StartingAreas = make([]StartingArea, 0, len(p.StartingAreas))
		for _, area := range p.StartingAreas {
			out.StartingAreas = append(out.StartingAreas, area.clone())
		}
	}
	return out
}

func (a StartingArea) clone() StartingArea {
	out := StartingArea{Name: a.Name}
	if a.Sites != nil {
		out.Sites = make([]Site, 0, len(a.Sites))
		for _, site := range a.Sites {
			out.Sites = append(out.Sites, site.clone())
		}
	}
	return out
}

func (s Site) clone() Site {
	out := Site{ID: s.ID, Name: s.Name, AnyDate: s.AnyDate}
	if s.Dates != nil {
		out.Dates = append([]civil.Date(nil), s.Dates...)
	}
	return out
}

func (l List) Clone() List {
	out := List{UserID: l.UserID, Destination: l.Destination, LastUpdated: l.LastUpdated}
	if l.PermitAreas != nil {
		out.PermitAreas = make([]PermitArea, 0, len(l.PermitAreas))
		for _, area := range l.PermitAreas {
			out.PermitAreas = append(out.PermitAreas, area.Clone())
		}
	}
	return out
}

// NormalizeDates returns the sorted set of dates with duplicates removed.
func NormalizeDates(dates []civil.Date) []civil.Date {
	if len(dates) == 0 {
		return nil
	}
	out := append([]civil.Date(nil), dates...)
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	unique := out[:1]
	for _, date := range out[1:] {
		if date != unique[len(unique)-1] {
			unique = append(unique, date)
		}
	}
	return unique
}

// UnionDates merges two date sets into a sorted set.
func UnionDates(left, right []civil.Date) []civil.Date {
	combined := make([]civil.Date, 0, len(left)+len(right))
	combined = append(combined, left...)
	combined = append(combined, right...)
	return NormalizeDates(combined)
}
