package tracking

import "time"

// Merge folds incoming into list and returns the result. Permit areas are
// matched by ID, starting areas by name, sites by ID, dates by value. Nothing
// already tracked is removed, and merging the same area twice is a no-op
// apart from LastUpdated, which never moves backwards.
func Merge(list List, incoming PermitArea, now time.Time) List {
	incoming = Normalize(incoming)
	out := list.Clone()
	if out.PermitAreas == nil {
		out.PermitAreas = []PermitArea{}
	}
	matched := false
	for i, existing := range out.PermitAreas {
		if existing.ID != incoming.ID {
			continue
		}
		out.PermitAreas[i] = MergeArea(existing, incoming)
		matched = true
		break
	}
	if !matched {
		out.PermitAreas = append(out.PermitAreas, incoming.Clone())
	}
	if now.After(out.LastUpdated) {
		out.LastUpdated = now
	}
	return out
}

// MergeArea unions two permit areas with the same ID. The existing name wins
// unless it is empty.
func MergeArea(existing, incoming PermitArea) PermitArea {
	out := existing.Clone()
	if out.Name == "" {
		out.Name = incoming.Name
	}
	for _, incomingArea := range incoming.StartingAreas {
		position := -1
		for i, area := range out.StartingAreas {
			if area.Name == incomingArea.Name {
				position = i
				break
			}
		}
		if position < 0 {
			out.StartingAreas = append(out.StartingAreas, incomingArea.clone())
			continue
		}
		out.StartingAreas[position] = mergeStartingArea(out.StartingAreas[position], incomingArea)
	}
	return out
}

func mergeStartingArea(existing, incoming StartingArea) StartingArea {
	out := existing
	for _, incomingSite := range incoming.Sites {
		position := -1
		for i, site := range out.Sites {
			if site.ID == incomingSite.ID {
				position = i
				break
			}
		}
		if position < 0 {
			out.Sites = append(out.Sites, incomingSite.clone())
			continue
		}
		site := &out.Sites[position]
		if site.AnyDate || incomingSite.AnyDate {
			site.AnyDate = true
			site.Dates = nil
			continue
		}
		site.Dates = UnionDates(site.Dates, incomingSite.Dates)
	}
	return out
}

// Normalize returns a copy of area with every site's dates sorted and unique.
// Sites watched on any date drop their explicit dates.
func Normalize(area PermitArea) PermitArea {
	out := area.Clone()
	for i := range out.StartingAreas {
		for j := range out.StartingAreas[i].Sites {
			site := &out.StartingAreas[i].Sites[j]
			if site.AnyDate {
				site.Dates = nil
				continue
			}
			site.Dates = NormalizeDates(site.Dates)
		}
	}
	return out
}
