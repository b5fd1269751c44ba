package tracking

import (
	"cloud.google.com/go/civil"

	"github.com/dwizi/permit-tracker/internal/selection"
)

// FilterByAreaIndices keeps the starting areas whose 1-based position is
// selected. An ALL selection returns an unchanged copy.
func FilterByAreaIndices(area PermitArea, indices selection.Indices) PermitArea {
	out := PermitArea{ID: area.ID, Name: area.Name, StartingAreas: []StartingArea{}}
	for position, startingArea := range area.StartingAreas {
		if !indices.Contains(position + 1) {
			continue
		}
		out.StartingAreas = append(out.StartingAreas, startingArea.clone())
	}
	return out
}

// FilterBySiteCodes keeps the sites addressed by codes, where a code's zone is
// the 1-based starting-area position. Starting areas left empty are dropped,
// and codes pointing past the tree select nothing.
func FilterBySiteCodes(area PermitArea, codes selection.SiteCodes) PermitArea {
	if codes.All {
		return area.Clone()
	}
	wanted := map[selection.SiteCode]struct{}{}
	for _, code := range codes.Codes {
		wanted[code] = struct{}{}
	}
	out := PermitArea{ID: area.ID, Name: area.Name, StartingAreas: []StartingArea{}}
	for position, startingArea := range area.StartingAreas {
		kept := StartingArea{Name: startingArea.Name}
		for column, site := range startingArea.Sites {
			if _, ok := wanted[selection.SiteCode{Zone: position + 1, Column: column}]; ok {
				kept.Sites = append(kept.Sites, site.clone())
			}
		}
		if len(kept.Sites) > 0 {
			out.StartingAreas = append(out.StartingAreas, kept)
		}
	}
	return out
}

// AddDates unions dates onto every site in the area. Sites already watched on
// any date are left as they are.
func AddDates(area PermitArea, dates []civil.Date) PermitArea {
	out := area.Clone()
	for i := range out.StartingAreas {
		for j := range out.StartingAreas[i].Sites {
			site := &out.StartingAreas[i].Sites[j]
			if site.AnyDate {
				continue
			}
			site.Dates = UnionDates(site.Dates, dates)
		}
	}
	return out
}

// AnyDates marks every site in the area as watched on any open date.
func AnyDates(area PermitArea) PermitArea {
	out := area.Clone()
	for i := range out.StartingAreas {
		for j := range out.StartingAreas[i].Sites {
			site := &out.StartingAreas[i].Sites[j]
			site.AnyDate = true
			site.Dates = nil
		}
	}
	return out
}
