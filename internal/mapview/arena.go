package mapview

import (
	"sort"

	"github.com/joeblew999/plat-filmloc/internal/service"
)

// MarkerBinding associates a location with its rendered marker.
type MarkerBinding struct {
	Location service.Location
	Handle   MarkerHandle
}

// Arena holds the live marker bindings indexed by slug.
type Arena map[string]MarkerBinding

// Plan is the set of changes that turns an arena into the image of a list.
type Plan struct {
	Remove []string           // slugs whose markers are removed
	Add    []service.Location // locations that get a fresh marker, in list order
	Keep   []service.Location // live markers whose record is refreshed in place
}

// Empty reports whether the plan changes nothing.
func (p Plan) Empty() bool {
	return len(p.Remove) == 0 && len(p.Add) == 0
}

// Diff computes the plan for reconciling arena against next. With
// fullReplace every live marker is removed and every entry re-added;
// otherwise bindings whose location keeps its coordinates are kept.
// Duplicate slugs in next collapse to their first occurrence.
func Diff(arena Arena, next []service.Location, fullReplace bool) Plan {
	var plan Plan

	wanted := make(map[string]service.Location, len(next))
	order := make([]string, 0, len(next))
	for _, loc := range next {
		if _, dup := wanted[loc.Slug]; dup {
			continue
		}
		wanted[loc.Slug] = loc
		order = append(order, loc.Slug)
	}

	keep := make(map[string]bool, len(arena))
	for slug, b := range arena {
		loc, ok := wanted[slug]
		if !fullReplace && ok && loc.Point() == b.Location.Point() {
			keep[slug] = true
			continue
		}
		plan.Remove = append(plan.Remove, slug)
	}
	sort.Strings(plan.Remove)

	for _, slug := range order {
		if keep[slug] {
			plan.Keep = append(plan.Keep, wanted[slug])
			continue
		}
		plan.Add = append(plan.Add, wanted[slug])
	}
	return plan
}

// Apply executes plan against the widget, mutating arena. It returns the
// first marker creation error; remaining additions are still attempted.
func Apply(w Widget, arena Arena, plan Plan) error {
	for _, slug := range plan.Remove {
		if b, ok := arena[slug]; ok {
			w.RemoveMarker(b.Handle)
			delete(arena, slug)
		}
	}
	for _, loc := range plan.Keep {
		if b, ok := arena[loc.Slug]; ok {
			b.Location = loc
			arena[loc.Slug] = b
		}
	}

	var firstErr error
	for _, loc := range plan.Add {
		h, err := w.AddMarker(loc.Slug, loc.Point())
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		arena[loc.Slug] = MarkerBinding{Location: loc, Handle: h}
	}
	return firstErr
}
