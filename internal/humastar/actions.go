package humastar

import (
	"fmt"
	"net/url"
)

// Action is a state-dependent hypermedia action link. Response bodies
// implement Actor to emit RFC 8288 Link headers with method and title
// extension parameters:
//
//	</api/v1/favorites/central-perk>; rel="favorite"; method="PUT"; title="Adicionar aos favoritos"
type Action struct {
	Rel    string
	Href   string
	Method string
	Title  string
}

// Actor is implemented by response bodies that provide state-dependent actions.
type Actor interface {
	Actions() []Action
}

// LinkHeader formats the action as an RFC 8288 Link header value.
func (a Action) LinkHeader() string {
	h := fmt.Sprintf(`<%s>; rel="%s"`, a.Href, a.Rel)
	if a.Method != "" {
		h += fmt.Sprintf(`; method="%s"`, a.Method)
	}
	if a.Title != "" {
		h += fmt.Sprintf(`; title="%s"`, a.Title)
	}
	return h
}

// ActionDef is a reusable action template; Pattern has one %s verb for
// the path-escaped resource ID.
type ActionDef struct {
	Rel     string
	Pattern string
	Method  string
	Title   string
}

// ActionsFor expands defs for one resource ID.
func ActionsFor(id string, defs []ActionDef) []Action {
	actions := make([]Action, len(defs))
	for i, d := range defs {
		actions[i] = Action{
			Rel:    d.Rel,
			Href:   fmt.Sprintf(d.Pattern, url.PathEscape(id)),
			Method: d.Method,
			Title:  d.Title,
		}
	}
	return actions
}
