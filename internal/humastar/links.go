package humastar

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
)

// Links stores RFC 8288 link header values keyed by operation path.
type Links struct {
	mu    sync.RWMutex
	byOp  map[string][]string
	entry string
}

// AutoLinks walks the OpenAPI spec and generates hypermedia links between
// collections and items. Operations tagged with any of skipTags (Datastar
// UI endpoints) are ignored. Call after all routes are registered.
func AutoLinks(api huma.API, entry string, skipTags ...string) *Links {
	oapi := api.OpenAPI()
	l := &Links{byOp: map[string][]string{}, entry: entry}

	var collections, items []string
	for p, pi := range oapi.Paths {
		if anyTag(primaryTags(pi), skipTags) {
			continue
		}
		if strings.Contains(p, "{") {
			items = append(items, p)
		} else {
			collections = append(collections, p)
		}
	}
	sort.Strings(collections)
	sort.Strings(items)

	// Item → collection (rel="collection") + up.
	for _, item := range items {
		parent := path.Dir(item)
		if _, ok := oapi.Paths[parent]; ok {
			l.Add(item, parent, "collection")
			l.Add(item, parent, "up")
		}
	}

	// Collection → item template, and up to the entry point.
	for _, coll := range collections {
		for _, item := range items {
			if path.Dir(item) == coll {
				l.Add(coll, item, "item")
			}
		}
		if coll != entry {
			l.Add(coll, entry, "up")
		}
	}

	// Items that accept PUT are editable.
	for _, item := range items {
		if pi := oapi.Paths[item]; pi.Put != nil {
			l.Add(item, item, "edit")
		}
	}

	// The entry point links every collection plus the API description.
	for _, coll := range collections {
		if coll != entry {
			l.Add(entry, coll, lastSegment(coll))
		}
	}
	l.Add(entry, "/openapi.json", "describedby")
	l.Add(entry, "/openapi.json", "service-desc")
	l.Add(entry, "/docs", "service-doc")

	// Document the relationships in the spec itself.
	for p, pi := range oapi.Paths {
		headers := l.For(p)
		if len(headers) == 0 {
			continue
		}
		for _, op := range operationsOf(pi) {
			if op != nil {
				injectResponseLinks(op, headers)
			}
		}
	}
	return l
}

// Add registers a link from one operation path to a target.
func (l *Links) Add(from, to, rel string) {
	val := fmt.Sprintf(`<%s>; rel="%s"`, to, rel)
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.byOp[from] {
		if existing == val {
			return
		}
	}
	l.byOp[from] = append(l.byOp[from], val)
}

// For returns the link header values for an operation path.
func (l *Links) For(opPath string) []string {
	if l == nil {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.byOp[opPath]...)
}

// Root returns the entry point links, for use by non-Huma handlers.
func (l *Links) Root() []string {
	if l == nil {
		return nil
	}
	return l.For(l.entry)
}

// LinkTransformer returns a Huma Transformer that injects Link headers at
// runtime: static links, self links on items, pagination and actions.
func LinkTransformer(l *Links) huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}

		for _, link := range l.For(op.Path) {
			ctx.AppendHeader("Link", link)
		}

		// Item endpoints get a self link with the resolved URL.
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}

		if p, ok := v.(Pager); ok {
			for _, link := range p.PaginationLinks(ctx.URL().Path) {
				ctx.AppendHeader("Link", link)
			}
		}

		if a, ok := v.(Actor); ok {
			for _, action := range a.Actions() {
				ctx.AppendHeader("Link", action.LinkHeader())
			}
		}

		return v, nil
	}
}

// --- helpers ---

func primaryTags(pi *huma.PathItem) []string {
	for _, op := range operationsOf(pi) {
		if op != nil && len(op.Tags) > 0 {
			return op.Tags
		}
	}
	return nil
}

func operationsOf(pi *huma.PathItem) []*huma.Operation {
	return []*huma.Operation{pi.Get, pi.Post, pi.Put, pi.Patch, pi.Delete}
}

func anyTag(tags, want []string) bool {
	for _, t := range tags {
		for _, w := range want {
			if t == w {
				return true
			}
		}
	}
	return false
}

func lastSegment(p string) string {
	parts := strings.Split(strings.TrimRight(p, "/"), "/")
	return parts[len(parts)-1]
}

// injectResponseLinks adds OpenAPI Link objects to the operation's success
// response.
func injectResponseLinks(op *huma.Operation, headers []string) {
	if op.Responses == nil {
		return
	}
	var resp *huma.Response
	for code, r := range op.Responses {
		if strings.HasPrefix(code, "2") {
			resp = r
			break
		}
	}
	if resp == nil {
		return
	}
	if resp.Links == nil {
		resp.Links = map[string]*huma.Link{}
	}
	for _, h := range headers {
		rel, href := parseLinkHeader(h)
		if rel == "" {
			continue
		}
		resp.Links[rel] = &huma.Link{
			OperationRef: href,
			Description:  fmt.Sprintf("Related: %s", rel),
		}
	}
}

func parseLinkHeader(h string) (rel, href string) {
	parts := strings.SplitN(h, ";", 2)
	if len(parts) < 2 {
		return "", ""
	}
	href = strings.Trim(strings.TrimSpace(parts[0]), "<>")
	relPart := strings.TrimSpace(parts[1])
	if strings.HasPrefix(relPart, `rel="`) {
		rel = strings.Trim(relPart[4:], `"`)
	}
	return rel, href
}
