package insights

import (
	"fmt"
	"strings"

	"okrtrack/internal/okr"
	"okrtrack/internal/okrstore"
)

// CycleError reports a parent chain that loops back on itself.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("okr hierarchy cycle: %s", strings.Join(e.Path, " -> "))
}

type traversal struct {
	r        okrstore.Reader
	children map[string][]okr.OKR
	visited  map[string]bool
	path     []string
}

func newTraversal(r okrstore.Reader) *traversal {
	children := make(map[string][]okr.OKR)
	for _, o := range r.OKRs() {
		if o.ParentOKRID != nil {
			children[*o.ParentOKRID] = append(children[*o.ParentOKRID], o)
		}
	}
	return &traversal{
		r:        r,
		children: children,
		visited:  make(map[string]bool),
	}
}

// enrich walks depth first. Every OKR has at most one parent, so reaching an
// id twice can only mean a cycle.
func (t *traversal) enrich(o okr.OKR) (OKRWithDetails, error) {
	if t.visited[o.ID] {
		path := append(append([]string(nil), t.path...), o.ID)
		return OKRWithDetails{}, &CycleError{Path: path}
	}
	t.visited[o.ID] = true
	t.path = append(t.path, o.ID)
	defer func() { t.path = t.path[:len(t.path)-1] }()

	d := baseDetails(t.r, o)
	for _, child := range t.children[o.ID] {
		cd, err := t.enrich(child)
		if err != nil {
			return OKRWithDetails{}, err
		}
		d.ChildOKRs = append(d.ChildOKRs, cd)
	}
	return d, nil
}

// Tree builds the alignment forest for a quarter. Roots are OKRs of the
// quarter whose parent is unset, missing, or in another quarter. OKRs that
// only hang off a cycle are unreachable from any root and are reported as a
// CycleError.
func Tree(r okrstore.Reader, quarter string) ([]OKRWithDetails, error) {
	t := newTraversal(r)
	var roots []OKRWithDetails
	for _, o := range r.OKRs() {
		if o.Quarter != quarter || !isRoot(r, o, quarter) {
			continue
		}
		d, err := t.enrich(o)
		if err != nil {
			return nil, err
		}
		roots = append(roots, d)
	}

	for _, o := range r.OKRs() {
		if o.Quarter == quarter && !t.visited[o.ID] {
			return nil, findCycle(r, o)
		}
	}
	return roots, nil
}

func isRoot(r okrstore.Reader, o okr.OKR, quarter string) bool {
	if o.ParentOKRID == nil {
		return true
	}
	parent, ok := r.OKR(*o.ParentOKRID)
	return !ok || parent.Quarter != quarter
}

// findCycle follows parent links upward from o until an id repeats. It is
// only called for OKRs not reachable from a root, so a repeat is guaranteed.
func findCycle(r okrstore.Reader, o okr.OKR) *CycleError {
	seen := make(map[string]bool)
	var path []string
	cur := o
	for {
		if seen[cur.ID] {
			return &CycleError{Path: append(path, cur.ID)}
		}
		seen[cur.ID] = true
		path = append(path, cur.ID)
		if cur.ParentOKRID == nil {
			return &CycleError{Path: path}
		}
		parent, ok := r.OKR(*cur.ParentOKRID)
		if !ok {
			return &CycleError{Path: path}
		}
		cur = parent
	}
}

// WalkTree calls fn for every node of the forest, parents before children.
func WalkTree(nodes []OKRWithDetails, fn func(d OKRWithDetails, depth int)) {
	var walk func([]OKRWithDetails, int)
	walk = func(level []OKRWithDetails, depth int) {
		for _, d := range level {
			fn(d, depth)
			walk(d.ChildOKRs, depth+1)
		}
	}
	walk(nodes, 0)
}
