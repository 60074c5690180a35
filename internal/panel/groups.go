package panel

import "sort"

// Groups maps group names to ordered, unique popup lists. A popup belongs
// to at most one group; adding it to another group moves it.
type Groups struct {
	members map[string][]string
	of      map[string]string
}

// NewGroups creates an empty table.
func NewGroups() *Groups {
	return &Groups{
		members: make(map[string][]string),
		of:      make(map[string]string),
	}
}

// Add appends popup to group. Adding a present member is a no-op. It
// reports whether the table changed.
func (g *Groups) Add(group, popup string) bool {
	if group == "" || popup == "" {
		return false
	}
	if cur, ok := g.of[popup]; ok {
		if cur == group {
			return false
		}
		g.remove(cur, popup)
	}
	g.members[group] = append(g.members[group], popup)
	g.of[popup] = group
	return true
}

func (g *Groups) remove(group, popup string) {
	list := g.members[group]
	for i, m := range list {
		if m == popup {
			g.members[group] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(g.members[group]) == 0 {
		delete(g.members, group)
	}
	delete(g.of, popup)
}

// Clear removes every member of group.
func (g *Groups) Clear(group string) {
	for _, m := range g.members[group] {
		delete(g.of, m)
	}
	delete(g.members, group)
}

// Members returns a copy of group's members in insertion order.
func (g *Groups) Members(group string) []string {
	return append([]string(nil), g.members[group]...)
}

// GroupOf returns the group popup belongs to, or "".
func (g *Groups) GroupOf(popup string) string {
	return g.of[popup]
}

// Names returns all non-empty group names, sorted.
func (g *Groups) Names() []string {
	out := make([]string, 0, len(g.members))
	for name := range g.members {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Map returns a copy of the whole table.
func (g *Groups) Map() map[string][]string {
	out := make(map[string][]string, len(g.members))
	for name, list := range g.members {
		out[name] = append([]string(nil), list...)
	}
	return out
}
