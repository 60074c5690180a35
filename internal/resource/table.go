// Package resource keeps the named remote-image resources a controller
// registers with ^RAF, builds their URLs, refreshes them on an interval and
// fetches their images with a bounded retry budget.
package resource

import (
	"errors"
	"net/url"
	"sort"
	"strings"
	"sync"
)

var (
	ErrResourceExists   = errors.New("resource already exists")
	ErrResourceNotFound = errors.New("resource not found")
)

// Resource describes one remote image source.
type Resource struct {
	Name     string `json:"name"`
	Protocol string `json:"protocol"`
	Host     string `json:"host"`
	Path     string `json:"path,omitempty"`
	File     string `json:"file,omitempty"`
	User     string `json:"user,omitempty"`
	Password string `json:"-"`
	Refresh  int    `json:"refresh,omitempty"` // seconds, 0 = never
}

// Table is the name-keyed resource registry.
type Table struct {
	mu        sync.RWMutex
	items     map[string]*Resource
	refresher *Refresher
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{items: make(map[string]*Resource)}
}

// Add inserts r. An existing name is left untouched and ErrResourceExists is
// returned for the caller to log.
func (t *Table) Add(r Resource) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.items[r.Name]; ok {
		return ErrResourceExists
	}
	if r.Protocol == "" {
		r.Protocol = "http"
	}
	t.items[r.Name] = &r
	return nil
}

// Find returns a copy of the named resource.
func (t *Table) Find(name string) (Resource, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.items[name]
	if !ok {
		return Resource{}, false
	}
	return *r, true
}

// Update merges patch into the named resource. Only non-empty fields of
// patch replace existing values.
func (t *Table) Update(name string, patch Resource) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.items[name]
	if !ok {
		return ErrResourceNotFound
	}
	if patch.Protocol != "" {
		r.Protocol = patch.Protocol
	}
	if patch.Host != "" {
		r.Host = patch.Host
	}
	if patch.Path != "" {
		r.Path = patch.Path
	}
	if patch.File != "" {
		r.File = patch.File
	}
	if patch.User != "" {
		r.User = patch.User
	}
	if patch.Password != "" {
		r.Password = patch.Password
	}
	if patch.Refresh != 0 {
		r.Refresh = patch.Refresh
	}
	return nil
}

// SetRefresher attaches the schedule registry Remove cancels.
func (t *Table) SetRefresher(r *Refresher) {
	t.mu.Lock()
	t.refresher = r
	t.mu.Unlock()
}

// Remove deletes the named resource and cancels its refresh schedule. It
// reports whether the name was present.
func (t *Table) Remove(name string) bool {
	t.mu.Lock()
	_, ok := t.items[name]
	delete(t.items, name)
	ref := t.refresher
	t.mu.Unlock()
	if ref != nil {
		ref.Stop(name)
	}
	return ok
}

// List returns all resources sorted by name.
func (t *Table) List() []Resource {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Resource, 0, len(t.items))
	for _, r := range t.items {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// MakeURL builds "<proto>://[user[:pass]@]host[/path][/file]".
func MakeURL(r Resource) string {
	u := url.URL{Scheme: r.Protocol, Host: r.Host}
	if u.Scheme == "" {
		u.Scheme = "http"
	}
	if r.User != "" {
		if r.Password != "" {
			u.User = url.UserPassword(r.User, r.Password)
		} else {
			u.User = url.User(r.User)
		}
	}
	var parts []string
	for _, p := range []string{r.Path, r.File} {
		if p = strings.Trim(p, "/"); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > 0 {
		u.Path = "/" + strings.Join(parts, "/")
	}
	return u.String()
}
