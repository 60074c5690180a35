// Package dom is the panel's in-memory element tree. It plays the part of
// the browser DOM: the display engine builds and mutates it, viewers receive
// it rendered as HTML.
//
// A Document is not safe for concurrent use; the session loop owns it.
package dom

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNoElement   = errors.New("no such element")
	ErrDuplicateID = errors.New("element id already in use")
)

// Element is one node of the tree.
type Element struct {
	ID       string
	Tag      string
	Attrs    map[string]string
	Style    map[string]string
	Text     string
	Children []*Element
	parent   *Element
}

// NewElement creates a detached element.
func NewElement(tag, id string) *Element {
	return &Element{
		ID:    id,
		Tag:   tag,
		Attrs: make(map[string]string),
		Style: make(map[string]string),
	}
}

// Add appends child to e. Used while building a subtree before it is
// attached to a document.
func (e *Element) Add(child *Element) *Element {
	child.parent = e
	e.Children = append(e.Children, child)
	return child
}

// CSS renders the inline style attribute in key order.
func (e *Element) CSS() string {
	if len(e.Style) == 0 {
		return ""
	}
	keys := make([]string, 0, len(e.Style))
	for k := range e.Style {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(e.Style[k])
		b.WriteByte(';')
	}
	return b.String()
}

// Document is a tree of elements indexed by ID.
type Document struct {
	body    *Element
	byID    map[string]*Element
	css     []string
	cssKeys map[string]bool
	version uint64
}

// NewDocument creates an empty document.
func NewDocument() *Document {
	return &Document{
		body:    NewElement("div", "panel"),
		byID:    make(map[string]*Element),
		cssKeys: make(map[string]bool),
	}
}

// Version increases on every mutation.
func (d *Document) Version() uint64 { return d.version }

func (d *Document) touch() { d.version++ }

// Append attaches child (and its subtree) under the element parentID, or
// under the document body when parentID is empty.
func (d *Document) Append(parentID string, child *Element) error {
	parent := d.body
	if parentID != "" {
		p, err := d.Get(parentID)
		if err != nil {
			return err
		}
		parent = p
	}
	if err := d.checkIDs(child); err != nil {
		return err
	}
	parent.Add(child)
	d.register(child)
	d.touch()
	return nil
}

// InsertBefore attaches child as the sibling immediately preceding refID.
func (d *Document) InsertBefore(refID string, child *Element) error {
	ref, err := d.Get(refID)
	if err != nil {
		return err
	}
	parent := ref.parent
	if parent == nil {
		return fmt.Errorf("%w: %s has no parent", ErrNoElement, refID)
	}
	if err := d.checkIDs(child); err != nil {
		return err
	}
	for i, c := range parent.Children {
		if c == ref {
			child.parent = parent
			parent.Children = append(parent.Children[:i], append([]*Element{child}, parent.Children[i:]...)...)
			break
		}
	}
	d.register(child)
	d.touch()
	return nil
}

// Walk calls fn for id's element and every descendant, parents first.
func (d *Document) Walk(id string, fn func(*Element)) error {
	e, err := d.Get(id)
	if err != nil {
		return err
	}
	walk(e, fn)
	return nil
}

func walk(e *Element, fn func(*Element)) {
	fn(e)
	for _, c := range e.Children {
		walk(c, fn)
	}
}

func (d *Document) checkIDs(e *Element) error {
	if e.ID != "" {
		if _, ok := d.byID[e.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateID, e.ID)
		}
	}
	for _, c := range e.Children {
		if err := d.checkIDs(c); err != nil {
			return err
		}
	}
	return nil
}

func (d *Document) register(e *Element) {
	if e.ID != "" {
		d.byID[e.ID] = e
	}
	for _, c := range e.Children {
		d.register(c)
	}
}

// Get returns the element with the given ID.
func (d *Document) Get(id string) (*Element, error) {
	e, ok := d.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoElement, id)
	}
	return e, nil
}

// Has reports whether id is attached.
func (d *Document) Has(id string) bool {
	_, ok := d.byID[id]
	return ok
}

// Remove detaches the element and its whole subtree, children first.
func (d *Document) Remove(id string) error {
	e, err := d.Get(id)
	if err != nil {
		return err
	}
	d.removeChildren(e)
	if p := e.parent; p != nil {
		for i, c := range p.Children {
			if c == e {
				p.Children = append(p.Children[:i], p.Children[i+1:]...)
				break
			}
		}
	}
	e.parent = nil
	delete(d.byID, e.ID)
	d.touch()
	return nil
}

func (d *Document) removeChildren(e *Element) {
	for _, c := range e.Children {
		d.removeChildren(c)
		c.parent = nil
		if c.ID != "" {
			delete(d.byID, c.ID)
		}
	}
	e.Children = nil
}

// SetStyle sets one inline style property. An empty value removes it.
func (d *Document) SetStyle(id, key, value string) error {
	e, err := d.Get(id)
	if err != nil {
		return err
	}
	if value == "" {
		delete(e.Style, key)
	} else {
		e.Style[key] = value
	}
	d.touch()
	return nil
}

// Style reads one inline style property.
func (d *Document) Style(id, key string) (string, error) {
	e, err := d.Get(id)
	if err != nil {
		return "", err
	}
	return e.Style[key], nil
}

// SetText replaces the element's text content.
func (d *Document) SetText(id, text string) error {
	e, err := d.Get(id)
	if err != nil {
		return err
	}
	e.Text = text
	d.touch()
	return nil
}

// Text reads the element's text content.
func (d *Document) Text(id string) (string, error) {
	e, err := d.Get(id)
	if err != nil {
		return "", err
	}
	return e.Text, nil
}

// SetAttr sets an attribute. An empty value removes it.
func (d *Document) SetAttr(id, key, value string) error {
	e, err := d.Get(id)
	if err != nil {
		return err
	}
	if value == "" {
		delete(e.Attrs, key)
	} else {
		e.Attrs[key] = value
	}
	d.touch()
	return nil
}

// Attr reads an attribute.
func (d *Document) Attr(id, key string) (string, error) {
	e, err := d.Get(id)
	if err != nil {
		return "", err
	}
	return e.Attrs[key], nil
}

// AddCSS injects a stylesheet block once per key. It reports whether the
// block was added.
func (d *Document) AddCSS(key, css string) bool {
	if d.cssKeys[key] {
		return false
	}
	d.cssKeys[key] = true
	d.css = append(d.css, css)
	d.touch()
	return true
}

// HasCSS reports whether a block was injected under key.
func (d *Document) HasCSS(key string) bool {
	return d.cssKeys[key]
}

// Reset removes every element and stylesheet.
func (d *Document) Reset() {
	d.body = NewElement("div", "panel")
	d.byID = make(map[string]*Element)
	d.css = nil
	d.cssKeys = make(map[string]bool)
	d.touch()
}
