// Package storage keeps imported panel projects.
//
// The Store interface is the primary abstraction. SQLiteStore is the default
// implementation using pure-Go SQLite (modernc.org/sqlite). Only project
// definitions are stored; runtime panel state is never written back.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/amxpanel/amxpanel/internal/model"
)

var ErrNotFound = errors.New("project not found")

// ProjectInfo describes a stored project.
type ProjectInfo struct {
	Name      string    `json:"name"`
	PanelID   int       `json:"panel_id"`
	Pages     int       `json:"pages"`
	Popups    int       `json:"popups"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PageHit is a page or popup matched by Search.
type PageHit struct {
	Project string     `json:"project"`
	PageID  int        `json:"page_id"`
	Name    string     `json:"name"`
	Kind    model.Kind `json:"kind"`
}

// Store is the project storage interface.
type Store interface {
	// Save validates and stores p under name, replacing any earlier copy.
	Save(ctx context.Context, name string, p *model.Project) error

	// Load returns the named project or ErrNotFound.
	Load(ctx context.Context, name string) (*model.Project, error)

	// Delete removes a project. Deleting a missing project is not an error.
	Delete(ctx context.Context, name string) error

	// List returns stored projects ordered by name.
	List(ctx context.Context) ([]ProjectInfo, error)

	// Search finds pages whose name or button text matches query.
	Search(ctx context.Context, query string, limit int) ([]PageHit, error)

	// Close shuts down the store.
	Close() error
}
