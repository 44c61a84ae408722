// Package importer loads YAML workout plans from disk into the session store.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/claude/spotter/internal/plan"
	"github.com/claude/spotter/internal/session"
	"github.com/claude/spotter/internal/storage"
)

// listLimit is how many stored sessions are checked for duplicates.
const listLimit = 200

// Store is where imported plans are created.
type Store interface {
	CreateSession(ctx context.Context, s session.Session) (session.Session, error)
	ListSessions(ctx context.Context, limit int) ([]storage.SessionInfo, error)
}

// Stats tracks import progress.
type Stats struct {
	FilesProcessed int
	FilesSkipped   int
	FilesErrored   int

	SessionsCreated int
	SetsCreated     int

	// Duplicates names plans skipped because a planned session with the
	// same name is already stored.
	Duplicates []string
}

// Importer reads plan files and creates one planned session per file.
type Importer struct {
	store  Store
	log    *slog.Logger
	dryRun bool
	stats  Stats
}

// New creates a new Importer. With dryRun no session is created.
func New(store Store, log *slog.Logger, dryRun bool) *Importer {
	return &Importer{store: store, log: log, dryRun: dryRun}
}

// Import processes a single plan file, or every .yaml/.yml file in a
// directory in name order. A file that fails to parse is counted and
// skipped; a store failure aborts the import.
func (imp *Importer) Import(ctx context.Context, path string) (*Stats, error) {
	files, err := planFiles(path)
	if err != nil {
		return &imp.stats, err
	}

	pending := map[string]bool{}
	if imp.store != nil {
		existing, err := imp.store.ListSessions(ctx, listLimit)
		if err != nil {
			return &imp.stats, fmt.Errorf("listing sessions: %w", err)
		}
		for _, s := range existing {
			if s.Status == "planned" {
				pending[s.Name] = true
			}
		}
	}

	for _, f := range files {
		p, err := plan.Load(f)
		if err != nil {
			imp.log.Warn("plan rejected", "file", f, "error", err)
			imp.stats.FilesErrored++
			continue
		}
		imp.stats.FilesProcessed++

		if pending[p.Name] {
			imp.log.Info("skipping plan (already planned)", "file", f, "name", p.Name)
			imp.stats.FilesSkipped++
			imp.stats.Duplicates = append(imp.stats.Duplicates, p.Name)
			continue
		}

		sess := p.Session()
		if imp.dryRun {
			imp.log.Info("dry run: would create session", "file", f, "name", sess.Name,
				"exercises", len(sess.Exercises), "sets", sess.TotalSets())
			continue
		}

		created, err := imp.store.CreateSession(ctx, sess)
		if err != nil {
			return &imp.stats, fmt.Errorf("creating session from %s: %w", f, err)
		}
		pending[created.Name] = true
		imp.stats.SessionsCreated++
		imp.stats.SetsCreated += created.TotalSets()
		imp.log.Info("session created", "file", f, "id", created.ID, "name", created.Name)
	}

	return &imp.stats, nil
}

// planFiles resolves path to the list of plan files it names.
func planFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
