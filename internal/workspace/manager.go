// Package workspace manages the tracked-file cache: original documents
// copied into the workspace directory so they can be read while the user
// still has them open in Office. The original path → temp copy mapping is
// persisted to files_mappings.json.
package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/config"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/domain"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/hooks"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/logging"
)

// ErrNotTracked is returned when a path has no mapping.
var ErrNotTracked = errors.New("workspace: file not tracked")

const mappingsVersion = 1

// Mapping records one tracked file: where the original lives and where its
// workspace copy sits.
type Mapping struct {
	OriginalPath    string          `json:"-"`
	TempPath        string          `json:"temp_path"`
	Filename        string          `json:"filename"`
	Kind            domain.FileKind `json:"kind"`
	SizeBytes       int64           `json:"size_bytes"`
	OriginalModTime time.Time       `json:"original_mtime"`
	CopiedAt        time.Time       `json:"copied_at"`
}

// SyncReport summarizes a Sync or Cleanup pass.
type SyncReport struct {
	Pruned    int `json:"pruned"`
	Refreshed int `json:"refreshed"`
	Deduped   int `json:"deduped"`
	Tracked   int `json:"tracked"`
}

type mappingsFile struct {
	Version  int                `json:"version"`
	Mappings map[string]Mapping `json:"mappings"`
}

// Manager owns the workspace directory and the mappings manifest.
type Manager struct {
	mu       sync.RWMutex
	mappings map[string]Mapping // original absolute path → mapping

	dir       string // workspace directory for temp copies
	file      string // files_mappings.json
	maxFileMB int
	maxFiles  int
	hooks     *hooks.Manager
	log       *logging.Logger
}

// NewManager loads the manifest (tolerating a missing or corrupt file) and
// returns a manager rooted at dir. The hooks manager may be nil.
func NewManager(dir, file string, cfg config.WorkspaceConfig, hk *hooks.Manager, log *logging.Logger) (*Manager, error) {
	if cfg.Dir != "" {
		dir = cfg.Dir
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating workspace dir: %w", err)
	}

	m := &Manager{
		mappings:  make(map[string]Mapping),
		dir:       dir,
		file:      file,
		maxFileMB: cfg.MaxFileMB,
		maxFiles:  cfg.MaxFiles,
		hooks:     hk,
		log:       log.Sub("workspace"),
	}
	m.load()
	return m, nil
}

// Dir returns the workspace directory.
func (m *Manager) Dir() string { return m.dir }

// Count returns the number of tracked files.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.mappings)
}

// Track copies a file into the workspace and records its mapping.
// Re-tracking an already-tracked path replaces the previous copy.
func (m *Manager) Track(ctx context.Context, path string) (*Mapping, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}

	fi, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("workspace: %s is a directory", abs)
	}
	if m.maxFileMB > 0 && fi.Size() > int64(m.maxFileMB)*1024*1024 {
		return nil, fmt.Errorf("workspace: %s exceeds the %d MB limit", filepath.Base(abs), m.maxFileMB)
	}

	m.mu.RLock()
	_, tracked := m.mappings[abs]
	full := m.maxFiles > 0 && len(m.mappings) >= m.maxFiles
	m.mu.RUnlock()
	if full && !tracked {
		return nil, fmt.Errorf("workspace: limit of %d tracked files reached", m.maxFiles)
	}

	// Copy outside the lock; only the bookkeeping is serialized.
	tempPath := filepath.Join(m.dir, uuid.New().String()+strings.ToLower(filepath.Ext(abs)))
	if err := copyFile(abs, tempPath); err != nil {
		return nil, fmt.Errorf("copying %s: %w", abs, err)
	}

	mapping := Mapping{
		OriginalPath:    abs,
		TempPath:        tempPath,
		Filename:        filepath.Base(abs),
		Kind:            domain.KindForPath(abs),
		SizeBytes:       fi.Size(),
		OriginalModTime: fi.ModTime(),
		CopiedAt:        time.Now(),
	}

	m.mu.Lock()
	old, replacing := m.mappings[abs]
	// Re-check the cap: concurrent Tracks can all pass the pre-copy check.
	if !replacing && m.maxFiles > 0 && len(m.mappings) >= m.maxFiles {
		m.mu.Unlock()
		removeQuiet(tempPath)
		return nil, fmt.Errorf("workspace: limit of %d tracked files reached", m.maxFiles)
	}
	m.mappings[abs] = mapping
	err = m.saveLocked()
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if replacing {
		removeQuiet(old.TempPath)
	}

	m.log.Info().
		Str("file", mapping.Filename).
		Str("kind", string(mapping.Kind)).
		Int64("bytes", mapping.SizeBytes).
		Msg("file tracked")
	m.emit(ctx, hooks.EventFileTracked, map[string]any{
		"path":     abs,
		"filename": mapping.Filename,
	})

	return &mapping, nil
}

// Lookup returns the mapping for an original path and whether the original
// has been modified since it was copied.
func (m *Manager) Lookup(path string) (*Mapping, bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, false, err
	}

	m.mu.RLock()
	mapping, ok := m.mappings[abs]
	m.mu.RUnlock()
	if !ok {
		return nil, false, ErrNotTracked
	}

	stale := false
	if fi, err := os.Stat(abs); err == nil && fi.ModTime().After(mapping.OriginalModTime) {
		stale = true
	}
	return &mapping, stale, nil
}

// Untrack removes a mapping and deletes its temp copy.
func (m *Manager) Untrack(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	mapping, ok := m.mappings[abs]
	if !ok {
		m.mu.Unlock()
		return ErrNotTracked
	}
	delete(m.mappings, abs)
	err = m.saveLocked()
	m.mu.Unlock()
	if err != nil {
		return err
	}

	removeQuiet(mapping.TempPath)
	m.emit(ctx, hooks.EventFilePruned, map[string]any{
		"path":     abs,
		"filename": mapping.Filename,
	})
	return nil
}

// List returns all mappings sorted by filename.
func (m *Manager) List() []Mapping {
	m.mu.RLock()
	out := make([]Mapping, 0, len(m.mappings))
	for path, mapping := range m.mappings {
		mapping.OriginalPath = path
		out = append(out, mapping)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Filename != out[j].Filename {
			return out[i].Filename < out[j].Filename
		}
		return out[i].OriginalPath < out[j].OriginalPath
	})
	return out
}

// Cleanup prunes mappings whose original is gone and dedupes by filename,
// keeping the most recently copied entry. Losers' temp copies are deleted.
// Afterwards at most one mapping exists per original filename.
func (m *Manager) Cleanup(ctx context.Context) (SyncReport, error) {
	return m.sweep(ctx, false)
}

// Sync runs Cleanup and refreshes copies whose original has changed since
// they were tracked.
func (m *Manager) Sync(ctx context.Context) (SyncReport, error) {
	return m.sweep(ctx, true)
}

type event struct {
	name string
	data map[string]any
}

func (m *Manager) sweep(ctx context.Context, refresh bool) (SyncReport, error) {
	var report SyncReport
	var events []event
	var orphans []string // temp files to delete once the manifest is saved

	m.mu.Lock()

	// Prune mappings whose original file no longer exists.
	for path, mapping := range m.mappings {
		if _, err := os.Stat(path); err == nil {
			continue
		}
		delete(m.mappings, path)
		orphans = append(orphans, mapping.TempPath)
		report.Pruned++
		events = append(events, event{hooks.EventFilePruned, map[string]any{
			"path":     path,
			"filename": mapping.Filename,
			"reason":   "original missing",
		}})
	}

	// Dedupe by base filename: most recent copy wins.
	best := make(map[string]string, len(m.mappings)) // filename → original path
	for path, mapping := range m.mappings {
		cur, ok := best[mapping.Filename]
		if !ok || mapping.CopiedAt.After(m.mappings[cur].CopiedAt) {
			best[mapping.Filename] = path
		}
	}
	for path, mapping := range m.mappings {
		if best[mapping.Filename] == path {
			continue
		}
		delete(m.mappings, path)
		orphans = append(orphans, mapping.TempPath)
		report.Deduped++
		events = append(events, event{hooks.EventFilePruned, map[string]any{
			"path":     path,
			"filename": mapping.Filename,
			"reason":   "duplicate filename",
		}})
	}

	// Refresh copies whose original has been modified since tracking.
	if refresh {
		for path, mapping := range m.mappings {
			fi, err := os.Stat(path)
			if err != nil || !fi.ModTime().After(mapping.OriginalModTime) {
				continue
			}
			if err := copyFile(path, mapping.TempPath); err != nil {
				m.log.Warn().Err(err).Str("file", mapping.Filename).Msg("refresh failed")
				continue
			}
			mapping.SizeBytes = fi.Size()
			mapping.OriginalModTime = fi.ModTime()
			mapping.CopiedAt = time.Now()
			m.mappings[path] = mapping
			report.Refreshed++
			events = append(events, event{hooks.EventFileRefreshed, map[string]any{
				"path":     path,
				"filename": mapping.Filename,
			}})
		}
	}

	report.Tracked = len(m.mappings)
	err := m.saveLocked()
	m.mu.Unlock()
	if err != nil {
		return report, err
	}

	for _, p := range orphans {
		removeQuiet(p)
	}
	for _, e := range events {
		m.emit(ctx, e.name, e.data)
	}

	if report.Pruned+report.Refreshed+report.Deduped > 0 {
		m.log.Info().
			Int("pruned", report.Pruned).
			Int("refreshed", report.Refreshed).
			Int("deduped", report.Deduped).
			Msg("workspace synced")
	}
	return report, nil
}

// load reads the manifest. A corrupt file is renamed aside and the manager
// starts empty; startup never fails on a bad manifest.
func (m *Manager) load() {
	data, err := os.ReadFile(m.file)
	if err != nil {
		return
	}

	var parsed mappingsFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		corrupt := m.file + ".corrupt"
		if renameErr := os.Rename(m.file, corrupt); renameErr == nil {
			m.log.Warn().Str("movedTo", corrupt).Msg("corrupt mappings file moved aside")
		} else {
			m.log.Warn().Err(err).Msg("corrupt mappings file ignored")
		}
		return
	}

	for path, mapping := range parsed.Mappings {
		mapping.OriginalPath = path
		m.mappings[path] = mapping
	}
}

func (m *Manager) saveLocked() error {
	payload := mappingsFile{Version: mappingsVersion, Mappings: m.mappings}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding mappings: %w", err)
	}

	tmp := m.file + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing mappings: %w", err)
	}
	if err := os.Rename(tmp, m.file); err != nil {
		return fmt.Errorf("replacing mappings: %w", err)
	}
	return nil
}

func (m *Manager) emit(ctx context.Context, name string, data map[string]any) {
	if m.hooks == nil {
		return
	}
	m.hooks.Emit(ctx, name, data)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func removeQuiet(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}
