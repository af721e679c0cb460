package catalog

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/lysithea/pkg/models"
)

// IntegrityError is fatal at load time: the catalog refuses to serve any
// request from a set of patterns that failed validation.
type IntegrityError struct {
	File   string
	Reason string
}

func (e *IntegrityError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("catalog integrity: %s", e.Reason)
	}
	return fmt.Sprintf("catalog integrity: %s: %s", e.File, e.Reason)
}

// patternExtensions are the file extensions the loader treats as pattern
// sources. Everything else in the patterns tree is ignored.
var patternExtensions = map[string]bool{
	".js":  true,
	".sql": true,
}

// Catalog is an immutable snapshot of the pattern set. It is safe for
// concurrent use; reload builds a fresh Catalog and swaps it in via Store.
type Catalog struct {
	records  []*models.PatternRecord
	byID     map[string]*models.PatternRecord
	dir      string
	loadedAt time.Time
}

// Load walks dir, parses every pattern file, and validates the set. Any
// malformed file or duplicate id aborts the whole load with IntegrityError.
func Load(dir string) (*Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("patterns directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("patterns path %s is not a directory", dir)
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if patternExtensions[filepath.Ext(path)] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking patterns directory: %w", err)
	}

	// Deterministic insertion order regardless of filesystem ordering.
	sort.Strings(paths)

	cat := &Catalog{
		byID:     make(map[string]*models.PatternRecord),
		dir:      dir,
		loadedAt: time.Now(),
	}
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading pattern %s: %w", path, err)
		}
		rec, err := parsePattern(path, content)
		if err != nil {
			return nil, err
		}
		if prev, ok := cat.byID[rec.ID]; ok {
			return nil, &IntegrityError{
				File:   path,
				Reason: fmt.Sprintf("duplicate pattern id %q (first declared at position %d)", rec.ID, prev.Position),
			}
		}
		rec.Position = len(cat.records)
		cat.records = append(cat.records, rec)
		cat.byID[rec.ID] = rec
	}

	return cat, nil
}

// FindByDomainOperation returns the records in domain whose operation
// matches op, in insertion order. An empty result is not an error here;
// the ranker decides what an empty candidate set means.
func (c *Catalog) FindByDomainOperation(domain string, op models.Operation) []*models.PatternRecord {
	var out []*models.PatternRecord
	for _, rec := range c.records {
		if rec.Domain == domain && rec.Operation == op {
			out = append(out, rec)
		}
	}
	return out
}

// FindByDomain returns all records in domain, in insertion order.
func (c *Catalog) FindByDomain(domain string) []*models.PatternRecord {
	var out []*models.PatternRecord
	for _, rec := range c.records {
		if rec.Domain == domain {
			out = append(out, rec)
		}
	}
	return out
}

// Get looks a record up by id.
func (c *Catalog) Get(id string) (*models.PatternRecord, bool) {
	rec, ok := c.byID[id]
	return rec, ok
}

// All returns every record in insertion order. Callers must not mutate
// the returned records.
func (c *Catalog) All() []*models.PatternRecord {
	return c.records
}

// Len returns the number of loaded patterns.
func (c *Catalog) Len() int {
	return len(c.records)
}

// Dir returns the directory the catalog was loaded from.
func (c *Catalog) Dir() string {
	return c.dir
}

// LoadedAt returns when this snapshot was built.
func (c *Catalog) LoadedAt() time.Time {
	return c.loadedAt
}
