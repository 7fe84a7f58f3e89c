// Package discovery finds superseded document versions in the active
// directories of a memory bank and creates successor versions on request.
package discovery

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"memarchive/internal/classifier"
	"memarchive/internal/normalizer"
	"memarchive/internal/orchestrator"
	"memarchive/internal/organizer"
	"memarchive/internal/scanner"
)

// ActiveDirName is the per-type directory holding current documents.
const ActiveDirName = "active"

// Options configures a Detector.
type Options struct {
	DocumentGlob  string
	SymlinkPolicy string
	Logger        *slog.Logger
}

// Detector proposes archive operations for superseded versions.
type Detector struct {
	scan   scanner.ScanOptions
	mover  *organizer.Mover
	logger *slog.Logger
}

// Result contains the operations found by AutoDetect.
type Result struct {
	Operations []orchestrator.Operation
	Kept       []string // newest document of each group, root-relative
	Scanned    int      // documents examined
}

// NewDetector creates a Detector.
func NewDetector(opts Options) (*Detector, error) {
	if opts.DocumentGlob == "" {
		opts.DocumentGlob = scanner.DefaultDocumentGlob
	}
	pattern, err := scanner.CompilePattern(opts.DocumentGlob)
	if err != nil {
		return nil, err
	}
	if opts.SymlinkPolicy == "" {
		opts.SymlinkPolicy = scanner.SymlinkPolicySkip
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Detector{
		scan:   scanner.ScanOptions{SymlinkPolicy: opts.SymlinkPolicy, Pattern: pattern},
		mover:  organizer.NewMover(),
		logger: opts.Logger,
	}, nil
}

type candidate struct {
	path  string
	name  string
	mtime int64
}

// AutoDetect groups the documents of every <root>/<type>/active directory by
// version-stripped name. In each group with more than one document the most
// recently modified one is kept and the rest become move operations into
// <type>/archive. Missing active directories are skipped.
func (d *Detector) AutoDetect(root string) (*Result, error) {
	result := &Result{Operations: []orchestrator.Operation{}}

	for _, memType := range classifier.MemoryTypes {
		activeDir := filepath.Join(root, string(memType), ActiveDirName)
		files, err := scanner.ScanWithOptions(activeDir, d.scan)
		if err != nil {
			if scanner.IsType(err, scanner.DirectoryNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to scan %s: %w", activeDir, err)
		}
		result.Scanned += len(files)

		groups := make(map[string][]candidate)
		for _, f := range files {
			info, err := os.Stat(f.FullPath)
			if err != nil {
				d.logger.Warn("skipping unreadable document", "path", f.FullPath, "error", err)
				continue
			}
			base := normalizer.BaseName(f.Name)
			groups[base] = append(groups[base], candidate{path: f.FullPath, name: f.Name, mtime: info.ModTime().UnixNano()})
		}

		bases := make([]string, 0, len(groups))
		for base := range groups {
			bases = append(bases, base)
		}
		sort.Strings(bases)

		archiveRel := filepath.Join(string(memType), scanner.ArchiveDirName)
		for _, base := range bases {
			group := groups[base]
			if len(group) < 2 {
				continue
			}
			// newest first; names break mtime ties so runs are repeatable
			sort.Slice(group, func(i, j int) bool {
				if group[i].mtime != group[j].mtime {
					return group[i].mtime > group[j].mtime
				}
				return group[i].name > group[j].name
			})

			result.Kept = append(result.Kept, rel(root, group[0].path))
			for _, old := range group[1:] {
				result.Operations = append(result.Operations, orchestrator.Operation{
					OperationType:     orchestrator.MoveOperation,
					Source:            rel(root, old.path),
					DestinationFolder: archiveRel,
					MemoryType:        string(memType),
					Description:       "Archive older version of " + base,
				})
			}
		}
	}

	d.logger.Info("auto-detected superseded documents",
		"root", root,
		"scanned", result.Scanned,
		"operations", len(result.Operations),
	)
	return result, nil
}

// Versioned records one CreateVersioned call.
type Versioned struct {
	Source  string
	Target  string
	Created bool // false when the target already existed
}

// CreateVersioned copies source to <root>/<memType>/active/<base>_v<next><ext>.
// An existing target is left untouched and reported with Created false.
func (d *Detector) CreateVersioned(root, source, memType string) (*Versioned, error) {
	if !filepath.IsAbs(source) {
		source = filepath.Join(root, source)
	}
	target := filepath.Join(root, memType, ActiveDirName, normalizer.VersionedName(source))
	v := &Versioned{Source: source, Target: target}

	if _, err := d.mover.Copy(source, target, false, false); err != nil {
		if organizer.IsType(err, organizer.DestinationExists) {
			d.logger.Info("versioned document already exists", "target", target)
			return v, nil
		}
		return nil, fmt.Errorf("failed to create versioned copy of %s: %w", source, err)
	}
	v.Created = true
	d.logger.Info("created versioned document", "source", source, "target", target)
	return v, nil
}

// AutoVersion runs CreateVersioned for every move operation whose source
// exists. The memory type comes from the operation or, failing that, from c.
// Failures are collected and do not stop the remaining operations.
func (d *Detector) AutoVersion(root string, ops []orchestrator.Operation, c *classifier.Classifier) ([]Versioned, error) {
	var created []Versioned
	var errs []error

	for _, op := range ops {
		if op.OperationType != orchestrator.MoveOperation {
			continue
		}
		source := op.Source
		if !filepath.IsAbs(source) {
			source = filepath.Join(root, source)
		}
		if _, err := os.Stat(source); err != nil {
			continue
		}

		memType := op.MemoryType
		if memType == "" {
			memType = string(c.DetectMemoryType(source))
		}

		v, err := d.CreateVersioned(root, source, memType)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		created = append(created, *v)
	}
	return created, errors.Join(errs...)
}

func rel(root, path string) string {
	if r, err := filepath.Rel(root, path); err == nil {
		return r
	}
	return path
}
