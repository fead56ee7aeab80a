package models

import (
	"errors"
	"fmt"
)

// ErrGroupTooSmall is returned when a duplicate group would hold fewer than two paths
var ErrGroupTooSmall = errors.New("duplicate group needs at least 2 paths")

// ImagePath identifies a single image file. Unique within a folder only.
type ImagePath = string

// Fingerprint is a fixed-size perceptual hash. Equality is the only
// duplicate criterion.
type Fingerprint uint64

func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x", uint64(f))
}

// Pair is an intra-folder duplicate: First was stored for the fingerprint
// when Second arrived.
type Pair struct {
	Fingerprint Fingerprint `json:"-"`
	First       ImagePath   `json:"first"`
	Second      ImagePath   `json:"second"`
}

// FolderResult holds what the processor found in one folder
type FolderResult struct {
	Folder string `json:"folder"`

	// Paths maps each fingerprint to the last path seen with it
	Paths map[Fingerprint]ImagePath `json:"-"`

	// Order lists fingerprints in the order they were first seen
	Order []Fingerprint `json:"-"`

	Pairs      []Pair `json:"pairs"`
	Hashed     int    `json:"hashed"`
	Skipped    int    `json:"skipped"`
	Candidates int    `json:"candidates"`
}

// NewFolderResult returns an empty result for folder
func NewFolderResult(folder string) *FolderResult {
	return &FolderResult{
		Folder: folder,
		Paths:  make(map[Fingerprint]ImagePath),
	}
}

// Record stores fp -> path. If fp was already present the previous path
// and path are appended as a pair, and path replaces the stored one.
func (r *FolderResult) Record(fp Fingerprint, path ImagePath) {
	if prev, ok := r.Paths[fp]; ok {
		r.Pairs = append(r.Pairs, Pair{Fingerprint: fp, First: prev, Second: path})
	} else {
		r.Order = append(r.Order, fp)
	}
	r.Paths[fp] = path
}

// DuplicateGroup is a set of paths sharing one fingerprint
type DuplicateGroup struct {
	ID          int         `json:"id"`
	Fingerprint Fingerprint `json:"-"`
	Hash        string      `json:"hash"`
	Paths       []ImagePath `json:"paths"`
}

// NewDuplicateGroup builds a group, rejecting fewer than two paths
func NewDuplicateGroup(fp Fingerprint, paths ...ImagePath) (*DuplicateGroup, error) {
	if len(paths) < 2 {
		return nil, fmt.Errorf("fingerprint %s: %w", fp, ErrGroupTooSmall)
	}
	p := make([]ImagePath, len(paths))
	copy(p, paths)
	return &DuplicateGroup{
		Fingerprint: fp,
		Hash:        fp.String(),
		Paths:       p,
	}, nil
}

// Size returns the number of paths in the group
func (g *DuplicateGroup) Size() int {
	return len(g.Paths)
}

// Contains reports whether path is a member of the group
func (g *DuplicateGroup) Contains(path ImagePath) bool {
	for _, p := range g.Paths {
		if p == path {
			return true
		}
	}
	return false
}

// ScanResult holds the result of a run over a set of folders
type ScanResult struct {
	Folders        []string          `json:"folders"`
	MissingFolders []string          `json:"missing_folders,omitempty"`
	FailedFolders  []string          `json:"failed_folders,omitempty"`
	TotalHashed    int               `json:"total_hashed"`
	TotalSkipped   int               `json:"total_skipped"`
	Groups         []*DuplicateGroup `json:"groups"`
}

// TotalDuplicates counts paths beyond the first in each group
func (r *ScanResult) TotalDuplicates() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.Paths) - 1
	}
	return n
}
