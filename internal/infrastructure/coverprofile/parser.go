// Package coverprofile reads and merges Go text coverage profiles.
package coverprofile

import (
	"sort"

	"github.com/cockroachdb/errors"
	"golang.org/x/tools/cover"

	"github.com/felixgeelhaar/testcov/internal/domain"
)

type Parser struct{}

// Parse reads one profile file.
func (Parser) Parse(path string) ([]*cover.Profile, error) {
	profiles, err := cover.ParseProfiles(path)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return profiles, nil
}

// ParseAll reads and merges several profile files. All files must share one mode.
func (p Parser) ParseAll(paths []string) ([]*cover.Profile, error) {
	var merged []*cover.Profile
	for _, path := range paths {
		profiles, err := p.Parse(path)
		if err != nil {
			return nil, err
		}
		for _, prof := range profiles {
			merged, err = AddProfile(merged, prof)
			if err != nil {
				return nil, errors.Wrapf(err, "%s", path)
			}
		}
	}
	return merged, nil
}

// AddProfile merges p into the sorted list profiles and returns the new list.
// Identical blocks have their counts combined: summed for count and atomic
// modes, or-ed for set mode.
func AddProfile(profiles []*cover.Profile, p *cover.Profile) ([]*cover.Profile, error) {
	i := sort.Search(len(profiles), func(i int) bool { return profiles[i].FileName >= p.FileName })
	if i < len(profiles) && profiles[i].FileName == p.FileName {
		if err := mergeProfile(profiles[i], p); err != nil {
			return nil, err
		}
		return profiles, nil
	}
	clone := &cover.Profile{FileName: p.FileName, Mode: p.Mode, Blocks: append([]cover.ProfileBlock(nil), p.Blocks...)}
	sortBlocks(clone.Blocks)
	profiles = append(profiles, nil)
	copy(profiles[i+1:], profiles[i:])
	profiles[i] = clone
	return profiles, nil
}

func mergeProfile(into, p *cover.Profile) error {
	if into.Mode != p.Mode {
		return errors.Newf("cannot merge %s: mode %q differs from %q", p.FileName, p.Mode, into.Mode)
	}
	type key struct{ sl, sc, el, ec int }
	index := make(map[key]int, len(into.Blocks))
	for i, b := range into.Blocks {
		index[key{b.StartLine, b.StartCol, b.EndLine, b.EndCol}] = i
	}
	for _, b := range p.Blocks {
		k := key{b.StartLine, b.StartCol, b.EndLine, b.EndCol}
		i, ok := index[k]
		if !ok {
			index[k] = len(into.Blocks)
			into.Blocks = append(into.Blocks, b)
			continue
		}
		existing := &into.Blocks[i]
		if existing.NumStmt != b.NumStmt {
			return errors.Newf("inconsistent statement count for %s:%d.%d", p.FileName, b.StartLine, b.StartCol)
		}
		if into.Mode == "set" {
			if b.Count > 0 {
				existing.Count = 1
			}
		} else {
			existing.Count += b.Count
		}
	}
	sortBlocks(into.Blocks)
	return nil
}

func sortBlocks(blocks []cover.ProfileBlock) {
	sort.SliceStable(blocks, func(i, j int) bool {
		a, b := blocks[i], blocks[j]
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		return a.StartCol < b.StartCol
	})
}

// FileCoverage converts a profile into per-line coverage. Statement counts
// come from the blocks; a line is covered when any block spanning it ran.
func FileCoverage(p *cover.Profile) domain.FileCoverage {
	f := domain.FileCoverage{Name: p.FileName, Lines: make(map[int]domain.LineStatus)}
	for _, b := range p.Blocks {
		f.Statements += b.NumStmt
		if b.Count == 0 {
			f.Missed += b.NumStmt
		}
		if b.NumStmt == 0 {
			continue
		}
		for line := b.StartLine; line <= b.EndLine; line++ {
			if b.Count > 0 {
				f.Lines[line] = domain.LineCovered
			} else if f.Lines[line] != domain.LineCovered {
				f.Lines[line] = domain.LineMissed
			}
		}
	}
	return f
}

// Result converts a merged profile list into a coverage result.
func Result(profiles []*cover.Profile) domain.Result {
	res := domain.Result{Files: make([]domain.FileCoverage, 0, len(profiles))}
	for _, p := range profiles {
		if res.Mode == "" {
			res.Mode = p.Mode
		}
		res.Files = append(res.Files, FileCoverage(p))
	}
	return res
}
