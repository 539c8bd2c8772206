package bundle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
)

// CheckName identifies one post-build assertion.
type CheckName string

const (
	CheckExists           CheckName = "exists"
	CheckNonEmpty         CheckName = "non_empty"
	CheckNoUnresolvedRefs CheckName = "no_unresolved_refs"
	CheckSyntax           CheckName = "syntax"
)

// CheckOrder is the order checks run and are reported in.
var CheckOrder = []CheckName{CheckExists, CheckNonEmpty, CheckNoUnresolvedRefs, CheckSyntax}

// Sentinel errors, one per check.
var (
	ErrArtifactMissing     = errors.New("artifact missing")
	ErrArtifactEmpty       = errors.New("artifact empty")
	ErrUnresolvedReference = errors.New("unresolved internal module reference")
	ErrSyntax              = errors.New("artifact does not parse")
)

// SharedAlias is the internal cross-package import alias the bundler must inline.
const SharedAlias = "@shared/"

// ForbiddenPatterns are the literal forms of an un-inlined SharedAlias import.
//
// This is a substring match, so `from"@shared/x"` or `require( "@shared/x")`
// are not detected.
var ForbiddenPatterns = []string{
	`from '` + SharedAlias,
	`from "` + SharedAlias,
	`require('` + SharedAlias,
	`require("` + SharedAlias,
}

// maxReportedMatches caps the detail of the unresolved-reference check.
const maxReportedMatches = 10

// CheckResult is the outcome of one check.
type CheckResult struct {
	Name    CheckName
	Passed  bool
	Skipped bool
	Detail  string
	Err     error
}

// Status returns PASS, FAIL or SKIP.
func (c CheckResult) Status() string {
	switch {
	case c.Skipped:
		return "SKIP"
	case c.Passed:
		return "PASS"
	default:
		return "FAIL"
	}
}

func pass(name CheckName, detail string) CheckResult {
	return CheckResult{Name: name, Passed: true, Detail: detail}
}

func fail(name CheckName, sentinel error, detail string) CheckResult {
	return CheckResult{Name: name, Detail: detail, Err: fmt.Errorf("%w: %s", sentinel, detail)}
}

func skipped(name CheckName) CheckResult {
	return CheckResult{Name: name, Skipped: true, Detail: "build failed"}
}

// snapshot is the artifact as read once after the build. Every check looks at
// the same snapshot.
type snapshot struct {
	path    string
	info    fs.FileInfo
	statErr error
	content []byte
	readErr error
}

func checkExists(s *snapshot) CheckResult {
	if s.statErr != nil {
		return fail(CheckExists, ErrArtifactMissing, fmt.Sprintf("%s: %v", s.path, s.statErr))
	}
	if !s.info.Mode().IsRegular() {
		return fail(CheckExists, ErrArtifactMissing, fmt.Sprintf("%s is not a regular file", s.path))
	}
	return pass(CheckExists, s.path)
}

func checkNonEmpty(s *snapshot) CheckResult {
	if s.statErr != nil {
		return fail(CheckNonEmpty, ErrArtifactEmpty, "size unknown: "+s.statErr.Error())
	}
	if s.info.Size() <= 0 {
		return fail(CheckNonEmpty, ErrArtifactEmpty, fmt.Sprintf("%s is 0 bytes", s.path))
	}
	return pass(CheckNonEmpty, fmt.Sprintf("%d bytes", s.info.Size()))
}

func checkNoUnresolvedRefs(s *snapshot) CheckResult {
	if s.readErr != nil {
		return fail(CheckNoUnresolvedRefs, ErrUnresolvedReference, "cannot read artifact: "+s.readErr.Error())
	}

	matches := FindForbidden(s.content)
	if len(matches) == 0 {
		return pass(CheckNoUnresolvedRefs, "")
	}

	parts := make([]string, 0, len(matches))
	for i, m := range matches {
		if i == maxReportedMatches {
			parts = append(parts, fmt.Sprintf("and %d more", len(matches)-maxReportedMatches))
			break
		}
		parts = append(parts, m.String())
	}
	return fail(CheckNoUnresolvedRefs, ErrUnresolvedReference, strings.Join(parts, "; "))
}

func checkSyntax(ctx context.Context, s *snapshot) CheckResult {
	if s.readErr != nil {
		return fail(CheckSyntax, ErrSyntax, "cannot read artifact: "+s.readErr.Error())
	}
	if err := ParseJS(ctx, s.content); err != nil {
		return fail(CheckSyntax, ErrSyntax, err.Error())
	}
	return pass(CheckSyntax, "")
}

// Match is one forbidden pattern occurrence.
type Match struct {
	Pattern string
	Line    int // 1-based
	Offset  int
}

func (m Match) String() string {
	return fmt.Sprintf("line %d: %s", m.Line, m.Pattern)
}

// FindForbidden returns every ForbiddenPatterns occurrence in content, ordered by offset.
func FindForbidden(content []byte) []Match {
	var matches []Match
	for _, pattern := range ForbiddenPatterns {
		p := []byte(pattern)
		for off := 0; ; {
			i := bytes.Index(content[off:], p)
			if i < 0 {
				break
			}
			at := off + i
			matches = append(matches, Match{
				Pattern: pattern,
				Line:    bytes.Count(content[:at], []byte("\n")) + 1,
				Offset:  at,
			})
			off = at + len(p)
		}
	}

	slices.SortFunc(matches, func(a, b Match) int { return a.Offset - b.Offset })
	return matches
}
