// Copyright 2024 Upbound Inc
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fileservice

import (
	"fmt"
	"strings"

	"github.com/pleme-io/typemill-sub012/internal/plan"
)

// splitKeepNoNewline splits content into lines with their newline
// terminators stripped; joinLines reverses this with "\n" separators.
// Edits address line/column positions, not raw byte offsets (that
// precision belongs to the markdown fixers, which work in bytes
// directly), so round-tripping through a line array is the natural
// representation here.
func splitKeepNoNewline(content []byte) []string {
	return strings.Split(string(content), "\n")
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

// applyOneEdit splices e into lines at its Location, returning the
// updated line array. Replace and Delete remove the [start,end) span;
// Insert splices newText in at Start without consuming any span.
func applyOneEdit(lines []string, e plan.TextEdit) ([]string, error) {
	loc := e.Location
	if loc.StartLine < 0 || loc.StartLine >= len(lines) {
		return nil, fmt.Errorf("edit %q: start line %d out of range (have %d lines)", e.Description, loc.StartLine, len(lines))
	}

	switch e.EditType {
	case plan.EditInsert:
		return spliceLines(lines, loc.StartLine, loc.StartCol, loc.StartLine, loc.StartCol, e.NewText)
	case plan.EditReplace:
		return spliceLines(lines, loc.StartLine, loc.StartCol, loc.EndLine, loc.EndCol, e.NewText)
	case plan.EditDelete:
		return spliceLines(lines, loc.StartLine, loc.StartCol, loc.EndLine, loc.EndCol, "")
	default:
		return lines, nil
	}
}

// spliceLines replaces the text between (startLine,startCol) and
// (endLine,endCol) with replacement, treating replacement's own "\n"s as
// new line breaks.
func spliceLines(lines []string, startLine, startCol, endLine, endCol int, replacement string) ([]string, error) {
	if endLine >= len(lines) {
		endLine = len(lines) - 1
		endCol = len(lines[endLine])
	}
	if startLine > endLine || (startLine == endLine && startCol > endCol) {
		return nil, fmt.Errorf("invalid span (%d,%d)-(%d,%d)", startLine, startCol, endLine, endCol)
	}

	before := lines[startLine][:clamp(startCol, len(lines[startLine]))]
	after := lines[endLine][clamp(endCol, len(lines[endLine])):]

	middle := before + replacement + after
	newLines := strings.Split(middle, "\n")

	out := make([]string, 0, len(lines)-(endLine-startLine+1)+len(newLines))
	out = append(out, lines[:startLine]...)
	out = append(out, newLines...)
	out = append(out, lines[endLine+1:]...)
	return out, nil
}

func clamp(n, max int) int {
	if n < 0 {
		return 0
	}
	if n > max {
		return max
	}
	return n
}
