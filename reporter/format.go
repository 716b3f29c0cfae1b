// Copyright 2020-2025 Buf Technologies, Inc.
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

package reporter

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/rivo/uniseg"
)

var (
	errorLabel   = color.New(color.FgRed, color.Bold)
	warningLabel = color.New(color.FgYellow, color.Bold)
	gutterStyle  = color.New(color.FgBlue, color.Bold)
)

// Format renders err as a compiler-style diagnostic with a snippet of the
// offending source line and a caret under the reported column. The source
// argument is the contents of the file named by the error's position; if it
// is empty or the position does not fall inside it, only the one-line form is
// returned.
func Format(err ErrorWithPos, source string) string {
	return format(errorLabel.Sprint("error"), err, source)
}

// FormatWarning is like Format but labels the diagnostic as a warning.
func FormatWarning(err ErrorWithPos, source string) string {
	return format(warningLabel.Sprint("warning"), err, source)
}

func format(label string, err ErrorWithPos, source string) string {
	pos := err.GetPosition()
	if source == "" || pos.Line <= 0 {
		return fmt.Sprintf("%s: %v", label, err)
	}

	lines := strings.Split(source, "\n")
	if pos.Line > len(lines) {
		return fmt.Sprintf("%s: %v", label, err)
	}
	line := strings.TrimRight(lines[pos.Line-1], "\r")

	// Col counts tab stops, so it cannot index the raw line bytes; derive the
	// in-line byte index from the offset instead. The caret is then aligned
	// using the rendered width of the text before it, so tabs and multi-column
	// glyphs in the snippet don't skew it.
	lineStart := 0
	for i := 1; i < pos.Line; i++ {
		lineStart += len(lines[i-1]) + 1
	}
	idx := pos.Offset - lineStart
	if idx < 0 || idx > len(line) {
		idx = len(line)
	}
	pad := uniseg.StringWidth(expandTabs(line[:idx]))

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %v\n", label, err.Unwrap())
	fmt.Fprintf(&sb, "%s %s\n", gutterStyle.Sprintf(" -->"), pos)
	fmt.Fprintf(&sb, "%s\n", gutterStyle.Sprintf("    |"))
	fmt.Fprintf(&sb, "%s %s\n", gutterStyle.Sprintf("%3d |", pos.Line), expandTabs(line))
	fmt.Fprintf(&sb, "%s %s%s\n", gutterStyle.Sprintf("    |"), strings.Repeat(" ", pad), errorLabel.Sprint("^"))
	return sb.String()
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", "        ")
}
