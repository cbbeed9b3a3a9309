// Package wire implements the completion wire format shared by the
// generation engine and the HTTP streaming surface. A completion is a short
// conversational message, a fixed delimiter line, and a file-block-encoded
// skill package:
//
//	Sounds good, here is your skill.
//	---SKILL_START---
//	===FILE: SKILL.md===
//	...content...
//	===FILE: scripts/check.sh===
//	...content...
//	===END_FILES===
//
// Parsing is pure and safe to call on any prefix of a stream: missing
// delimiters or markers degrade the result rather than failing it.
package wire

import (
	"regexp"
	"strings"

	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

const (
	// Delimiter separates the conversational message from the package body.
	Delimiter = "---SKILL_START---"
	// EndMarker explicitly terminates the file blocks. It is optional: end
	// of stream implicitly closes the last file.
	EndMarker = "===END_FILES==="

	fileMarkerPrefix = "===FILE: "
	fileMarkerSuffix = "==="
)

// Parse splits a raw completion into its conversational message and skill
// files. It never fails:
//
//   - no delimiter: the whole input is the package body (message stays empty)
//   - no file markers in the body: the body becomes a single SKILL.md file
//   - missing EndMarker: end of input closes the last file
func Parse(raw string) skill.ParsedResponse {
	message, body, found := splitDelimiter(raw)
	if !found {
		body = raw
		message = ""
	}

	files, sawMarkers := parseFiles(body)
	if len(files) == 0 && !sawMarkers {
		if trimmed := strings.TrimSpace(body); trimmed != "" {
			files = []skill.SkillFile{{Path: skill.SkillFileName, Content: trimmed}}
		}
	}

	return skill.ParsedResponse{Message: message, Files: files}
}

// splitDelimiter splits raw at the first occurrence of the delimiter.
func splitDelimiter(raw string) (message, body string, found bool) {
	idx := strings.Index(raw, Delimiter)
	if idx < 0 {
		return "", "", false
	}
	return strings.TrimSpace(raw[:idx]), raw[idx+len(Delimiter):], true
}

// Message returns the conversational part of a (possibly partial) completion.
// Before the delimiter has arrived it returns the empty string.
func Message(raw string) string {
	message, _, found := splitDelimiter(raw)
	if !found {
		return ""
	}
	return message
}

// isFileMarker reports whether line opens a file block, returning the path.
func isFileMarker(line string) (string, bool) {
	trimmed := strings.TrimRight(line, "\r")
	if !strings.HasPrefix(trimmed, fileMarkerPrefix) || !strings.HasSuffix(trimmed, fileMarkerSuffix) {
		return "", false
	}
	path := strings.TrimSpace(trimmed[len(fileMarkerPrefix) : len(trimmed)-len(fileMarkerSuffix)])
	if path == "" {
		return "", false
	}
	return path, true
}

// parseFiles tokenizes the package body into file blocks. A block runs from
// its marker line to the next marker, the EndMarker, or end of input. A
// literal "===" inside content is ordinary text unless the whole line matches
// the marker grammar. sawMarkers distinguishes "no structure at all" (the
// single-file fallback applies) from an explicitly empty package.
func parseFiles(body string) (files []skill.SkillFile, sawMarkers bool) {
	var (
		current []string
		path    string
		open    bool
	)

	flush := func() {
		if !open {
			return
		}
		files = append(files, skill.SkillFile{Path: path, Content: strings.Join(current, "\n")})
		current = nil
		open = false
	}

	for _, line := range strings.Split(body, "\n") {
		if p, ok := isFileMarker(line); ok {
			flush()
			path = p
			open = true
			sawMarkers = true
			continue
		}
		if strings.TrimRight(line, "\r") == EndMarker {
			flush()
			return files, true
		}
		if open {
			current = append(current, line)
		}
	}
	flush()

	return files, sawMarkers
}

// Encode renders a message and file set into the wire format. Parsing the
// result yields the same message and files back.
func Encode(message string, files []skill.SkillFile) string {
	var b strings.Builder
	if message != "" {
		b.WriteString(message)
		b.WriteString("\n")
	}
	b.WriteString(Delimiter)
	b.WriteString("\n")
	for _, f := range files {
		b.WriteString(fileMarkerPrefix)
		b.WriteString(f.Path)
		b.WriteString(fileMarkerSuffix)
		b.WriteString("\n")
		b.WriteString(f.Content)
		b.WriteString("\n")
	}
	b.WriteString(EndMarker)
	return b.String()
}

var (
	placeholderPattern = regexp.MustCompile(`\[(YOUR_|INSERT_|REPLACE_|PLACEHOLDER)[A-Z0-9_]*\]`)
	htmlPatterns       = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<div[^>]*>`),
		regexp.MustCompile(`(?i)<span[^>]*>`),
		regexp.MustCompile(`(?i)<button[^>]*>`),
		regexp.MustCompile(`(?i)className=`),
		regexp.MustCompile(`(?i)onClick=`),
	}
)

// Validate inspects a finished completion against the output contract and
// returns human-readable issues. Violations are reported for logging only;
// they never fail a turn.
func Validate(raw string) []string {
	var issues []string

	if !strings.Contains(raw, Delimiter) {
		issues = append(issues, "missing "+Delimiter+" delimiter")
	}

	parsed := Parse(raw)
	if parsed.File(skill.SkillFileName) == nil {
		issues = append(issues, "missing "+skill.SkillFileName+" file")
	}

	for _, pattern := range htmlPatterns {
		if pattern.MatchString(raw) {
			issues = append(issues, "HTML/JSX detected: "+pattern.String())
			break
		}
	}

	if placeholderPattern.MatchString(raw) {
		issues = append(issues, "bracketed placeholder detected: "+placeholderPattern.FindString(raw))
	}

	return issues
}
