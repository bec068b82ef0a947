// Package sentence segments assistant text into speech-aligned sentences.
// It is language-aware enough to avoid splitting on decimal points and
// common dotted abbreviations, and merges fragments that would otherwise be
// too short to speak on their own.
package sentence

import "strings"

// MinSegmentLen is the shortest a segment may be before it gets merged into
// a neighbor.
const MinSegmentLen = 5

var terminators = map[rune]bool{
	'。': true, '！': true, '？': true,
	'.': true, '!': true, '?': true,
}

// Split segments text into ordered, non-empty sentences.
func Split(text string) []string {
	raw := splitOnTerminators(text)
	return mergeForward(raw)
}

// splitOnTerminators walks the string rune by rune, cutting after any
// terminator that is not part of a decimal number or a dotted abbreviation.
// A dot after a bare numeric token like "123." still cuts.
func splitOnTerminators(text string) []string {
	runes := []rune(text)
	var segments []string
	var cur strings.Builder

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		cur.WriteRune(r)

		if !terminators[r] {
			continue
		}
		if r == '.' && isSuppressedDot(runes, i) {
			continue
		}

		segments = append(segments, cur.String())
		cur.Reset()
	}
	if cur.Len() > 0 {
		segments = append(segments, cur.String())
	}

	out := make([]string, 0, len(segments))
	for _, s := range segments {
		n := normalize(s)
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

// isSuppressedDot reports whether the '.' at runes[i] should NOT act as a
// sentence terminator: a decimal point between digits, or a dot following a
// single capital letter or a known abbreviation (U.S., U.S.A., Dr.). A dot
// after a bare digit run with nothing following it (e.g. "123.") still cuts
// here; mergeForward folds the resulting short fragment into its neighbor.
func isSuppressedDot(runes []rune, i int) bool {
	prev, hasPrev := lastNonSpace(runes, i-1)
	next, hasNext := firstNonSpace(runes, i+1)

	if hasPrev && hasNext && isDigit(prev) && isDigit(next) {
		return true
	}

	if hasPrev && isLetter(prev) {
		j := i - 1
		letterRunStart := j
		for letterRunStart >= 0 && isLetter(runes[letterRunStart]) {
			letterRunStart--
		}
		letterRunStart++
		word := string(runes[letterRunStart:i])

		// A single capital letter preceding the dot is an acronym segment
		// (U.S. / U.S.A.), regardless of what came before it.
		if len(word) == 1 && isUpper(prev) {
			return true
		}
		if knownAbbreviations[strings.ToLower(word)] {
			return true
		}
	}

	return false
}

var knownAbbreviations = map[string]bool{
	"dr": true, "mr": true, "mrs": true, "ms": true, "prof": true,
	"sr": true, "jr": true, "st": true, "vs": true, "etc": true,
}

func lastNonSpace(runes []rune, from int) (rune, bool) {
	for i := from; i >= 0; i-- {
		if runes[i] == ' ' || runes[i] == '\t' || runes[i] == '\n' {
			continue
		}
		return runes[i], true
	}
	return 0, false
}

func firstNonSpace(runes []rune, from int) (rune, bool) {
	for i := from; i < len(runes); i++ {
		if runes[i] == ' ' || runes[i] == '\t' || runes[i] == '\n' {
			continue
		}
		return runes[i], true
	}
	return 0, false
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }
func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func normalize(raw string) string {
	fields := strings.Fields(raw)
	return strings.Join(fields, " ")
}

// mergeForward appends any segment shorter than MinSegmentLen to its
// predecessor, or to its successor if it is the first segment.
func mergeForward(segments []string) []string {
	if len(segments) == 0 {
		return nil
	}

	merged := make([]string, 0, len(segments))
	merged = append(merged, segments[0])
	for i := 1; i < len(segments); i++ {
		shortFirst := len(merged) == 1 && len([]rune(merged[0])) < MinSegmentLen
		if shortFirst || len([]rune(segments[i])) < MinSegmentLen {
			merged[len(merged)-1] += segments[i]
			continue
		}
		merged = append(merged, segments[i])
	}

	for len(merged) > 1 && len([]rune(merged[len(merged)-1])) < MinSegmentLen {
		last := merged[len(merged)-1]
		merged = merged[:len(merged)-1]
		merged[len(merged)-1] += last
	}

	return merged
}

// ExtractCompleteSentencePrefix finds the last unambiguous sentence
// terminator in buffer and returns the text through it plus the remainder,
// which stays buffered for the next streamed chunk. ok is false when no
// terminator was found.
func ExtractCompleteSentencePrefix(buffer string) (complete, rest string, ok bool) {
	runes := []rune(buffer)
	lastCut := -1
	for i := 0; i < len(runes); i++ {
		if !terminators[runes[i]] {
			continue
		}
		if runes[i] == '.' && isSuppressedDot(runes, i) {
			continue
		}
		lastCut = i
	}
	if lastCut < 0 {
		return "", buffer, false
	}
	return string(runes[:lastCut+1]), string(runes[lastCut+1:]), true
}
