// Package command interprets voice commands embedded in capture
// transcripts. Matching is lexical: an exact-match table of standalone
// phrases first, then a legacy wake-phrase-prefixed form. At most one
// command is extracted per transcript.
package command

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind enumerates the recognized voice commands.
type Kind string

const (
	KindNone        Kind = "none"
	KindNext        Kind = "next"
	KindPrev        Kind = "prev"
	KindSkip        Kind = "skip"
	KindJump        Kind = "jump"
	KindRepeat      Kind = "repeat"
	KindSummary     Kind = "summary"
	KindClearAnswer Kind = "clearAnswer"
	KindPause       Kind = "pause"
	KindResume      Kind = "resume"
)

// Command is the result of interpreting one transcript. Argument is the
// 1-based question number for jump commands.
type Command struct {
	Kind     Kind
	Argument int
}

// None reports whether no command was recognized.
func (c Command) None() bool { return c.Kind == KindNone }

// exactPhrases maps standalone command phrases to their kind. The
// transcript must match the whole phrase after normalization.
var exactPhrases = map[string]Kind{
	"next":                KindNext,
	"next question":       KindNext,
	"previous":            KindPrev,
	"previous question":   KindPrev,
	"go back":             KindPrev,
	"skip":                KindSkip,
	"skip question":       KindSkip,
	"skip this question":  KindSkip,
	"repeat":              KindRepeat,
	"repeat question":     KindRepeat,
	"repeat the question": KindRepeat,
	"summary":             KindSummary,
	"session summary":     KindSummary,
	"pause":               KindPause,
	"resume":              KindResume,
	"continue":            KindResume,
	"clear answer":        KindClearAnswer,
	"clear my answer":     KindClearAnswer,
}

// wakePhrases lists the accepted spellings of the spoken trigger word,
// tolerating likely misrecognitions of a multi-syllable wake word.
var wakePhrases = []string{
	"daytrace",
	"day trace",
	"day trays",
	"daytrays",
	"data trace",
	"they trace",
	"hey trace",
}

var jumpPattern = regexp.MustCompile(`^(?:jump|go) to (?:question )?(\S+)$`)

// smallNumbers maps spoken number words for jump targets.
var smallNumbers = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14,
	"fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18,
	"nineteen": 19, "twenty": 20,
}

// Interpret extracts at most one command from a transcript. It returns the
// cleaned answer text (the transcript with any matched wake phrase and
// command stripped) and the recognized command. Command detection takes
// priority over treating the text as an answer.
func Interpret(transcript string) (string, Command) {
	norm := normalize(transcript)
	if norm == "" {
		return "", Command{Kind: KindNone}
	}

	// Full-transcript exact match first.
	if cmd, ok := matchPhrase(norm); ok {
		return "", cmd
	}

	// Legacy prefixed form: "<answer text> <wake-phrase> <command>".
	for _, wake := range wakePhrases {
		idx := indexOfWord(norm, wake)
		if idx < 0 {
			continue
		}
		rest := strings.TrimSpace(norm[idx+len(wake):])
		cmd, ok := matchPhrase(rest)
		if !ok {
			continue
		}
		cleaned := strings.TrimSpace(transcript[:mapBack(transcript, idx)])
		return cleaned, cmd
	}

	return strings.TrimSpace(transcript), Command{Kind: KindNone}
}

func matchPhrase(norm string) (Command, bool) {
	if kind, ok := exactPhrases[norm]; ok {
		return Command{Kind: kind}, true
	}
	if m := jumpPattern.FindStringSubmatch(norm); m != nil {
		if n, ok := parseNumber(m[1]); ok {
			return Command{Kind: KindJump, Argument: n}, true
		}
	}
	return Command{Kind: KindNone}, false
}

func parseNumber(word string) (int, bool) {
	if n, err := strconv.Atoi(word); err == nil {
		return n, true
	}
	if n, ok := smallNumbers[word]; ok {
		return n, true
	}
	return 0, false
}

// normalize lowercases, trims and strips terminal punctuation so that
// "Next." still matches the table.
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, ".,!?;:")
	return strings.Join(strings.Fields(s), " ")
}

// indexOfWord finds phrase in s on word boundaries, or -1.
func indexOfWord(s, phrase string) int {
	idx := 0
	for {
		i := strings.Index(s[idx:], phrase)
		if i < 0 {
			return -1
		}
		i += idx
		startOK := i == 0 || s[i-1] == ' '
		end := i + len(phrase)
		endOK := end == len(s) || s[end] == ' '
		if startOK && endOK {
			return i
		}
		idx = i + 1
	}
}

// mapBack maps an index in the normalized transcript back onto the
// original text so the cleaned answer keeps the user's casing.
func mapBack(original string, normIdx int) int {
	norm := normalize(original)
	if normIdx > len(norm) {
		normIdx = len(norm)
	}
	// The normalized form only differs by case, surrounding whitespace
	// and collapsed runs of spaces, so walk both strings in step.
	oi, ni := 0, 0
	for oi < len(original) && ni < normIdx {
		oc := original[oi]
		if isSpace(oc) {
			// Collapse the run in the original against at most one
			// space in the normalized form.
			for oi < len(original) && isSpace(original[oi]) {
				oi++
			}
			if ni > 0 && ni < len(norm) && norm[ni] == ' ' {
				ni++
			}
			continue
		}
		oi++
		ni++
	}
	return oi
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
