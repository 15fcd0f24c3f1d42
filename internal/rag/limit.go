package rag

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// limitNumber matches "1500" as well as "1,500".
const limitNumber = `(\d{1,3}(?:,\d{3})+|\d+)`

var limitPatterns = []*regexp.Regexp{
	regexp.MustCompile(limitNumber + `\s*(?:文字|字)\s*(?:以内|以下|まで)`),
	regexp.MustCompile(`(?i)within\s+` + limitNumber + `\s*char(?:acter)?s?`),
	regexp.MustCompile(`(?i)` + limitNumber + `\s*char(?:acter)?s?\s+or\s+(?:less|fewer)`),
	regexp.MustCompile(`(?i)(?:at\s+most|no\s+more\s+than|up\s+to|under|max(?:imum)?(?:\s+of)?)\s+` + limitNumber + `\s*char(?:acter)?s?`),
}

// CharLimit returns the character limit requested in utterance, if any.
// Full-width digits and thousands separators are accepted. When several
// limits are given the smallest wins.
func CharLimit(utterance string) (int, bool) {
	s := norm.NFKC.String(utterance)
	limit, found := 0, false
	for _, re := range limitPatterns {
		for _, m := range re.FindAllStringSubmatch(s, -1) {
			n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
			if err != nil || n <= 0 {
				continue
			}
			if !found || n < limit {
				limit, found = n, true
			}
		}
	}
	return limit, found
}

var bulletPrefix = regexp.MustCompile(`^\s*(?:[-*+•・●▪]|\d+[.)．）]|[（(]\d+[)）])\s*`)

// sentenceEnds are runes after which a sentence is complete.
const sentenceEnds = "。．.!?！？"

// ApplyCharLimit reshapes answer for a limit of n runes: bullets are
// removed, lines are joined into one, only the first sentence is kept and
// the result is cut to at most n runes.
func ApplyCharLimit(answer string, n int) string {
	if n <= 0 {
		return ""
	}
	s := singleLine(answer)
	s = firstSentence(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)[:n]
	// Prefer cutting at a sentence end in the second half of the budget.
	for i := len(runes) - 1; i >= n/2; i-- {
		if strings.ContainsRune(sentenceEnds, runes[i]) {
			return string(runes[:i+1])
		}
	}
	return strings.TrimRightFunc(string(runes), unicode.IsSpace)
}

// singleLine strips bullet markers and joins lines. A space is inserted
// only between lines whose boundary characters are not CJK.
func singleLine(s string) string {
	var sb strings.Builder
	var prev rune
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(bulletPrefix.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		first, _ := utf8.DecodeRuneInString(line)
		if prev != 0 && !isWide(prev) && !isWide(first) {
			sb.WriteByte(' ')
		}
		sb.WriteString(line)
		prev, _ = utf8.DecodeLastRuneInString(line)
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

func isWide(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana) ||
		strings.ContainsRune("。、．，！？「」（）ー", r)
}

// firstSentence returns s up to and including its first sentence end. A
// period followed by a non-space (3.5, e.g.) does not end a sentence.
func firstSentence(s string) string {
	runes := []rune(s)
	for i, r := range runes {
		if !strings.ContainsRune(sentenceEnds, r) {
			continue
		}
		if r == '.' && i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if i+1 < len(runes) {
			return string(runes[:i+1])
		}
	}
	return s
}
