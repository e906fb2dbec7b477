package generator

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	headingRe = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
	// Lines models put in front of the article despite being told not to.
	// A line counts only when it opens like a preamble and also ends like
	// one, so headlines such as "다음은 AI 시대의 대학 교육" survive.
	preambleRe    = regexp.MustCompile(`(?i)^(네[,.!]?\s*)?(알겠습니다|다음은|아래는|수정한 결과|수정된 기사|수정하겠습니다|생성하겠습니다|작성하겠습니다|요청하신|here is|here's|sure|certainly)`)
	preambleEndRe = regexp.MustCompile(`(니다[.!]?|[:：])$`)
	ackRe         = regexp.MustCompile(`(?i)^(네|예|sure|certainly|ok|okay)[.!,]?$`)
)

const maxPreambleRunes = 80

// PostProcess trims the model output and drops leading preamble lines.
func PostProcess(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	for {
		line, rest, found := strings.Cut(text, "\n")
		if !found || !isPreamble(line) {
			break
		}
		text = strings.TrimSpace(rest)
	}
	if text == "" {
		return "", ErrEmptyBackendResponse
	}
	return text, nil
}

func isPreamble(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" || utf8.RuneCountInString(line) > maxPreambleRunes {
		return false
	}
	if ackRe.MatchString(line) {
		return true
	}
	return preambleRe.MatchString(line) && preambleEndRe.MatchString(line)
}

// ExtractTitle returns the first markdown heading, or the first non-empty
// line with markdown emphasis stripped.
func ExtractTitle(article string) string {
	if m := headingRe.FindStringSubmatch(article); len(m) >= 2 {
		return strings.TrimSpace(m[1])
	}
	for _, line := range strings.Split(article, "\n") {
		line = strings.Trim(strings.TrimSpace(line), "#*_ ")
		if line != "" {
			return line
		}
	}
	return ""
}
