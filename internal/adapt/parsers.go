package adapt

import (
	"regexp"
	"strings"
)

var (
	codeBlockRe   = regexp.MustCompile("(?s)```(?:javascript|js|typescript|ts|sql)?\\s*\\n(.*?)```")
	docCommentRe  = regexp.MustCompile(`(?s)/\*\*.*?\*/`)
	excessBlankRe = regexp.MustCompile(`\n{3,}`)
	fenceRe       = regexp.MustCompile("(?s)```.*?```")
)

// extractCodeBlock pulls the first fenced code block out of a model reply
// and strips documentation comments. Returns "" when the reply contains
// no code block.
func extractCodeBlock(response string) string {
	m := codeBlockRe.FindStringSubmatch(response)
	if m == nil {
		return ""
	}
	code := strings.TrimSpace(m[1])
	code = docCommentRe.ReplaceAllString(code, "")
	code = excessBlankRe.ReplaceAllString(code, "\n\n")
	return strings.TrimSpace(code)
}

// ExtractExplanation returns the prose after the last code block in a
// model reply; the CLI puts it in the generated notes file.
func ExtractExplanation(response string) string {
	parts := fenceRe.Split(response, -1)
	if len(parts) > 1 {
		return strings.TrimSpace(parts[len(parts)-1])
	}
	return strings.TrimSpace(response)
}
