package caption

import (
	"strings"
)

// DatePrefix marks the date line inserted above the hashtag block.
const DatePrefix = "📅 "

// SplitHashtags separates a caption into its body and trailing hashtag
// block. Lines are walked from the end; a non-blank line belongs to the
// block only if every whitespace-separated token starts with "#". Blank
// lines between block lines stay in the block.
func SplitHashtags(caption string) (body, tags string) {
	lines := strings.Split(caption, "\n")

	start := len(lines)
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if !allHashtags(line) {
			break
		}
		start = i
	}

	if start == len(lines) {
		return strings.TrimRight(caption, "\n "), ""
	}
	body = strings.TrimRight(strings.Join(lines[:start], "\n"), "\n ")
	tags = strings.TrimSpace(strings.Join(lines[start:], "\n"))
	return body, tags
}

func allHashtags(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	for _, f := range fields {
		if !strings.HasPrefix(f, "#") {
			return false
		}
	}
	return true
}

// InsertDateLine places the date marker line between the caption body and
// its hashtag block (or at the end when there is no block).
func InsertDateLine(caption, date string) string {
	date = strings.TrimSpace(date)
	if date == "" {
		return caption
	}
	body, tags := SplitHashtags(caption)
	dateLine := DatePrefix + date

	parts := make([]string, 0, 3)
	if body != "" {
		parts = append(parts, body)
	}
	parts = append(parts, dateLine)
	if tags != "" {
		parts = append(parts, tags)
	}
	return strings.Join(parts, "\n\n")
}

// clean strips markdown code fences and wrapping quotes some models add.
func clean(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			text = text[nl+1:]
		} else {
			text = strings.TrimPrefix(text, "```")
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	for _, q := range []string{`"`, "'", "“"} {
		closing := q
		if q == "“" {
			closing = "”"
		}
		if len(text) >= 2 && strings.HasPrefix(text, q) && strings.HasSuffix(text, closing) {
			text = strings.TrimSpace(text[len(q) : len(text)-len(closing)])
			break
		}
	}
	return text
}
