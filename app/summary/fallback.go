package summary

import (
	"errors"
	"regexp"
	"strings"

	"github.com/Simooonnnnn/Novascope-sub001/app/store"
	readability "github.com/go-shiori/go-readability"
)

// ErrNoContent is returned when the article has nothing to summarize.
var ErrNoContent = errors.New("article has no content")

var spaceRe = regexp.MustCompile(`\s+`)

// Fallback produces a fast extractive summary of the article, clipped to
// about maxWords words at a sentence boundary. It never touches the model.
func (s *Service) Fallback(a store.Article, maxWords int) (string, error) {
	text := a.Content
	if strings.Contains(text, "<") {
		if doc, err := readability.FromReader(strings.NewReader(text), nil); err == nil && doc.TextContent != "" {
			text = doc.TextContent
		} else {
			text = stripTags(text)
		}
	}

	text = sanitize(text)
	if text == "" {
		text = sanitize(a.Title)
	}
	if text == "" {
		return "", ErrNoContent
	}

	return clipSentences(text, maxWords), nil
}

func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\t", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	// nbsp
	s = strings.ReplaceAll(s, " ", " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

func stripTags(s string) string { return tagRe.ReplaceAllString(s, " ") }

// clipSentences keeps whole sentences until the word budget is spent;
// the first sentence is kept even if it alone exceeds the budget.
func clipSentences(text string, maxWords int) string {
	sentences := splitSentences(text)

	out := &strings.Builder{}
	words := 0
	for i, sentence := range sentences {
		n := len(strings.Fields(sentence))
		if i > 0 && words+n > maxWords {
			break
		}
		if i > 0 {
			out.WriteString(" ")
		}
		out.WriteString(sentence)
		words += n
	}

	return out.String()
}

func splitSentences(text string) []string {
	var result []string

	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		terminal := c == '.' || c == '!' || c == '?'
		if !terminal || i+1 < len(text) && text[i+1] != ' ' {
			continue
		}

		if s := strings.TrimSpace(text[start : i+1]); s != "" {
			result = append(result, s)
		}
		start = i + 1
	}

	if s := strings.TrimSpace(text[start:]); s != "" {
		result = append(result, s)
	}

	return result
}
