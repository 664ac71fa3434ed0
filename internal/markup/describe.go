// Package markup renders LMS rich-text bodies as plain text suitable for a
// task description.
package markup

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	// MaxBodyRunes bounds the rendered body before links and footer.
	MaxBodyRunes = 1500

	maxLinks = 10
)

// Link is a hyperlink found in the markup.
type Link struct {
	Text string
	URL  string
}

// Footer points back at the remote item.
type Footer struct {
	URL        string
	CourseName string
}

// Describe converts markup into a task description: block elements and
// line breaks become newlines, list items get bullets, hyperlinks are
// collected into a trailing list, all other markup is dropped and
// whitespace collapsed. The body is truncated to MaxBodyRunes and the
// footer appended.
func Describe(markup string, footer Footer) string {
	body, links := Text(markup)
	body = truncate(body, MaxBodyRunes)

	var b strings.Builder
	b.WriteString(body)

	if len(links) > 0 {
		section(&b)
		b.WriteString("Links:")
		for _, l := range links {
			b.WriteString("\n- ")
			if l.Text == "" || l.Text == l.URL {
				b.WriteString(l.URL)
			} else {
				b.WriteString(l.Text + ": " + l.URL)
			}
		}
	}

	if footer.URL != "" || footer.CourseName != "" {
		section(&b)
		b.WriteString("---")
		if footer.URL != "" {
			b.WriteString("\nView in LMS: " + footer.URL)
		}
		if footer.CourseName != "" {
			b.WriteString("\nCourse: " + footer.CourseName)
		}
	}

	return b.String()
}

func section(b *strings.Builder) {
	if b.Len() > 0 {
		b.WriteString("\n\n")
	}
}

// Text returns the plain-text rendering of markup and the hyperlinks it
// contains, deduplicated by URL in document order.
func Text(markup string) (string, []Link) {
	if strings.TrimSpace(markup) == "" {
		return "", nil
	}

	var (
		out      strings.Builder
		links    []Link
		seen     = map[string]bool{}
		href     string
		linkText strings.Builder
		inLink   bool
		skip     int
	)

	z := html.NewTokenizer(strings.NewReader(markup))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// io.EOF or malformed input; keep what was read.
			break
		}

		tok := z.Token()
		switch tt {
		case html.TextToken:
			if skip > 0 {
				continue
			}
			out.WriteString(tok.Data)
			if inLink {
				linkText.WriteString(tok.Data)
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			switch tok.DataAtom {
			case atom.Script, atom.Style, atom.Head, atom.Title:
				if tt == html.StartTagToken {
					skip++
				}
			case atom.Br:
				out.WriteString("\n")
			case atom.P, atom.Div, atom.Ul, atom.Ol, atom.Tr, atom.Table, atom.Blockquote, atom.Pre,
				atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
				out.WriteString("\n")
			case atom.Li:
				out.WriteString("\n• ")
			case atom.Td, atom.Th:
				out.WriteString(" ")
			case atom.A:
				href = attr(tok, "href")
				inLink = tt == html.StartTagToken
				linkText.Reset()
			}

		case html.EndTagToken:
			switch tok.DataAtom {
			case atom.Script, atom.Style, atom.Head, atom.Title:
				if skip > 0 {
					skip--
				}
			case atom.P, atom.Div, atom.Ul, atom.Ol, atom.Tr, atom.Table, atom.Blockquote, atom.Pre,
				atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
				out.WriteString("\n")
			case atom.A:
				if inLink && linkable(href) && !seen[href] && len(links) < maxLinks {
					seen[href] = true
					links = append(links, Link{Text: collapseSpaces(linkText.String()), URL: href})
				}
				inLink = false
				href = ""
			}
		}
	}

	return collapse(out.String()), links
}

func attr(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func linkable(href string) bool {
	lower := strings.ToLower(href)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "mailto:")
}

// collapse squeezes runs of horizontal whitespace, trims each line and
// keeps at most one blank line between paragraphs.
func collapse(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := true
	for _, line := range lines {
		line = collapseSpaces(line)
		if line == "" || line == "•" {
			if !blank {
				out = append(out, "")
				blank = true
			}
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func collapseSpaces(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// truncate cuts s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimRightFunc(string(runes[:n-1]), unicode.IsSpace) + "…"
}
