// Package render turns message bodies into terminal text and files.
package render

import (
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/nhle/tempmail/internal/model"
)

// Body returns the displayable body of d: its HTML parts converted to text,
// or the plain-text body when the message has no HTML.
func Body(d *model.MessageDetail) string {
	if d == nil {
		return ""
	}
	if markup := strings.Join(d.HTML, ""); strings.TrimSpace(markup) != "" {
		if text := HTMLToText(markup); text != "" {
			return text
		}
	}
	return strings.TrimSpace(d.Text)
}

// lineTags break the line; blockTags also leave a blank line.
var lineTags = map[string]bool{
	"br": true, "tr": true, "li": true,
}

var blockTags = map[string]bool{
	"p": true, "div": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"table": true, "ul": true, "ol": true, "blockquote": true, "hr": true,
	"section": true, "article": true, "header": true, "footer": true,
}

// skipTags are dropped with their content.
var skipTags = map[string]bool{
	"script": true, "style": true, "head": true, "title": true, "noscript": true,
}

// HTMLToText renders markup as plain text: block elements become line
// breaks, links keep their target, and whitespace is collapsed.
func HTMLToText(markup string) string {
	z := html.NewTokenizer(strings.NewReader(markup))

	var (
		b     strings.Builder
		skip  int
		hrefs []string
	)
	breakLine := func(blank bool) {
		s := b.String()
		if s == "" || strings.HasSuffix(s, "\n\n") {
			return
		}
		if !strings.HasSuffix(s, "\n") {
			b.WriteString("\n")
			s += "\n"
		}
		if blank && !strings.HasSuffix(s, "\n\n") {
			b.WriteString("\n")
		}
	}

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				return strings.TrimSpace(b.String())
			}
			return tidy(b.String())

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			if skipTags[tag] && tt == html.StartTagToken {
				skip++
				continue
			}
			switch {
			case blockTags[tag]:
				breakLine(true)
			case lineTags[tag]:
				breakLine(false)
			}
			if tag == "li" {
				b.WriteString("• ")
			}
			if tag == "a" && tt == html.StartTagToken {
				href := ""
				for hasAttr {
					var k, v []byte
					k, v, hasAttr = z.TagAttr()
					if string(k) == "href" {
						href = string(v)
					}
				}
				hrefs = append(hrefs, href)
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skipTags[tag] {
				if skip > 0 {
					skip--
				}
				continue
			}
			if tag == "a" && len(hrefs) > 0 {
				href := hrefs[len(hrefs)-1]
				hrefs = hrefs[:len(hrefs)-1]
				if href != "" && !strings.HasPrefix(href, "#") && !strings.HasPrefix(href, "mailto:") {
					b.WriteString(" (" + href + ")")
				}
			}
			if blockTags[tag] {
				breakLine(true)
			}

		case html.TextToken:
			if skip > 0 {
				continue
			}
			text := collapse(string(z.Text()))
			if text == "" {
				continue
			}
			s := b.String()
			if strings.HasSuffix(s, "\n") || s == "" {
				text = strings.TrimLeft(text, " ")
			}
			b.WriteString(text)
		}
	}
}

// collapse squeezes runs of whitespace to a single space.
func collapse(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r', '\f', '\u00a0':
			if !space {
				b.WriteByte(' ')
				space = true
			}
		default:
			b.WriteRune(r)
			space = false
		}
	}
	return b.String()
}

// tidy trims trailing spaces on each line and the text as a whole.
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
