package transform

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// The HTML and Markdown conversions below map a handful of common tags
// (headings, emphasis, links, images, paragraphs, list items, code) and drop
// everything else. They are lossy and meant for simple article bodies only.

var (
	blankRunPattern  = regexp.MustCompile(`\n{3,}`)
	mdHeadingPattern = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	mdListPattern    = regexp.MustCompile(`^[-*+]\s+(.*)$`)
	mdImagePattern   = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)\)`)
	mdLinkPattern    = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)
	mdBoldPattern    = regexp.MustCompile(`\*\*(.+?)\*\*`)
	mdItalicPattern  = regexp.MustCompile(`\*([^*]+)\*`)
	mdCodePattern    = regexp.MustCompile("`([^`]+)`")
)

func htmlToMarkdown(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))

	var (
		b     strings.Builder
		hrefs []string
	)

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			out := blankRunPattern.ReplaceAllString(b.String(), "\n\n")
			return strings.TrimSpace(out)

		case html.TextToken:
			b.Write(z.Text())

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			attrs := map[string]string{}
			for hasAttr {
				var k, v []byte
				k, v, hasAttr = z.TagAttr()
				attrs[string(k)] = string(v)
			}

			switch tag := string(name); tag {
			case "h1", "h2", "h3", "h4", "h5", "h6":
				b.WriteString("\n\n" + strings.Repeat("#", int(tag[1]-'0')) + " ")
			case "strong", "b":
				b.WriteString("**")
			case "em", "i":
				b.WriteString("*")
			case "code":
				b.WriteString("`")
			case "a":
				hrefs = append(hrefs, attrs["href"])
				b.WriteString("[")
			case "img":
				fmt.Fprintf(&b, "![%s](%s)", attrs["alt"], attrs["src"])
			case "br":
				b.WriteString("\n")
			case "p", "div", "ul", "ol":
				b.WriteString("\n\n")
			case "li":
				b.WriteString("\n- ")
			case "blockquote":
				b.WriteString("\n\n> ")
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "h1", "h2", "h3", "h4", "h5", "h6", "p", "div", "blockquote":
				b.WriteString("\n\n")
			case "ul", "ol":
				b.WriteString("\n")
			case "strong", "b":
				b.WriteString("**")
			case "em", "i":
				b.WriteString("*")
			case "code":
				b.WriteString("`")
			case "a":
				href := ""
				if n := len(hrefs); n > 0 {
					href = hrefs[n-1]
					hrefs = hrefs[:n-1]
				}
				b.WriteString("](" + href + ")")
			}
		}
	}
}

func markdownToHTML(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")

	var (
		out       []string
		paragraph []string
		listItems []string
	)

	flushParagraph := func() {
		if len(paragraph) > 0 {
			out = append(out, "<p>"+inlineMarkdown(strings.Join(paragraph, " "))+"</p>")
			paragraph = nil
		}
	}
	flushList := func() {
		if len(listItems) > 0 {
			out = append(out, "<ul>"+strings.Join(listItems, "")+"</ul>")
			listItems = nil
		}
	}

	for _, raw := range lines {
		line := strings.TrimSpace(raw)

		switch {
		case line == "":
			flushParagraph()
			flushList()
		case mdHeadingPattern.MatchString(line):
			flushParagraph()
			flushList()
			m := mdHeadingPattern.FindStringSubmatch(line)
			level := len(m[1])
			out = append(out, fmt.Sprintf("<h%d>%s</h%d>", level, inlineMarkdown(m[2]), level))
		case mdListPattern.MatchString(line) && !strings.HasPrefix(line, "**"):
			flushParagraph()
			m := mdListPattern.FindStringSubmatch(line)
			listItems = append(listItems, "<li>"+inlineMarkdown(m[1])+"</li>")
		default:
			flushList()
			paragraph = append(paragraph, line)
		}
	}
	flushParagraph()
	flushList()

	return strings.Join(out, "\n")
}

func inlineMarkdown(s string) string {
	s = mdImagePattern.ReplaceAllString(s, `<img src="$2" alt="$1">`)
	s = mdLinkPattern.ReplaceAllString(s, `<a href="$2">$1</a>`)
	s = mdBoldPattern.ReplaceAllString(s, `<strong>$1</strong>`)
	s = mdItalicPattern.ReplaceAllString(s, `<em>$1</em>`)
	s = mdCodePattern.ReplaceAllString(s, `<code>$1</code>`)
	return s
}
