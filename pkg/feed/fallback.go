package feed

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"yggharvest/pkg/models"
)

var (
	bareURLRe = regexp.MustCompile(`(?i)https?://[^\s"'<>]+\.torrent(?:\?[^\s"'<>]*)?`)
	tagRe     = regexp.MustCompile(`(?s)<[^>]*>`)
	cdataRe   = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)
)

// parseFallback recovers entries from markup the strict decoder rejected.
// Anchors to .torrent files win; otherwise item blocks that carry a
// download link are salvaged; bare .torrent URLs are the last resort.
func (p *Parser) parseFallback(content []byte) []*models.Entry {
	text := string(content)
	if entries := p.scanAnchors(text); len(entries) > 0 {
		return entries
	}
	if entries := p.scanItemBlocks(text); len(entries) > 0 {
		return entries
	}
	return p.scanBareURLs(text)
}

// scanAnchors collects <a> elements whose href path ends in .torrent. The
// anchor's text becomes the title.
func (p *Parser) scanAnchors(text string) []*models.Entry {
	var (
		out    []*models.Entry
		open   bool
		href   string
		anchor strings.Builder
	)
	emit := func() {
		if open {
			out = append(out, p.fallbackEntry(collapseSpace(anchor.String()), href))
		}
		open = false
	}

	z := html.NewTokenizer(strings.NewReader(text))
	for {
		switch z.Next() {
		case html.ErrorToken:
			emit()
			return out
		case html.StartTagToken:
			if name, hasAttr := z.TagName(); string(name) == "a" {
				emit()
				if hasAttr {
					href = strings.TrimSpace(tagAttr(z, "href"))
					open = isTorrentHref(href)
					anchor.Reset()
				}
			}
		case html.TextToken:
			if open {
				anchor.Write(z.Text())
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "a" {
				emit()
			}
		}
	}
}

// scanItemBlocks salvages <item> elements from a feed too broken for the
// XML decoder. torrent:link wins over an enclosure URL.
func (p *Parser) scanItemBlocks(text string) []*models.Entry {
	var (
		out    []*models.Entry
		inItem bool
		field  string

		title, torLink, encURL strings.Builder
	)

	z := html.NewTokenizer(strings.NewReader(text))
	z.AllowCDATA(true)
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return out
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch tag := string(name); tag {
			case "item":
				inItem, field = true, ""
				title.Reset()
				torLink.Reset()
				encURL.Reset()
			case "title", "torrent:link":
				if inItem && tt == html.StartTagToken {
					field = tag
				}
			case "enclosure":
				if inItem && hasAttr && encURL.Len() == 0 {
					encURL.WriteString(strings.TrimSpace(tagAttr(z, "url")))
				}
			}
		case html.TextToken:
			switch field {
			case "title":
				title.Write(z.Text())
			case "torrent:link":
				torLink.Write(z.Text())
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "item":
				if !inItem {
					continue
				}
				link := collapseSpace(torLink.String())
				if link == "" {
					link = encURL.String()
				}
				if link != "" {
					out = append(out, p.fallbackEntry(cleanText(title.String()), link))
				}
				inItem, field = false, ""
			case "title", "torrent:link":
				field = ""
			}
		}
	}
}

func (p *Parser) scanBareURLs(text string) []*models.Entry {
	var out []*models.Entry
	for _, m := range bareURLRe.FindAllString(text, -1) {
		out = append(out, p.fallbackEntry("", html.UnescapeString(m)))
	}
	return out
}

func (p *Parser) fallbackEntry(title, href string) *models.Entry {
	e := &models.Entry{
		Title:       title,
		ArtifactURL: p.resolve(href),
		ParsedAt:    p.now(),
		Fallback:    true,
	}
	if e.Title == "" {
		e.Title = fallbackTitle(e)
	}
	return e
}

// tagAttr returns the named attribute of the current tag. Values come back
// entity-decoded.
func tagAttr(z *html.Tokenizer, name string) string {
	for {
		key, val, more := z.TagAttr()
		if string(key) == name {
			return string(val)
		}
		if !more {
			return ""
		}
	}
}

func isTorrentHref(href string) bool {
	if href == "" {
		return false
	}
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".torrent")
}

// cleanText strips CDATA wrappers and tags, unescapes entities and
// collapses whitespace.
func cleanText(s string) string {
	s = cdataRe.ReplaceAllString(s, "$1")
	s = tagRe.ReplaceAllString(s, " ")
	return collapseSpace(html.UnescapeString(s))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
