package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/ianaindex"
	errs "yggharvest/pkg/errors"
	"yggharvest/pkg/logger"
	"yggharvest/pkg/models"
)

// TorrentNamespace is the ezrss extension namespace used for seeds, peers,
// size and the direct download link.
const TorrentNamespace = "http://xmlns.ezrss.it/0.1/"

// ParseResult is the outcome of parsing one feed body.
type ParseResult struct {
	Entries      []*models.Entry
	FallbackUsed bool
	// Warning is set when the lenient path was used. It wraps the strict
	// decoder error and is informational only.
	Warning error
}

// Parser turns raw feed bytes into entries. Relative links are resolved
// against origin.
type Parser struct {
	origin *url.URL
	logger logger.Logger
	now    func() time.Time
}

func NewParser(origin *url.URL, log logger.Logger) *Parser {
	if log == nil {
		log = logger.GetLogger()
	}
	o := *origin
	return &Parser{origin: &o, logger: log.WithField("component", "parser"), now: time.Now}
}

// Parse decodes content strictly and falls back to link scraping only when
// the markup itself is broken. It never fails; an empty result means
// neither path found anything.
func (p *Parser) Parse(content []byte) ParseResult {
	entries, err := p.parseStrict(content)
	if err == nil {
		p.logger.DebugWithFields("Feed parsed", map[string]interface{}{"entries": len(entries)})
		return ParseResult{Entries: entries}
	}

	recovered := p.parseFallback(content)
	p.logger.WithError(err).WarnWithFields("Feed markup is malformed, recovered entries by scanning links", map[string]interface{}{
		"entries": len(recovered),
	})
	return ParseResult{
		Entries:      recovered,
		FallbackUsed: true,
		Warning:      errs.Wrap(errs.ErrorTypeParseFallbackUsed, "strict parse failed", err),
	}
}

type rawElement struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Text    string     `xml:",chardata"`
}

type rawItem struct {
	Children []rawElement `xml:",any"`
}

func (p *Parser) parseStrict(content []byte) ([]*models.Entry, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))
	dec.Strict = true
	dec.CharsetReader = charsetReader

	entries := make([]*models.Entry, 0)
	parsedAt := p.now()
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, err
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "item" {
			continue
		}
		var item rawItem
		if err := dec.DecodeElement(&item, &start); err != nil {
			return nil, err
		}
		entries = append(entries, p.entryFromItem(item, parsedAt))
	}
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
	return enc.NewDecoder().Reader(input), nil
}

func isTorrentNamespace(space string) bool {
	return space == TorrentNamespace ||
		strings.EqualFold(space, "torrent") ||
		strings.Contains(space, "ezrss")
}

func (p *Parser) entryFromItem(item rawItem, parsedAt time.Time) *models.Entry {
	e := &models.Entry{ParsedAt: parsedAt}
	var extLink, extSize, extLength, encURL, encLength string

	setOnce := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}

	for _, c := range item.Children {
		text := strings.TrimSpace(c.Text)
		switch {
		case c.XMLName.Space == "":
			switch c.XMLName.Local {
			case "title":
				setOnce(&e.Title, text)
			case "link":
				setOnce(&e.Link, text)
			case "guid":
				setOnce(&e.GUID, text)
			case "description":
				setOnce(&e.Description, text)
			case "pubDate":
				setOnce(&e.PubDate, text)
			case "category":
				setOnce(&e.Category, text)
			case "enclosure":
				setOnce(&encURL, attr(c.Attrs, "url"))
				setOnce(&encLength, attr(c.Attrs, "length"))
			}
		case isTorrentNamespace(c.XMLName.Space):
			switch c.XMLName.Local {
			case "link":
				setOnce(&extLink, text)
			case "infoHash":
				setOnce(&e.InfoHash, text)
			case "magnetURI":
				setOnce(&e.MagnetURI, text)
			case "size":
				setOnce(&extSize, text)
			case "contentLength":
				setOnce(&extLength, text)
			case "seeds":
				if e.Seeds == nil {
					e.Seeds = parseCount(text)
				}
			case "peers":
				if e.Peers == nil {
					e.Peers = parseCount(text)
				}
			}
		}
	}

	switch {
	case extLink != "":
		e.ArtifactURL = p.resolve(extLink)
	case encURL != "":
		e.ArtifactURL = p.resolve(encURL)
	}
	if e.Link != "" {
		e.Link = p.resolve(e.Link)
	}

	switch {
	case extSize != "":
		e.Size = extSize
	case extLength != "":
		e.Size = extLength
	case encLength != "" && encLength != "0":
		e.Size = encLength
	}

	if e.Title == "" {
		e.Title = fallbackTitle(e)
	}
	return e
}

func attr(attrs []xml.Attr, name string) string {
	for _, a := range attrs {
		if a.Name.Local == name {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

// parseCount returns nil for absent or non-numeric counts.
func parseCount(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

func (p *Parser) resolve(ref string) string {
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return p.origin.ResolveReference(r).String()
}

func fallbackTitle(e *models.Entry) string {
	for _, candidate := range []string{e.ArtifactURL, e.Link} {
		if candidate == "" {
			continue
		}
		if name := nameFromURL(candidate); name != "" {
			return name
		}
		return candidate
	}
	return "Unknown"
}

// nameFromURL returns the last path segment without its extension.
func nameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "/" || base == "." {
		return ""
	}
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	return strings.TrimSuffix(base, path.Ext(base))
}
