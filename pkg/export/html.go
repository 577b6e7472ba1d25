package export

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Table),
	goldmark.WithRendererOptions(gmhtml.WithXHTML()),
)

func renderHTML(doc *Document) ([]byte, error) {
	var md strings.Builder
	title := "Torrent feed"
	if doc.CategoryLabel != "" {
		title += ": " + doc.CategoryLabel
	}
	fmt.Fprintf(&md, "# %s\n\n", mdEscape(title))
	fmt.Fprintf(&md, "Generated %s, run `%s`.\n\n", doc.GeneratedAt.Format("2006-01-02 15:04:05"), doc.RunID)

	if s := doc.Summary; s != nil {
		fmt.Fprintf(&md, "**%d** downloaded, **%d** already present, **%d** failed, **%d** suspect.\n\n",
			s.Downloaded, s.AlreadyPresent, s.Failed, s.FormatMismatch)
	}

	md.WriteString("| # | Title | Size | Seeds | Peers | Published | Downloaded |\n")
	md.WriteString("|---|---|---|---|---|---|---|\n")
	for i, e := range doc.Entries {
		name := mdEscape(e.Title)
		if e.Link != "" {
			name = fmt.Sprintf("[%s](%s)", name, e.Link)
		}
		downloaded := ""
		if e.Downloaded {
			downloaded = "yes"
		}
		fmt.Fprintf(&md, "| %d | %s | %s | %s | %s | %s | %s |\n",
			i+1, name, mdEscape(e.Size), count(e.Seeds), count(e.Peers), mdEscape(e.PubDate), downloaded)
	}

	var body bytes.Buffer
	if err := markdown.Convert([]byte(md.String()), &body); err != nil {
		return nil, fmt.Errorf("failed to render html export: %w", err)
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n", html.EscapeString(title))
	out.Write(body.Bytes())
	out.WriteString("</body>\n</html>\n")
	return out.Bytes(), nil
}

var mdReplacer = strings.NewReplacer(
	"|", `\|`,
	"[", `\[`,
	"]", `\]`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"<", "&lt;",
	">", "&gt;",
	"\n", " ",
)

func mdEscape(s string) string { return mdReplacer.Replace(s) }

func count(n *int) string {
	if n == nil {
		return "-"
	}
	return fmt.Sprint(*n)
}
