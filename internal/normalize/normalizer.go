// Package normalize turns raw scraped documents into clean passages and
// structured tables with provenance, the only shapes the extractor accepts.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// RawDocument is the content source contract: the normalizer does not care
// whether the body came from a crawler, a feed or a manual upload.
type RawDocument struct {
	URL       string
	Body      string
	FetchedAt time.Time
}

type Passage struct {
	URL     string
	Index   int
	Section string
	Text    string
}

// Table is a structured block lifted straight from markup. Columns is empty
// for key-value tables (two-column tables and definition lists).
type Table struct {
	Subject string
	Columns []string
	Rows    [][]string
}

type Document struct {
	URL         string
	Title       string
	FetchedAt   time.Time
	ContentHash string
	Passages    []Passage
	Tables      []Table
}

// Normalize cleans a raw document. HTML is detected by markup presence;
// anything else is treated as plain text split on blank lines.
func Normalize(raw RawDocument) *Document {
	doc := &Document{URL: raw.URL, FetchedAt: raw.FetchedAt}

	if looksLikeHTML(raw.Body) {
		normalizeHTML(doc, raw.Body)
	} else {
		normalizeText(doc, raw.Body)
	}

	doc.ContentHash = contentHash(doc)
	return doc
}

func looksLikeHTML(body string) bool {
	trimmed := strings.TrimSpace(body)
	return strings.HasPrefix(trimmed, "<") && strings.Contains(trimmed, ">")
}

func normalizeText(doc *Document, body string) {
	for _, block := range strings.Split(body, "\n\n") {
		text := collapseSpace(block)
		if text == "" {
			continue
		}
		doc.Passages = append(doc.Passages, Passage{
			URL:   doc.URL,
			Index: len(doc.Passages),
			Text:  text,
		})
	}
}

func normalizeHTML(doc *Document, body string) {
	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		// The tokenizer is forgiving; a hard parse failure means the body
		// is not usable as markup at all.
		normalizeText(doc, body)
		return
	}

	w := &walker{doc: doc}
	w.walk(root)
	w.flush()
	if doc.Title == "" && len(doc.Passages) > 0 {
		doc.Title = doc.Passages[0].Section
	}
	for i := range doc.Tables {
		if doc.Tables[i].Subject == "" {
			doc.Tables[i].Subject = doc.Title
		}
	}
}

type walker struct {
	doc     *Document
	section string
	buf     strings.Builder
}

func (w *walker) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript", "nav", "footer":
			return
		case "title", "h1":
			text := collapseSpace(textContent(n))
			if text != "" && w.doc.Title == "" {
				w.doc.Title = text
			}
			if n.Data == "h1" {
				w.flush()
				w.section = text
			}
			return
		case "h2", "h3", "h4":
			w.flush()
			w.section = collapseSpace(textContent(n))
			return
		case "table":
			w.flush()
			if t, ok := parseTable(n); ok {
				t.Subject = w.section
				w.doc.Tables = append(w.doc.Tables, t)
			}
			return
		case "dl":
			w.flush()
			if t, ok := parseDefinitionList(n); ok {
				t.Subject = w.section
				w.doc.Tables = append(w.doc.Tables, t)
			}
			return
		case "p", "li", "td", "dd", "blockquote":
			text := collapseSpace(textContent(n))
			if text != "" {
				if w.buf.Len() > 0 {
					w.buf.WriteString(" ")
				}
				w.buf.WriteString(text)
			}
			return
		case "br", "div", "section", "article":
			// fall through into children, flushing on block boundaries
			if n.Data != "br" {
				w.flush()
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

func (w *walker) flush() {
	text := collapseSpace(w.buf.String())
	w.buf.Reset()
	if text == "" {
		return
	}
	w.doc.Passages = append(w.doc.Passages, Passage{
		URL:     w.doc.URL,
		Index:   len(w.doc.Passages),
		Section: w.section,
		Text:    text,
	})
}

func parseTable(n *html.Node) (Table, bool) {
	var t Table
	var headerCells []string

	forEachElement(n, "tr", func(tr *html.Node) {
		var cells []string
		isHeader := false
		forEachCell(tr, func(cell *html.Node, tag string) {
			if tag == "th" {
				isHeader = true
			}
			cells = append(cells, collapseSpace(textContent(cell)))
		})
		if len(cells) == 0 {
			return
		}
		if isHeader && headerCells == nil && len(t.Rows) == 0 {
			headerCells = cells
			return
		}
		t.Rows = append(t.Rows, cells)
	})

	if len(t.Rows) == 0 {
		return t, false
	}
	// A two-column table without a header is a key-value block; anything
	// with a header keeps its column list for header-driven extraction.
	if headerCells != nil {
		t.Columns = headerCells
	}
	return t, true
}

func parseDefinitionList(n *html.Node) (Table, bool) {
	var t Table
	var key string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.Data {
		case "dt":
			key = collapseSpace(textContent(c))
		case "dd":
			if key != "" {
				t.Rows = append(t.Rows, []string{key, collapseSpace(textContent(c))})
				key = ""
			}
		}
	}
	return t, len(t.Rows) > 0
}

func forEachElement(n *html.Node, tag string, fn func(*html.Node)) {
	if n.Type == html.ElementNode && n.Data == tag {
		fn(n)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		forEachElement(c, tag, fn)
	}
}

func forEachCell(tr *html.Node, fn func(*html.Node, string)) {
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
			fn(c, c.Data)
		} else if c.Type == html.ElementNode {
			forEachCell(c, fn)
		}
	}
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return sb.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// contentHash fingerprints the normalized content so unchanged documents
// short-circuit re-ingestion.
func contentHash(doc *Document) string {
	h := sha256.New()
	for _, p := range doc.Passages {
		h.Write([]byte(p.Text))
		h.Write([]byte{0})
	}
	for _, t := range doc.Tables {
		h.Write([]byte(strings.Join(t.Columns, "|")))
		for _, row := range t.Rows {
			h.Write([]byte(strings.Join(row, "|")))
			h.Write([]byte{0})
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
