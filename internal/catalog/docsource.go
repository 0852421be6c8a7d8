package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"golang.org/x/net/html"

	"github.com/weftlab/weft/internal/types"
)

// maxDocBytes bounds how much of a document source is read.
const maxDocBytes = 1 << 20

// Enricher pulls the supplementary documentation a record names in its
// doc field and folds the extracted text into the description, so the
// embedding and the FTS index see it. Sources that cannot be read are
// reported as issues and leave the record unchanged.
type Enricher struct {
	httpClient *http.Client
	maxChars   int
	baseDir    string
}

// EnricherOption configures an Enricher.
type EnricherOption func(*Enricher)

// WithHTTPClient replaces the HTTP client used for URL sources.
func WithHTTPClient(c *http.Client) EnricherOption {
	return func(e *Enricher) { e.httpClient = c }
}

// WithMaxChars bounds how much extracted text augments a description.
func WithMaxChars(n int) EnricherOption {
	return func(e *Enricher) { e.maxChars = n }
}

// WithBaseDir resolves relative doc paths against dir, usually the
// directory the catalog file came from.
func WithBaseDir(dir string) EnricherOption {
	return func(e *Enricher) { e.baseDir = dir }
}

// NewEnricher creates an enricher with a 10 second HTTP timeout and a
// 2000 character extraction budget.
func NewEnricher(opts ...EnricherOption) *Enricher {
	e := &Enricher{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		maxChars:   2000,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EnrichIssue records one doc source that could not be used.
type EnrichIssue struct {
	RecordID types.ID
	Source   string
	Err      error
}

func (i EnrichIssue) String() string {
	return fmt.Sprintf("record %s doc %s: %v", i.RecordID, i.Source, i.Err)
}

// Enrich processes every record with a doc source, in place.
func (e *Enricher) Enrich(ctx context.Context, cat *Catalog) []EnrichIssue {
	var issues []EnrichIssue
	for i := range cat.Records {
		rec := &cat.Records[i]
		if rec.Doc == "" {
			continue
		}
		if err := e.enrichRecord(ctx, rec); err != nil {
			issues = append(issues, EnrichIssue{RecordID: rec.ID, Source: rec.Doc, Err: err})
		}
	}
	return issues
}

func (e *Enricher) enrichRecord(ctx context.Context, rec *Record) error {
	var (
		title string
		text  string
		pages int
		err   error
	)

	switch {
	case strings.HasPrefix(rec.Doc, "http://") || strings.HasPrefix(rec.Doc, "https://"):
		title, text, err = e.fetchURL(ctx, rec.Doc)

	default:
		path := rec.Doc
		if !filepath.IsAbs(path) && e.baseDir != "" {
			path = filepath.Join(e.baseDir, path)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".html", ".htm":
			title, text, err = extractHTMLFile(path)
		case ".pdf":
			pages, err = pdfPageCount(path)
		default:
			text, err = readTextFile(path)
		}
	}
	if err != nil {
		return err
	}

	if text != "" {
		text = truncateText(text, e.maxChars)
		if rec.Description == "" {
			rec.Description = text
		} else {
			rec.Description = rec.Description + "\n\n" + text
		}
	}

	if title != "" || pages > 0 {
		if rec.Metadata == nil {
			rec.Metadata = types.Metadata{}
		}
		if title != "" {
			rec.Metadata["doc_title"] = types.MetaString(title)
		}
		if pages > 0 {
			rec.Metadata["doc_pages"] = types.MetaNumber(float64(pages))
		}
	}

	return nil
}

// fetchURL downloads a document and extracts title and text. Anything
// that does not look like HTML is treated as plain text.
func (e *Enricher) fetchURL(ctx context.Context, url string) (title, text string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocBytes))
	if err != nil {
		return "", "", fmt.Errorf("failed to read response: %w", err)
	}

	content := string(body)
	if looksLikeHTML(resp.Header.Get("Content-Type"), content) {
		title = htmlTitle(content)
		text, err = htmlText(content)
		return title, text, err
	}
	return "", collapseWhitespace(content), nil
}

func extractHTMLFile(path string) (title, text string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read doc file: %w", err)
	}
	content := string(data)
	title = htmlTitle(content)
	text, err = htmlText(content)
	return title, text, err
}

func readTextFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read doc file: %w", err)
	}
	return collapseWhitespace(string(data)), nil
}

// htmlTitle extracts the page title.
func htmlTitle(content string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// htmlText walks the parse tree collecting visible text, skipping
// scripts, styles, code blocks, and the title itself.
func htmlText(content string) (string, error) {
	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	var parts []string
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "pre", "code", "title":
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(root)

	return strings.Join(parts, " "), nil
}

// pdfPageCount validates a PDF and reports its page count. Text
// extraction from content streams is out of reach here; the page count
// still lands in metadata as a structured fact.
func pdfPageCount(path string) (int, error) {
	pdf, err := api.ReadContextFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read PDF: %w", err)
	}
	if err := api.ValidateContext(pdf); err != nil {
		return 0, fmt.Errorf("invalid PDF: %w", err)
	}
	return pdf.PageCount, nil
}

func looksLikeHTML(contentType, body string) bool {
	if strings.Contains(contentType, "html") {
		return true
	}
	trimmed := strings.TrimLeftFunc(body, func(r rune) bool { return r == ' ' || r == '\n' || r == '\t' || r == '\r' })
	return strings.HasPrefix(trimmed, "<")
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateText cuts s to at most max bytes, backing up to a rune
// boundary and then to the last word break.
func truncateText(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if i := strings.LastIndexByte(s[:cut], ' '); i > 0 {
		cut = i
	}
	return strings.TrimSpace(s[:cut])
}
