// Package source turns files and web pages into plain text documents and
// splits them into sentences for scanning.
package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
)

// maxBodySize limits fetched pages to keep untrusted URLs from exhausting memory.
const maxBodySize = 10 << 20

// Document is extracted text plus where it came from.
type Document struct {
	SourceType string
	Title      string
	Author     string
	SiteName   string
	URL        string
	Path       string
	Text       string
}

// HTTPClient is the subset of http.Client used for fetching.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

var defaultClient HTTPClient = &http.Client{Timeout: 30 * time.Second}

// FetchURL downloads a web page and extracts its article text with readability.
// A nil client uses a default client with a 30s timeout.
func FetchURL(ctx context.Context, client HTTPClient, rawURL string) (*Document, error) {
	if client == nil {
		client = defaultClient
	}
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	// Some sites block requests that do not look like a browser.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,ja;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch url: status code %d", resp.StatusCode)
	}
	if resp.ContentLength > maxBodySize {
		return nil, fmt.Errorf("content-length %d exceeds limit of %d bytes", resp.ContentLength, maxBodySize)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxBodySize {
		return nil, fmt.Errorf("response body exceeded maximum size limit of %d bytes", maxBodySize)
	}

	doc, err := extractHTML(body, pageURL)
	if err != nil {
		return nil, err
	}
	doc.SourceType = "url"
	doc.URL = rawURL
	return doc, nil
}

// ReadFile loads a local document. HTML files go through readability; any
// other file is read as plain text.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".xhtml":
		doc, err := extractHTML(data, &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)})
		if err != nil {
			return nil, err
		}
		doc.SourceType = "file"
		doc.Path = abs
		return doc, nil
	}
	return &Document{
		SourceType: "file",
		Title:      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Path:       abs,
		Text:       string(data),
	}, nil
}

func extractHTML(body []byte, pageURL *url.URL) (*Document, error) {
	body = SanitizeRuby(body)
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return nil, fmt.Errorf("extract article: %w", err)
	}
	return &Document{
		Title:    article.Title,
		Author:   article.Byline,
		SiteName: article.SiteName,
		Text:     article.TextContent,
	}, nil
}

// SplitSentences splits text on Japanese sentence delimiters, newlines, and
// on '.', '!' or '?' followed by whitespace or the end of the text. Sentences
// are trimmed; blank ones are dropped.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		switch r {
		case '。', '！', '？', '\n':
			flush()
		case '.', '!', '?':
			if i+1 == len(runes) || isSpace(runes[i+1]) {
				flush()
			}
		}
	}
	flush()
	return sentences
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

var (
	// (?s) allows dot to match newlines
	// (?i) makes it case-insensitive
	reRT = regexp.MustCompile(`(?si)<rt\b[^>]*>.*?</rt>`)
	reRP = regexp.MustCompile(`(?si)<rp\b[^>]*>.*?</rp>`)
)

// SanitizeRuby removes ruby text (<rt>...</rt>) and ruby parentheses (<rp>...</rp>)
// from HTML content. Readability keeps furigana as text, which would turn
// "漢字" into "漢字かんじ". Working on bytes is safe for Shift_JIS too, since
// the tag characters are ASCII and '<' is never a Shift_JIS trailing byte.
func SanitizeRuby(content []byte) []byte {
	cleaned := reRT.ReplaceAll(content, nil)
	return reRP.ReplaceAll(cleaned, nil)
}
