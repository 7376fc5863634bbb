package dictionary

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/japaniel/langsoft/pkg/log"
)

const (
	userAgent = "langsoft-cli"
	// maxDownloadSize caps exported dictionaries; real ones are a few hundred KB.
	maxDownloadSize = 10 << 20
)

// HTTPClient is the subset of *http.Client used for downloads.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

var defaultClient HTTPClient = &http.Client{Timeout: 30 * time.Second}

// Download fetches an exported dictionary from url, plain or gzip-compressed,
// and checks that it decodes. It returns the raw JSON bytes.
func Download(ctx context.Context, client HTTPClient, url string) ([]byte, error) {
	if client == nil {
		client = defaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: %s", resp.Status)
	}

	br := bufio.NewReader(io.LimitReader(resp.Body, maxDownloadSize+1))
	var r io.Reader = br
	// Sniff the gzip magic instead of trusting Content-Type or the extension.
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gz.Close()
		r = io.LimitReader(gz, maxDownloadSize+1)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	if len(data) > maxDownloadSize {
		return nil, fmt.Errorf("dictionary larger than %d bytes", maxDownloadSize)
	}
	if _, err := Decode(data, nil); err != nil {
		return nil, fmt.Errorf("downloaded dictionary is invalid: %w", err)
	}
	return bytes.TrimSpace(data), nil
}

// FetchCollaborator downloads a collaborator's exported dictionary into the
// store folder as <name>.json and reloads the collaborators. The primary
// dictionary can never be overwritten this way.
func (s *Store) FetchCollaborator(ctx context.Context, client HTTPClient, url, name string) (string, error) {
	if s.dir == "" {
		return "", fmt.Errorf("store has no dictionary folder")
	}
	name = strings.TrimSuffix(strings.TrimSpace(name), ".json")
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(strings.TrimSuffix(url, ".gz")), ".json")
	}
	if name == "" || name == "." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid collaborator name %q", name)
	}
	if name == s.user {
		return "", fmt.Errorf("collaborator name %q is the primary user", name)
	}

	log.Info(log.CatDict, "Downloading collaborator dictionary", "url", url, "name", name)
	data, err := Download(ctx, client, url)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(s.dir, name+".json")
	if err := writeFileAtomic(dest, data); err != nil {
		return "", err
	}
	if err := s.ReloadCollaborators(); err != nil {
		return dest, err
	}
	return dest, nil
}
