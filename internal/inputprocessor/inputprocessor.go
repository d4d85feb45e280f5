package inputprocessor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrUnsupportedInput is returned for inputs that are neither a readable file nor an http(s) URL.
var ErrUnsupportedInput = errors.New("unsupported input")

// Result describes a table input resolved to a local file.
type Result struct {
	FilePath  string     // absolute local path of the table
	FileSize  int64
	URL       *string    // set when the table was downloaded
	Mtime     *time.Time // file modification time for local inputs
	Temporary bool       // FilePath is a download owned by the caller
	Metadata  map[string]interface{}
}

// Cleanup removes a downloaded temp file. It is a no-op for local inputs.
func (r Result) Cleanup() {
	if !r.Temporary || r.FilePath == "" {
		return
	}
	if err := os.Remove(r.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warnf("Failed to remove temp input %s: %v", r.FilePath, err)
	}
}

// Processor resolves an input string to a local table file.
type Processor interface {
	Process(ctx context.Context, input string) (Result, error)
}

// New creates the default processor using client for downloads (http.DefaultClient when nil).
func New(client *http.Client) Processor {
	if client == nil {
		client = http.DefaultClient
	}
	return &defaultProcessor{client: client}
}

type defaultProcessor struct {
	client *http.Client
}

// Process implements the Processor interface
func (p *defaultProcessor) Process(ctx context.Context, input string) (Result, error) {
	res := Result{Metadata: map[string]interface{}{}}

	// --- Detect File ---
	fi, err := os.Stat(input)
	if err == nil {
		if fi.IsDir() {
			return res, fmt.Errorf("%w: '%s' is a directory, not a table file", ErrUnsupportedInput, input)
		}
		absPath, pathErr := filepath.Abs(input)
		if pathErr != nil {
			log.Warnf("Failed to get absolute path for '%s': %v. Using original path.", input, pathErr)
			absPath = input
		}
		mtime := fi.ModTime()
		res.FilePath = absPath
		res.FileSize = fi.Size()
		res.Mtime = &mtime
		res.Metadata["input_type"] = "file"
		res.Metadata["mtime"] = mtime.Format(time.RFC3339)
		log.Debugf("Input '%s' detected as a file.", input)
		return res, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return res, fmt.Errorf("failed to stat input '%s': %w", input, err)
	}

	// --- Detect URL ---
	parsedURL, urlErr := url.Parse(input)
	if urlErr == nil && (parsedURL.Scheme == "http" || parsedURL.Scheme == "https") {
		log.Infof("Input '%s' detected as a URL, downloading.", input)
		return p.download(ctx, parsedURL)
	}

	return res, fmt.Errorf("%w: '%s' is not an existing file or an http(s) URL", ErrUnsupportedInput, input)
}

func (p *defaultProcessor) download(ctx context.Context, u *url.URL) (Result, error) {
	res := Result{Metadata: map[string]interface{}{}}
	input := u.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, input, nil)
	if err != nil {
		return res, fmt.Errorf("failed to create request for URL '%s': %w", input, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return res, fmt.Errorf("failed to fetch URL '%s': %w", input, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return res, fmt.Errorf("failed to fetch URL '%s': status code %d %s - Body Hint: %s", input, resp.StatusCode, http.StatusText(resp.StatusCode), string(bodyBytes))
	}

	// The extension selects the table codec, so keep it on the temp file.
	tmp, err := os.CreateTemp("", "shipclass-*"+path.Ext(u.Path))
	if err != nil {
		return res, fmt.Errorf("failed to create temp file for URL '%s': %w", input, err)
	}
	n, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(tmp.Name())
		return res, fmt.Errorf("failed to download URL '%s': %w", input, errors.Join(copyErr, closeErr))
	}

	res.FilePath = tmp.Name()
	res.FileSize = n
	res.URL = &input
	res.Temporary = true
	res.Metadata["input_type"] = "url"
	res.Metadata["content_type"] = resp.Header.Get("Content-Type")
	return res, nil
}

// Ensure defaultProcessor satisfies the Processor interface.
var _ Processor = (*defaultProcessor)(nil)
