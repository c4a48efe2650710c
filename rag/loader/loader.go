package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/smallnest/hybridrag/log"
	"github.com/smallnest/hybridrag/rag"
)

const (
	defaultAttempts = 3
	defaultTimeout  = 30 * time.Second
)

// Loader resolves a local path or an http(s) URL into plain text. The format
// is picked from the file extension, or from the Content-Type of a URL
// without one.
type Loader struct {
	client       *http.Client
	attempts     int
	timeout      time.Duration
	firstBackoff time.Duration
	maxBytes     int64
	logger       log.Logger
}

var _ rag.DocumentLoader = (*Loader)(nil)

// Option configures the Loader
type Option func(*Loader)

// WithHTTPClient sets the client used for URLs
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) {
		l.client = c
	}
}

// WithAttempts sets how many times a URL is fetched before giving up
func WithAttempts(n int) Option {
	return func(l *Loader) {
		l.attempts = n
	}
}

// WithTimeout bounds each URL fetch attempt
func WithTimeout(d time.Duration) Option {
	return func(l *Loader) {
		l.timeout = d
	}
}

// WithBackoff sets the pause before the first retry. Later pauses grow
// exponentially with jitter.
func WithBackoff(d time.Duration) Option {
	return func(l *Loader) {
		l.firstBackoff = d
	}
}

// WithMaxBytes rejects sources larger than n bytes. Zero means no limit.
func WithMaxBytes(n int64) Option {
	return func(l *Loader) {
		l.maxBytes = n
	}
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// New creates a Loader
func New(opts ...Option) *Loader {
	l := &Loader{
		client:       http.DefaultClient,
		attempts:     defaultAttempts,
		timeout:      defaultTimeout,
		firstBackoff: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = log.OrDefault(l.logger)
	if l.attempts < 1 {
		l.attempts = 1
	}
	return l
}

// Load returns the text content of source.
func (l *Loader) Load(ctx context.Context, source string) (string, error) {
	if source == "" {
		return "", fmt.Errorf("load: %w: empty source", rag.ErrInvalidArgument)
	}

	if u, err := url.Parse(source); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		format, err := formatOf(path.Ext(u.Path))
		if err != nil {
			return "", fmt.Errorf("load %s: %w", source, err)
		}
		body, contentType, err := l.fetch(ctx, source)
		if err != nil {
			return "", err
		}
		if format == formatUnknown {
			format = formatOfContentType(contentType)
		}
		return convert(format, body)
	}

	format, err := formatOf(filepath.Ext(source))
	if err != nil {
		return "", fmt.Errorf("load %s: %w", source, err)
	}
	body, err := l.readFile(source)
	if err != nil {
		return "", err
	}
	return convert(format, body)
}

func (l *Loader) readFile(name string) ([]byte, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", name, err)
	}
	defer f.Close()

	body, err := l.readAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", name, err)
	}
	return body, nil
}

func (l *Loader) readAll(r io.Reader) ([]byte, error) {
	if l.maxBytes <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, l.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > l.maxBytes {
		return nil, fmt.Errorf("%w: larger than %d bytes", rag.ErrUnsupportedInput, l.maxBytes)
	}
	return body, nil
}

// errPermanent marks a fetch failure that retrying cannot fix.
var errPermanent = errors.New("permanent")

func (l *Loader) fetch(ctx context.Context, source string) ([]byte, string, error) {
	var body []byte
	var contentType string
	op := func() error {
		var err error
		body, contentType, err = l.fetchOnce(ctx, source)
		switch {
		case err == nil:
			return nil
		case ctx.Err() != nil:
			return backoff.Permanent(ctx.Err())
		case errors.Is(err, errPermanent), errors.Is(err, rag.ErrUnsupportedInput):
			return backoff.Permanent(err)
		}
		return err
	}

	retry := 0
	notify := func(err error, wait time.Duration) {
		retry++
		l.logger.Warn("fetch %s failed (attempt %d/%d), retrying in %s: %v", source, retry, l.attempts, wait, err)
	}

	err := backoff.RetryNotify(op, backoff.WithContext(l.retryPolicy(), ctx), notify)
	if err == nil {
		return body, contentType, nil
	}
	if ctx.Err() != nil {
		return nil, "", ctx.Err()
	}
	return nil, "", fmt.Errorf("fetch %s: %w", source, err)
}

// retryPolicy allows attempts-1 retries with exponential pauses.
func (l *Loader) retryPolicy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.firstBackoff
	b.MaxElapsedTime = 0
	return backoff.WithMaxRetries(b, uint64(l.attempts-1))
}

func (l *Loader) fetchOnce(ctx context.Context, source string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", errPermanent, err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, "", fmt.Errorf("%w: %v", rag.ErrTimeout, err)
		}
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		err := fmt.Errorf("status code %d", resp.StatusCode)
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			err = fmt.Errorf("%w: %v", errPermanent, err)
		}
		return nil, "", err
	}

	body, err := l.readAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return body, resp.Header.Get("Content-Type"), nil
}

type format int

const (
	formatUnknown format = iota
	formatText
	formatHTML
	formatMarkdown
)

func formatOf(ext string) (format, error) {
	switch strings.ToLower(ext) {
	case "":
		return formatUnknown, nil
	case ".txt", ".text", ".json", ".csv", ".log":
		return formatText, nil
	case ".html", ".htm":
		return formatHTML, nil
	case ".md", ".markdown":
		return formatMarkdown, nil
	default:
		return formatUnknown, fmt.Errorf("%w: %s files", rag.ErrUnsupportedInput, ext)
	}
}

func formatOfContentType(contentType string) format {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return formatText
	}
	switch mediaType {
	case "text/html", "application/xhtml+xml":
		return formatHTML
	case "text/markdown", "text/x-markdown":
		return formatMarkdown
	default:
		return formatText
	}
}

func convert(f format, body []byte) (string, error) {
	switch f {
	case formatHTML:
		return htmlToText(body)
	case formatMarkdown:
		return markdownToText(body), nil
	default:
		return string(body), nil
	}
}
