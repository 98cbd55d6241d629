package release

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/ZebulonRouseFrantzich/kinstall/internal/trigger"
)

const (
	// DefaultStallTimeout aborts a download when no data arrives for this long
	DefaultStallTimeout = 60 * time.Second
	// DefaultCompletionDelay lets the final status render before advancing
	DefaultCompletionDelay = 2100 * time.Millisecond
	// DefaultUserAgent is the User-Agent header sent with requests
	DefaultUserAgent = "kinstall/1.0"

	chunkSize = 32 * 1024
)

// SessionHooks receives download events. All hooks are optional and are
// invoked on the goroutine running Downloader.Start.
type SessionHooks struct {
	// Progress is called after every chunk write.
	Progress func(downloaded, total int64)
	// Status is called with the terminal status message.
	Status func(msg string)
	// Complete is the one-shot completion callback.
	Complete func()
}

// Session is a single download of one remote file to one local path.
type Session struct {
	URL  string
	Dest string
	// Force re-downloads even when Dest already exists.
	Force bool

	contentLen    atomic.Int64
	downloadedLen atomic.Int64
	hooks         SessionHooks
	done          *trigger.Trigger
}

// NewSession creates a session. The completion hook is armed into a Trigger
// and fires at most once.
func NewSession(url, dest string, hooks SessionHooks) *Session {
	s := &Session{
		URL:   url,
		Dest:  dest,
		hooks: hooks,
		done:  trigger.New(hooks.Complete),
	}
	s.contentLen.Store(-1)
	return s
}

// ContentLen returns the total size, or -1 while unknown.
func (s *Session) ContentLen() int64 {
	return s.contentLen.Load()
}

// DownloadedLen returns the number of bytes written so far.
func (s *Session) DownloadedLen() int64 {
	return s.downloadedLen.Load()
}

// Progress returns downloaded/content in [0,1], or 0 while the size is unknown.
func (s *Session) Progress() float64 {
	total := s.contentLen.Load()
	if total <= 0 {
		return 0
	}
	return float64(s.downloadedLen.Load()) / float64(total)
}

func (s *Session) report(downloaded, total int64) {
	s.downloadedLen.Store(downloaded)
	if s.hooks.Progress != nil {
		s.hooks.Progress(downloaded, total)
	}
}

func (s *Session) status(msg string) {
	if s.hooks.Status != nil {
		s.hooks.Status(msg)
	}
}

// Downloader streams HTTP downloads to disk
type Downloader struct {
	client          *http.Client
	userAgent       string
	stallTimeout    time.Duration
	completionDelay time.Duration
	logger          *slog.Logger
	sleep           func(time.Duration)
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) DownloaderOption {
	return func(d *Downloader) { d.client = c }
}

// WithStallTimeout sets the idle timeout between chunks. Zero disables it.
func WithStallTimeout(timeout time.Duration) DownloaderOption {
	return func(d *Downloader) { d.stallTimeout = timeout }
}

// WithCompletionDelay sets the pause between the final status and completion.
func WithCompletionDelay(delay time.Duration) DownloaderOption {
	return func(d *Downloader) { d.completionDelay = delay }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) DownloaderOption {
	return func(d *Downloader) { d.logger = l }
}

// NewDownloader creates a new downloader
func NewDownloader(opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// GitHub release assets redirect to a CDN
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		userAgent:       DefaultUserAgent,
		stallTimeout:    DefaultStallTimeout,
		completionDelay: DefaultCompletionDelay,
		sleep:           time.Sleep,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Start runs the session to completion on the calling goroutine. Progress is
// reported after each chunk; once the whole body is on disk the status hook
// receives "<dest> downloaded", the downloader pauses for the completion
// delay and the completion Trigger fires. Every failure is a *DownloadError.
func (d *Downloader) Start(ctx context.Context, s *Session) error {
	if s == nil {
		return fmt.Errorf("download session is nil")
	}

	if !s.Force {
		if size, ok := cachedSize(s.Dest); ok {
			d.logger.Debug("download_cached", "url", s.URL, "path", s.Dest, "size", size)
			s.contentLen.Store(size)
			s.report(size, size)
			d.complete(s)
			return nil
		}
	}

	if err := d.downloadOnce(ctx, s); err != nil {
		var derr *DownloadError
		if !errors.As(err, &derr) {
			err = &DownloadError{URL: s.URL, Err: err}
		}
		d.logger.Error("download_failed", "url", s.URL, "error", err)
		return err
	}

	d.complete(s)
	return nil
}

func (d *Downloader) complete(s *Session) {
	s.status(fmt.Sprintf("%s downloaded", s.Dest))
	if d.completionDelay > 0 {
		d.sleep(d.completionDelay)
	}
	s.done.Fire()
}

// downloadOnce performs a single download attempt
func (d *Downloader) downloadOnce(parent context.Context, s *Session) error {
	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	var watchdog *time.Timer
	if d.stallTimeout > 0 {
		watchdog = time.AfterFunc(d.stallTimeout, func() { cancel(ErrStalled) })
		defer watchdog.Stop()
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", stallCause(ctx, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &DownloadError{
			URL:        s.URL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status code: %d", resp.StatusCode),
		}
	}

	total := resp.ContentLength
	s.contentLen.Store(total)
	d.logger.Debug("download_started", "url", s.URL, "path", s.Dest, "content_length", total)

	if err := os.MkdirAll(filepath.Dir(s.Dest), 0755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}

	tmpPath := s.Dest + ".tmp"
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	cleanupNeeded := true
	defer func() {
		tmpFile.Close()
		if cleanupNeeded {
			os.Remove(tmpPath)
		}
	}()

	var downloaded int64
	buf := make([]byte, chunkSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := tmpFile.Write(buf[:n]); err != nil {
				return fmt.Errorf("write temp file: %w", err)
			}
			downloaded += int64(n)
			if watchdog != nil {
				watchdog.Reset(d.stallTimeout)
			}
			s.report(downloaded, total)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fmt.Errorf("read response body: %w", stallCause(ctx, rerr))
		}
	}

	switch {
	case total < 0:
		// Size was unknown until EOF.
		s.contentLen.Store(downloaded)
		s.report(downloaded, downloaded)
	case downloaded != total:
		return fmt.Errorf("read response body: got %d of %d bytes: %w", downloaded, total, io.ErrUnexpectedEOF)
	case total == 0:
		s.report(0, 0)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.Dest); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	cleanupNeeded = false
	d.logger.Info("download_complete", "url", s.URL, "path", s.Dest, "size", downloaded)
	return nil
}

// stallCause replaces a context cancellation caused by the watchdog with ErrStalled.
func stallCause(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); errors.Is(cause, ErrStalled) {
		return ErrStalled
	}
	return err
}

// cachedSize reports the size of an existing, non-empty regular file
func cachedSize(path string) (int64, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	if info.IsDir() || info.Size() == 0 {
		return 0, false
	}
	return info.Size(), true
}
