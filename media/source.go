package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// DefaultMaxSourceBytes caps how much any source will read.
const DefaultMaxSourceBytes int64 = 20 << 20

// ImageSource yields the raw encoded bytes of the image the caller picked.
// the bytes are read-only to the pipeline.
type ImageSource interface {
	// Name identifies the source in logs and progress events
	Name() string
	Bytes(ctx context.Context) ([]byte, error)
}

// BytesSource is an in-memory image such as a multipart upload.
type BytesSource struct {
	Label    string
	Data     []byte
	MaxBytes int64
}

func (s BytesSource) Name() string {
	if s.Label == "" {
		return "upload"
	}
	return s.Label
}

func (s BytesSource) Bytes(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit := limitOrDefault(s.MaxBytes); int64(len(s.Data)) > limit {
		return nil, fmt.Errorf("%w: %d bytes > %d", ErrTooLarge, len(s.Data), limit)
	}
	return s.Data, nil
}

// FileSource reads a local file lazily, only when Bytes is called.
type FileSource struct {
	Path     string
	MaxBytes int64
}

func (s FileSource) Name() string { return filepath.Base(s.Path) }

func (s FileSource) Bytes(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open '%s': %v", ErrSourceUnavailable, s.Path, err)
	}
	defer f.Close()
	return readLimited(f, limitOrDefault(s.MaxBytes))
}

// ErrBlockedAddress marks a URL source that resolved to a loopback, private,
// link-local or otherwise non-public address.
var ErrBlockedAddress = errors.New("address is not publicly routable")

// checkPublicAddress is a net.Dialer Control hook. it runs after DNS
// resolution, so it also covers redirects and names pointing at internal hosts.
func checkPublicAddress(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	ip = ip.Unmap()
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast() {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, ip)
	}
	return nil
}

// NewPublicHTTPClient returns a client that refuses to connect to anything but
// public addresses. URLSource uses it when no Client is set.
func NewPublicHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   checkPublicAddress,
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 nil,
			DialContext:           dialer.DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          16,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: time.Second,
		},
	}
}

var defaultURLClient = NewPublicHTTPClient(0)

// URLSource downloads the image with a plain GET. a nil Client means the
// public-only client; tests inject their own to reach local servers.
type URLSource struct {
	URL      string
	Client   *http.Client
	MaxBytes int64
	Timeout  time.Duration
}

func (s URLSource) Name() string { return s.URL }

// ValidateImageURL accepts absolute http(s) URLs only.
func ValidateImageURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid image url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("image url must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("image url has no host")
	}
	return nil
}

func (s URLSource) Bytes(ctx context.Context) ([]byte, error) {
	if err := ValidateImageURL(s.URL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSpace(s.URL), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	req.Header.Set("Accept", "image/*")

	client := s.Client
	if client == nil {
		client = defaultURLClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d from %s", ErrSourceUnavailable, resp.StatusCode, s.URL)
	}
	return readLimited(resp.Body, limitOrDefault(s.MaxBytes))
}

func limitOrDefault(limit int64) int64 {
	if limit <= 0 {
		return DefaultMaxSourceBytes
	}
	return limit
}

// readLimited reads at most limit bytes and fails if more are available.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	return data, nil
}
