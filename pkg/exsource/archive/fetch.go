package archive

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ukaji3/exsource-go/pkg/exsource"
)

var errReadTimeout = errors.New("read timed out")

// fetch copies the archive into the file at dst and returns its size.
// Every failure is a CodeTransport error except local filesystem faults.
func (s *Source) fetch(ctx context.Context, dst string) (int64, error) {
	switch s.url.Scheme {
	case "http", "https":
		return s.fetchHTTP(ctx, dst)
	case "file":
		return s.fetchFile(dst)
	default:
		return 0, s.fail(exsource.CodeTransport, nil, "unsupported url scheme %q", s.url.Scheme)
	}
}

func (s *Source) httpClient() *http.Client {
	if s.client != nil {
		return s.client
	}
	connect := s.cfg.EffectiveConnectTimeout()
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: connect}).DialContext,
			TLSHandshakeTimeout:   connect,
			ResponseHeaderTimeout: s.cfg.EffectiveReadTimeout(),
		},
	}
}

func (s *Source) fetchHTTP(ctx context.Context, dst string) (int64, error) {
	readTimeout := s.cfg.EffectiveReadTimeout()
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	timer := time.AfterFunc(readTimeout, func() { cancel(errReadTimeout) })
	defer timer.Stop()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL(), http.NoBody)
	if err != nil {
		return 0, s.fail(exsource.CodeTransport, err, "cannot build request")
	}
	resp, err := s.httpClient().Do(req)
	if err != nil {
		return 0, s.fail(exsource.CodeTransport, causeOf(ctx, err), "cannot download archive")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, s.fail(exsource.CodeTransport, nil, "cannot download archive: unexpected status %s", resp.Status)
	}

	body := &idleReader{r: resp.Body, timer: timer, timeout: readTimeout}
	n, err := spool(dst, body)
	if err != nil {
		var pe *os.PathError
		if errors.As(err, &pe) {
			return n, s.fail(exsource.CodeInternal, err, "cannot write downloaded archive")
		}
		return n, s.fail(exsource.CodeTransport, causeOf(ctx, err), "cannot download archive")
	}
	return n, nil
}

func (s *Source) fetchFile(dst string) (int64, error) {
	f, err := os.Open(s.url.Path)
	if err != nil {
		return 0, s.fail(exsource.CodeTransport, err, "cannot read archive")
	}
	defer func() { _ = f.Close() }()

	n, err := spool(dst, f)
	if err != nil {
		return n, s.fail(exsource.CodeInternal, err, "cannot copy archive")
	}
	return n, nil
}

// spool copies r into a new file at dst.
func spool(dst string, r io.Reader) (n int64, err error) {
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return io.Copy(out, r)
}

// causeOf prefers the cancellation cause of ctx, so an idle timeout reads as
// such instead of as a bare "context canceled".
func causeOf(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); cause != nil && errors.Is(cause, errReadTimeout) {
		return errors.Wrap(cause, err.Error())
	}
	return err
}

// idleReader pushes the timer deadline forward after every successful read.
type idleReader struct {
	r       io.Reader
	timer   *time.Timer
	timeout time.Duration
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.timer.Reset(r.timeout)
	}
	return n, err
}
