package summary

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

const modelFileName = "model.gguf"

// Models manages the model asset on disk. Partially written assets live
// under temporary names and are removed on failure, so an interrupted
// import never leaves a file that Imported would report as present.
type Models struct {
	log *slog.Logger
	cl  *http.Client
	dir string
}

// NewModels creates new Models manager over the given directory.
func NewModels(lg *slog.Logger, cl *http.Client, dir string) (*Models, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("make models dir: %w", err)
	}
	return &Models{log: lg, cl: cl, dir: dir}, nil
}

// Path returns the location of the imported model asset.
func (m *Models) Path() string { return filepath.Join(m.dir, modelFileName) }

// Imported reports whether the model asset is present.
func (m *Models) Imported() bool {
	_, err := os.Stat(m.Path())
	return err == nil
}

// Import copies the asset from the locator (an http(s) URL or a local file
// path) into the models dir, reporting percent progress along the way.
func (m *Models) Import(ctx context.Context, locator string, progress func(pct int)) error {
	rd, size, err := m.open(ctx, locator)
	if err != nil {
		return fmt.Errorf("open asset %q: %w", locator, err)
	}
	defer func() {
		if err := rd.Close(); err != nil {
			m.log.WarnCtx(ctx, "failed to close asset reader", slog.Any("err", err))
		}
	}()

	tmp := filepath.Join(m.dir, "import-"+uuid.NewString()+".part")
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	_, err = io.Copy(f, &progressReader{ctx: ctx, rd: rd, total: size, report: progress})

	if cerr := f.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("close temp file: %w", cerr)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("copy asset: %w", err)
	}

	if err := os.Rename(tmp, m.Path()); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("move asset in place: %w", err)
	}

	if progress != nil {
		progress(100)
	}
	return nil
}

// Remove deletes the imported asset, if any.
func (m *Models) Remove() error {
	if err := os.Remove(m.Path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove asset: %w", err)
	}
	return nil
}

func (m *Models) open(ctx context.Context, locator string) (io.ReadCloser, int64, error) {
	if !strings.HasPrefix(locator, "http://") && !strings.HasPrefix(locator, "https://") {
		f, err := os.Open(locator)
		if err != nil {
			return nil, 0, fmt.Errorf("open file: %w", err)
		}
		st, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return nil, 0, fmt.Errorf("stat file: %w", err)
		}
		return f, st.Size(), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := m.cl.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("do request: %w", err)
	}

	ok := resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices
	if !ok {
		_ = resp.Body.Close()
		return nil, 0, fmt.Errorf("bad status code: %d", resp.StatusCode)
	}

	return resp.Body, resp.ContentLength, nil
}

// progressReader reports percent progress on each read and aborts the copy
// when the context is cancelled.
type progressReader struct {
	ctx    context.Context
	rd     io.Reader
	total  int64
	read   int64
	last   int
	report func(pct int)
}

func (r *progressReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}

	n, err := r.rd.Read(p)
	r.read += int64(n)

	if r.report != nil && r.total > 0 {
		pct := int(r.read * 100 / r.total)
		if pct > 99 {
			pct = 99 // 100 is reported only after the asset is in place
		}
		if pct > r.last {
			r.last = pct
			r.report(pct)
		}
	}

	return n, err
}
