package logx

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-pkgz/requester/middleware"
	"github.com/samber/lo"
	"golang.org/x/exp/slog"
)

// RoundTripperOpts contains options for client logger.
type RoundTripperOpts struct {
	Level         slog.Level
	SecretHeaders []string
}

// LoggingRoundTripper logs every client request.
func LoggingRoundTripper(lg *slog.Logger, opts RoundTripperOpts) middleware.RoundTripperHandler {
	return func(next http.RoundTripper) http.RoundTripper {
		return middleware.RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			le := logEntry{}

			le.Request.URL = req.URL.String()
			le.Request.Method = req.Method
			le.Request.Headers = headers(req.Header, opts.SecretHeaders)

			lg.LogAttrs(req.Context(), opts.Level, "request sent", slog.Any("request", le.Request))

			start := time.Now()
			resp, err := next.RoundTrip(req)
			le.Elapsed = time.Since(start)
			le.Error = err

			if err != nil {
				lg.LogAttrs(req.Context(), opts.Level, "request failed",
					slog.Any("request", le.Request),
					slog.Any("elapsed", le.Elapsed),
					slog.Any("err", le.Error),
				)
				return resp, err
			}

			le.Response.Headers = headers(resp.Header, opts.SecretHeaders)
			resp.Body, le.Response.ResponseBody = copyAndTrim(resp.Body)
			le.Response.StatusCode = resp.StatusCode

			lg.LogAttrs(req.Context(), opts.Level, "response received",
				slog.Any("response", le.Response),
				slog.Any("elapsed", le.Elapsed),
			)

			return resp, err
		})
	}
}

func headers(h http.Header, secret []string) map[string]string {
	result := map[string]string{}
	for k, vals := range h {
		if lo.Contains(secret, k) {
			result[k] = "***"
			continue
		}
		result[k] = strings.Join(vals, ",")
	}
	return result
}

type logEntry struct {
	Request struct {
		Method  string
		URL     string
		Headers map[string]string
	}
	Response struct {
		StatusCode   int
		Headers      map[string]string
		ResponseBody string
	}
	Error   error
	Elapsed time.Duration
}

const trimBodyAt = 1024

func copyAndTrim(r io.ReadCloser) (rd io.ReadCloser, result string) {
	if r == nil {
		return nil, ""
	}

	buf := make([]byte, trimBodyAt+1)
	n, _ := io.ReadFull(r, buf)

	rest := io.MultiReader(bytes.NewReader(buf[:n]), r)
	rd = readCloser{Reader: rest, Closer: r}

	result = string(buf[:n])
	if n > trimBodyAt {
		result = result[:trimBodyAt] + "..."
	}
	result = strings.ReplaceAll(result, "\n", "")
	result = strings.ReplaceAll(result, "\t", "")

	return rd, result
}

type readCloser struct {
	io.Reader
	io.Closer
}
