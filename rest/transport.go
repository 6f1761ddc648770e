package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dailyyoga/objsync/crud"
	"github.com/dailyyoga/objsync/logger"
	"go.uber.org/zap"
)

// Transport performs crud requests over HTTP
type Transport struct {
	logger    logger.Logger
	baseURL   string
	client    *http.Client
	userAgent string
	maxBytes  int64
	token     TokenSource
}

// New creates a Transport. A nil client gets one bounded by cfg.Timeout.
func New(log logger.Logger, cfg *Config, client *http.Client) (*Transport, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Transport{
		logger:    log,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		client:    client,
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxResponseBytes,
		token:     cfg.Token,
	}, nil
}

// Do sends req. Non-2xx answers are returned as *crud.StatusError with the
// raw body, 2xx answers are decoded as JSON.
func (t *Transport) Do(ctx context.Context, req *crud.Request) (*crud.Response, error) {
	hreq, err := t.newRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := t.client.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, t.maxBytes+1))
	if err != nil {
		return nil, err
	}
	truncated := int64(len(data)) > t.maxBytes
	if truncated {
		data = data[:t.maxBytes]
	}

	t.logger.Debug("request completed",
		zap.String("method", req.Method),
		zap.String("url", req.URL),
		zap.Int("status", res.StatusCode),
		zap.Bool("truncated", truncated),
		zap.Duration("elapsed", time.Since(start)),
	)

	// the status survives an oversized error body; only the body is cut
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &crud.StatusError{Status: res.StatusCode, Body: data}
	}
	if truncated {
		return nil, ErrResponseTooLarge(t.maxBytes)
	}

	resp := &crud.Response{Status: res.StatusCode, Total: parseTotal(res.Header.Get("Content-Range"))}
	if len(bytes.TrimSpace(data)) == 0 {
		return resp, nil
	}
	if err := json.Unmarshal(data, &resp.Body); err != nil {
		return nil, crud.ErrMalformedResponse(req.URL, err.Error())
	}
	return resp, nil
}

func (t *Transport) newRequest(ctx context.Context, req *crud.Request) (*http.Request, error) {
	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, ErrEncode(err)
		}
		body = bytes.NewReader(b)
	}

	hreq, err := http.NewRequestWithContext(ctx, req.Method, t.resolve(req.URL), body)
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("Accept", "application/json")
	hreq.Header.Set("User-Agent", t.userAgent)
	if body != nil {
		hreq.Header.Set("Content-Type", "application/json")
	}
	if req.Range != nil {
		hreq.Header.Set("Range", req.Range.String())
	}
	if t.token != nil {
		tok, err := t.token(ctx)
		if err != nil {
			return nil, ErrToken(err)
		}
		if tok != "" {
			hreq.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	return hreq, nil
}

// resolve places relative URLs below the base URL
func (t *Transport) resolve(u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return t.baseURL + u
}

// parseTotal reads the list size from "items 0-24/100"; -1 when absent or "*"
func parseTotal(contentRange string) int {
	_, total, ok := strings.Cut(contentRange, "/")
	if !ok {
		return -1
	}
	n, err := strconv.Atoi(strings.TrimSpace(total))
	if err != nil || n < 0 {
		return -1
	}
	return n
}
