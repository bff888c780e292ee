// Package capture records the browser's network traffic and decodes the
// portal's search request and response out of it.
package capture

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/railbook/internal/apperr"
	"github.com/shehryarbajwa/railbook/internal/logging"
)

// Transaction is one request/response pair seen on the page.
type Transaction struct {
	RequestID       string            `json:"requestId"`
	URL             string            `json:"url"`
	Method          string            `json:"method"`
	RequestHeaders  map[string]string `json:"requestHeaders,omitempty"`
	RequestBody     string            `json:"requestBody,omitempty"`
	Status          int               `json:"status,omitempty"`
	ResponseHeaders map[string]string `json:"responseHeaders,omitempty"`
	ResponseBody    string            `json:"responseBody,omitempty"`
	Complete        bool              `json:"complete"`
	Err             string            `json:"error,omitempty"`
	StartedAt       time.Time         `json:"startedAt"`
}

// Matches reports whether the transaction URL contains pattern.
func (t Transaction) Matches(pattern string) bool {
	return pattern != "" && strings.Contains(t.URL, pattern)
}

// bodyFetcher reads request and response bodies out of the browser.
type bodyFetcher interface {
	RequestBody(id proto.NetworkRequestID) (string, error)
	ResponseBody(id proto.NetworkRequestID) (string, error)
}

type pageFetcher struct {
	page *rod.Page
}

func (f pageFetcher) RequestBody(id proto.NetworkRequestID) (string, error) {
	res, err := proto.NetworkGetRequestPostData{RequestID: id}.Call(f.page)
	if err != nil {
		return "", err
	}
	return res.PostData, nil
}

func (f pageFetcher) ResponseBody(id proto.NetworkRequestID) (string, error) {
	res, err := proto.NetworkGetResponseBody{RequestID: id}.Call(f.page)
	if err != nil {
		return "", err
	}
	if res.Base64Encoded {
		return decodeBase64(res.Body)
	}
	return res.Body, nil
}

// Recorder keeps an ordered log of the page's network transactions. Bodies
// are only fetched for URLs containing the target pattern.
type Recorder struct {
	pattern string
	logger  *zap.Logger

	mu         sync.Mutex
	fetch      bodyFetcher
	order      []proto.NetworkRequestID
	byID       map[proto.NetworkRequestID]*Transaction
	generation uint64

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewRecorder creates a detached recorder for the given URL pattern.
func NewRecorder(pattern string, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		pattern: pattern,
		logger:  logging.Component(logger, "capture"),
		byID:    make(map[proto.NetworkRequestID]*Transaction),
	}
}

// Attach enables the Network domain on page and starts recording its events
// until Close is called or ctx ends.
func (r *Recorder) Attach(ctx context.Context, page *rod.Page) error {
	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		return apperr.Wrap(apperr.SessionUnavailable, "capture.attach", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.fetch = pageFetcher{page: page}
	r.cancel = cancel
	r.mu.Unlock()

	wait := page.Context(ctx).EachEvent(
		func(ev *proto.NetworkRequestWillBeSent) { r.onRequest(ev) },
		func(ev *proto.NetworkResponseReceived) { r.onResponse(ev) },
		func(ev *proto.NetworkLoadingFinished) { r.onFinished(ev) },
		func(ev *proto.NetworkLoadingFailed) { r.onFailed(ev) },
	)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		wait()
	}()
	return nil
}

// Close stops recording and waits for in-flight body fetches.
func (r *Recorder) Close() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

// Reset forgets every transaction. Fetches still in flight for the previous
// page lifetime are discarded when they land.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = nil
	r.byID = make(map[proto.NetworkRequestID]*Transaction)
	r.generation++
}

// Transactions returns a snapshot of the log in arrival order.
func (r *Recorder) Transactions() []Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Transaction, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.byID[id])
	}
	return out
}

// Await polls until a complete transaction matching pattern is logged and
// returns the snapshot at that moment. CORS preflights never satisfy it.
func (r *Recorder) Await(ctx context.Context, pattern string, timeout time.Duration) ([]Transaction, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()

	for {
		txs := r.Transactions()
		for _, tx := range txs {
			if tx.Complete && tx.Matches(pattern) && tx.Method != http.MethodOptions {
				return txs, nil
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return txs, apperr.New(apperr.CaptureMiss, "capture.await",
				"no completed request matching %q within %s", pattern, timeout).
				With("pattern", pattern).
				With("transactions", len(txs))
		case <-tick.C:
		}
	}
}

func (r *Recorder) onRequest(ev *proto.NetworkRequestWillBeSent) {
	if ev.Request == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, ok := r.byID[ev.RequestID]
	if !ok {
		tx = &Transaction{RequestID: string(ev.RequestID), StartedAt: time.Now()}
		r.byID[ev.RequestID] = tx
		r.order = append(r.order, ev.RequestID)
	}
	// redirects reuse the request id, the latest hop wins
	tx.URL = ev.Request.URL
	tx.Method = ev.Request.Method
	tx.RequestHeaders = flattenHeaders(ev.Request.Headers)
	tx.RequestBody = ev.Request.PostData
	tx.Complete = false
}

func (r *Recorder) onResponse(ev *proto.NetworkResponseReceived) {
	if ev.Response == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if tx, ok := r.byID[ev.RequestID]; ok {
		tx.Status = ev.Response.Status
		tx.ResponseHeaders = flattenHeaders(ev.Response.Headers)
	}
}

func (r *Recorder) onFinished(ev *proto.NetworkLoadingFinished) {
	r.mu.Lock()
	tx, ok := r.byID[ev.RequestID]
	if !ok {
		r.mu.Unlock()
		return
	}
	if !tx.Matches(r.pattern) || tx.Method == http.MethodOptions || r.fetch == nil {
		tx.Complete = true
		r.mu.Unlock()
		return
	}
	needRequest := tx.RequestBody == "" && tx.Method != "GET"
	gen := r.generation
	fetch := r.fetch
	r.mu.Unlock()

	// CDP calls from inside the event callback would stall the event loop
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.fetchBodies(ev.RequestID, gen, fetch, needRequest)
	}()
}

func (r *Recorder) fetchBodies(id proto.NetworkRequestID, gen uint64, fetch bodyFetcher, needRequest bool) {
	var reqBody, errMsg string
	if needRequest {
		body, err := fetch.RequestBody(id)
		if err != nil {
			r.logger.Debug("request body unavailable", zap.String("request_id", string(id)), zap.Error(err))
		}
		reqBody = body
	}
	respBody, err := fetch.ResponseBody(id)
	if err != nil {
		errMsg = err.Error()
		r.logger.Warn("response body unavailable", zap.String("request_id", string(id)), zap.Error(err))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.generation {
		return
	}
	tx, ok := r.byID[id]
	if !ok {
		return
	}
	if reqBody != "" {
		tx.RequestBody = reqBody
	}
	tx.ResponseBody = respBody
	tx.Err = errMsg
	tx.Complete = true
	r.logger.Debug("captured transaction",
		zap.String("url", tx.URL),
		zap.Int("status", tx.Status),
		zap.Int("response_bytes", len(respBody)))
}

func (r *Recorder) onFailed(ev *proto.NetworkLoadingFailed) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tx, ok := r.byID[ev.RequestID]; ok {
		tx.Err = ev.ErrorText
		tx.Complete = true
	}
}

func flattenHeaders(h proto.NetworkHeaders) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v.String()
	}
	return out
}
