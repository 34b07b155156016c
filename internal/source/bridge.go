package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/agentworkforce/relaysync/internal/relaysync"
)

// Some platforms are only reachable from inside a browser session. The
// bridge adapter talks to that host context over a websocket: every call is
// a typed request envelope correlated back to its response by request id,
// with a per-request timeout.

const bridgeEnvelopeSchema = `{
	"type": "object",
	"required": ["requestId"],
	"properties": {
		"requestId": {"type": "string", "minLength": 1},
		"ok": {"type": "boolean"},
		"code": {"type": "string"},
		"error": {"type": "string"},
		"result": {}
	}
}`

var envelopeSchema = mustCompileEnvelopeSchema()

func mustCompileEnvelopeSchema() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(bridgeEnvelopeSchema))
	if err != nil {
		panic(err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("bridge_envelope.json", doc); err != nil {
		panic(err)
	}
	schema, err := compiler.Compile("bridge_envelope.json")
	if err != nil {
		panic(err)
	}
	return schema
}

type bridgeRequest struct {
	RequestID string         `json:"requestId"`
	Method    string         `json:"method"`
	Params    map[string]any `json:"params,omitempty"`
}

type bridgeEnvelope struct {
	RequestID string          `json:"requestId"`
	OK        bool            `json:"ok"`
	Code      string          `json:"code,omitempty"`
	Error     string          `json:"error,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
}

type BridgeOptions struct {
	Platform       string
	URL            string
	URLPattern     string
	RequestTimeout time.Duration
	DialContext    context.Context
	Logger         zerolog.Logger
}

type BridgeAdapter struct {
	platform       string
	conn           *websocket.Conn
	urlPattern     *regexp.Regexp
	requestTimeout time.Duration
	logger         zerolog.Logger

	mu      sync.Mutex
	pending map[string]chan bridgeEnvelope

	closed    chan struct{}
	closeOnce sync.Once
}

func NewBridgeAdapter(opts BridgeOptions) (*BridgeAdapter, error) {
	platform := strings.TrimSpace(opts.Platform)
	if platform == "" {
		return nil, relaysync.ErrInvalidInput
	}
	bridgeURL := strings.TrimSpace(opts.URL)
	if bridgeURL == "" {
		return nil, fmt.Errorf("bridge url is required for platform %s", platform)
	}
	requestTimeout := opts.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 20 * time.Second
	}
	var urlPattern *regexp.Regexp
	if pattern := strings.TrimSpace(opts.URLPattern); pattern != "" {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid url pattern for platform %s: %w", platform, err)
		}
		urlPattern = compiled
	}
	dialCtx := opts.DialContext
	if dialCtx == nil {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
	}
	conn, _, err := websocket.Dial(dialCtx, bridgeURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: bridge dial failed: %s", relaysync.ErrAdapterUnavailable, err)
	}
	a := &BridgeAdapter{
		platform:       platform,
		conn:           conn,
		urlPattern:     urlPattern,
		requestTimeout: requestTimeout,
		logger:         opts.Logger,
		pending:        map[string]chan bridgeEnvelope{},
		closed:         make(chan struct{}),
	}
	go a.readLoop()
	return a, nil
}

func (a *BridgeAdapter) Platform() string {
	return a.platform
}

func (a *BridgeAdapter) ListThreads(ctx context.Context, page, limit int) (relaysync.ThreadPage, error) {
	if page < 0 {
		page = 0
	}
	if limit <= 0 {
		limit = 20
	}
	result, err := a.call(ctx, "listThreads", map[string]any{"page": page, "limit": limit})
	if err != nil {
		return relaysync.ThreadPage{}, err
	}
	var payload map[string]any
	if err := json.Unmarshal(result, &payload); err != nil {
		return relaysync.ThreadPage{}, &relaysync.DataError{Message: fmt.Sprintf("unparseable thread list: %v", err)}
	}
	return parseThreadPage(payload), nil
}

func (a *BridgeAdapter) GetThreadDetail(ctx context.Context, id string) (map[string]any, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, relaysync.ErrInvalidInput
	}
	result, err := a.call(ctx, "getThreadDetail", map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	var payload map[string]any
	if err := json.Unmarshal(result, &payload); err != nil {
		return nil, &relaysync.DataError{ThreadID: id, Message: fmt.Sprintf("unparseable detail payload: %v", err)}
	}
	return payload, nil
}

func (a *BridgeAdapter) ExtractID(url string) string {
	if a.urlPattern == nil {
		return ""
	}
	match := a.urlPattern.FindStringSubmatch(strings.TrimSpace(url))
	if len(match) < 2 {
		return ""
	}
	return match[1]
}

func (a *BridgeAdapter) Close() error {
	a.closeOnce.Do(func() {
		close(a.closed)
	})
	return a.conn.Close(websocket.StatusNormalClosure, "adapter closed")
}

func (a *BridgeAdapter) call(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
	requestID := uuid.NewString()
	waiter := make(chan bridgeEnvelope, 1)
	a.mu.Lock()
	a.pending[requestID] = waiter
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		delete(a.pending, requestID)
		a.mu.Unlock()
	}()

	writeCtx, cancel := context.WithTimeout(ctx, a.requestTimeout)
	defer cancel()
	if err := wsjson.Write(writeCtx, a.conn, bridgeRequest{
		RequestID: requestID,
		Method:    method,
		Params:    params,
	}); err != nil {
		return nil, &relaysync.NetworkError{Message: "bridge write failed", Cause: err}
	}

	timer := time.NewTimer(a.requestTimeout)
	defer timer.Stop()
	select {
	case envelope := <-waiter:
		return a.envelopeResult(envelope)
	case <-timer.C:
		return nil, &relaysync.NetworkError{Message: fmt.Sprintf("bridge request %s timed out", method)}
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-a.closed:
		return nil, fmt.Errorf("%w: bridge connection closed", relaysync.ErrAdapterUnavailable)
	}
}

func (a *BridgeAdapter) envelopeResult(envelope bridgeEnvelope) (json.RawMessage, error) {
	if envelope.OK {
		return envelope.Result, nil
	}
	message := envelope.Error
	if message == "" {
		message = "bridge call failed"
	}
	switch envelope.Code {
	case "auth_required":
		return nil, fmt.Errorf("%w: %s", relaysync.ErrAdapterUnavailable, message)
	case "not_found":
		return nil, fmt.Errorf("%w: %s", relaysync.ErrNotFound, message)
	case "rate_limited":
		return nil, &relaysync.RateLimitError{Message: message}
	case "network":
		return nil, &relaysync.NetworkError{Message: message}
	case "bad_data":
		return nil, &relaysync.DataError{Message: message}
	default:
		// Unrecognized codes stay unclassified so the failure surfaces
		// instead of being skipped as bad thread data.
		if envelope.Code != "" {
			return nil, fmt.Errorf("bridge call failed with code %q: %s", envelope.Code, message)
		}
		return nil, fmt.Errorf("bridge call failed: %s", message)
	}
}

func (a *BridgeAdapter) readLoop() {
	for {
		_, data, err := a.conn.Read(context.Background())
		if err != nil {
			a.failPending(err)
			a.closeOnce.Do(func() {
				close(a.closed)
			})
			return
		}
		instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			a.logger.Warn().Err(err).Msg("bridge sent non-json frame")
			continue
		}
		if err := envelopeSchema.Validate(instance); err != nil {
			a.logger.Warn().Err(err).Msg("bridge envelope failed schema validation")
			continue
		}
		var envelope bridgeEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			a.logger.Warn().Err(err).Msg("bridge envelope unmarshal failed")
			continue
		}
		a.mu.Lock()
		waiter, ok := a.pending[envelope.RequestID]
		if ok {
			delete(a.pending, envelope.RequestID)
		}
		a.mu.Unlock()
		if !ok {
			a.logger.Debug().Str("requestId", envelope.RequestID).Msg("bridge response with no waiter")
			continue
		}
		waiter <- envelope
	}
}

func (a *BridgeAdapter) failPending(cause error) {
	a.mu.Lock()
	pending := a.pending
	a.pending = map[string]chan bridgeEnvelope{}
	a.mu.Unlock()
	for _, waiter := range pending {
		waiter <- bridgeEnvelope{
			Code:  "network",
			Error: fmt.Sprintf("bridge connection lost: %v", cause),
		}
	}
}
