package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/agentworkforce/relaysync/internal/relaysync"
)

type RESTOptions struct {
	Platform      string
	BaseURL       string
	ListPath      string
	DetailPath    string
	SessionToken  string
	SessionCookie string
	URLPattern    string
	Timeout       time.Duration
}

// RESTAdapter speaks to a chat platform's internal thread API. List and
// detail paths default to the common shape but stay configurable per
// platform; payload field drift is the normalizer's problem, not ours.
type RESTAdapter struct {
	platform   string
	client     *resty.Client
	listPath   string
	detailPath string
	urlPattern *regexp.Regexp
}

func NewRESTAdapter(opts RESTOptions) (*RESTAdapter, error) {
	platform := strings.TrimSpace(opts.Platform)
	if platform == "" {
		return nil, relaysync.ErrInvalidInput
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base url is required for platform %s", platform)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)
	if token := strings.TrimSpace(opts.SessionToken); token != "" {
		client.SetAuthToken(token)
	}
	if cookie := strings.TrimSpace(opts.SessionCookie); cookie != "" {
		client.SetHeader("Cookie", cookie)
	}
	listPath := strings.TrimSpace(opts.ListPath)
	if listPath == "" {
		listPath = "/api/threads"
	}
	detailPath := strings.TrimSpace(opts.DetailPath)
	if detailPath == "" {
		detailPath = "/api/threads/{id}"
	}
	var urlPattern *regexp.Regexp
	if pattern := strings.TrimSpace(opts.URLPattern); pattern != "" {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid url pattern for platform %s: %w", platform, err)
		}
		urlPattern = compiled
	}
	return &RESTAdapter{
		platform:   platform,
		client:     client,
		listPath:   listPath,
		detailPath: detailPath,
		urlPattern: urlPattern,
	}, nil
}

func (a *RESTAdapter) Platform() string {
	return a.platform
}

func (a *RESTAdapter) ListThreads(ctx context.Context, page, limit int) (relaysync.ThreadPage, error) {
	if page < 0 {
		page = 0
	}
	if limit <= 0 {
		limit = 20
	}
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParam("page", strconv.Itoa(page)).
		SetQueryParam("limit", strconv.Itoa(limit)).
		Get(a.listPath)
	if err != nil {
		return relaysync.ThreadPage{}, &relaysync.NetworkError{Cause: err}
	}
	if err := a.statusError(resp, ""); err != nil {
		return relaysync.ThreadPage{}, err
	}

	var payload map[string]any
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return relaysync.ThreadPage{}, &relaysync.DataError{Message: fmt.Sprintf("unparseable thread list: %v", err)}
	}
	return parseThreadPage(payload), nil
}

func (a *RESTAdapter) GetThreadDetail(ctx context.Context, id string) (map[string]any, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, relaysync.ErrInvalidInput
	}
	resp, err := a.client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		Get(a.detailPath)
	if err != nil {
		return nil, &relaysync.NetworkError{Cause: err}
	}
	if err := a.statusError(resp, id); err != nil {
		return nil, err
	}
	var payload map[string]any
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, &relaysync.DataError{ThreadID: id, Message: fmt.Sprintf("unparseable detail payload: %v", err)}
	}
	return payload, nil
}

func (a *RESTAdapter) ExtractID(url string) string {
	if a.urlPattern == nil {
		return ""
	}
	match := a.urlPattern.FindStringSubmatch(strings.TrimSpace(url))
	if len(match) < 2 {
		return ""
	}
	return match[1]
}

func (a *RESTAdapter) statusError(resp *resty.Response, id string) error {
	status := resp.StatusCode()
	switch {
	case status >= 200 && status <= 299:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: platform %s returned status %d", relaysync.ErrAdapterUnavailable, a.platform, status)
	case status == http.StatusNotFound:
		if id != "" {
			return fmt.Errorf("%w: thread %s", relaysync.ErrNotFound, id)
		}
		return relaysync.ErrNotFound
	case status == http.StatusTooManyRequests:
		return &relaysync.RateLimitError{Message: fmt.Sprintf("platform %s throttled the request", a.platform)}
	default:
		return &relaysync.NetworkError{Message: fmt.Sprintf("platform %s returned status %d", a.platform, status)}
	}
}

func parseThreadPage(payload map[string]any) relaysync.ThreadPage {
	page := relaysync.ThreadPage{}
	var list []any
	for _, field := range []string{"threads", "items", "data", "conversations"} {
		if hit, ok := payload[field].([]any); ok {
			list = hit
			break
		}
	}
	for _, item := range list {
		raw, ok := item.(map[string]any)
		if !ok {
			continue
		}
		thread := relaysync.Thread{
			ID:        stringField(raw, "id", "thread_id", "uuid"),
			Title:     stringField(raw, "title", "name"),
			UpdatedAt: timeField(raw, "updated_at", "updatedAt", "last_updated"),
		}
		if thread.ID == "" {
			continue
		}
		page.Threads = append(page.Threads, thread)
	}
	if hasMore, ok := payload["has_more"].(bool); ok {
		page.HasMore = hasMore
	} else if hasMore, ok := payload["hasMore"].(bool); ok {
		page.HasMore = hasMore
	}
	return page
}

func stringField(raw map[string]any, fields ...string) string {
	for _, field := range fields {
		if value, ok := raw[field].(string); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func timeField(raw map[string]any, fields ...string) time.Time {
	for _, field := range fields {
		switch value := raw[field].(type) {
		case string:
			if parsed, err := time.Parse(time.RFC3339, value); err == nil {
				return parsed
			}
		case float64:
			seconds := int64(value)
			// Heuristic: epoch millis when the magnitude is too large for
			// a plausible seconds timestamp.
			if seconds > 1e12 {
				return time.UnixMilli(seconds).UTC()
			}
			return time.Unix(seconds, 0).UTC()
		}
	}
	return time.Time{}
}
