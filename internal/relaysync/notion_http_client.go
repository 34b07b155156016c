package relaysync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type NotionTokenProvider func(ctx context.Context) (string, error)

type RecordProperties struct {
	Title     string
	Platform  string
	SourceURL string
}

type RecordRef struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// DestinationClient is the write surface the uploader needs from the
// knowledge base.
type DestinationClient interface {
	CreateRecord(ctx context.Context, props RecordProperties, blocks []Block) (RecordRef, error)
	AppendBlocks(ctx context.Context, recordID string, blocks []Block) error
}

type NotionHTTPClientOptions struct {
	BaseURL       string
	TokenProvider NotionTokenProvider
	HTTPClient    *http.Client
	APIVersion    string
	UserAgent     string
	ParentPageID  string
}

type HTTPNotionClient struct {
	baseURL       string
	tokenProvider NotionTokenProvider
	httpClient    *http.Client
	apiVersion    string
	userAgent     string
	parentPageID  string
}

func NewHTTPNotionClient(opts NotionHTTPClientOptions) *HTTPNotionClient {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.notion.com"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = "2022-06-28"
	}
	return &HTTPNotionClient{
		baseURL:       baseURL,
		tokenProvider: opts.TokenProvider,
		httpClient:    httpClient,
		apiVersion:    apiVersion,
		userAgent:     strings.TrimSpace(opts.UserAgent),
		parentPageID:  strings.TrimSpace(opts.ParentPageID),
	}
}

func (c *HTTPNotionClient) CreateRecord(ctx context.Context, props RecordProperties, blocks []Block) (RecordRef, error) {
	if c.parentPageID == "" {
		return RecordRef{}, &DataError{Message: "notion parent page id is required"}
	}
	payload := map[string]any{
		"parent": map[string]any{"page_id": c.parentPageID},
		"properties": map[string]any{
			"title": map[string]any{
				"title": []RichText{{Type: "text", Text: TextContent{Content: recordTitle(props)}}},
			},
		},
	}
	if len(blocks) > 0 {
		payload["children"] = blocks
	}
	var out RecordRef
	if err := c.doJSON(ctx, http.MethodPost, "/v1/pages", payload, &out); err != nil {
		return RecordRef{}, err
	}
	return out, nil
}

func (c *HTTPNotionClient) AppendBlocks(ctx context.Context, recordID string, blocks []Block) error {
	recordID = strings.TrimSpace(recordID)
	if recordID == "" {
		return ErrInvalidInput
	}
	if len(blocks) == 0 {
		return nil
	}
	payload := map[string]any{"children": blocks}
	return c.doJSON(ctx, http.MethodPatch, "/v1/blocks/"+recordID+"/children", payload, nil)
}

func (c *HTTPNotionClient) doJSON(ctx context.Context, method, path string, payload, out any) error {
	if c == nil {
		return fmt.Errorf("notion client is nil")
	}
	tokenProvider := c.tokenProvider
	if tokenProvider == nil {
		return &AuthError{Message: "notion token provider is required"}
	}
	token, err := tokenProvider(ctx)
	if err != nil {
		return &AuthError{Message: err.Error()}
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return &AuthError{Message: "notion token is empty"}
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Notion-Version", c.apiVersion)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Cause: err}
	}
	respBody, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return &NetworkError{Cause: readErr}
	}
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		if out != nil {
			return json.Unmarshal(respBody, out)
		}
		return nil
	}
	return notionStatusError(resp.StatusCode, resp.Header.Get("Retry-After"), respBody)
}

func notionStatusError(status int, retryAfterHeader string, body []byte) error {
	errCode := ""
	errMessage := strings.TrimSpace(string(body))
	var parsed map[string]any
	if json.Unmarshal(body, &parsed) == nil {
		if code, ok := parsed["code"].(string); ok {
			errCode = code
		}
		if message, ok := parsed["message"].(string); ok && strings.TrimSpace(message) != "" {
			errMessage = message
		}
	}
	message := fmt.Sprintf("notion write failed: status=%d message=%s", status, errMessage)
	if errCode != "" {
		message = fmt.Sprintf("notion write failed: status=%d code=%s message=%s", status, errCode, errMessage)
	}
	switch {
	case status == http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: parseRetryAfterSeconds(retryAfterHeader), Message: message}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthError{Message: message}
	case status >= 500:
		return &NetworkError{Message: message}
	case status == http.StatusBadRequest || status == http.StatusNotFound:
		return &DataError{Message: message}
	default:
		return fmt.Errorf("%s", message)
	}
}

func parseRetryAfterSeconds(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func recordTitle(props RecordProperties) string {
	title := strings.TrimSpace(props.Title)
	if title == "" {
		title = "Untitled thread"
	}
	if props.Platform != "" {
		return fmt.Sprintf("[%s] %s", props.Platform, title)
	}
	return title
}
