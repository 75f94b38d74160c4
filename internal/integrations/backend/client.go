package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"speech-to-tweet/internal/domain"
)

const (
	defaultUploadPath = "/api/process_audio"
	defaultStatusPath = "/api/status"

	// AudioField is the multipart field carrying the artifact.
	AudioField = "audio"
)

// uploadResponse is the success body of the upload endpoint.
type uploadResponse struct {
	JobID string `json:"jobId"`
}

// HTTPStatusError captures non-2xx backend responses. Body is the raw response text.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("backend: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

func (e *HTTPStatusError) ResponseBody() string {
	return e.Body
}

// Client talks to the upload and status endpoints.
type Client struct {
	baseURL    string
	uploadPath string
	statusPath string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithUploadPath(path string) Option {
	return func(c *Client) {
		if p := strings.TrimSpace(path); p != "" {
			c.uploadPath = p
		}
	}
}

func WithStatusPath(path string) Option {
	return func(c *Client) {
		if p := strings.TrimSpace(path); p != "" {
			c.statusPath = p
		}
	}
}

// NewClient creates a Client rooted at baseURL. No request timeout is set
// unless a custom http.Client is supplied; callers bound requests with ctx.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("backend: base URL must not be empty")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("backend: invalid base URL: %w", err)
	}
	c := &Client{
		baseURL:    baseURL,
		uploadPath: defaultUploadPath,
		statusPath: defaultStatusPath,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return http.DefaultClient
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// Upload sends the artifact as a single multipart field and returns the job ID.
func (c *Client) Upload(ctx context.Context, artifact *domain.AudioArtifact) (string, error) {
	if artifact == nil {
		return "", errors.New("backend: artifact must not be nil")
	}

	body, contentType, err := multipartBody(artifact)
	if err != nil {
		return "", fmt.Errorf("backend: build upload body: %w", err)
	}

	endpoint := joinURL(c.baseURL, c.uploadPath)
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if reqErr != nil {
		return "", fmt.Errorf("backend: create upload request: %w", reqErr)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	raw, err := c.do(req, endpoint)
	if err != nil {
		return "", err
	}

	var payload uploadResponse
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return "", fmt.Errorf("backend: decode upload response: %w: %w", domain.ErrMalformedResponse, decErr)
	}
	if strings.TrimSpace(payload.JobID) == "" {
		return "", fmt.Errorf("backend: upload response has no job id: %w", domain.ErrMalformedResponse)
	}
	return payload.JobID, nil
}

// Status fetches the current state of a job.
func (c *Client) Status(ctx context.Context, jobID string) (domain.JobState, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return domain.JobState{}, errors.New("backend: job id must not be empty")
	}

	endpoint := joinURL(c.baseURL, c.statusPath) + "?" + url.Values{"id": {jobID}}.Encode()
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if reqErr != nil {
		return domain.JobState{}, fmt.Errorf("backend: create status request: %w", reqErr)
	}
	req.Header.Set("Accept", "application/json")

	raw, err := c.do(req, endpoint)
	if err != nil {
		return domain.JobState{}, err
	}

	var state domain.JobState
	if decErr := json.Unmarshal(raw, &state); decErr != nil {
		return domain.JobState{}, fmt.Errorf("backend: decode status response: %w: %w", domain.ErrMalformedResponse, decErr)
	}
	return state, nil
}

// do runs req. Transport failures come back wrapped as *url.Error; non-2xx
// responses as *HTTPStatusError. Bodies that fail to decode are wrapped with
// domain.ErrMalformedResponse by the callers.
func (c *Client) do(req *http.Request, endpoint string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, fmt.Errorf("backend: request failed: %w", doErr)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        endpoint,
			Body:       strings.TrimSpace(string(buf)),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("backend: read response body: %w", err)
	}
	return buf, nil
}

func multipartBody(artifact *domain.AudioArtifact) (io.Reader, string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	filename := artifact.Filename
	if filename == "" {
		filename = "audio"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, AudioField, filename))
	mimeType := artifact.MIMEType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	h.Set("Content-Type", mimeType)

	fw, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(artifact.Data); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &body, mw.FormDataContentType(), nil
}
