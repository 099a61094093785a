package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"storyhub/pkg/models"
)

// Client implements Gateway against a remote storyhub server (or any server speaking the
// same /api.php form protocol).
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithToken sends a bearer token with every write
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// NewClient creates a client for baseURL, e.g. http://localhost:8080
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Read(ctx context.Context, name models.DocumentName) (*Document, error) {
	// cache buster, static hosts tend to cache the json files aggressively
	u := fmt.Sprintf("%s/%s?t=%d", c.baseURL, name.FileName(), time.Now().UnixMilli())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", name, models.ErrDocumentNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: status %d", name, resp.StatusCode)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return &Document{
		Name:     name,
		Content:  content,
		Revision: strings.Trim(resp.Header.Get("ETag"), `"`),
	}, nil
}

func (c *Client) Replace(ctx context.Context, name models.DocumentName, content []byte, expectedRevision string) (string, error) {
	form := url.Values{}
	form.Set("action", "save_data")
	form.Set("type", string(name))
	form.Set("content", string(content))
	if expectedRevision != "" {
		form.Set("revision", expectedRevision)
	}

	reply, err := c.postForm(ctx, form)
	if err != nil {
		return "", err
	}
	return reply.Revision, nil
}

func (c *Client) IncrementView(ctx context.Context, storyID string) error {
	form := url.Values{}
	form.Set("action", "increment_view")
	form.Set("id", storyID)
	_, err := c.postForm(ctx, form)
	return err
}

func (c *Client) ListComments(ctx context.Context) ([]models.Comment, error) {
	u := c.baseURL + "/api.php?action=get_comments"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	var reply struct {
		Success bool             `json:"success"`
		Message string           `json:"message"`
		Data    []models.Comment `json:"data"`
	}
	if err := c.do(req, &reply); err != nil {
		return nil, err
	}
	if !reply.Success {
		return nil, &Error{Message: reply.Message}
	}
	if reply.Data == nil {
		reply.Data = []models.Comment{}
	}
	return reply.Data, nil
}

func (c *Client) AddComment(ctx context.Context, comment models.Comment) error {
	encoded, err := json.Marshal(comment)
	if err != nil {
		return fmt.Errorf("failed to encode comment: %w", err)
	}
	form := url.Values{}
	form.Set("action", "add_comment")
	form.Set("comment", string(encoded))
	_, err = c.postForm(ctx, form)
	return err
}

func (c *Client) UploadImage(ctx context.Context, key string, body io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("action", "upload_image"); err != nil {
		return "", err
	}
	if err := mw.WriteField("path", key); err != nil {
		return "", err
	}
	part, err := mw.CreateFormFile("file", path.Base(key))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, body); err != nil {
		return "", fmt.Errorf("failed to buffer upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api.php", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var reply models.GatewayResponse
	if err := c.do(req, &reply); err != nil {
		return "", err
	}
	if !reply.Success {
		return "", &Error{Message: reply.Message}
	}
	return reply.URL, nil
}

// Login exchanges credentials for a session token. Used by the operator CLI.
func (c *Client) Login(ctx context.Context, loginID, password string) (*models.GatewayResponse, error) {
	form := url.Values{}
	form.Set("action", "login")
	form.Set("loginId", loginID)
	form.Set("password", password)
	return c.postForm(ctx, form)
}

// Signup creates an account and returns its first session
func (c *Client) Signup(ctx context.Context, req models.SignupRequest) (*models.GatewayResponse, error) {
	form := url.Values{}
	form.Set("action", "signup")
	form.Set("name", req.Name)
	form.Set("email", req.Email)
	form.Set("password", req.Password)
	form.Set("isTranslator", strconv.FormatBool(req.IsTranslator))
	return c.postForm(ctx, form)
}

func (c *Client) postForm(ctx context.Context, form url.Values) (*models.GatewayResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api.php", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var reply models.GatewayResponse
	if err := c.do(req, &reply); err != nil {
		return nil, err
	}
	if !reply.Success {
		return &reply, &Error{Message: reply.Message}
	}
	return &reply, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusConflict:
		sentinel = models.ErrRevisionConflict
	case http.StatusUnauthorized:
		sentinel = models.ErrUnauthorized
	case http.StatusForbidden:
		sentinel = models.ErrForbidden
	}
	if sentinel != nil {
		// the server's message is passed through verbatim
		var reply struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &reply) == nil && reply.Message != "" {
			return fmt.Errorf("%s: %w", reply.Message, sentinel)
		}
		return sentinel
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unexpected response (status %s): %w", strconv.Itoa(resp.StatusCode), err)
	}
	return nil
}
