package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// TokenSource supplies the persisted bearer token for authenticated calls.
type TokenSource interface {
	Load() (string, error)
}

// allowedMediaTypes lists the MIME types the server accepts for uploads.
var allowedMediaTypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/png":       {},
	"audio/m4a":       {},
	"audio/caf":       {},
	"audio/mpeg":      {},
	"audio/wav":       {},
	"video/mp4":       {},
	"video/x-msvideo": {},
	"video/quicktime": {},
}

// Client is the REST client for the messaging API.
type Client struct {
	base   string
	http   *http.Client
	tokens TokenSource
	logger *zap.Logger
}

// NewClient creates an API client rooted at baseURL.
func NewClient(baseURL string, tokens TokenSource, logger *zap.Logger) *Client {
	return &Client{
		base:   baseURL,
		http:   &http.Client{Timeout: 10 * time.Second},
		tokens: tokens,
		logger: logger,
	}
}

// Login exchanges credentials for a token. Unauthenticated.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/user/login", req, &resp, false); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &Error{Message: nonEmpty(resp.Message, "login failed")}
	}
	return &resp, nil
}

// Register creates an account and returns the same shape as Login.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/user/register", req, &resp, false); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &Error{Message: nonEmpty(resp.Message, "registration failed")}
	}
	return &resp, nil
}

// Logout invalidates the server-side session.
func (c *Client) Logout(ctx context.Context) error {
	var resp statusResponse
	return c.doJSON(ctx, http.MethodGet, "/api/v1/user/logout", nil, &resp, true)
}

// Profile fetches the authenticated user's record.
func (c *Client) Profile(ctx context.Context) (*User, error) {
	var resp User
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/user/profile", nil, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListChats fetches all conversations for the authenticated user.
func (c *Client) ListChats(ctx context.Context) ([]Chat, error) {
	var resp chatsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/chats", nil, &resp, true); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &Error{Message: "failed to fetch chats"}
	}
	return resp.Chats, nil
}

// DeleteChats deletes conversations and returns the ids the server
// actually removed.
func (c *Client) DeleteChats(ctx context.Context, chatIDs []string) ([]string, error) {
	body := map[string][]string{"chatIds": chatIDs}
	var resp deleteChatsResponse
	if err := c.doJSON(ctx, http.MethodDelete, "/api/v1/chats", body, &resp, true); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &Error{Message: "failed to delete chats"}
	}
	return resp.DeletedChatIDs, nil
}

// FetchMessages requests one page of a conversation's history.
func (c *Client) FetchMessages(ctx context.Context, chatID string, page, limit int) ([]Message, Pagination, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	path := "/api/v1/messages/" + url.PathEscape(chatID) + "?" + q.Encode()

	var resp messagesResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp, true); err != nil {
		return nil, Pagination{}, err
	}
	if !resp.Success {
		return nil, Pagination{}, &Error{Message: "failed to fetch messages"}
	}
	return resp.Messages, resp.Pagination, nil
}

// SendMessage posts a message as multipart form data with an optional
// media part. kind is one of text, image, voice, video.
func (c *Client) SendMessage(ctx context.Context, chatID, content, kind string, media *MediaFile) (*Message, error) {
	tok, err := c.token()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("chatId", chatID)
	_ = w.WriteField("content", content)
	_ = w.WriteField("type", kind)
	if media != nil {
		if _, ok := allowedMediaTypes[media.MIME]; !ok {
			return nil, &Error{Message: "unsupported media type " + media.MIME}
		}
		part, err := w.CreateFormFile("media", nonEmpty(media.Name, "media"))
		if err != nil {
			return nil, &Error{Message: "build upload: " + err.Error()}
		}
		if _, err := io.Copy(part, media.Reader); err != nil {
			return nil, &Error{Message: "read media: " + err.Error()}
		}
	}
	if err := w.Close(); err != nil {
		return nil, &Error{Message: "build upload: " + err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/v1/messages", &buf)
	if err != nil {
		return nil, &Error{Message: "build request: " + err.Error()}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+tok)

	var resp sendResponse
	if err := c.send(req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.Message == nil {
		return nil, &Error{Message: "failed to send message"}
	}
	return resp.Message, nil
}

// DeleteMessages deletes a batch of messages within a conversation.
func (c *Client) DeleteMessages(ctx context.Context, chatID string, messageIDs []string) error {
	body := map[string][]string{"messageIds": messageIDs}
	path := "/api/v1/messages/delete/" + url.PathEscape(chatID)
	var resp statusResponse
	return c.doJSON(ctx, http.MethodDelete, path, body, &resp, true)
}

func (c *Client) token() (string, error) {
	tok, err := c.tokens.Load()
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}
	if tok == "" {
		return "", ErrNoToken
	}
	return tok, nil
}

// doJSON performs a JSON request/response exchange. The token precondition
// is checked before any I/O for authenticated calls.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any, authed bool) error {
	var tok string
	if authed {
		var err error
		if tok, err = c.token(); err != nil {
			return err
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &Error{Message: "encode request: " + err.Error()}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return &Error{Message: "build request: " + err.Error()}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("request failed", zap.String("path", req.URL.Path), zap.Error(err))
		return connectivityError()
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return connectivityError()
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return serverError(resp.StatusCode, data)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return &Error{Status: resp.StatusCode, Message: "decode response: " + err.Error()}
		}
	}
	return nil
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
