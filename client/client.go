package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/totegamma/logbook/internal/domain"
)

const (
	defaultTimeout = 10 * time.Second
	userAgent      = "logbook-client/1.0"
)

// Client talks to the logbook REST surface. Reference lookups are cached for ten minutes.
type Client struct {
	client  *http.Client
	cache   *cache.Cache
	baseURL string
}

func New(baseURL string) *Client {
	httpClient := http.Client{
		Timeout: defaultTimeout,
	}

	c := &Client{
		client:  &httpClient,
		cache:   cache.New(10*time.Minute, 15*time.Minute),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	httpClient.Transport = c
	return c
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", userAgent)
	return http.DefaultTransport.RoundTrip(req)
}

// APIError is a non-200 answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("logbook: %d %s", e.StatusCode, e.Message)
}

// Is maps status codes onto the domain sentinels.
func (e *APIError) Is(target error) bool {
	switch e.StatusCode {
	case http.StatusNotFound:
		return errors.Is(domain.ErrNotFound, target)
	case http.StatusBadRequest:
		return target == domain.ErrInvalidLog || target == domain.ErrInvalidSearchParameter || target == domain.ErrInvalidEntity
	}
	return false
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, response any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	slog.DebugContext(ctx, "logbook request", slog.String("method", method), slog.String("path", path), slog.String("module", "client"))

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to perform request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		return &APIError{StatusCode: resp.StatusCode, Message: payload.Error}
	}

	if response == nil {
		return nil
	}
	err = json.NewDecoder(resp.Body).Decode(response)
	if err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}

func (c *Client) sendJSON(ctx context.Context, method, path string, payload, response any) error {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrap(err, "failed to encode request")
		}
		body = bytes.NewReader(buf)
	}
	return c.do(ctx, method, path, body, "application/json", response)
}

func (c *Client) GetLog(ctx context.Context, id int64) (domain.Log, error) {
	var log domain.Log
	err := c.do(ctx, http.MethodGet, "/logs/"+strconv.FormatInt(id, 10), nil, "", &log)
	return log, err
}

// SearchLogs runs a search with the same parameters the server accepts, e.g. desc, tags, start.
func (c *Client) SearchLogs(ctx context.Context, params url.Values) (domain.SearchResult, error) {
	var result domain.SearchResult
	err := c.do(ctx, http.MethodGet, "/logs?"+params.Encode(), nil, "", &result)
	return result, err
}

func (c *Client) CreateLog(ctx context.Context, draft domain.LogDraft) (domain.Log, error) {
	var log domain.Log
	err := c.sendJSON(ctx, http.MethodPut, "/logs", draft, &log)
	return log, err
}

// File is an attachment to upload with a new entry.
type File struct {
	Name        string
	ContentType string
	Content     io.Reader
}

func (c *Client) CreateLogWithAttachments(ctx context.Context, draft domain.LogDraft, files []File) (domain.Log, error) {
	entry, err := json.Marshal(draft)
	if err != nil {
		return domain.Log{}, errors.Wrap(err, "failed to encode log entry")
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("logEntry", string(entry)); err != nil {
		return domain.Log{}, err
	}
	for _, f := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, f.Name))
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)
		part, err := w.CreatePart(header)
		if err != nil {
			return domain.Log{}, err
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return domain.Log{}, errors.Wrapf(err, "failed to read %q", f.Name)
		}
	}
	if err := w.Close(); err != nil {
		return domain.Log{}, err
	}

	var log domain.Log
	err = c.do(ctx, http.MethodPut, "/logs/multipart", &body, w.FormDataContentType(), &log)
	return log, err
}

// FetchAttachment returns the payload of an attachment. The caller closes it.
func (c *Client) FetchAttachment(ctx context.Context, id string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/attachment/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to perform request")
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &APIError{StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}

func (c *Client) GetTag(ctx context.Context, name string) (domain.Tag, error) {
	cacheKey := "tag:" + name
	if x, found := c.cache.Get(cacheKey); found {
		return x.(domain.Tag), nil
	}

	var tag domain.Tag
	if err := c.do(ctx, http.MethodGet, "/tags/"+url.PathEscape(name), nil, "", &tag); err != nil {
		return domain.Tag{}, err
	}
	c.cache.Set(cacheKey, tag, cache.DefaultExpiration)
	return tag, nil
}

func (c *Client) ListTags(ctx context.Context) ([]domain.Tag, error) {
	var tags []domain.Tag
	err := c.do(ctx, http.MethodGet, "/tags", nil, "", &tags)
	return tags, err
}

func (c *Client) PutTag(ctx context.Context, tag domain.Tag) (domain.Tag, error) {
	c.cache.Delete("tag:" + tag.Name)
	var stored domain.Tag
	err := c.sendJSON(ctx, http.MethodPut, "/tags/"+url.PathEscape(tag.Name), tag, &stored)
	return stored, err
}

func (c *Client) DeleteTag(ctx context.Context, name string) (domain.Tag, error) {
	c.cache.Delete("tag:" + name)
	var tag domain.Tag
	err := c.do(ctx, http.MethodDelete, "/tags/"+url.PathEscape(name), nil, "", &tag)
	return tag, err
}

func (c *Client) GetLogbook(ctx context.Context, name string) (domain.Logbook, error) {
	cacheKey := "logbook:" + name
	if x, found := c.cache.Get(cacheKey); found {
		return x.(domain.Logbook), nil
	}

	var logbook domain.Logbook
	if err := c.do(ctx, http.MethodGet, "/logbooks/"+url.PathEscape(name), nil, "", &logbook); err != nil {
		return domain.Logbook{}, err
	}
	c.cache.Set(cacheKey, logbook, cache.DefaultExpiration)
	return logbook, nil
}

func (c *Client) ListLogbooks(ctx context.Context) ([]domain.Logbook, error) {
	var logbooks []domain.Logbook
	err := c.do(ctx, http.MethodGet, "/logbooks", nil, "", &logbooks)
	return logbooks, err
}

func (c *Client) PutLogbook(ctx context.Context, logbook domain.Logbook) (domain.Logbook, error) {
	c.cache.Delete("logbook:" + logbook.Name)
	var stored domain.Logbook
	err := c.sendJSON(ctx, http.MethodPut, "/logbooks/"+url.PathEscape(logbook.Name), logbook, &stored)
	return stored, err
}

func (c *Client) DeleteLogbook(ctx context.Context, name string) (domain.Logbook, error) {
	c.cache.Delete("logbook:" + name)
	var logbook domain.Logbook
	err := c.do(ctx, http.MethodDelete, "/logbooks/"+url.PathEscape(name), nil, "", &logbook)
	return logbook, err
}

func (c *Client) GetProperty(ctx context.Context, name string) (domain.Property, error) {
	cacheKey := "property:" + name
	if x, found := c.cache.Get(cacheKey); found {
		return x.(domain.Property).Clone(), nil
	}

	var property domain.Property
	if err := c.do(ctx, http.MethodGet, "/properties/"+url.PathEscape(name), nil, "", &property); err != nil {
		return domain.Property{}, err
	}
	c.cache.Set(cacheKey, property.Clone(), cache.DefaultExpiration)
	return property, nil
}

func (c *Client) ListProperties(ctx context.Context) ([]domain.Property, error) {
	var properties []domain.Property
	err := c.do(ctx, http.MethodGet, "/properties", nil, "", &properties)
	return properties, err
}

func (c *Client) PutProperty(ctx context.Context, property domain.Property) (domain.Property, error) {
	c.cache.Delete("property:" + property.Name)
	var stored domain.Property
	err := c.sendJSON(ctx, http.MethodPut, "/properties/"+url.PathEscape(property.Name), property, &stored)
	return stored, err
}

func (c *Client) DeleteProperty(ctx context.Context, name string) (domain.Property, error) {
	c.cache.Delete("property:" + name)
	var property domain.Property
	err := c.do(ctx, http.MethodDelete, "/properties/"+url.PathEscape(name), nil, "", &property)
	return property, err
}

func (c *Client) DeleteAttribute(ctx context.Context, property, attribute string) (domain.Property, error) {
	c.cache.Delete("property:" + property)
	var stored domain.Property
	err := c.do(ctx, http.MethodDelete, "/properties/"+url.PathEscape(property)+"/attributes/"+url.PathEscape(attribute), nil, "", &stored)
	return stored, err
}
