package tio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"k8s.io/apimachinery/pkg/util/json"
)

const DefaultURL = "https://cloud.tenable.com"

// Client talks to the Tenable.io REST API with an API key pair.
type Client struct {
	Cli *http.Client
	URL string

	AccessKey string
	SecretKey string
}

func NewClient(url, accessKey, secretKey string) *Client {
	if url == "" {
		url = DefaultURL
	}

	return &Client{
		Cli: &http.Client{
			Timeout: 60 * time.Second,
		},
		URL:       strings.TrimRight(url, "/"),
		AccessKey: accessKey,
		SecretKey: secretKey,
	}
}

// APIError is a non-2xx answer from the platform.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	msg := strings.TrimSpace(e.Body)
	if m := gjson.Get(msg, "error"); m.Exists() {
		msg = m.String()
	}
	return fmt.Sprintf("tio: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

// IsNotFound reports whether err is a 404 answer.
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) (gjson.Result, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return gjson.Result{}, err
		}
		body = bytes.NewBuffer(data)
	}

	url := fmt.Sprintf("%s/%s", c.URL, strings.TrimLeft(path, "/"))
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return gjson.Result{}, err
	}

	req.Header.Set("X-ApiKeys", fmt.Sprintf("accessKey=%s; secretKey=%s", c.AccessKey, c.SecretKey))
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}

	log.WithFields(log.Fields{"method": method, "path": path}).Debug("tio request")

	res, err := c.Cli.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("tio: %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	resBody, err := ioutil.ReadAll(res.Body)
	if err != nil {
		return gjson.Result{}, err
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return gjson.Result{}, &APIError{
			Method:     method,
			Path:       path,
			StatusCode: res.StatusCode,
			Body:       string(resBody),
		}
	}

	return gjson.ParseBytes(resBody), nil
}

func (c *Client) get(ctx context.Context, path string) (gjson.Result, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) put(ctx context.Context, path string, payload interface{}) error {
	_, err := c.do(ctx, http.MethodPut, path, payload)
	return err
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) error {
	_, err := c.do(ctx, http.MethodPost, path, payload)
	return err
}

func (c *Client) delete(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodDelete, path, nil)
	return err
}

// Scanners returns the scanners endpoints.
func (c *Client) Scanners() *ScannersAPI {
	return &ScannersAPI{api: c}
}
