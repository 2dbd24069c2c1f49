package storyapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/CarliMargareta/storyagent/models"
)

// Client talks to the hosted Story API. All calls are synchronous and
// return the server's error message on a non-2xx response.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient returns a client for the API at the given base URL. The
// timeout bounds every request.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// SetHTTPClient swaps the underlying http client. Used by tests to
// install a mocked transport.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.client = client
}

// Register creates a new account on the remote API.
func (c *Client) Register(name, email, password string) error {
	body := map[string]string{"name": name, "email": email, "password": password}
	var resp models.APIResponse
	return c.postJSON("/register", "", body, &resp)
}

// Login authenticates with the remote API and returns the session.
func (c *Client) Login(email, password string) (*models.LoginResult, error) {
	body := map[string]string{"email": email, "password": password}
	var resp models.LoginResponse
	if err := c.postJSON("/login", "", body, &resp); err != nil {
		return nil, err
	}
	return &resp.LoginResult, nil
}

// Stories returns a page of stories, newest first.
func (c *Client) Stories(token string, page, size int) ([]models.Story, error) {
	u := fmt.Sprintf("%s/stories?page=%s&size=%s", c.baseURL,
		url.QueryEscape(strconv.Itoa(page)), url.QueryEscape(strconv.Itoa(size)))

	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	setAuthHeader(req, token)

	var resp models.StoryListResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return resp.ListStory, nil
}

// Story returns a single story by id.
func (c *Client) Story(token, id string) (*models.Story, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/stories/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	setAuthHeader(req, token)

	var resp models.StoryResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp.Story, nil
}

// CreateStory uploads a new story as multipart form data. lat and lon
// may be nil when the story carries no location.
func (c *Client) CreateStory(token, description string, photo io.Reader, filename string, lat, lon *float64) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("description", description); err != nil {
		return err
	}
	part, err := w.CreateFormFile("photo", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, photo); err != nil {
		return err
	}
	if lat != nil && lon != nil {
		if err := w.WriteField("lat", strconv.FormatFloat(*lat, 'f', -1, 64)); err != nil {
			return err
		}
		if err := w.WriteField("lon", strconv.FormatFloat(*lon, 'f', -1, 64)); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/stories", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	setAuthHeader(req, token)

	var resp models.APIResponse
	return c.do(req, &resp)
}

// Subscribe registers a push subscription with the remote API.
func (c *Client) Subscribe(token string, sub *models.PushSubscription) error {
	var resp models.APIResponse
	return c.postJSON("/notifications/subscribe", token, sub, &resp)
}

// Unsubscribe removes a push subscription from the remote API.
func (c *Client) Unsubscribe(token string, sub *models.PushSubscription) error {
	out, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodDelete, c.baseURL+"/notifications/subscribe", bytes.NewReader(out))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	setAuthHeader(req, token)

	var resp models.APIResponse
	return c.do(req, &resp)
}

func (c *Client) postJSON(path, token string, body, out interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	setAuthHeader(req, token)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr models.APIResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
			return fmt.Errorf("api: %s", apiErr.Message)
		}
		return fmt.Errorf("api: unexpected status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func setAuthHeader(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}
