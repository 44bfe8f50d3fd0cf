// Package repository talks to the external activities API. The API is the
// single source of truth; nothing here caches or persists what it returns.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/activity-board/internal/model"
	"github.com/tidwall/gjson"
)

// ErrUnavailable is returned when the API could not be reached at all.
var ErrUnavailable = errors.New("activity api unavailable")

// ErrMalformedResponse is returned when a response body is not the JSON the
// API is expected to send.
var ErrMalformedResponse = errors.New("malformed activity api response")

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// APIError is a non-2xx answer from the API. Detail carries the server's own
// explanation when it sent one.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("activity api: status %d", e.Status)
	}
	return fmt.Sprintf("activity api: status %d: %s", e.Status, e.Detail)
}

// Doer is the subset of *http.Client the repository needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ActivityRepository reads and mutates activities through the HTTP API.
type ActivityRepository struct {
	baseURL string
	client  Doer
	now     func() time.Time
}

// NewActivityRepository constructs an ActivityRepository rooted at baseURL
// (for example "http://localhost:8000").
func NewActivityRepository(baseURL string, client Doer) *ActivityRepository {
	if client == nil {
		client = http.DefaultClient
	}
	return &ActivityRepository{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		now:     time.Now,
	}
}

// List fetches the activities collection. A timestamp query parameter and
// no-store headers keep intermediaries from answering with a cached copy.
func (r *ActivityRepository) List(ctx context.Context) (model.Snapshot, error) {
	query := url.Values{"ts": {strconv.FormatInt(r.now().UnixMilli(), 10)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/activities?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build list request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("Pragma", "no-cache")

	status, body, err := r.do(req)
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		var resp model.MutationResponse
		_ = json.Unmarshal(body, &resp)
		return nil, &APIError{Status: status, Detail: resp.Detail}
	}
	return decodeSnapshot(body)
}

// Signup registers email for activity and returns the server's message.
func (r *ActivityRepository) Signup(ctx context.Context, activity, email string) (string, error) {
	return r.mutate(ctx, http.MethodPost, activityPath(activity, "signup"), email)
}

// Unregister removes email from activity and returns the server's message.
func (r *ActivityRepository) Unregister(ctx context.Context, activity, email string) (string, error) {
	return r.mutate(ctx, http.MethodDelete, activityPath(activity, "participants"), email)
}

func (r *ActivityRepository) mutate(ctx context.Context, method, path, email string) (string, error) {
	query := url.Values{"email": {email}}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build %s request: %w", strings.ToLower(method), err)
	}
	req.Header.Set("Accept", "application/json")

	status, body, err := r.do(req)
	if err != nil {
		return "", err
	}

	// The body is decoded whatever the status: failures carry "detail".
	var resp model.MutationResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: status %d: %v", ErrMalformedResponse, status, err)
	}
	if !isSuccess(status) {
		return "", &APIError{Status: status, Detail: resp.Detail}
	}
	return resp.Message, nil
}

func (r *ActivityRepository) do(req *http.Request) (int, []byte, error) {
	resp, err := r.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %s %s: %v", ErrUnavailable, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	return resp.StatusCode, body, nil
}

// decodeSnapshot walks the top-level object in document order, so the
// snapshot keeps whatever order the API chose.
func decodeSnapshot(body []byte) (model.Snapshot, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformedResponse)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: expected object, got %s", ErrMalformedResponse, root.Type)
	}

	snapshot := model.Snapshot{}
	var decodeErr error
	root.ForEach(func(key, value gjson.Result) bool {
		var a model.Activity
		if err := json.Unmarshal([]byte(value.Raw), &a); err != nil {
			decodeErr = fmt.Errorf("%w: activity %q: %v", ErrMalformedResponse, key.String(), err)
			return false
		}
		a.Name = key.String()
		snapshot = append(snapshot, a)
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	return snapshot, nil
}

// activityPath escapes the activity name as a single path segment, so names
// containing "/" or spaces survive the trip.
func activityPath(activity, action string) string {
	return "/activities/" + url.PathEscape(activity) + "/" + action
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
