// Package client is a typed client for the bed log API. It implements the
// session, role, write and provisioning contracts so the gate, the form
// controller and the provisioning flow can run against a remote server.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"bedlog-backend/internal/apperr"
	"bedlog-backend/internal/auth"
	"bedlog-backend/internal/bed"
	"bedlog-backend/internal/provision"
)

// Client talks to one bed log server.
type Client struct {
	http *resty.Client
	log  *zap.Logger

	mu        sync.Mutex
	token     string
	listeners map[int]func(*auth.Identity)
	nextID    int
}

// New creates a client for baseURL.
func New(baseURL string, log *zap.Logger) *Client {
	hc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Accept", "application/json")
	// Only idempotent reads are retried.
	hc.AddRetryCondition(func(r *resty.Response, err error) bool {
		if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
			return false
		}
		return err != nil || r.StatusCode() >= http.StatusInternalServerError
	})

	return &Client{
		http:      hc,
		log:       log,
		listeners: make(map[int]func(*auth.Identity)),
	}
}

// LoginResult is the body of a successful sign-in.
type LoginResult struct {
	Token string   `json:"token"`
	UID   string   `json:"uid"`
	Email string   `json:"email"`
	Role  bed.Role `json:"role"`
}

// Login signs in and announces the new session to listeners.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var out LoginResult
	_, err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return LoginResult{}, err
	}

	c.mu.Lock()
	c.token = out.Token
	c.mu.Unlock()
	c.emit(&auth.Identity{UID: out.UID, Email: out.Email})
	return out, nil
}

// Token returns the current session token.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// OnSessionChange implements auth.SessionProvider.
func (c *Client) OnSessionChange(fn func(*auth.Identity)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// SignOut revokes the token server side and clears the session locally.
// The local session is cleared even when the server cannot be reached.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	hadToken := c.token != ""
	c.mu.Unlock()
	if !hadToken {
		return nil
	}

	_, err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	if err != nil {
		c.log.Warn("server sign-out failed", zap.Error(err))
	}

	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
	c.emit(nil)
	return nil
}

func (c *Client) emit(ident *auth.Identity) {
	c.mu.Lock()
	fns := make([]func(*auth.Identity), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(ident)
	}
}

// RequestPasswordReset asks the server to issue a reset token for email.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/auth/password-reset", map[string]string{"email": email}, nil)
	return err
}

// ConfirmPasswordReset sets a new password with a reset token.
func (c *Client) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/auth/password-reset/confirm", map[string]string{
		"token":    token,
		"password": password,
	}, nil)
	return err
}

// UserRecord is a role record as served by the API.
type UserRecord struct {
	UID       string    `json:"uid"`
	Email     string    `json:"email"`
	Role      bed.Role  `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// LookupRole implements auth.RoleLookup.
func (c *Client) LookupRole(ctx context.Context, uid string) (bed.Role, error) {
	var out UserRecord
	_, err := c.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(uid), nil, &out)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return "", auth.ErrRoleNotFound
		}
		return "", err
	}
	role, ok := bed.ParseRole(string(out.Role))
	if !ok {
		return "", fmt.Errorf("%w: unrecognised role %q", auth.ErrRoleNotFound, out.Role)
	}
	return role, nil
}

// ListUsers returns the role records, admins first.
func (c *Client) ListUsers(ctx context.Context, query string) ([]UserRecord, error) {
	var out []UserRecord
	req := c.request(ctx).SetResult(&out)
	if query != "" {
		req.SetQueryParam("q", query)
	}
	_, err := c.send(req, http.MethodGet, "/api/users")
	return out, err
}

// ListBeds returns the collection newest first. It lets a live.Hub run on
// top of a remote server.
func (c *Client) ListBeds(ctx context.Context) ([]bed.Record, error) {
	return c.Beds(ctx, "", bed.DefaultSort)
}

// Beds returns the server-derived view.
func (c *Client) Beds(ctx context.Context, search string, sortCfg bed.SortConfig) ([]bed.Record, error) {
	var out []bed.Record
	req := c.request(ctx).SetResult(&out)
	if search != "" {
		req.SetQueryParam("q", search)
	}
	if sortCfg.Key != "" {
		req.SetQueryParam("sort", string(sortCfg.Key))
		req.SetQueryParam("dir", string(sortCfg.Direction))
	}
	_, err := c.send(req, http.MethodGet, "/api/beds")
	return out, err
}

// GetBed fetches one bed.
func (c *Client) GetBed(ctx context.Context, id string) (bed.Record, error) {
	var out bed.Record
	_, err := c.do(ctx, http.MethodGet, "/api/beds/"+url.PathEscape(id), nil, &out)
	return out, err
}

// Summary returns the inventory summary.
func (c *Client) Summary(ctx context.Context) (SummaryResult, error) {
	var out SummaryResult
	_, err := c.do(ctx, http.MethodGet, "/api/beds/summary", nil, &out)
	return out, err
}

// SummaryResult is the body of the summary endpoint.
type SummaryResult struct {
	Entries []bed.SummaryEntry `json:"entries"`
	Totals  bed.Counts         `json:"totals"`
}

// CreateBed implements form.Writer. The server re-stamps the audit pair.
func (c *Client) CreateBed(ctx context.Context, p bed.Payload) (bed.Record, error) {
	var out bed.Record
	_, err := c.do(ctx, http.MethodPost, "/api/beds", p.Draft(), &out)
	return out, err
}

// UpdateBed implements form.Writer. A positive expectedVersion is sent as
// If-Match.
func (c *Client) UpdateBed(ctx context.Context, id string, p bed.Payload, expectedVersion int) (bed.Record, error) {
	var out bed.Record
	req := c.request(ctx).SetBody(p.Draft()).SetResult(&out)
	if expectedVersion > 0 {
		req.SetHeader("If-Match", strconv.Itoa(expectedVersion))
	}
	_, err := c.send(req, http.MethodPut, "/api/beds/"+url.PathEscape(id))
	return out, err
}

// SeedSamples inserts the sample beds (admin only, when enabled).
func (c *Client) SeedSamples(ctx context.Context) ([]bed.Record, error) {
	var out []bed.Record
	_, err := c.do(ctx, http.MethodPost, "/api/beds/sample", nil, &out)
	return out, err
}

// Export downloads the XLSX export of the current view.
func (c *Client) Export(ctx context.Context, search string, sortCfg bed.SortConfig) ([]byte, error) {
	req := c.request(ctx).SetHeader("Accept", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if search != "" {
		req.SetQueryParam("q", search)
	}
	if sortCfg.Key != "" {
		req.SetQueryParam("sort", string(sortCfg.Key))
		req.SetQueryParam("dir", string(sortCfg.Direction))
	}
	resp, err := c.send(req, http.MethodGet, "/api/beds/export.xlsx")
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// CreateUser implements provision.Caller.
func (c *Client) CreateUser(ctx context.Context, req provision.CreateUserRequest) (provision.CreatedUser, error) {
	var out provision.CreatedUser
	_, err := c.do(ctx, http.MethodPost, "/api/functions/createUser", req, &out)
	return out, err
}

// SetRole implements provision.Caller.
func (c *Client) SetRole(ctx context.Context, req provision.SetRoleRequest) (provision.RoleAssignment, error) {
	var out provision.RoleAssignment
	_, err := c.do(ctx, http.MethodPost, "/api/functions/setRole", req, &out)
	return out, err
}

func (c *Client) request(ctx context.Context) *resty.Request {
	req := c.http.R().SetContext(ctx).SetError(&apperr.Body{})
	if token := c.Token(); token != "" {
		req.SetAuthToken(token)
	}
	return req
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) (*resty.Response, error) {
	req := c.request(ctx)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}
	return c.send(req, method, path)
}

func (c *Client) send(req *resty.Request, method, path string) (*resty.Response, error) {
	resp, err := req.Execute(method, path)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, apperr.Wrap(apperr.Unavailable, "The request was cancelled.", err)
		}
		return nil, apperr.Wrap(apperr.Unavailable, "The server could not be reached.", err)
	}
	if resp.IsError() {
		return resp, decodeError(resp)
	}
	return resp, nil
}

func decodeError(resp *resty.Response) error {
	body, _ := resp.Error().(*apperr.Body)
	if body == nil || body.Error.Code == "" {
		return apperr.New(apperr.FromStatus(resp.StatusCode()),
			fmt.Sprintf("request failed with status %d", resp.StatusCode()))
	}
	if len(body.Error.Fields) > 0 {
		fields := make(bed.FieldErrors, len(body.Error.Fields))
		for k, v := range body.Error.Fields {
			fields[bed.Field(k)] = v
		}
		return &bed.ValidationError{Fields: fields}
	}
	return apperr.New(body.Error.Code, body.Error.Message)
}
