package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const guestHeader = "X-Guest-ID"

// apiError is the server's error envelope.
type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	CTA     string `json:"cta,omitempty"`
}

func (e *apiError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch e.CTA {
	case "sign_up":
		msg += " (run `hz register` to keep going)"
	case "upgrade":
		msg += " (see `hz plans`)"
	}
	return msg
}

type usage struct {
	Owner         string `json:"owner"`
	GuestUsed     int64  `json:"guest_used"`
	GuestLimit    int64  `json:"guest_limit"`
	CreditBalance int64  `json:"credit_balance"`
	Plan          string `json:"plan"`
}

type record struct {
	ID            int64     `json:"id,omitempty"`
	OriginalText  string    `json:"original_text"`
	RewrittenText string    `json:"rewritten_text"`
	CreatedAt     time.Time `json:"created_at"`
	Owner         string    `json:"owner"`
}

type authResp struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Imported    int       `json:"imported,omitempty"`
	Usage       usage     `json:"usage"`
}

type humanizeReq struct {
	Text        string `json:"text"`
	Readability string `json:"readability,omitempty"`
	Purpose     string `json:"purpose,omitempty"`
	Strength    string `json:"strength,omitempty"`
}

type humanizeResp struct {
	Record record `json:"record"`
	Usage  usage  `json:"usage"`
	State  string `json:"state"`
}

type historyResp struct {
	Rewrites []record `json:"rewrites"`
	Usage    usage    `json:"usage"`
}

type accountResp struct {
	UserID  string `json:"user_id,omitempty"`
	GuestID string `json:"guest_id,omitempty"`
	Usage   usage  `json:"usage"`
}

type plan struct {
	Name       string   `json:"name"`
	PriceCents int64    `json:"price_cents"`
	Credits    int64    `json:"credits"`
	Features   []string `json:"features"`
}

// client talks to the HTTP API as either a registered user or a guest.
type client struct {
	base  string
	http  *http.Client
	token string
	guest string
}

func loadTLS(caPath string, insecure bool) (*tls.Config, error) {
	if insecure {
		return &tls.Config{InsecureSkipVerify: true}, nil //nolint:gosec // dev flag
	}
	if caPath == "" {
		return nil, nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func newClient(base string, tlsCfg *tls.Config) *client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if tlsCfg != nil {
		tr.TLSClientConfig = tlsCfg
	}
	return &client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Transport: tr, Timeout: 5 * time.Minute},
	}
}

func (c *client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	} else if c.guest != "" {
		req.Header.Set(guestHeader, c.guest)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// the server mints a guest handle on the first anonymous call
	if c.token == "" {
		if g := resp.Header.Get(guestHeader); g != "" && g != c.guest {
			c.guest = g
			if err := saveGuestID(g); err != nil {
				return fmt.Errorf("save guest id: %w", err)
			}
		}
	}

	if resp.StatusCode >= 400 {
		var env struct {
			Error apiError `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil || env.Error.Code == "" {
			return &apiError{Status: resp.StatusCode, Code: "HTTP_" + strconv.Itoa(resp.StatusCode), Message: http.StatusText(resp.StatusCode)}
		}
		env.Error.Status = resp.StatusCode
		return &env.Error
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *client) register(ctx context.Context, email, password string) (authResp, error) {
	var out authResp
	err := c.do(ctx, http.MethodPost, "/v1/auth/register", map[string]string{"email": email, "password": password}, &out)
	return out, err
}

func (c *client) login(ctx context.Context, email, password string) (authResp, error) {
	var out authResp
	err := c.do(ctx, http.MethodPost, "/v1/auth/login", map[string]string{"email": email, "password": password}, &out)
	return out, err
}

func (c *client) logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/auth/logout", nil, nil)
}

func (c *client) humanize(ctx context.Context, req humanizeReq) (humanizeResp, error) {
	var out humanizeResp
	err := c.do(ctx, http.MethodPost, "/v1/humanize", req, &out)
	return out, err
}

func (c *client) history(ctx context.Context, limit, offset int) (historyResp, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/v1/rewrites"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out historyResp
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *client) account(ctx context.Context) (accountResp, error) {
	var out accountResp
	err := c.do(ctx, http.MethodGet, "/v1/account", nil, &out)
	return out, err
}

func (c *client) deleteAccount(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/v1/account", nil, nil)
}

func (c *client) plans(ctx context.Context) ([]plan, error) {
	var out struct {
		Plans []plan `json:"plans"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/plans", nil, &out)
	return out.Plans, err
}
