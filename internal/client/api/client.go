package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// TokenSource resolve o bearer token da sessão atual
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapta uma função para TokenSource
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// Client fala com o backend BETREF
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Tokens  TokenSource
	Limiter *rate.Limiter
	Log     *zap.Logger

	// métricas (endpoint, status http, duração); status 0 = falha de rede
	OnRequest func(endpoint string, status int, d time.Duration)

	now func() time.Time
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.HTTP = h } }

func WithLimiter(l *rate.Limiter) Option { return func(c *Client) { c.Limiter = l } }

func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.Log = l } }

func WithRequestHook(fn func(string, int, time.Duration)) Option {
	return func(c *Client) { c.OnRequest = fn }
}

func New(base string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		BaseURL: strings.TrimRight(base, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		Tokens:  tokens,
		Log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// call descreve uma requisição; route é o rótulo estável usado nas métricas
type call struct {
	route       string
	method      string
	path        string
	auth        bool
	body        io.Reader
	contentType string
}

func jsonCall(route, method, path string, auth bool, payload any) (call, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return call{}, fmt.Errorf("encode %s: %w", route, err)
	}
	return call{route: route, method: method, path: path, auth: auth, body: bytes.NewReader(b), contentType: "application/json"}, nil
}

func (c *Client) do(ctx context.Context, cl call, out any) error {
	req, err := http.NewRequestWithContext(ctx, cl.method, c.BaseURL+cl.path, cl.body)
	if err != nil {
		return fmt.Errorf("build %s: %w", cl.route, err)
	}
	if cl.contentType != "" {
		req.Header.Set("Content-Type", cl.contentType)
	}
	req.Header.Set("Accept", "application/json")
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)

	if cl.auth {
		tok, err := c.bearer(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return &NetworkError{Op: cl.route, Err: err}
		}
	}

	start := time.Now()
	res, err := c.HTTP.Do(req)
	if err != nil {
		c.observe(cl.route, 0, time.Since(start))
		c.Log.Warn("backend request failed", zap.String("route", cl.route), zap.String("requestId", reqID), zap.Error(err))
		return &NetworkError{Op: cl.route, Err: err}
	}
	defer res.Body.Close()
	c.observe(cl.route, res.StatusCode, time.Since(start))

	if res.StatusCode == http.StatusUnauthorized && cl.auth {
		return ErrAuthExpired
	}
	if res.StatusCode >= 300 {
		se := &ServerError{Status: res.StatusCode, Detail: readDetail(res.Body)}
		c.Log.Debug("backend rejected", zap.String("route", cl.route), zap.Int("status", se.Status), zap.String("detail", se.Detail))
		return se
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s: %w", cl.route, err)
	}
	return nil
}

// bearer devolve o token atual ou ErrAuthExpired sem tocar na rede
func (c *Client) bearer(ctx context.Context) (string, error) {
	if c.Tokens == nil {
		return "", ErrAuthExpired
	}
	tok, err := c.Tokens.Token(ctx)
	if err != nil || tok == "" {
		return "", ErrAuthExpired
	}
	if tokenExpired(tok, c.now()) {
		return "", ErrAuthExpired
	}
	return tok, nil
}

func (c *Client) observe(route string, status int, d time.Duration) {
	if c.OnRequest != nil {
		c.OnRequest(route, status, d)
	}
}

// tokenExpired lê o exp sem validar assinatura; tokens opacos seguem para o backend
func tokenExpired(tok string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.After(now)
}

// readDetail aceita {"detail": "..."} e também a lista de erros de validação do backend
func readDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Detail) == 0 {
		return strings.TrimSpace(string(raw))
	}
	var s string
	if err := json.Unmarshal(body.Detail, &s); err == nil {
		return s
	}
	var list []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(body.Detail, &list); err == nil && len(list) > 0 {
		msgs := make([]string, 0, len(list))
		for _, it := range list {
			msgs = append(msgs, it.Msg)
		}
		return strings.Join(msgs, "; ")
	}
	return string(body.Detail)
}
