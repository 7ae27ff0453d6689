package betfair

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/arvbot/internal/domain"
)

const (
	defaultIdentityBase = "https://identitysso-cert.betfair.com"
	defaultBettingBase  = "https://api.betfair.com/exchange/betting/rest/v1.0"

	// Rate limits conservadores: el poller hace pocas llamadas por sesión y
	// Betfair penaliza ráfagas de login.
	bettingRatePerSec = 5
	loginRatePerMin   = 10

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client es el cliente REST autenticado de Betfair. Solo Login lo construye,
// así que tener un *Client implica credenciales aceptadas.
type Client struct {
	http         *http.Client
	identityBase string
	bettingBase  string
	creds        Credentials

	bettingLimiter *rate.Limiter
	loginLimiter   *rate.Limiter

	mu           sync.RWMutex
	sessionToken string
}

// APIError es un error 4xx de la Betting API con su código APING.
type APIError struct {
	Operation  string
	StatusCode int
	ErrorCode  string
	Body       string
}

func (e *APIError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("betfair %s: %d %s", e.Operation, e.StatusCode, e.ErrorCode)
	}
	return fmt.Sprintf("betfair %s: client error %d: %s", e.Operation, e.StatusCode, e.Body)
}

// Unwrap expone domain.ErrAuth para los códigos de sesión/app key inválidos.
func (e *APIError) Unwrap() error {
	if isSessionError(e.ErrorCode) {
		return domain.ErrAuth
	}
	return nil
}

func isSessionError(code string) bool {
	switch code {
	case "INVALID_SESSION_INFORMATION", "NO_SESSION", "INVALID_APP_KEY", "NO_APP_KEY":
		return true
	}
	return false
}

// call invoca una operación de la Betting API. Si la sesión expiró, vuelve a
// hacer login una vez y repite la llamada.
func (c *Client) call(ctx context.Context, operation string, body, out any) error {
	err := c.post(ctx, operation, body, out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && isSessionError(apiErr.ErrorCode) && apiErr.ErrorCode != "INVALID_APP_KEY" {
		slog.Info("betfair session expired, logging in again", "operation", operation)
		if lerr := c.login(ctx); lerr != nil {
			return fmt.Errorf("betfair.%s: relogin: %w", operation, lerr)
		}
		err = c.post(ctx, operation, body, out)
	}
	if err != nil {
		return fmt.Errorf("betfair.%s: %w", operation, err)
	}
	return nil
}

// post hace un POST JSON a /<operation>/ con rate limiting y retries.
func (c *Client) post(ctx context.Context, operation string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	url := strings.TrimRight(c.bettingBase, "/") + "/" + operation + "/"

	return c.doWithRetry(ctx, c.bettingLimiter, operation, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Application", c.creds.AppKey)
		req.Header.Set("X-Authentication", c.token())
		return c.http.Do(req)
	}, out)
}

// doWithRetry ejecuta la función con backoff exponencial. Reintenta errores de
// red, 429 y 5xx; un 4xx se devuelve como *APIError sin reintentar.
func (c *Client) doWithRetry(ctx context.Context, limiter *rate.Limiter, operation string, fn func() (*http.Response, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("rate limited by betfair", "operation", operation, "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return &APIError{
				Operation:  operation,
				StatusCode: resp.StatusCode,
				ErrorCode:  apingErrorCode(body),
				Body:       string(body),
			}
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionToken
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionToken = token
}

// apingErrorCode extrae detail.APINGException.errorCode del cuerpo de un 4xx.
func apingErrorCode(body []byte) string {
	var fault apingFault
	if err := json.Unmarshal(body, &fault); err != nil {
		return ""
	}
	return fault.Detail.APINGException.ErrorCode
}
