// Package marketdata implementa los ports de mercado contra el bridge REST
// del broker (el sidecar que expone la terminal de trading por HTTP local).
package marketdata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBridgeBase = "http://127.0.0.1:8787"

	// El bridge serializa las llamadas a la terminal; por encima de esto
	// solo se acumula cola en el sidecar.
	requestsPerSec = 20
	requestBurst   = 10

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client es el HTTP client del bridge con rate limiting y retries.
type Client struct {
	http    *http.Client
	base    string
	limiter *rate.Limiter
}

// NewClient crea un Client contra el base URL dado. Si base está vacío usa
// el bridge local por defecto.
func NewClient(base string) *Client {
	if base == "" {
		base = defaultBridgeBase
	}
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		base:    base,
		limiter: rate.NewLimiter(requestsPerSec, requestBurst),
	}
}

// get hace un GET con rate limiting y retries.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return c.doWithRetry(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return c.http.Do(req)
	}, out)
}

// post hace un POST JSON con rate limiting y retries.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.doWithRetry(ctx, func() (*http.Response, error) {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return c.http.Do(req)
	}, out)
}

// doWithRetry ejecuta la función con backoff exponencial, reintentando
// errores de red, 429 y 5xx.
func (c *Client) doWithRetry(ctx context.Context, fn func() (*http.Response, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
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
			slog.Warn("rate limited by bridge", "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("bridge error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("bridge rejected request (%d): %s", resp.StatusCode, string(body))
		}

		defer resp.Body.Close()
		if out == nil {
			return nil
		}
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

func itoa(n int) string { return strconv.Itoa(n) }
