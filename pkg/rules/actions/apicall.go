package actions

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"forgeline/anvil/pkg/rules/plugin"
)

// CallError reports an api-call that exhausted its retry budget.
type CallError struct {
	URL        string
	StatusCode int
	Message    string
}

func (e *CallError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("api-call to %s failed with status %d: %s", e.URL, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api-call to %s failed: %s", e.URL, e.Message)
}

type apiCallAction struct {
	cfg Config
}

func (a *apiCallAction) RequiredArgs() []string { return []string{"url"} }
func (a *apiCallAction) OptionalArgs() []string {
	return []string{"method", "headers", "timeout", "retries", "proxy"}
}
func (a *apiCallAction) FormattedArgs() []string { return []string{"url", "headers"} }

var callMethods = map[string]struct{}{
	http.MethodGet:    {},
	http.MethodPost:   {},
	http.MethodPut:    {},
	http.MethodDelete: {},
}

func (a *apiCallAction) Validate(args map[string]interface{}) error {
	raw, err := stringArg(args, "url")
	if err != nil {
		return err
	}
	// Templated URLs are only resolvable at execution time.
	if !isTemplated(raw) {
		if _, err := url.Parse(raw); err != nil {
			return fmt.Errorf("invalid url %q: %w", raw, err)
		}
	}
	if method, ok := args["method"]; ok {
		s, isStr := method.(string)
		if !isStr {
			return fmt.Errorf("method must be a string, got %T", method)
		}
		if _, known := callMethods[strings.ToUpper(s)]; !known {
			return fmt.Errorf("unsupported method %q", s)
		}
	}
	if proxy, ok := args["proxy"]; ok {
		s, isStr := proxy.(string)
		if !isStr {
			return fmt.Errorf("proxy must be a string, got %T", proxy)
		}
		if _, err := url.Parse(s); err != nil {
			return fmt.Errorf("invalid proxy %q: %w", s, err)
		}
	}
	if headers, ok := args["headers"]; ok {
		if _, isMap := headers.(map[string]interface{}); !isMap {
			return fmt.Errorf("headers must be a mapping, got %T", headers)
		}
	}
	if timeout, ok := args["timeout"]; ok {
		if _, err := toSeconds(timeout); err != nil {
			return fmt.Errorf("invalid timeout: %w", err)
		}
	}
	if retries, ok := args["retries"]; ok {
		if _, err := toRetries(retries); err != nil {
			return fmt.Errorf("invalid retries: %w", err)
		}
	}
	return nil
}

func (a *apiCallAction) Execute(ctx context.Context, ec *plugin.ExecContext, args map[string]interface{}) error {
	target, err := stringArg(args, "url")
	if err != nil {
		return err
	}

	timeout := a.cfg.HTTPTimeout
	if raw, ok := args["timeout"]; ok {
		timeout, err = toSeconds(raw)
		if err != nil {
			return err
		}
	}
	retries := a.cfg.HTTPRetries
	if raw, ok := args["retries"]; ok {
		retries, err = toRetries(raw)
		if err != nil {
			return err
		}
	}

	client := a.cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	if rawProxy, ok := args["proxy"]; ok {
		proxyURL, perr := url.Parse(renderText(rawProxy))
		if perr != nil {
			return fmt.Errorf("invalid proxy: %w", perr)
		}
		proxied := *client
		proxied.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		client = &proxied
	}
	logger := ec.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			logger.Debug("retrying api-call",
				"url", target,
				"attempt", attempt,
				"max_retries", retries,
				"backoff", backoff,
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		reqCtx := ctx
		var cancel context.CancelFunc
		if timeout > 0 {
			reqCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		resp, err := a.do(reqCtx, client, target, args)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = &CallError{URL: target, Message: err.Error()}
			logger.Warn("api-call failed, will retry",
				"url", target,
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			logger.Info("api-call succeeded",
				"url", target,
				"status", resp.StatusCode,
				"node_uuid", nodeUUID(ec),
			)
			return nil
		}

		lastErr = &CallError{URL: target, StatusCode: resp.StatusCode, Message: string(body)}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			// Client errors will not improve on retry.
			return lastErr
		}
		logger.Warn("api-call returned error status, will retry",
			"url", target,
			"status", resp.StatusCode,
			"attempt", attempt+1,
		)
	}
	return lastErr
}

func (a *apiCallAction) do(ctx context.Context, client *http.Client, target string, args map[string]interface{}) (*http.Response, error) {
	method := http.MethodGet
	if raw, ok := args["method"]; ok {
		method = strings.ToUpper(renderText(raw))
	}
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if headers, ok := args["headers"].(map[string]interface{}); ok {
		for key, value := range headers {
			req.Header.Set(key, renderText(value))
		}
	}
	return client.Do(req)
}

func isTemplated(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '{' {
			return true
		}
	}
	return false
}

func toSeconds(v interface{}) (time.Duration, error) {
	switch t := v.(type) {
	case int:
		return time.Duration(t) * time.Second, nil
	case int64:
		return time.Duration(t) * time.Second, nil
	case float64:
		return time.Duration(t * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("expected a number of seconds, got %T", v)
	}
}

func toRetries(v interface{}) (int, error) {
	switch t := v.(type) {
	case int:
		if t < 0 {
			return 0, fmt.Errorf("must not be negative")
		}
		return t, nil
	case int64:
		if t < 0 {
			return 0, fmt.Errorf("must not be negative")
		}
		return int(t), nil
	case float64:
		if t < 0 || t != math.Trunc(t) {
			return 0, fmt.Errorf("must be a non-negative integer")
		}
		return int(t), nil
	default:
		return 0, fmt.Errorf("expected an integer, got %T", v)
	}
}
