package loadgen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Config describes a burst of authenticated requests sent with one session
// credential, used to observe where the per-session limiter starts rejecting.
type Config struct {
	BaseURL     string
	Path        string
	Token       string
	Requests    int
	Concurrency int
	Timeout     time.Duration
	Client      *http.Client
}

type Result struct {
	TotalRequests int
	Failures      int
	ByClass       map[string]int
	// FirstLimited is the 1-based index of the first 429, or 0 if none was seen.
	FirstLimited int
}

func Run(ctx context.Context, cfg Config) (Result, error) {
	cfg, err := normalize(cfg)
	if err != nil {
		return Result{}, err
	}

	var (
		mu     sync.Mutex
		res    = Result{ByClass: map[string]int{}}
		next   atomic.Int64
		wg     sync.WaitGroup
		target = strings.TrimRight(cfg.BaseURL, "/") + cfg.Path
	)
	worker := func() {
		defer wg.Done()
		for {
			n := int(next.Add(1))
			if n > cfg.Requests || ctx.Err() != nil {
				return
			}
			status, err := send(ctx, cfg, target)
			mu.Lock()
			res.TotalRequests++
			if err != nil {
				res.Failures++
				res.ByClass["error"]++
			} else {
				res.ByClass[classifyStatusClass(status)]++
				if status == http.StatusTooManyRequests && (res.FirstLimited == 0 || n < res.FirstLimited) {
					res.FirstLimited = n
				}
			}
			mu.Unlock()
		}
	}
	wg.Add(cfg.Concurrency)
	for i := 0; i < cfg.Concurrency; i++ {
		go worker()
	}
	wg.Wait()
	return res, ctx.Err()
}

func send(ctx context.Context, cfg Config, target string) (int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return 0, err
	}
	if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}
	resp, err := cfg.Client.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func normalize(cfg Config) (Config, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return cfg, errors.New("base url is required")
	}
	if cfg.Requests <= 0 {
		return cfg, fmt.Errorf("requests must be > 0, got %d", cfg.Requests)
	}
	if cfg.Path == "" {
		cfg.Path = "/api/v1/session"
	}
	if !strings.HasPrefix(cfg.Path, "/") {
		cfg.Path = "/" + cfg.Path
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Concurrency > cfg.Requests {
		cfg.Concurrency = cfg.Requests
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	return cfg, nil
}

func classifyStatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	default:
		return "other"
	}
}
