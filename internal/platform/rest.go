package platform

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/mastersh0w/citadel/internal/logging"
)

const apiBase = "https://discord.com/api/v10"

// BanExecutor issues ban requests over a small pool of fasthttp clients,
// bypassing the session's request queue. Bans are the one side effect where
// latency matters: a reviewer confirming a ban wants the attacker out now.
type BanExecutor struct {
	clients     []*fasthttp.Client
	next        atomic.Uint64
	token       string
	rateLimiter *RateLimitMonitor
}

func NewBanExecutor(token string, poolSize int) *BanExecutor {
	if poolSize < 1 {
		poolSize = 1
	}
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ClientSessionCache: tls.NewLRUClientSessionCache(64),
	}

	clients := make([]*fasthttp.Client, poolSize)
	for i := range clients {
		clients[i] = &fasthttp.Client{
			MaxConnsPerHost:     256,
			MaxIdleConnDuration: 180 * time.Second,
			ReadTimeout:         2 * time.Second,
			WriteTimeout:        2 * time.Second,
			TLSConfig:           tlsConfig,
		}
	}
	return &BanExecutor{
		clients:     clients,
		token:       token,
		rateLimiter: NewRateLimitMonitor(),
	}
}

// client rotates through the pool. Resolves on distinct cases run in
// parallel, so the rotation must be atomic.
func (b *BanExecutor) client() *fasthttp.Client {
	n := b.next.Add(1) - 1
	return b.clients[n%uint64(len(b.clients))]
}

// ExecuteBan PUTs the ban and records the audit reason. Respects ctx's
// deadline and the mirrored rate limit buckets.
func (b *BanExecutor) ExecuteBan(ctx context.Context, actorID, scopeID, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !b.rateLimiter.CanExecute("ban", scopeID) {
		return fmt.Errorf("ban route rate limited for scope %s", scopeID)
	}

	body, _ := json.Marshal(map[string]interface{}{"delete_message_seconds": 0})

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(fmt.Sprintf("%s/guilds/%s/bans/%s", apiBase, scopeID, actorID))
	req.Header.SetMethod(fasthttp.MethodPut)
	req.Header.Set("Authorization", "Bot "+b.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Audit-Log-Reason", reason)
	req.SetBody(body)

	timeout := 2 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}

	start := time.Now()
	if err := b.client().DoTimeout(req, resp, timeout); err != nil {
		return fmt.Errorf("ban request: %w", err)
	}
	b.rateLimiter.UpdateFromResponse(resp, "ban", scopeID)

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		return fmt.Errorf("ban request: status %d", status)
	}
	logging.Info("ban executed: actor=%s scope=%s in %d ms", actorID, scopeID, time.Since(start).Milliseconds())
	return nil
}
