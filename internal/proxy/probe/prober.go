// Package probe checks reachability of host-mapped localhost origins before
// the proxy redirects a webview at them. Probe failures never block the
// redirect; the mapping from the host is authoritative and the probe only
// feeds logs and metrics.
package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/mzainuddin51/vscode/internal/infrastructure/logging"
	"github.com/mzainuddin51/vscode/internal/infrastructure/resilience"
)

const probeTimeout = 2 * time.Second

// Prober issues short-timeout reachability checks against mapped origins.
type Prober struct {
	client  *resty.Client
	breaker *resilience.Breaker
	logger  *logging.Logger
}

// New creates a prober with a breaker tuned for flapping dev servers.
func New(logger *logging.Logger) *Prober {
	client := resty.New().
		SetTimeout(probeTimeout).
		SetRedirectPolicy(resty.NoRedirectPolicy()).
		SetHeader("User-Agent", "webview-proxy-probe/1.0")

	breaker := resilience.New("localhost-probe", resilience.Settings{
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Info("Probe breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Prober{client: client, breaker: breaker, logger: logger}
}

// Check probes origin with a HEAD request through the breaker. Any HTTP
// status counts as reachable; only transport errors count as failures.
func (p *Prober) Check(ctx context.Context, origin string) error {
	return p.breaker.Do(func() error {
		resp, err := p.client.R().SetContext(ctx).Head(origin)
		if err != nil {
			// NoRedirectPolicy surfaces redirects as errors; a redirect
			// still proves the origin is alive.
			if resp != nil && resp.StatusCode() >= 300 && resp.StatusCode() < 400 {
				return nil
			}
			return fmt.Errorf("origin %s unreachable: %w", origin, err)
		}
		return nil
	})
}

// BreakerState exposes the breaker state for the stats endpoint.
func (p *Prober) BreakerState() string {
	return p.breaker.State().String()
}
