package handler

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// WatchStoreHealth pings the store every interval and publishes the result
// for the overall server and the ledger service until ctx is done.
func WatchStoreHealth(ctx context.Context, hs *health.Server, store Pinger, interval time.Duration) {
	update := func() {
		st := healthpb.HealthCheckResponse_SERVING
		pingCtx, cancel := context.WithTimeout(ctx, interval)
		err := store.Ping(pingCtx)
		cancel()
		if err != nil {
			st = healthpb.HealthCheckResponse_NOT_SERVING
			slog.WarnContext(ctx, "store ping failed", "error", err)
		}
		hs.SetServingStatus("", st)
		hs.SetServingStatus(LedgerServiceName, st)
	}

	update()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}
