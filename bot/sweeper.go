package bot

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/onnwee/vc-tender/telemetry"
)

// StartBindingSweeper runs a background job that periodically retires bindings
// whose voice channel no longer exists. Gateway delete events can be missed
// while the connection is down; the sweeper keeps the in-memory cache honest.
// A non-positive interval disables the job.
func (c *Coordinator) StartBindingSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		slog.Info("binding sweeper disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	slog.Info("binding sweeper started", slog.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweepOnce(ctx)
		}
	}
}

// sweepOnce checks every bound VC and retires those Discord reports as gone.
// Only a definitive unknown-channel answer triggers retirement; transient API
// failures leave the binding alone until the next pass.
func (c *Coordinator) sweepOnce(ctx context.Context) {
	for _, vcID := range c.bindings.VCIDs() {
		if ctx.Err() != nil {
			return
		}
		_, err := c.dc.Channel(vcID, discordgo.WithContext(ctx))
		if err == nil {
			continue
		}
		if !isUnknownChannel(err) {
			slog.Debug("sweep: channel fetch failed, keeping binding",
				slog.String("vc_id", vcID), slog.Any("err", err))
			continue
		}
		threadID, bound := c.bindings.ThreadFor(vcID)
		if !bound {
			continue
		}
		evctx := telemetry.WithCorrelation(ctx, uuid.New().String())
		log := telemetry.LoggerWithCorr(evctx)
		log.Warn("sweeping stale binding", slog.String("vc_id", vcID), slog.String("thread_id", threadID))
		outcome := c.retireThread(evctx, vcID, threadID)
		telemetry.BindingsSwept.Inc()
		c.recordSessionEnd(evctx, vcID, "swept-"+outcome)
	}
}

// isUnknownChannel reports whether err is Discord's definitive "channel does
// not exist" answer (error code 10003 / HTTP 404).
func isUnknownChannel(err error) bool {
	var rerr *discordgo.RESTError
	if !errors.As(err, &rerr) {
		return false
	}
	if rerr.Message != nil && rerr.Message.Code == discordgo.ErrCodeUnknownChannel {
		return true
	}
	return rerr.Response != nil && rerr.Response.StatusCode == http.StatusNotFound
}
