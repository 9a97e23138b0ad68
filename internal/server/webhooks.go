package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"belkon/internal/config"
	"belkon/internal/domain"
	"belkon/internal/engine"
)

const (
	webhookPollInterval = 2 * time.Second
	webhookBatchSize    = 100
	webhookPostTimeout  = 10 * time.Second
)

// webhookDispatcher tails the event log and POSTs matching events to the
// configured endpoints. Cursors start at the current tail so a restart does
// not replay history; delivery is at-most-once.
type webhookDispatcher struct {
	engine  engine.Engine
	hooks   []config.Webhook
	log     *zap.Logger
	client  *http.Client
	cursors map[string]int64
}

// startWebhookDispatcher begins background delivery when any webhooks are
// configured. No-op otherwise.
func startWebhookDispatcher(e engine.Engine, log *zap.Logger) {
	var hooks []config.Webhook
	if e.Config != nil {
		hooks = e.Config.Webhooks
	}
	if len(hooks) == 0 {
		return
	}
	if log == nil {
		log = zap.NewNop()
	}
	d := &webhookDispatcher{
		engine:  e,
		hooks:   hooks,
		log:     log,
		client:  &http.Client{Timeout: webhookPostTimeout},
		cursors: make(map[string]int64, len(hooks)),
	}
	go d.run(context.Background())
}

func (d *webhookDispatcher) run(ctx context.Context) {
	latest, err := d.engine.Repo.LatestEventID(ctx)
	if err != nil {
		d.log.Error("webhook dispatcher init failed", zap.Error(err))
		return
	}
	for _, h := range d.hooks {
		d.cursors[h.Name] = latest
	}
	ticker := time.NewTicker(webhookPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.poll(ctx)
		}
	}
}

func (d *webhookDispatcher) poll(ctx context.Context) {
	for i := range d.hooks {
		hook := d.hooks[i]
		cursor := d.cursors[hook.Name]
		evts, err := d.engine.Repo.ListAllEvents(ctx, cursor, webhookBatchSize)
		if err != nil {
			d.log.Warn("webhook event fetch failed", zap.String("hook", hook.Name), zap.Error(err))
			continue
		}
		for _, evt := range evts {
			if eventMatches(hook.Events, evt.Type) {
				if err := d.post(ctx, hook, evt); err != nil {
					d.log.Warn("webhook delivery failed",
						zap.String("hook", hook.Name),
						zap.String("event", evt.Type),
						zap.Int64("event_id", evt.ID),
						zap.Error(err))
				}
			}
			d.cursors[hook.Name] = evt.ID
		}
	}
}

// eventMatches accepts an empty filter (all events) or exact type matches.
func eventMatches(filter []string, evtType string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if f == evtType {
			return true
		}
	}
	return false
}

func (d *webhookDispatcher) post(ctx context.Context, hook config.Webhook, evt domain.Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Belkon-Event", evt.Type)
	req.Header.Set("X-Belkon-Event-ID", strconv.FormatInt(evt.ID, 10))
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	return nil
}
