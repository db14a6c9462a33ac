package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"jupiter/internal/config"
	"jupiter/internal/domain"
	"jupiter/internal/engine"
)

const (
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookAttempts = 4
)

// Dispatcher posts a notification to the workspace's webhooks whenever a run closes.
// Deliveries run in the background and retry with exponential backoff.
type Dispatcher struct {
	Engine          engine.Engine
	Client          *http.Client
	Log             logrus.FieldLogger
	Attempts        int
	InitialInterval time.Duration

	wg sync.WaitGroup
}

func (d *Dispatcher) log() logrus.FieldLogger {
	if d.Log == nil {
		return logrus.StandardLogger()
	}
	return d.Log
}

// Wait blocks until every pending delivery is done.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// Notify looks up the receivers of event and delivers entry to each of them.
func (d *Dispatcher) Notify(ctx context.Context, id engine.Identity, event string, entry domain.Entity) {
	hooks, err := d.Engine.Webhooks(ctx, id)
	if err != nil {
		d.log().WithError(err).WithField("event", event).Error("webhook: load receivers")
		return
	}
	n := RunNotification{Event: event, WorkspaceRefID: id.Workspace, Entry: entry}
	bg := context.WithoutCancel(ctx)
	for _, hook := range hooks {
		if len(hook.Events) > 0 && !slices.Contains(hook.Events, event) {
			continue
		}
		n.DeliveryID = uuid.NewString()
		d.wg.Add(1)
		go func(hook config.WebhookConfig, n RunNotification) {
			defer d.wg.Done()
			if err := d.deliver(bg, hook, n); err != nil {
				d.log().WithError(err).WithFields(logrus.Fields{
					"url":         hook.URL,
					"event":       n.Event,
					"delivery_id": n.DeliveryID,
				}).Error("webhook: delivery failed")
			}
		}(hook, n)
	}
}

func (d *Dispatcher) newBackoff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	if d.InitialInterval > 0 {
		bo.InitialInterval = d.InitialInterval
	}
	attempts := d.Attempts
	if attempts < 1 {
		attempts = defaultWebhookAttempts
	}
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(attempts-1)), ctx)
}

func (d *Dispatcher) deliver(ctx context.Context, hook config.WebhookConfig, n RunNotification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	client := d.Client
	if client == nil {
		client = &http.Client{}
	}
	timeout := defaultWebhookTimeout
	if hook.TimeoutSeconds > 0 {
		timeout = time.Duration(hook.TimeoutSeconds) * time.Second
	}
	op := func() error {
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, hook.URL, bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Jupiter-Event", n.Event)
		req.Header.Set("X-Jupiter-Delivery", n.DeliveryID)
		if strings.TrimSpace(hook.Secret) != "" {
			req.Header.Set("X-Jupiter-Secret", hook.Secret)
		}
		res, err := client.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()
		if res.StatusCode >= 200 && res.StatusCode < 300 {
			return nil
		}
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		err = fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
		if res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests {
			return err
		}
		return backoff.Permanent(err)
	}
	return backoff.Retry(op, d.newBackoff(ctx))
}

// announce wraps a run so that its closed log entry is sent to the webhooks.
func announce[A any, R domain.Entity](d *Dispatcher, event string, run func(context.Context, engine.Identity, A) (R, error)) func(context.Context, engine.Identity, A) (R, error) {
	if d == nil {
		return run
	}
	return func(ctx context.Context, id engine.Identity, args A) (R, error) {
		out, err := run(ctx, id, args)
		if err == nil {
			d.Notify(ctx, id, event, out)
		}
		return out, err
	}
}
