// Package dispatch routes committed domain events into the gateway.
//
// A dispatch does two things: syncable events are appended to the
// durable event log so disconnected clients can catch up later, and the
// event is fanned out to the targeted connections. Dispatch never
// returns delivery errors to its caller; a REST handler that already
// committed its transaction has nothing useful to do with one.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cmorg789/vox/internal/logger"
	"github.com/cmorg789/vox/pkg/eventlog"
	"github.com/cmorg789/vox/pkg/events"
	"github.com/cmorg789/vox/pkg/gateway"
	"github.com/cmorg789/vox/pkg/metrics"
	"github.com/cmorg789/vox/pkg/snowflake"
)

// Dispatcher fans committed events out to gateway sessions and appends
// syncable ones to the event log.
type Dispatcher struct {
	hub     *gateway.Hub
	log     eventlog.Log
	ids     *snowflake.Generator
	metrics metrics.EventLogMetrics
}

// New creates a dispatcher. Pass nil metrics to disable
// instrumentation.
func New(hub *gateway.Hub, log eventlog.Log, ids *snowflake.Generator, m metrics.EventLogMetrics) *Dispatcher {
	return &Dispatcher{hub: hub, log: log, ids: ids, metrics: m}
}

// Dispatch broadcasts an event to every connected user.
func (d *Dispatcher) Dispatch(ctx context.Context, evt events.Event) error {
	return d.dispatch(ctx, evt, nil)
}

// DispatchTo delivers an event only to the listed users' connections.
// Users without connections are skipped silently.
func (d *Dispatcher) DispatchTo(ctx context.Context, evt events.Event, userIDs []int64) error {
	if userIDs == nil {
		userIDs = []int64{}
	}
	return d.dispatch(ctx, evt, userIDs)
}

// dispatch appends then fans out. The append happens before fan-out so
// an event a client saw live is always in the log for its peers'
// catch-up; fan-out itself is best-effort.
func (d *Dispatcher) dispatch(ctx context.Context, evt events.Event, userIDs []int64) error {
	if events.IsSyncable(evt.Type) {
		if err := d.append(ctx, evt); err != nil {
			// Fan-out still proceeds: connected clients get the
			// event even when the log is struggling.
			logger.Error("event log append failed", logger.Event(evt.Type), logger.Err(err))
		}
	}

	d.hub.Broadcast(evt, userIDs)
	return nil
}

func (d *Dispatcher) append(ctx context.Context, evt events.Event) error {
	payload, err := json.Marshal(evt.D)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", evt.Type, err)
	}

	start := time.Now()
	err = d.log.Append(ctx, eventlog.Entry{
		ID:        d.ids.Next(),
		Type:      evt.Type,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	if d.metrics != nil {
		d.metrics.RecordAppend(time.Since(start))
	}
	return nil
}

// Compile-time check: the dispatcher is the gateway's Dispatcher.
var _ gateway.Dispatcher = (*Dispatcher)(nil)
