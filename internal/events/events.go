// internal/events/events.go

// Package events carries notification and activity events to their sinks
// without letting sink failures reach the operation that produced them.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/dlms-backend/internal/models"
)

// Notification is a message addressed to one user.
type Notification struct {
	UserID   uuid.UUID
	Title    string
	Message  string
	Severity models.Severity
	Link     string
}

// Activity is an audit-trail entry.
type Activity struct {
	UserID    *uuid.UUID
	Category  string
	Action    string
	SubjectID *uuid.UUID
	Metadata  map[string]interface{}
}

// Emitter delivers notifications.
type Emitter interface {
	Emit(ctx context.Context, n Notification) error
}

// ActivityLogger records activities.
type ActivityLogger interface {
	Log(ctx context.Context, a Activity) error
}

// Dispatcher runs sink calls in the background. A failing or panicking sink
// is logged and otherwise ignored.
type Dispatcher struct {
	emitter Emitter
	logger  ActivityLogger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(emitter Emitter, logger ActivityLogger) *Dispatcher {
	return &Dispatcher{
		emitter: emitter,
		logger:  logger,
		timeout: 10 * time.Second,
	}
}

// Notify emits n in the background.
func (d *Dispatcher) Notify(n Notification) {
	if d == nil || d.emitter == nil {
		return
	}
	d.run("notification", func(ctx context.Context) error {
		return d.emitter.Emit(ctx, n)
	}, logrus.Fields{"user_id": n.UserID, "title": n.Title})
}

// Record logs a in the background.
func (d *Dispatcher) Record(a Activity) {
	if d == nil || d.logger == nil {
		return
	}
	d.run("activity", func(ctx context.Context) error {
		return d.logger.Log(ctx, a)
	}, logrus.Fields{"category": a.Category, "action": a.Action})
}

// Wait blocks until every dispatched event has been handled.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

func (d *Dispatcher) run(kind string, fn func(ctx context.Context) error, fields logrus.Fields) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		// Detached from the request context: the request may already be finished.
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := safeCall(ctx, fn); err != nil {
			logrus.WithError(err).WithFields(fields).WithField("sink", kind).Warn("Event delivery failed")
		}
	}()
}

func safeCall(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()
	return fn(ctx)
}
