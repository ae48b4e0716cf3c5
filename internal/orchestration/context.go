package orchestration

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/dicomfn/pkg/model"
)

// Context is handed to an orchestrator and is its only way to suspend.
// Every call that makes progress updates the instance's LastUpdatedTime.
type Context struct {
	rt     *Runtime
	inst   *instance
	ref    model.InstanceRef
	logger *slog.Logger
}

var _ EventWaiter = (*Context)(nil)

func (c *Context) InstanceID() string { return c.ref.InstanceID }

func (c *Context) Name() string { return c.ref.Name }

// Logger returns a logger tagged with the instance.
func (c *Context) Logger() *slog.Logger { return c.logger }

// CurrentTime returns the runtime clock.
func (c *Context) CurrentTime() time.Time { return c.rt.now() }

// CallActivity runs the named activity and decodes its result into out, which may be nil.
func (c *Context) CallActivity(ctx context.Context, name string, input any, out any) error {
	fn, err := c.rt.registry.Activity(name)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("marshal activity input: %w", err)
	}

	res, err := fn(ctx, raw)
	if err != nil {
		return fmt.Errorf("activity %s: %w", name, err)
	}
	c.rt.touch(c.inst)

	if out == nil {
		return nil
	}
	b, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal activity result: %w", err)
	}
	return json.Unmarshal(b, out)
}

// CreateTimer suspends the instance for d.
func (c *Context) CreateTimer(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		c.rt.touch(c.inst)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitForExternalEvent consumes the next event named name and decodes it into
// out, which may be nil. A timeout <= 0 waits until ctx is done.
func (c *Context) WaitForExternalEvent(ctx context.Context, name string, timeout time.Duration, out any) error {
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	for {
		payload, notify, ok := c.rt.takeEvent(c.inst, name)
		if ok {
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(payload, out); err != nil {
				return fmt.Errorf("decode event %s: %w", name, err)
			}
			return nil
		}

		select {
		case <-notify:
		case <-expired:
			return fmt.Errorf("%w: %s after %s", ErrEventTimeout, name, timeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
