package link

import (
	"context"
	"errors"
	"os"
	"time"
)

// aLongTimeAgo is a non-zero time in the past used to abort pending reads.
var aLongTimeAgo = time.Unix(1, 0)

type contextLink struct {
	Link
	ctx context.Context
}

// WithContext returns a Link whose Receive honours the deadline and
// cancellation of ctx.
//
// The wrapped link must implement DeadlineSetter for a pending read to be
// interrupted; otherwise Receive only checks ctx before blocking.
// A read aborted by ctx fails with a *LinkError wrapping ctx.Err().
func WithContext(ctx context.Context, l Link) Link {
	return &contextLink{Link: l, ctx: ctx}
}

func (c *contextLink) Receive() (string, error) {
	if err := c.ctx.Err(); err != nil {
		return "", readError(err)
	}

	ds, ok := c.Link.(DeadlineSetter)
	if !ok {
		return c.Link.Receive()
	}

	deadline, hasDeadline := c.ctx.Deadline()
	if hasDeadline {
		if err := ds.SetReadDeadline(deadline); err != nil {
			return "", readError(err)
		}
	}

	aborted := make(chan struct{})
	stop := context.AfterFunc(c.ctx, func() {
		_ = ds.SetReadDeadline(aLongTimeAgo)
		close(aborted)
	})

	reply, err := c.Link.Receive()

	if !stop() {
		<-aborted
	}
	_ = ds.SetReadDeadline(time.Time{})

	if err == nil {
		return reply, nil
	}

	if ctxErr := c.ctx.Err(); ctxErr != nil {
		return "", readError(ctxErr)
	}
	if hasDeadline && errors.Is(err, os.ErrDeadlineExceeded) {
		return "", readError(context.DeadlineExceeded)
	}

	return "", err
}
