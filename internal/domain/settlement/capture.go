package settlement

import (
	"context"
	"sync"
)

// Prepared is a Capture whose tender was collected before the engine was called
// (e.g. sent along with an HTTP request by the terminal UI).
type Prepared struct {
	Tenders   []Tender
	Cancelled bool
}

// Capture implements Capture.
func (p Prepared) Capture(_ context.Context, _ Request) (Result, error) {
	return Result{Tenders: p.Tenders, Cancelled: p.Cancelled}, nil
}

// ScriptedCapture replays scripted dialog outcomes in order and records every
// request it was shown. The zero value answers with the exact amount in cash.
type ScriptedCapture struct {
	mu       sync.Mutex
	script   []Result
	requests []Request
}

// NewScriptedCapture creates a capture that replays results in order.
func NewScriptedCapture(results ...Result) *ScriptedCapture {
	return &ScriptedCapture{script: results}
}

// ExactCash returns a capture that always tenders the requested magnitude in cash.
func ExactCash() *ScriptedCapture {
	return &ScriptedCapture{}
}

// Capture implements Capture.
func (c *ScriptedCapture) Capture(_ context.Context, req Request) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, req)
	if len(c.script) == 0 {
		return Result{Tenders: []Tender{{Instrument: "cash", Amount: req.Amount.Abs()}}}, nil
	}
	next := c.script[0]
	c.script = c.script[1:]
	return next, nil
}

// Requests returns the requests shown so far.
func (c *ScriptedCapture) Requests() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Request, len(c.requests))
	copy(out, c.requests)
	return out
}
