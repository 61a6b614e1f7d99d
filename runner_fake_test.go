package relsign

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/meigma/relsign/core"
)

// fakeCall records one tool invocation.
type fakeCall struct {
	name string
	args []string
}

// key returns a short identifier for matching scripted responses, e.g.
// "signtool sign", "security import", "xcrun notarytool".
func (c fakeCall) key() string {
	if len(c.args) > 0 && (c.name == "security" || c.name == "xcrun" || c.name == "signtool") {
		return c.name + " " + c.args[0]
	}
	return c.name
}

// flagValue returns the argument following flag, or "".
func (c fakeCall) flagValue(flag string) string {
	for i, a := range c.args {
		if a == flag && i+1 < len(c.args) {
			return c.args[i+1]
		}
	}
	return ""
}

// fakeRunner is a scripted Runner for fault injection at the
// external-process boundary.
type fakeRunner struct {
	mu    sync.Mutex
	calls []fakeCall

	// results maps call keys to scripted results. Unscripted calls
	// succeed with exit 0 and empty output.
	results map[string]*core.RunResult

	// errs maps call keys to start errors.
	errs map[string]error

	// blockOn names a call key that blocks until the context is done,
	// simulating a hung remote service.
	blockOn string

	// onCall observes each invocation before the response is returned,
	// letting tests inspect transient files while they exist.
	onCall func(fakeCall)
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		results: map[string]*core.RunResult{},
		errs:    map[string]error{},
	}
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) (*core.RunResult, error) {
	call := fakeCall{name: name, args: args}

	r.mu.Lock()
	r.calls = append(r.calls, call)
	onCall := r.onCall
	r.mu.Unlock()

	if onCall != nil {
		onCall(call)
	}

	key := call.key()
	if r.blockOn == key {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := r.errs[key]; err != nil {
		return nil, err
	}
	if res := r.results[key]; res != nil {
		return res, nil
	}
	return &core.RunResult{}, nil
}

// callKeys returns the keys of all recorded calls in order.
func (r *fakeRunner) callKeys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, len(r.calls))
	for i, c := range r.calls {
		keys[i] = c.key()
	}
	return keys
}

// find returns the first recorded call with the given key.
func (r *fakeRunner) find(key string) (fakeCall, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if c.key() == key {
			return c, true
		}
	}
	return fakeCall{}, false
}

// called reports whether any recorded call has the given key.
func (r *fakeRunner) called(key string) bool {
	_, ok := r.find(key)
	return ok
}

// identityListing builds find-identity output for the given identity names.
func identityListing(names ...string) string {
	var b strings.Builder
	for i, name := range names {
		fmt.Fprintf(&b, "  %d) 0123456789ABCDEF %q\n", i+1, name)
	}
	fmt.Fprintf(&b, "  %d valid identities found\n", len(names))
	return b.String()
}
