// SPDX-License-Identifier: GPL-3.0-or-later

package epm

import (
	"context"
	"sync"
)

// FakeManager is a fully-overridable [Manager] test double.
//
// Every method delegates to the corresponding *Func field when set and
// falls back to a harmless default otherwise, mirroring the teacher's
// FuncDialer/FuncConn test-double convention.
type FakeManager struct {
	BuildFunc    func(ctx context.Context, endpointID string, connectionLabel uint16) error
	DestroyFunc  func(ctx context.Context, endpointID string) error
	ResetFunc    func(endpointID string)
	ShutdownFunc func()

	mu        sync.Mutex
	observers map[string]func(Result)
}

var _ Manager = &FakeManager{}

// Build implements [Manager].
func (f *FakeManager) Build(ctx context.Context, endpointID string, connectionLabel uint16) error {
	if f.BuildFunc != nil {
		return f.BuildFunc(ctx, endpointID, connectionLabel)
	}
	return nil
}

// Destroy implements [Manager].
func (f *FakeManager) Destroy(ctx context.Context, endpointID string) error {
	if f.DestroyFunc != nil {
		return f.DestroyFunc(ctx, endpointID)
	}
	return nil
}

// Reset implements [Manager].
func (f *FakeManager) Reset(endpointID string) {
	if f.ResetFunc != nil {
		f.ResetFunc(endpointID)
	}
}

// Observe implements [Manager].
func (f *FakeManager) Observe(endpointID string, notify func(Result)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.observers == nil {
		f.observers = make(map[string]func(Result))
	}
	f.observers[endpointID] = notify
}

// Unobserve implements [Manager].
func (f *FakeManager) Unobserve(endpointID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.observers, endpointID)
}

// Shutdown implements [Manager].
func (f *FakeManager) Shutdown() {
	if f.ShutdownFunc != nil {
		f.ShutdownFunc()
	}
}

// Notify delivers result to the currently-registered observer for
// endpointID, if any. Tests use this to simulate an asynchronous EPM
// completion callback.
func (f *FakeManager) Notify(endpointID string, result Result) {
	f.mu.Lock()
	notify := f.observers[endpointID]
	f.mu.Unlock()
	if notify != nil {
		notify(result)
	}
}

// Observing reports whether an observer is currently registered for
// endpointID.
func (f *FakeManager) Observing(endpointID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.observers[endpointID]
	return ok
}
