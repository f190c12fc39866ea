// SPDX-License-Identifier: GPL-3.0-or-later

package discovery

import (
	"context"
	"sync"
)

type transportCall struct {
	kind   string
	target uint16
}

// fakeTransport is a [Transport] test double recording every call.
type fakeTransport struct {
	mu    sync.Mutex
	calls []transportCall

	HelloGetErr  error
	WelcomeErr   error
	SignatureErr error
	InitErr      error
}

func (f *fakeTransport) HelloGet(ctx context.Context, signatureVersion int) error {
	f.record(transportCall{kind: "hello_get"})
	return f.HelloGetErr
}

func (f *fakeTransport) WelcomeStartResult(ctx context.Context, targetAddress, dontCareAddress uint16, signatureVersion int) error {
	f.record(transportCall{kind: "welcome", target: targetAddress})
	return f.WelcomeErr
}

func (f *fakeTransport) SignatureGet(ctx context.Context, nodeAddress uint16) error {
	f.record(transportCall{kind: "signature_get", target: nodeAddress})
	return f.SignatureErr
}

func (f *fakeTransport) ExcInit(ctx context.Context, targetAddress uint16) error {
	f.record(transportCall{kind: "init", target: targetAddress})
	return f.InitErr
}

func (f *fakeTransport) record(c transportCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeTransport) countKind(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.kind == kind {
			n++
		}
	}
	return n
}

func (f *fakeTransport) lastOfKind(kind string) (transportCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].kind == kind {
			return f.calls[i], true
		}
	}
	return transportCall{}, false
}
