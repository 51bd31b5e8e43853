package core

import (
	"sync"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []Frame
	closes int
	err    error
}

func (f *fakeConn) TrySend(fr Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
}

func newTestClient(id string) (*Client, *fakeConn) {
	fc := &fakeConn{}
	return NewClient(domainID(id), fc), fc
}
