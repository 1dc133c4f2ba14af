package service

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// WaitTimeout is the default maximum time a client can wait for notifications
const WaitTimeout = 25 * time.Second

// WaitRegistry manages long-polling clients waiting for game state changes
type WaitRegistry struct {
	mu           sync.Mutex
	waiters      map[string][]*WaitRequest // gameID → waiting clients
	timeout      time.Duration
	shutdown     chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

// WaitRequest represents a single client waiting for game updates
type WaitRequest struct {
	MoveCount int           // Last known move count
	Notify    chan struct{} // Receives exactly one signal: change, timeout or shutdown
	GameID    string

	timer *time.Timer
	done  chan struct{}
	once  sync.Once
}

// fire signals the client once; later calls are no-ops
func (r *WaitRequest) fire() {
	r.once.Do(func() {
		r.Notify <- struct{}{}
		close(r.done)
	})
}

func NewWaitRegistry(timeout time.Duration) *WaitRegistry {
	if timeout <= 0 {
		timeout = WaitTimeout
	}
	return &WaitRegistry{
		waiters:  make(map[string][]*WaitRequest),
		timeout:  timeout,
		shutdown: make(chan struct{}),
	}
}

// RegisterWait registers a client to wait for game state changes. The
// returned channel receives one value when the move count differs from
// moveCount, when the game ends or is removed, on timeout, or on shutdown.
func (w *WaitRegistry) RegisterWait(ctx context.Context, gameID string, moveCount int) <-chan struct{} {
	req := &WaitRequest{
		MoveCount: moveCount,
		Notify:    make(chan struct{}, 1),
		GameID:    gameID,
		done:      make(chan struct{}),
	}

	w.mu.Lock()
	w.waiters[gameID] = append(w.waiters[gameID], req)
	req.timer = time.AfterFunc(w.timeout, func() {
		w.remove(req)
		req.fire()
	})
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		select {
		case <-ctx.Done():
			// Client disconnected
			req.timer.Stop()
			w.remove(req)
		case <-req.done:
		case <-w.shutdown:
			w.release(req)
		}
	}()

	return req.Notify
}

// NotifyGame wakes clients whose known move count differs from currentMoveCount
func (w *WaitRegistry) NotifyGame(gameID string, currentMoveCount int) {
	for _, req := range w.snapshot(gameID) {
		if req.MoveCount != currentMoveCount {
			w.release(req)
		}
	}
}

// NotifyAll wakes every client waiting on a game
func (w *WaitRegistry) NotifyAll(gameID string) {
	for _, req := range w.snapshot(gameID) {
		w.release(req)
	}
}

// RemoveGame wakes and forgets all waiters for a game
func (w *WaitRegistry) RemoveGame(gameID string) {
	w.mu.Lock()
	waitList := w.waiters[gameID]
	delete(w.waiters, gameID)
	w.mu.Unlock()

	for _, req := range waitList {
		req.timer.Stop()
		req.fire()
	}
}

// Count returns the number of registered waiters for a game
func (w *WaitRegistry) Count(gameID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.waiters[gameID])
}

// Shutdown releases every waiter and waits for their goroutines
func (w *WaitRegistry) Shutdown(timeout time.Duration) error {
	w.shutdownOnce.Do(func() {
		close(w.shutdown)
	})

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("wait registry shutdown timed out after %s", timeout)
	}
}

func (w *WaitRegistry) snapshot(gameID string) []*WaitRequest {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*WaitRequest(nil), w.waiters[gameID]...)
}

// release removes the request and signals it
func (w *WaitRegistry) release(req *WaitRequest) {
	req.timer.Stop()
	w.remove(req)
	req.fire()
}

func (w *WaitRegistry) remove(req *WaitRequest) {
	w.mu.Lock()
	defer w.mu.Unlock()

	waitList := w.waiters[req.GameID]
	for i, waiter := range waitList {
		if waiter == req {
			w.waiters[req.GameID] = append(waitList[:i], waitList[i+1:]...)
			break
		}
	}

	if len(w.waiters[req.GameID]) == 0 {
		delete(w.waiters, req.GameID)
	}
}
