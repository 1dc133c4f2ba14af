package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"webchess/internal/server/core"
	"webchess/internal/server/rules"
	"webchess/internal/server/search"

	"github.com/rs/zerolog"
)

var (
	ErrQueueClosed  = errors.New("queue is shutting down")
	ErrQueueFull    = errors.New("queue is full")
	ErrEngineTimout = errors.New("engine timeout")
)

// EngineTask contains computer move calculation request and response channel
type EngineTask struct {
	GameID   string
	Position *rules.Engine // Detached copy, owned by the worker
	Player   *core.Player  // Mode and depth of the computer side
	Response chan<- EngineResult
}

// EngineResult contains the outcome of a search
type EngineResult struct {
	GameID string
	Move   rules.Move
	Score  int
	Depth  int
	Nodes  int
	Error  error
}

// EngineQueue runs move searches on a fixed pool of workers
type EngineQueue struct {
	tasks    chan EngineTask
	workers  int
	timeout  time.Duration
	selector *search.Selector
	logger   zerolog.Logger
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewEngineQueue creates a queue with specified worker count and per-task timeout
func NewEngineQueue(workerCount int, timeout time.Duration, selector *search.Selector, logger zerolog.Logger) *EngineQueue {
	if workerCount < 1 {
		workerCount = 2
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	q := &EngineQueue{
		tasks:    make(chan EngineTask, 100),
		workers:  workerCount,
		timeout:  timeout,
		selector: selector,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}

	q.start()
	return q
}

func (q *EngineQueue) start() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
}

func (q *EngineQueue) worker(id int) {
	defer q.wg.Done()

	for {
		select {
		case task := <-q.tasks:
			result := q.processTask(task)

			// Send result if receiver still listening
			select {
			case task.Response <- result:
			case <-time.After(100 * time.Millisecond):
				q.logger.Debug().Int("worker", id).Str("game", task.GameID).Msg("result abandoned")
			}

		case <-q.ctx.Done():
			return
		}
	}
}

// processTask runs one search; the position is the worker's own copy
func (q *EngineQueue) processTask(task EngineTask) EngineResult {
	result := EngineResult{GameID: task.GameID}

	cfg := search.Config{Mode: task.Player.Mode, Depth: task.Player.Depth}
	res, err := q.selector.Select(task.Position, cfg)
	if err != nil {
		result.Error = err
		return result
	}

	result.Move = res.Move
	result.Score = res.Score
	result.Depth = res.Depth
	result.Nodes = res.Nodes
	return result
}

// Submit adds a task to the queue
func (q *EngineQueue) Submit(task EngineTask) error {
	if q.ctx.Err() != nil {
		return ErrQueueClosed
	}

	select {
	case q.tasks <- task:
		return nil
	case <-q.ctx.Done():
		return ErrQueueClosed
	default:
		return ErrQueueFull
	}
}

// SubmitAsync submits a task and calls callback with its result, or with a
// timeout error if no worker answers in time
func (q *EngineQueue) SubmitAsync(gameID string, pos *rules.Engine, player *core.Player, callback func(EngineResult)) error {
	respChan := make(chan EngineResult, 1)

	task := EngineTask{
		GameID:   gameID,
		Position: pos,
		Player:   player,
		Response: respChan,
	}

	if err := q.Submit(task); err != nil {
		return err
	}

	go func() {
		select {
		case result := <-respChan:
			callback(result)
		case <-time.After(q.timeout):
			callback(EngineResult{
				GameID: gameID,
				Error:  fmt.Errorf("%w after %s", ErrEngineTimout, q.timeout),
			})
		case <-q.ctx.Done():
			callback(EngineResult{GameID: gameID, Error: ErrQueueClosed})
		}
	}()

	return nil
}

// Shutdown gracefully stops the queue. Queued tasks that no worker picked
// up are dropped.
func (q *EngineQueue) Shutdown(timeout time.Duration) error {
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timeout exceeded")
	}
}
