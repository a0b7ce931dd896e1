package reveal

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"cryptsignal-chat/internal/logger"
)

// Sink 渲染目标
// Render 在任务锁内调用，实现方不得在 Render 中取消同一任务
type Sink interface {
	Render(messageID int64, step Step)
}

// SinkFunc 函数适配器
type SinkFunc func(messageID int64, step Step)

// Render 实现 Sink
func (f SinkFunc) Render(messageID int64, step Step) { f(messageID, step) }

// Task 单条消息的显示任务
type Task struct {
	MessageID int64

	mu       sync.Mutex
	alive    bool
	stop     chan struct{}
	done     chan struct{}
	seq      *Sequence
	finished bool
}

// Cancel 取消任务
// 返回后不会再有任何 Render 调用
func (t *Task) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.alive {
		return
	}
	t.alive = false
	close(t.stop)
}

// Done 任务结束（完成或取消）时关闭
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Cancelled 任务是否在完成前被取消
func (t *Task) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.alive && !t.finished
}

// emit 在存活时渲染一步
func (t *Task) emit(sink Sink, step Step) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.alive {
		return false
	}
	sink.Render(t.MessageID, step)
	if step.Final {
		t.finished = true
		t.alive = false
	}
	return true
}

// EngineOptions 引擎参数
type EngineOptions struct {
	Clock          clockwork.Clock
	TypewriterTick time.Duration
	Formatter      Formatter
	NewRand        func() *rand.Rand
	Logger         *zap.Logger
}

// Engine 管理所有显示任务
// 每条消息最多一个活动任务，不同消息的任务互不影响
type Engine struct {
	mu    sync.Mutex
	mode  Mode
	opts  EngineOptions
	tasks map[int64]*Task
	wg    sync.WaitGroup
	log   *zap.Logger
}

// NewEngine 创建显示引擎
func NewEngine(mode Mode, opts EngineOptions) *Engine {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.NewRand == nil {
		opts.NewRand = func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		}
	}
	return &Engine{
		mode:  mode,
		opts:  opts,
		tasks: make(map[int64]*Task),
		log:   logger.OrNop(opts.Logger),
	}
}

// Mode 当前显示模式
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// SetMode 切换显示模式，只影响之后启动的任务
func (e *Engine) SetMode(m Mode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mode = m
}

// Start 为消息启动显示任务
// 同一消息已有任务时先取消旧任务
func (e *Engine) Start(messageID int64, text string, sink Sink) *Task {
	e.mu.Lock()
	if old, ok := e.tasks[messageID]; ok {
		old.Cancel()
		e.log.Debug("reveal task replaced", zap.Int64("message_id", messageID))
	}

	t := &Task{
		MessageID: messageID,
		alive:     true,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		seq: NewSequence(text, e.mode, Options{
			TypewriterTick: e.opts.TypewriterTick,
			Rand:           e.opts.NewRand(),
			Formatter:      e.opts.Formatter,
		}),
	}
	e.tasks[messageID] = t
	e.wg.Add(1)
	e.mu.Unlock()

	go e.run(t, sink)
	return t
}

// Cancel 取消指定消息的任务
func (e *Engine) Cancel(messageID int64) bool {
	e.mu.Lock()
	t, ok := e.tasks[messageID]
	e.mu.Unlock()
	if !ok {
		return false
	}
	t.Cancel()
	return true
}

// CancelAll 取消所有任务
func (e *Engine) CancelAll() {
	e.mu.Lock()
	tasks := make([]*Task, 0, len(e.tasks))
	for _, t := range e.tasks {
		tasks = append(tasks, t)
	}
	e.mu.Unlock()

	for _, t := range tasks {
		t.Cancel()
	}
}

// Active 消息是否有进行中的任务
func (e *Engine) Active(messageID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.tasks[messageID]
	return ok
}

// Wait 等待所有任务结束
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) run(t *Task, sink Sink) {
	defer e.wg.Done()
	defer close(t.done)
	defer e.remove(t)

	for {
		step, ok := t.seq.Next()
		if !ok {
			return
		}
		if !t.emit(sink, step) || step.Final {
			return
		}
		if step.Delay <= 0 {
			continue
		}

		timer := e.opts.Clock.NewTimer(step.Delay)
		select {
		case <-timer.Chan():
		case <-t.stop:
			timer.Stop()
			return
		}
	}
}

func (e *Engine) remove(t *Task) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cur, ok := e.tasks[t.MessageID]; ok && cur == t {
		delete(e.tasks, t.MessageID)
	}
}
