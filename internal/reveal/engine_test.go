package reveal

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingSink struct {
	mu    sync.Mutex
	steps map[int64][]Step
	ch    chan Step
}

func newRecordingSink() *recordingSink {
	return &recordingSink{steps: make(map[int64][]Step), ch: make(chan Step, 256)}
}

func (s *recordingSink) Render(id int64, step Step) {
	s.mu.Lock()
	s.steps[id] = append(s.steps[id], step)
	s.mu.Unlock()
	s.ch <- step
}

func (s *recordingSink) of(id int64) []Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Step(nil), s.steps[id]...)
}

func waitStep(t *testing.T, ch <-chan Step) Step {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for render")
		return Step{}
	}
}

func waitDone(t *testing.T, task *Task) {
	t.Helper()
	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("task did not finish")
	}
}

func TestEngine_TypewriterRunsToCompletion(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := NewEngine(ModeTypewriter, EngineOptions{Clock: clock})
	sink := newRecordingSink()

	task := e.Start(1, "Hi there!", sink)
	for i := 0; i < 8; i++ {
		waitStep(t, sink.ch)
		clock.BlockUntil(1)
		clock.Advance(DefaultTypewriterTick)
	}
	last := waitStep(t, sink.ch)
	waitDone(t, task)
	e.Wait()

	assert.True(t, last.Final)
	assert.Equal(t, "Hi there!", last.Text)
	assert.Len(t, sink.of(1), 9)
	assert.False(t, task.Cancelled())
	assert.False(t, e.Active(1))
}

func TestEngine_InstantRendersOnce(t *testing.T) {
	e := NewEngine(ModeInstant, EngineOptions{Clock: clockwork.NewFakeClock()})
	sink := newRecordingSink()

	task := e.Start(7, "done", sink)
	waitDone(t, task)
	e.Wait()

	steps := sink.of(7)
	require.Len(t, steps, 1)
	assert.Equal(t, OpReplace, steps[0].Op)
}

func TestEngine_CancelStopsRendering(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := NewEngine(ModeTypewriter, EngineOptions{Clock: clock})
	sink := newRecordingSink()

	task := e.Start(1, "abcdef", sink)
	waitStep(t, sink.ch)
	clock.BlockUntil(1)

	assert.True(t, e.Cancel(1))
	clock.Advance(time.Second)
	waitDone(t, task)
	e.Wait()

	assert.Len(t, sink.of(1), 1)
	assert.True(t, task.Cancelled())
	assert.False(t, e.Active(1))
	assert.False(t, e.Cancel(1))
}

func TestEngine_RestartSameMessageCancelsPrevious(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := NewEngine(ModeTypewriter, EngineOptions{Clock: clock})
	sink := newRecordingSink()

	first := e.Start(1, "first reply", sink)
	waitStep(t, sink.ch)
	clock.BlockUntil(1)

	e.SetMode(ModeInstant)
	second := e.Start(1, "second", sink)
	waitDone(t, first)
	waitStep(t, sink.ch)
	waitDone(t, second)
	e.Wait()

	steps := sink.of(1)
	require.Len(t, steps, 2)
	assert.Equal(t, "f", steps[0].Text)
	assert.Equal(t, "second", steps[1].Text)
	assert.True(t, first.Cancelled())
	assert.Equal(t, ModeInstant, e.Mode())
}

func TestEngine_IndependentMessages(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := NewEngine(ModeTypewriter, EngineOptions{Clock: clock})
	sink := newRecordingSink()

	a := e.Start(1, "ab", sink)
	b := e.Start(2, "xy", sink)
	waitStep(t, sink.ch)
	waitStep(t, sink.ch)
	clock.BlockUntil(2)

	e.Cancel(1)
	clock.Advance(DefaultTypewriterTick)
	waitStep(t, sink.ch)
	waitDone(t, a)
	waitDone(t, b)
	e.Wait()

	assert.Len(t, sink.of(1), 1)
	assert.Len(t, sink.of(2), 2)
	assert.True(t, a.Cancelled())
	assert.False(t, b.Cancelled())
}

func TestEngine_CancelAll(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := NewEngine(ModeNatural, EngineOptions{Clock: clock})
	sink := newRecordingSink()

	var tasks []*Task
	for id := int64(1); id <= 3; id++ {
		tasks = append(tasks, e.Start(id, "a longer answer", sink))
	}
	clock.BlockUntil(3)
	e.CancelAll()
	for _, task := range tasks {
		waitDone(t, task)
	}
	e.Wait()

	for id := int64(1); id <= 3; id++ {
		assert.Len(t, sink.of(id), 1)
		assert.False(t, e.Active(id))
	}
}
