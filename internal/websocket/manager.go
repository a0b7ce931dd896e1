package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"cryptsignal-chat/internal/logger"
)

// 连接错误
var (
	ErrNotOpen             = errors.New("连接未打开")
	ErrIdentityUnavailable = errors.New("用户身份不可用，已中止连接")
	ErrReconnectExhausted  = errors.New("重连次数已用尽")
)

// 默认重连参数
const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = time.Second
)

// IdentityProvider 提供握手所需的用户标识
type IdentityProvider interface {
	UserID() (string, bool)
}

// IdentityFunc 函数适配器
type IdentityFunc func() (string, bool)

// UserID 实现 IdentityProvider
func (f IdentityFunc) UserID() (string, bool) { return f() }

// Options 连接管理器参数
type Options struct {
	URL         string
	MaxAttempts int
	BaseDelay   time.Duration
	Dialer      Dialer
	Identity    IdentityProvider
	Clock       clockwork.Clock
	Logger      *zap.Logger
}

// Session 一次底层连接的生命周期
type Session struct {
	ID         string
	Generation uint64
	StartedAt  time.Time
}

// loopEvent 投递给事件循环的输入
type loopEvent struct {
	ev    Event
	gen   uint64
	conn  Conn
	frame []byte
	err   error
}

// Manager 连接管理器
// 所有状态迁移都在 Run 的事件循环中串行执行，入站帧按到达顺序回调
type Manager struct {
	opts Options
	log  *zap.Logger

	events chan loopEvent
	done   chan struct{}

	// 以下字段只在事件循环中写入
	machine Machine
	session Session
	retry   clockwork.Timer
	dialCtx context.Context

	mu    sync.RWMutex // 保护 state/conn 供外部读取
	state State
	conn  Conn

	handlerMu     sync.RWMutex
	onFrame       func(Frame)
	onError       func(error)
	onStateChange func(State)
}

// NewManager 创建连接管理器
func NewManager(opts Options) *Manager {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.Dialer == nil {
		opts.Dialer = GorillaDialer{}
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	return &Manager{
		opts:    opts,
		log:     logger.OrNop(opts.Logger).With(zap.String("component", "ws")),
		events:  make(chan loopEvent, 64),
		done:    make(chan struct{}),
		machine: NewMachine(opts.MaxAttempts, opts.BaseDelay),
		state:   StateIdle,
	}
}

// OnFrame 设置入站帧回调，在事件循环中调用
func (m *Manager) OnFrame(handler func(Frame)) {
	m.handlerMu.Lock()
	defer m.handlerMu.Unlock()
	m.onFrame = handler
}

// OnError 设置错误回调（身份不可用、重连耗尽）
func (m *Manager) OnError(handler func(error)) {
	m.handlerMu.Lock()
	defer m.handlerMu.Unlock()
	m.onError = handler
}

// OnStateChange 设置状态变化回调
func (m *Manager) OnStateChange(handler func(State)) {
	m.handlerMu.Lock()
	defer m.handlerMu.Unlock()
	m.onStateChange = handler
}

// State 当前状态
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Init 开始连接，Failed/Closed 状态下重新初始化
// Closing 期间调用时，等待旧连接关闭后再拨号
func (m *Manager) Init() {
	m.post(loopEvent{ev: EventInit})
}

// Disconnect 主动断开，不再自动重连
func (m *Manager) Disconnect() {
	m.post(loopEvent{ev: EventDisconnect})
}

// Send 发送一帧
// 非 Open 状态下不排队，记录警告并返回 ErrNotOpen
func (m *Manager) Send(v any) error {
	m.mu.RLock()
	state, conn := m.state, m.conn
	m.mu.RUnlock()

	if state != StateOpen || conn == nil {
		m.log.Warn("连接未打开，丢弃发送", zap.Stringer("state", state))
		return ErrNotOpen
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("序列化帧失败: %w", err)
	}
	if err := conn.WriteMessage(data); err != nil {
		return fmt.Errorf("发送失败: %w", err)
	}
	return nil
}

// Run 运行事件循环，直到 ctx 结束
func (m *Manager) Run(ctx context.Context) {
	m.dialCtx = ctx
	defer m.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case e := <-m.events:
			m.handle(e)
		}
	}
}

func (m *Manager) post(e loopEvent) {
	select {
	case m.events <- e:
	case <-m.done:
	}
}

func (m *Manager) shutdown() {
	close(m.done)
	if m.retry != nil {
		m.retry.Stop()
	}
	m.closeConn()
	m.setState(StateClosed)
}

func (m *Manager) handle(e loopEvent) {
	// 来自旧连接的事件
	if e.gen != 0 && e.gen != m.session.Generation {
		if e.conn != nil {
			_ = e.conn.Close()
		}
		return
	}

	switch e.ev {
	case EventConnected:
		m.mu.Lock()
		m.conn = e.conn
		m.mu.Unlock()
		if _, ok := m.identity(); !ok {
			e.ev = EventIdentityMissing
		}
	case EventConnectFailed:
		m.log.Warn("连接失败", zap.String("session", m.session.ID), zap.Error(e.err))
	case EventDropped:
		if e.err != nil {
			m.log.Info("连接断开", zap.String("session", m.session.ID), zap.Error(e.err))
		}
	case EventRetryDue:
		m.retry = nil
	}

	if e.frame != nil {
		m.dispatch(e.frame)
		return
	}

	next, effects := m.machine.Apply(e.ev)
	m.machine = next
	for _, eff := range effects {
		m.execute(eff)
	}
	m.setState(next.State)
}

func (m *Manager) execute(eff Effect) {
	switch eff.Kind {
	case EffectDial:
		m.dial()

	case EffectHandshake:
		m.handshake()

	case EffectScheduleRetry:
		m.log.Info("计划重连",
			zap.Int("attempt", m.machine.Attempts),
			zap.Int("max_attempts", m.machine.MaxAttempts),
			zap.Duration("delay", eff.Delay))
		m.retry = m.opts.Clock.AfterFunc(eff.Delay, func() {
			m.post(loopEvent{ev: EventRetryDue})
		})

	case EffectCancelRetry:
		if m.retry != nil {
			m.retry.Stop()
			m.retry = nil
		}

	case EffectCloseConn:
		m.closeConn()

	case EffectReportFailed:
		m.log.Error("重连次数已用尽", zap.Int("max_attempts", m.machine.MaxAttempts))
		m.reportError(ErrReconnectExhausted)

	case EffectReportIdentity:
		m.log.Error("用户身份不可用，已中止连接", zap.String("session", m.session.ID))
		m.reportError(ErrIdentityUnavailable)
	}
}

// dial 开启新的连接会话并异步建立底层连接
func (m *Manager) dial() {
	m.session = Session{
		ID:         uuid.NewString(),
		Generation: m.session.Generation + 1,
		StartedAt:  m.opts.Clock.Now(),
	}
	gen := m.session.Generation
	ctx := m.dialCtx
	if ctx == nil {
		ctx = context.Background()
	}

	m.log.Debug("开始连接", zap.String("session", m.session.ID), zap.String("url", m.opts.URL))
	go func() {
		conn, err := m.opts.Dialer.Dial(ctx, m.opts.URL)
		if err != nil {
			m.post(loopEvent{ev: EventConnectFailed, gen: gen, err: err})
			return
		}
		m.post(loopEvent{ev: EventConnected, gen: gen, conn: conn})
	}()
}

// handshake 发送 init 帧并启动读协程
func (m *Manager) handshake() {
	m.mu.RLock()
	conn := m.conn
	m.mu.RUnlock()
	gen := m.session.Generation

	userID, _ := m.identity()
	data, err := json.Marshal(InitFrame(userID))
	if err == nil {
		err = conn.WriteMessage(data)
	}
	if err != nil {
		m.post(loopEvent{ev: EventDropped, gen: gen, err: fmt.Errorf("握手失败: %w", err)})
		return
	}

	m.log.Info("连接已建立", zap.String("session", m.session.ID))
	go m.readLoop(conn, gen)
}

func (m *Manager) readLoop(conn Conn, gen uint64) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			m.post(loopEvent{ev: EventDropped, gen: gen, err: err})
			return
		}
		if data == nil {
			data = []byte{}
		}
		m.post(loopEvent{gen: gen, frame: data})
	}
}

func (m *Manager) dispatch(data []byte) {
	frame, err := ParseFrame(data)
	if err != nil {
		m.log.Warn("丢弃无法解析的帧", zap.Error(err), zap.ByteString("data", data))
		return
	}

	m.handlerMu.RLock()
	handler := m.onFrame
	m.handlerMu.RUnlock()
	if handler != nil {
		handler(frame)
	}
}

func (m *Manager) identity() (string, bool) {
	if m.opts.Identity == nil {
		return "", false
	}
	id, ok := m.opts.Identity.UserID()
	return id, ok && id != ""
}

func (m *Manager) closeConn() {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

func (m *Manager) reportError(err error) {
	m.handlerMu.RLock()
	handler := m.onError
	m.handlerMu.RUnlock()
	if handler != nil {
		handler(err)
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	prev := m.state
	m.state = s
	m.mu.Unlock()

	if prev == s {
		return
	}
	m.log.Debug("状态变化", zap.Stringer("from", prev), zap.Stringer("to", s))

	m.handlerMu.RLock()
	handler := m.onStateChange
	m.handlerMu.RUnlock()
	if handler != nil {
		handler(s)
	}
}
