package websocket

import (
	"fmt"
	"time"
)

// State 连接状态
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
	StateFailed
)

var stateNames = [...]string{"idle", "connecting", "open", "closing", "closed", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Event 驱动状态机的输入
type Event int

const (
	EventInit            Event = iota // 外部初始化
	EventConnected                    // 底层连接建立且身份可用
	EventConnectFailed                // 底层连接失败
	EventIdentityMissing              // 底层连接建立但身份不可用
	EventDropped                      // 连接断开
	EventRetryDue                     // 退避时间到
	EventDisconnect                   // 外部主动断开
)

var eventNames = [...]string{"init", "connected", "connect_failed", "identity_missing", "dropped", "retry_due", "disconnect"}

func (e Event) String() string {
	if int(e) < len(eventNames) {
		return eventNames[e]
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// EffectKind 状态迁移产生的副作用
type EffectKind int

const (
	EffectDial           EffectKind = iota // 发起底层连接
	EffectHandshake                        // 发送握手并开始读取
	EffectScheduleRetry                    // 在 Delay 后投递 EventRetryDue
	EffectCancelRetry                      // 取消尚未触发的重连
	EffectCloseConn                        // 关闭当前底层连接
	EffectReportFailed                     // 上报重连次数耗尽
	EffectReportIdentity                   // 上报身份不可用
)

// Effect 副作用
type Effect struct {
	Kind  EffectKind
	Delay time.Duration
}

// Machine 连接状态机
// Apply 不修改接收者，返回新的状态和需要执行的副作用
type Machine struct {
	State       State
	Attempts    int // 自上次 Open 以来的重连次数
	MaxAttempts int
	BaseDelay   time.Duration
	Retrying    bool // 是否有待触发的重连
	Reinit      bool // Closing 期间收到 Init，关闭完成后重新拨号
}

// NewMachine 创建处于 Idle 的状态机
func NewMachine(maxAttempts int, baseDelay time.Duration) Machine {
	return Machine{State: StateIdle, MaxAttempts: maxAttempts, BaseDelay: baseDelay}
}

// Apply 处理一个事件
func (m Machine) Apply(ev Event) (Machine, []Effect) {
	switch ev {
	case EventInit:
		switch m.State {
		case StateIdle, StateClosed, StateFailed:
			var effects []Effect
			if m.Retrying {
				effects = append(effects, Effect{Kind: EffectCancelRetry})
			}
			m.State = StateConnecting
			m.Attempts = 0
			m.Retrying = false
			return m, append(effects, Effect{Kind: EffectDial})
		case StateClosing:
			m.Reinit = true
			return m, nil
		}

	case EventConnected:
		switch m.State {
		case StateConnecting:
			m.State = StateOpen
			m.Attempts = 0
			return m, []Effect{{Kind: EffectHandshake}}
		case StateClosing:
			return m.closed(Effect{Kind: EffectCloseConn})
		}

	case EventIdentityMissing:
		switch m.State {
		case StateConnecting:
			m.State = StateClosed
			return m, []Effect{{Kind: EffectCloseConn}, {Kind: EffectReportIdentity}}
		case StateClosing:
			return m.closed(Effect{Kind: EffectCloseConn})
		}

	case EventConnectFailed:
		switch m.State {
		case StateConnecting:
			return m.retry()
		case StateClosing:
			return m.closed()
		}

	case EventDropped:
		switch m.State {
		case StateOpen:
			return m.retry(Effect{Kind: EffectCloseConn})
		case StateClosing:
			return m.closed()
		}

	case EventRetryDue:
		if m.State == StateClosed && m.Retrying {
			m.State = StateConnecting
			m.Retrying = false
			return m, []Effect{{Kind: EffectDial}}
		}

	case EventDisconnect:
		switch m.State {
		case StateOpen, StateConnecting:
			m.State = StateClosing
			return m, []Effect{{Kind: EffectCloseConn}}
		case StateClosing:
			m.Reinit = false
		case StateClosed:
			if m.Retrying {
				m.Retrying = false
				return m, []Effect{{Kind: EffectCancelRetry}}
			}
		}
	}
	return m, nil
}

// closed 结束 Closing，期间收到过 Init 时立即重新拨号
func (m Machine) closed(pre ...Effect) (Machine, []Effect) {
	m.State = StateClosed
	if !m.Reinit {
		return m, pre
	}
	m.Reinit = false
	m.State = StateConnecting
	m.Attempts = 0
	return m, append(pre, Effect{Kind: EffectDial})
}

// retry 进入 Closed，次数未达上限时安排重连，否则进入 Failed
func (m Machine) retry(pre ...Effect) (Machine, []Effect) {
	if m.Attempts >= m.MaxAttempts {
		m.State = StateFailed
		m.Retrying = false
		return m, append(pre, Effect{Kind: EffectReportFailed})
	}
	m.Attempts++
	m.State = StateClosed
	m.Retrying = true
	return m, append(pre, Effect{Kind: EffectScheduleRetry, Delay: m.BaseDelay * time.Duration(m.Attempts)})
}
