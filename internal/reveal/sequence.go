package reveal

import (
	"math/rand/v2"
	"time"
)

// 节奏参数
const (
	DefaultTypewriterTick = 30 * time.Millisecond

	naturalDoubleChunkRate = 0.3
	naturalBaseMin         = 50 * time.Millisecond
	naturalBaseSpan        = 100 * time.Millisecond
	sentencePauseMin       = 300 * time.Millisecond
	sentencePauseSpan      = 200 * time.Millisecond
	clausePauseMin         = 150 * time.Millisecond
	clausePauseSpan        = 100 * time.Millisecond
	spacePauseMin          = 20 * time.Millisecond
	spacePauseSpan         = 30 * time.Millisecond
)

// Op 渲染指令类型
type Op int

const (
	// OpReplace 用 Text/Display 整体替换渲染区域
	OpReplace Op = iota
	// OpAppend 在渲染区域末尾追加 Delta
	OpAppend
)

// Step 显示序列中的一步
type Step struct {
	Op      Op
	Text    string        // 已显示的原始前缀
	Delta   string        // 本步新增的原始内容
	Display string        // 对前缀重新套用格式后的展示内容
	Delay   time.Duration // 到下一步的等待时间，最后一步为 0
	Final   bool
}

// Options 序列参数
type Options struct {
	TypewriterTick time.Duration // 为 0 时使用 DefaultTypewriterTick
	Rand           *rand.Rand    // natural 模式的随机源，nil 时使用全局随机源
	Formatter      Formatter     // nil 时不做格式化
}

// Sequence 惰性的显示序列
// 有限且不可重启，消费方可以在任意一步停止
type Sequence struct {
	runes  []rune
	cursor int
	mode   Mode
	opts   Options
	done   bool
}

// NewSequence 创建显示序列
func NewSequence(text string, mode Mode, opts Options) *Sequence {
	if opts.TypewriterTick <= 0 {
		opts.TypewriterTick = DefaultTypewriterTick
	}
	if opts.Formatter == nil {
		opts.Formatter = PlainFormatter{}
	}
	return &Sequence{
		runes: []rune(text),
		mode:  mode,
		opts:  opts,
	}
}

// Cursor 已显示的字符数
func (s *Sequence) Cursor() int {
	return s.cursor
}

// Next 返回下一步，序列结束后返回 false
func (s *Sequence) Next() (Step, bool) {
	if s.done {
		return Step{}, false
	}

	// 空文本和 instant 模式一次性给出全部内容
	if s.mode == ModeInstant || len(s.runes) == 0 {
		s.done = true
		s.cursor = len(s.runes)
		text := string(s.runes)
		return Step{
			Op:      OpReplace,
			Text:    text,
			Delta:   text,
			Display: s.opts.Formatter.Format(text),
			Final:   true,
		}, true
	}

	size := 1
	if s.mode == ModeNatural && s.float() < naturalDoubleChunkRate {
		size = 2
	}
	next := min(s.cursor+size, len(s.runes))
	delta := string(s.runes[s.cursor:next])
	s.cursor = next

	text := string(s.runes[:s.cursor])
	step := Step{
		Op:      OpAppend,
		Text:    text,
		Delta:   delta,
		Display: s.opts.Formatter.Format(text),
		Final:   s.cursor == len(s.runes),
	}
	if step.Final {
		s.done = true
	} else {
		step.Delay = s.delay(s.runes[s.cursor-1])
	}
	return step, true
}

// delay 根据刚显示的最后一个字符计算等待时间
func (s *Sequence) delay(last rune) time.Duration {
	if s.mode == ModeTypewriter {
		return s.opts.TypewriterTick
	}

	d := naturalBaseMin + s.span(naturalBaseSpan)
	switch last {
	case '.', '!', '?':
		d += sentencePauseMin + s.span(sentencePauseSpan)
	case ',', ';':
		d += clausePauseMin + s.span(clausePauseSpan)
	case ' ':
		d += spacePauseMin + s.span(spacePauseSpan)
	}
	return d
}

func (s *Sequence) span(d time.Duration) time.Duration {
	return time.Duration(s.float() * float64(d))
}

func (s *Sequence) float() float64 {
	if s.opts.Rand != nil {
		return s.opts.Rand.Float64()
	}
	return rand.Float64()
}
