package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"cryptsignal-chat/internal/reveal"
)

func TestTerminalView_AppendsGrowingPrefix(t *testing.T) {
	var buf bytes.Buffer
	v := newTerminalView(&buf)

	v.Render(1, reveal.Step{Op: reveal.OpAppend, Display: "H"})
	v.Render(1, reveal.Step{Op: reveal.OpAppend, Display: "Hi"})
	v.Render(1, reveal.Step{Op: reveal.OpAppend, Display: "Hi!", Final: true})

	out := buf.String()
	assert.True(t, strings.HasSuffix(out, "Hi!\n"))
	assert.Equal(t, 1, strings.Count(out, "AI"))
	assert.Empty(t, v.shown)
}

func TestTerminalView_RedrawsWhenMarkupCloses(t *testing.T) {
	var buf bytes.Buffer
	v := newTerminalView(&buf)

	v.Render(1, reveal.Step{Display: "line one\nsay *hi"})
	buf.Reset()
	v.Render(1, reveal.Step{Display: "line one\nsay hi", Final: true})

	assert.Equal(t, "\r\x1b[2Ksay hi\n", buf.String())
}

func TestTerminalView_ErrorsAndStatus(t *testing.T) {
	var buf bytes.Buffer
	v := newTerminalView(&buf)

	v.SetGenerating(true)
	v.SetGenerating(false)
	v.ShowError("boom")

	out := buf.String()
	assert.Contains(t, out, "正在生成")
	assert.Contains(t, out, "boom")
	assert.Equal(t, 2, strings.Count(out, "\n"))
}
