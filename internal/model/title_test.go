package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitleFromMessage(t *testing.T) {
	assert.Equal(t, "Hello", TitleFromMessage("Hello"))

	exact := strings.Repeat("a", 30)
	assert.Equal(t, exact, TitleFromMessage(exact))

	long := strings.Repeat("b", 31)
	assert.Equal(t, strings.Repeat("b", 30)+"...", TitleFromMessage(long))

	// 按字符而不是字节截断
	cjk := strings.Repeat("币", 40)
	assert.Equal(t, strings.Repeat("币", 30)+"...", TitleFromMessage(cjk))
}

func TestMessageRoleValid(t *testing.T) {
	assert.True(t, MessageRoleUser.Valid())
	assert.True(t, MessageRoleAssistant.Valid())
	assert.False(t, MessageRole("system").Valid())
}
