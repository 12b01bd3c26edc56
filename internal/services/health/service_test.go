package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	st := NewService("anthropic", "claude-3-haiku-20240307").Status()
	assert.True(t, st.OK)
	assert.Equal(t, "anthropic", st.Provider)
	assert.Equal(t, "claude-3-haiku-20240307", st.Model)
	assert.GreaterOrEqual(t, st.UptimeSeconds, int64(0))
}
