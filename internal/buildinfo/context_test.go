package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextGetters(t *testing.T) {
	tests := []struct {
		name      string
		ctx       *Context
		version   string
		buildDate string
	}{
		{"nil context", nil, UnknownValue, UnknownValue},
		{"empty values", NewContext("", ""), UnknownValue, UnknownValue},
		{"release", NewContext("1.4.0", "2024-05-02T10:00:00Z"), "1.4.0", "2024-05-02T10:00:00Z"},
		{"pre-release", NewContext("1.5.0-rc.1", ""), "1.5.0-rc.1", UnknownValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.version, tt.ctx.GetVersion())
			assert.Equal(t, tt.buildDate, tt.ctx.GetBuildDate())
		})
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "aplose 1.4.0 (built unknown)", NewContext("1.4.0", "").String())
}
