package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAllowedIP(t *testing.T) {
	allowed, err := ParseCIDRs([]string{"127.0.0.0/8", "::1/128", " 10.1.2.3 "})
	require.NoError(t, err)

	assert.True(t, IsAllowedIP("127.0.0.1", allowed))
	assert.True(t, IsAllowedIP("::1", allowed))
	assert.True(t, IsAllowedIP("10.1.2.3", allowed))
	assert.False(t, IsAllowedIP("10.1.2.4", allowed))
	assert.False(t, IsAllowedIP("8.8.8.8", allowed))
	assert.False(t, IsAllowedIP("not-an-ip", allowed))
	assert.False(t, IsAllowedIP("127.0.0.1", nil))
}

func TestParseCIDRsRejectsGarbage(t *testing.T) {
	_, err := ParseCIDRs([]string{"10.0.0.0/33"})
	assert.Error(t, err)
	_, err = ParseCIDRs([]string{"bogus"})
	assert.Error(t, err)
}
