package ipchecker

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	checker, err := New("192.168.1.0/24")
	require.NoError(t, err)

	assert.False(t, checker.IsTrustedSubnetEmpty())
	assert.True(t, checker.Check(net.ParseIP("192.168.1.10")))
	assert.False(t, checker.Check(net.ParseIP("10.0.0.1")))
}

func TestEmptySubnetRejectsEverything(t *testing.T) {
	checker, err := New("")
	require.NoError(t, err)

	assert.True(t, checker.IsTrustedSubnetEmpty())
	assert.False(t, checker.Check(net.ParseIP("192.168.1.10")))
}

func TestNewRejectsMalformedSubnet(t *testing.T) {
	_, err := New("not-a-cidr")
	assert.Error(t, err)
}

func TestGetClientIP(t *testing.T) {
	checker, err := New("192.168.1.0/24")
	require.NoError(t, err)

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set("X-Real-IP", "192.168.1.10")
	ip, err := checker.GetClientIP(request)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.10", ip.String())

	request = httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set("X-Forwarded-For", "192.168.1.11, 10.0.0.1")
	ip, err = checker.GetClientIP(request)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.11", ip.String())

	request = httptest.NewRequest(http.MethodGet, "/", nil)
	request.RemoteAddr = "192.168.1.12:54321"
	ip, err = checker.GetClientIP(request)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.12", ip.String())
}
