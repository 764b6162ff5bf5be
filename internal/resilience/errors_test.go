package resilience

import (
	"errors"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsProviderUnavailable(t *testing.T) {
	base := Unavailable("places", errors.New("status 503"))
	assert.True(t, IsProviderUnavailable(base))
	assert.True(t, IsProviderUnavailable(eris.Wrap(base, "source: text search")))
	assert.False(t, IsProviderUnavailable(errors.New("plain")))
	assert.False(t, IsProviderUnavailable(nil))
}

func TestProviderUnavailableMessage(t *testing.T) {
	err := Unavailable("apollo", errors.New("status 429"))
	assert.Equal(t, "apollo unavailable: status 429", err.Error())
	assert.Equal(t, "status 429", err.Unwrap().Error())
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"provider unavailable", Unavailable("instantly", errors.New("x")), true},
		{"conn reset", syscall.ECONNRESET, true},
		{"conn refused", syscall.ECONNREFUSED, true},
		{"string pattern", errors.New("read: connection reset by peer"), true},
		{"timeout pattern", errors.New("dial tcp: i/o timeout"), true},
		{"plain error", errors.New("invalid payload"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "code %d", code)
	}
	for _, code := range []int{200, 201, 400, 401, 403, 404, 409, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "code %d", code)
	}
}
