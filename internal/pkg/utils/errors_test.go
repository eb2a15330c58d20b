package utils

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrBackend_Error(t *testing.T) {
	assert.Equal(t, "server error (HTTP 500): olia",
		NewErrBackend(ErrServer, 500, "body", errors.New("olia")).Error())
	assert.Equal(t, "network error: olia",
		NewErrBackend(ErrNetwork, 0, "", errors.New("olia")).Error())
}

func TestErrBackend_Is(t *testing.T) {
	err := NewErrBackend(ErrServer, 503, "", errors.New("olia"))
	assert.True(t, errors.Is(err, ErrServer))
	assert.False(t, errors.Is(err, ErrNetwork))
	assert.False(t, errors.Is(err, ErrParse))
}

func TestErrBackend_Unwrap(t *testing.T) {
	assert.True(t, errors.Is(NewErrBackend(ErrParse, 200, "{", io.EOF), io.EOF))
}

func TestErrBackend_As(t *testing.T) {
	var be *ErrBackend
	err := error(NewErrBackend(ErrServer, 502, "bad gateway", errors.New("olia")))
	assert.True(t, errors.As(err, &be))
	assert.Equal(t, 502, be.HTTPStatus)
	assert.Equal(t, "bad gateway", be.RawBody)
}
