package app

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewServer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := newServer(4444, http.NotFoundHandler(), logger)

	assert.Equal(t, ":4444", srv.Addr)
	assert.Equal(t, 5*time.Second, srv.ReadHeaderTimeout)
	assert.Greater(t, srv.ReadTimeout, srv.ReadHeaderTimeout, "bodies get longer than headers")
	assert.Equal(t, 30*time.Second, srv.WriteTimeout)
	assert.Equal(t, time.Minute, srv.IdleTimeout)
	assert.NotNil(t, srv.ErrorLog)
}
