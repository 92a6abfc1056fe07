package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServerServesStatsviz(t *testing.T) {
	srv, err := NewServer("127.0.0.1:0")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/statsviz/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
