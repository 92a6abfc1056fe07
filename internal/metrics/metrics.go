package metrics

import (
	"net/http"

	"github.com/arl/statsviz"
)

// NewServer returns a server exposing runtime charts under /debug/statsviz/.
func NewServer(addr string) (*http.Server, error) {
	mux := http.NewServeMux()
	if err := statsviz.Register(mux); err != nil {
		return nil, err
	}
	return &http.Server{Addr: addr, Handler: mux}, nil
}
