package fakeapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// DemoToken and DemoPrefix are used by Listen.
const (
	DemoToken  = "fake-token"
	DemoPrefix = "/v2.1"
)

// Running is a fake server bound to a loopback port.
type Running struct {
	BaseURL string
	Token   string

	srv  *http.Server
	done chan error
}

// Listen serves the default dataset on 127.0.0.1 at a random port.
func Listen() (*Running, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	srv := &http.Server{
		Handler:           New(Config{Token: DemoToken, Prefix: DemoPrefix}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	r := &Running{
		BaseURL: "http://" + ln.Addr().String() + DemoPrefix,
		Token:   DemoToken,
		srv:     srv,
		done:    make(chan error, 1),
	}
	go func() {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		r.done <- err
	}()
	return r, nil
}

// Shutdown stops the server and waits for Serve to return.
func (r *Running) Shutdown(ctx context.Context) error {
	if err := r.srv.Shutdown(ctx); err != nil {
		return err
	}
	return <-r.done
}
