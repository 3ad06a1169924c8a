// Package interrupt runs registered cleanup handlers, in LIFO order, when the
// process receives an interrupt signal or a shutdown is requested
// programmatically.
package interrupt

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"

	"github.com/tracktide/trackstr/pkg/slog"
)

var log, _ = slog.New(os.Stderr)

type handlerWithSource struct {
	source string
	fn     func()
}

var (
	mx        sync.Mutex
	handlers  []handlerWithSource
	sigCh     chan os.Signal
	requested bool

	// HandlersDone is closed after all handlers have run.
	HandlersDone = make(chan struct{})

	shutdownRequest = make(chan struct{})
)

func listener() {
	select {
	case sig := <-sigCh:
		log.D.Ln("received signal", sig)
	case <-shutdownRequest:
		log.W.Ln("received shutdown request - shutting down...")
	}
	invokeHandlers()
}

func invokeHandlers() {
	mx.Lock()
	hs := make([]handlerWithSource, len(handlers))
	copy(hs, handlers)
	mx.Unlock()
	// LIFO order
	for i := len(hs) - 1; i >= 0; i-- {
		log.D.Ln("running interrupt handler", i, hs[i].source)
		hs[i].fn()
	}
	log.D.Ln("interrupt handlers finished")
	close(HandlersDone)
}

// AddHandler registers a cleanup handler and, on first use, starts the signal
// listener.
func AddHandler(handler func()) {
	_, file, line, _ := runtime.Caller(1)
	src := fmt.Sprintf("%s:%d", file, line)
	mx.Lock()
	defer mx.Unlock()
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt)
		go listener()
	}
	handlers = append(handlers, handlerWithSource{src, handler})
}

// Request triggers the shutdown sequence without a signal. Safe to call more
// than once; only the first call has an effect.
func Request() {
	mx.Lock()
	defer mx.Unlock()
	if requested {
		return
	}
	requested = true
	if sigCh == nil {
		// nothing registered, nothing to run
		close(HandlersDone)
		return
	}
	close(shutdownRequest)
}
