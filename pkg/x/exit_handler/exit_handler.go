package exit_handler

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// The exit_handler package runs registered teardown functions when the
// process exits, whether by reaching the end of main() or by SIGINT or
// SIGTERM.  The bridge registers its ordered interface teardown here so the
// tunnel interface is destroyed even when the daemon is interrupted.

type exitFunc struct {
	f    func()
	once sync.Once
}

var exitFuncs []*exitFunc

// AddExitFunc adds f to the functions run at exit.  Each runs at most once.
// The return value is f wrapped in the once, for callers that may want to
// run the teardown early themselves.
func AddExitFunc(f func()) func() {
	ef := exitFunc{
		once: sync.Once{},
	}
	ef.f = func() {
		ef.once.Do(f)
	}
	exitFuncs = append(exitFuncs, &ef)
	return ef.f
}

// RunExitFuncs runs the registered exit funcs.  Call it at the end of
// main(), and before any direct os.Exit().
func RunExitFuncs() {
	for _, ef := range exitFuncs {
		ef.f()
	}
}

func init() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigs
		RunExitFuncs()
		if s == syscall.SIGINT {
			os.Exit(130)
		}
		if s == syscall.SIGTERM {
			os.Exit(143)
		}
		os.Exit(255)
	}()
}
