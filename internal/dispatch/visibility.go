package dispatch

import "context"

//go:generate mockgen -destination=mocks/mock_visibility.go -package=mocks github.com/muster-io/muster/internal/dispatch VisibilityProvider

// VisibilityProvider launches a command in a host-visible terminal session.
// Implementations are platform glue (tmux, Terminal.app, a desktop terminal
// emulator) and live outside this package; the dispatcher only needs the pid
// to track and an opaque session handle to report.
type VisibilityProvider interface {
	Launch(ctx context.Context, name string, args []string) (pid int, session string, err error)
}
