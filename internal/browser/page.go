package browser

import (
	"context"
	"errors"
)

var (
	// ErrPageOutOfRange is returned when a page index exceeds what was provisioned.
	ErrPageOutOfRange = errors.New("page index out of range")
	// ErrPageUnavailable marks a page slot whose creation failed.
	ErrPageUnavailable = errors.New("page unavailable")
	// ErrClosed is returned after CloseAll.
	ErrClosed = errors.New("browser manager closed")
	// ErrNoElement is returned by Page.Text when the selector matches nothing.
	ErrNoElement = errors.New("no element matches selector")
)

// Page is the navigation surface the fetcher needs from a browser tab.
type Page interface {
	// Navigate loads url and returns once DOMContentLoaded has fired.
	Navigate(ctx context.Context, url string) error
	Title(ctx context.Context) (string, error)
	// Text returns the rendered text of the first element matching selector.
	Text(ctx context.Context, selector string) (string, error)
	Close() error
}

// Browser is one browser process.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Connected() bool
	Close() error
}

// Launcher starts a browser process.
type Launcher func(ctx context.Context, cfg Config) (Browser, error)
