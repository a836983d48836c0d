package fetcher

import (
	"context"

	"github.com/IshaanNene/NewsHarvest/internal/types"
)

// Fetcher retrieves a page over plain HTTP.
type Fetcher interface {
	// Fetch retrieves the content at the given request's URL. A non-nil
	// error is a *types.FetchFailure once the fetcher has given up.
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)

	// Close releases any resources held by the fetcher.
	Close() error
}

// Renderer retrieves a page after executing its scripts in a browser.
type Renderer interface {
	// Start launches the browser if it is not running yet. It returns
	// types.ErrBrowserUnavailable when no browser can be started.
	Start() error

	// Render navigates to rawURL and returns the settled document.
	Render(ctx context.Context, rawURL string) (*types.Response, error)

	// Close tears the browser down. Safe to call more than once.
	Close() error
}

var (
	_ Fetcher  = (*HTTPClient)(nil)
	_ Renderer = (*BrowserClient)(nil)
)
