package engine

import (
	"context"
	"log/slog"

	"github.com/IshaanNene/NewsHarvest/internal/source"
	"github.com/IshaanNene/NewsHarvest/internal/types"
)

// pageSource serves listing pages to adapters. Pages that ask for
// rendering go through the browser while it is up; everything else, and
// any failed render, goes over HTTP.
type pageSource struct {
	e      *Engine
	logger *slog.Logger
}

func (p *pageSource) Page(ctx context.Context, req source.PageRequest) (*types.Response, error) {
	if req.Render && p.e.browserReady.Load() {
		resp, err := p.e.renderer.Render(ctx, req.URL)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.Warn("render failed, retrying over HTTP", "url", req.URL, "error", err)
	}

	r, err := types.NewRequest(req.URL)
	if err != nil {
		return nil, err
	}
	if req.Encoding != "" {
		r.WithEncoding(req.Encoding)
	}
	return p.e.fetcher.Fetch(ctx, r)
}
