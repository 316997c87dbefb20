package rotation

import (
	"context"
	"time"

	"linkguard/internal/kit"
	"linkguard/pkg/logx"
)

// LinkResult is the per-source outcome of one generation pass. Either Link
// is a fresh invite URL or Err records why the platform call failed.
type LinkResult struct {
	Source Source
	Link   string
	Err    error
}

func (r LinkResult) OK() bool { return r.Err == nil && r.Link != "" }

// Generator requests invite links from the platform, one source at a time.
type Generator struct {
	adapter     kit.Adapter
	log         logx.Logger
	callTimeout time.Duration
}

func NewGenerator(adapter kit.Adapter, callTimeout time.Duration, log logx.Logger) *Generator {
	if callTimeout <= 0 {
		callTimeout = 15 * time.Second
	}
	return &Generator{adapter: adapter, callTimeout: callTimeout, log: log}
}

// Generate produces one LinkResult per source, in source order. A failing
// source never aborts the rest: its result carries the error and the pass
// continues. Each link expires after `interval` and caps joins at
// `memberLimit`.
func (g *Generator) Generate(ctx context.Context, sources []Source, interval time.Duration, memberLimit int) []LinkResult {
	results := make([]LinkResult, 0, len(sources))
	for _, src := range sources {
		link, err := g.generateOne(ctx, src, interval, memberLimit)
		if err != nil {
			g.log.Error("invite link generation failed", logx.String("source", src.ID), logx.Err(err))
			results = append(results, LinkResult{Source: src, Err: err})
			continue
		}
		g.log.Info("invite link generated", logx.String("source", src.ID))
		results = append(results, LinkResult{Source: src, Link: link})
	}
	return results
}

func (g *Generator) generateOne(ctx context.Context, src Source, interval time.Duration, memberLimit int) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()
	expireAt := time.Now().Add(interval)
	return g.adapter.CreateInviteLink(callCtx, TargetFor(src.ID), expireAt, memberLimit)
}
