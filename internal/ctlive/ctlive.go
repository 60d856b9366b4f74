// Package ctlive defines the seam between the match pipeline and a live CT
// log tail client: something that watches a log's signed tree heads and
// delivers newly sequenced leaves as they appear. This module does not
// implement STH verification or tree-head polling itself; Client is the
// contract a real tail client is expected to satisfy.
package ctlive

import (
	"context"
	"fmt"
	"io"
)

// ErrTailClient wraps any error a Client.Next call returns, so callers can
// distinguish "the tail ended or failed" from pipeline-internal errors.
var ErrTailClient = fmt.Errorf("ctlive: tail client error")

// LeafWithChain is one leaf delivered by a live tail, alongside the issuer
// chain it was submitted with.
type LeafWithChain struct {
	LeafDER []byte
	Chain   [][]byte
}

// Batch is a group of leaves a Client delivers together.
type Batch struct {
	Certs []LeafWithChain
}

// Client is the live-tail collaborator contract. Next blocks until the
// next batch of newly sequenced leaves is available, ctx is done, or the
// tail ends in error.
type Client interface {
	Next(ctx context.Context) (Batch, error)
}

// StaticClient is a Client test double that replays a fixed sequence of
// batches in order, then reports the tail as ended.
type StaticClient struct {
	batches []Batch
	pos     int
}

// NewStaticClient returns a StaticClient that will yield batches in order,
// then end with io.EOF wrapped in ErrTailClient.
func NewStaticClient(batches []Batch) *StaticClient {
	return &StaticClient{batches: batches}
}

func (c *StaticClient) Next(ctx context.Context) (Batch, error) {
	if err := ctx.Err(); err != nil {
		return Batch{}, fmt.Errorf("%w: %v", ErrTailClient, err)
	}
	if c.pos >= len(c.batches) {
		return Batch{}, fmt.Errorf("%w: %v", ErrTailClient, io.EOF)
	}
	b := c.batches[c.pos]
	c.pos++
	return b, nil
}
