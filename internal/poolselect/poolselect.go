// Package poolselect picks a live mirror server out of a candidate pool by
// shuffling the list and probing each candidate in turn.
package poolselect

import (
	"context"
	"math/rand"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/mediamirror/mediamirror/internal/fetch"
)

// ErrNoneAvailable is returned when no candidate qualifies; the caller
// should abort the run.
var ErrNoneAvailable = errors.New("poolselect: no candidate server available")

// Select shuffles candidates and probes each with f until one returns 200
// and its body contains sentinel. This is the canonical, substring-gated
// variant: the gateway sometimes serves a placeholder page on 200, and the
// sentinel substring (seen in practice as "每日更新", a section name the
// placeholder never contains) filters those out.
func Select(ctx context.Context, f *fetch.Fetcher, candidates []string, sentinel string) (string, error) {
	return probe(ctx, f, candidates, func(body string) bool {
		return strings.Contains(body, sentinel)
	})
}

// SelectLite shuffles candidates and probes each with f, returning the
// first that answers with any 200 response, without inspecting the body.
// This sibling variant accepts placeholder pages a full Select call would
// reject.
func SelectLite(ctx context.Context, f *fetch.Fetcher, candidates []string) (string, error) {
	return probe(ctx, f, candidates, func(string) bool { return true })
}

func probe(ctx context.Context, f *fetch.Fetcher, candidates []string, accept func(body string) bool) (string, error) {
	shuffled := make([]string, len(candidates))
	copy(shuffled, candidates)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	for _, member := range shuffled {
		body, err := f.Fetch(ctx, member)
		if err != nil {
			continue
		}
		if accept(body) {
			return member, nil
		}
	}
	return "", ErrNoneAvailable
}
