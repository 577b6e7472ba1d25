// Package retry runs an operation again when it fails with a transient
// error. Components below the pipeline never retry on their own; the
// caller wraps them with Do or DoWithResult.
//
//	content, err := retry.DoWithResult(ctx, policy, func(ctx context.Context) (*feed.Content, error) {
//	    return fetcher.Fetch(ctx, handle, req)
//	})
package retry
