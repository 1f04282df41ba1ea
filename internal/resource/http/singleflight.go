package http

import (
	"context"

	"golang.org/x/sync/singleflight"
)

var viewBuildGroup singleflight.Group

// singleflightBuild coalesces concurrent builds of the same key. The caller
// stops waiting when ctx is done; the shared build keeps running.
func singleflightBuild(ctx context.Context, key string, fn func(context.Context) ([]byte, error)) ([]byte, error, bool) {
	resultChan := viewBuildGroup.DoChan(key, func() (interface{}, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err, res.Shared
		}
		return res.Val.([]byte), nil, res.Shared
	}
}
