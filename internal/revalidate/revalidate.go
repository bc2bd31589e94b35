// Package revalidate signals that cached views of projects and delivery lists
// are stale after a write. Delivery is best effort: a failed signal never
// fails the write that triggered it.
package revalidate

import (
	"context"

	id "sitecarbon/pkg/domain"
)

// DeliveriesPath is the global delivery list view.
const DeliveriesPath = "/deliveries"

// ProjectPath is the view root for one project. Invalidating it covers every
// view beneath it.
func ProjectPath(projectID id.ProjectID) string {
	return "/projects/" + projectID.String()
}

// Invalidator marks views stale.
type Invalidator interface {
	Invalidate(ctx context.Context, paths ...string) error
}

// Nop discards invalidations. Used when no cache or broker is configured.
type Nop struct{}

func (Nop) Invalidate(context.Context, ...string) error { return nil }
