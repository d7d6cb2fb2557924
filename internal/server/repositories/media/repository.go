// Package media exposes the read-only item-count oracle consumed when
// blocking destructive library operations. The media entity itself is owned
// by the cataloging subsystem.
package media

import "context"

// Repository answers "how many items are attributed to library X".
type Repository interface {
	CountByLibrary(ctx context.Context, libraryID int64) (int64, error)
}
