package relaysync

import "context"

// Source is the per-platform adapter contract. Implementations normalize one
// chat platform into thread listings and raw detail payloads; the core owns
// everything downstream of this boundary.
//
// ListThreads must be stable for a given page/limit absent upstream changes
// and fails with ErrAdapterUnavailable when the platform session is not
// authenticated. GetThreadDetail returns entries in chronological order and
// fails with ErrNotFound when the id no longer exists upstream. ExtractID is
// pure: it recognizes a thread URL and returns its id, or "" for no match.
type Source interface {
	Platform() string
	ListThreads(ctx context.Context, page, limit int) (ThreadPage, error)
	GetThreadDetail(ctx context.Context, id string) (map[string]any, error)
	ExtractID(url string) string
}
