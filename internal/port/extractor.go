package port

import "context"

// Extractor converts PDF bytes into plain text.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}
