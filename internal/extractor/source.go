package extractor

import (
	"context"
	"os"
	"path/filepath"
)

// Source supplies the raw per-exchange documents produced by the detection
// engine. Implementations must return an error wrapping fs.ErrNotExist when
// the named document does not exist; absence is not a failure.
type Source interface {
	ReadDocument(ctx context.Context, name string) ([]byte, error)
}

// DirSource reads documents from a flat directory on disk.
type DirSource struct {
	Dir string
}

func (s DirSource) ReadDocument(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(s.Dir, name))
}

func opportunitiesDoc(exchange string) string { return exchange + "_tokens2e.json" }
func cyclesDoc(exchange string) string        { return exchange + "_bot2.json" }
