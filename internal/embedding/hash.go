package embedding

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/vox-os/vox-memory/internal/textproc"
)

// HashEmbedder is an offline embedder. Each word is hashed into a bucket, so
// texts sharing words land close together. It needs no network and is
// deterministic, which makes it useful for tests and air-gapped installs.
type HashEmbedder struct {
	dims int
}

func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 256
	}
	return &HashEmbedder{dims: dims}
}

func (h *HashEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	vec := make(Vector, h.dims)
	for _, w := range textproc.Words(text) {
		f := fnv.New64a()
		f.Write([]byte(w))
		vec[f.Sum64()%uint64(h.dims)] += 1
	}
	return normalize(vec), nil
}

func (h *HashEmbedder) Dims() int { return h.dims }

func normalize(vec Vector) Vector {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec
}
