package llm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/agenthands/moodmap/internal/logger"
)

// Cache stores encoded vectors by key. Get reports a miss with ok=false.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
}

// CachedEmbedder serves repeated texts from a Cache. Identical topic_doc
// text re-embedded across runs never reaches the collaborator twice.
type CachedEmbedder struct {
	Inner     EmbedderClient
	Cache     Cache
	Namespace string
	Log       *logger.Logger
}

func NewCachedEmbedder(inner EmbedderClient, cache Cache, namespace string, log *logger.Logger) *CachedEmbedder {
	return &CachedEmbedder{
		Inner:     inner,
		Cache:     cache,
		Namespace: namespace,
		Log:       logger.OrNop(log).With("component", "embedding_cache"),
	}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)
	if vec, ok := c.lookup(ctx, key); ok {
		return vec, nil
	}
	vec, err := c.Inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, vec)
	return vec, nil
}

func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, t := range texts {
		if vec, ok := c.lookup(ctx, c.key(t)); ok {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	var fresh [][]float32
	if batch, ok := c.Inner.(BatchEmbedder); ok {
		vecs, err := batch.EmbedBatch(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(missTexts) {
			return nil, fmt.Errorf("expected %d embeddings, got %d", len(missTexts), len(vecs))
		}
		fresh = vecs
	} else {
		for _, t := range missTexts {
			vec, err := c.Inner.Embed(ctx, t)
			if err != nil {
				return nil, err
			}
			fresh = append(fresh, vec)
		}
	}

	for j, i := range missIdx {
		out[i] = fresh[j]
		c.store(ctx, c.key(texts[i]), fresh[j])
	}
	return out, nil
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.Namespace + ":" + hex.EncodeToString(sum[:])
}

func (c *CachedEmbedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	raw, ok, err := c.Cache.Get(ctx, key)
	if err != nil {
		c.Log.Warn("embedding cache read failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	vec, err := DecodeVector(raw)
	if err != nil {
		c.Log.Warn("embedding cache entry corrupt", "key", key, "error", err)
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbedder) store(ctx context.Context, key string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	if err := c.Cache.Set(ctx, key, EncodeVector(vec)); err != nil {
		c.Log.Warn("embedding cache write failed", "key", key, "error", err)
	}
}

// EncodeVector packs a vector as little-endian float32s.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("encoded vector length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
