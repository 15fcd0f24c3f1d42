package embeddings

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// DefaultHashDimensions is the vector size of the local embedder.
const DefaultHashDimensions = 512

// HashEmbedder is an offline embedder based on feature hashing of character
// unigrams and bigrams. It needs no network access and is fully
// deterministic, which makes it suitable for air-gapped use and tests.
// Bigrams carry most of the signal for Japanese text, where words are not
// separated by spaces.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder returns a HashEmbedder producing vectors of dims
// dimensions (DefaultHashDimensions when dims <= 0).
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultHashDimensions
	}
	return &HashEmbedder{dims: dims}
}

func (e *HashEmbedder) Name() string    { return "local/hash" }
func (e *HashEmbedder) Dimensions() int { return e.dims }

func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *HashEmbedder) vector(text string) []float32 {
	vec := make([]float32, e.dims)
	runes := []rune(strings.ToLower(norm.NFKC.String(text)))

	var prev rune
	for _, r := range runes {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			prev = 0
			continue
		}
		vec[e.bucket(string(r))] += 0.5
		if prev != 0 {
			vec[e.bucket(string([]rune{prev, r}))] += 1
		}
		prev = r
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		// chromem rejects zero vectors; give empty input a fixed direction.
		vec[0] = 1
		return vec
	}
	n := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= n
	}
	return vec
}

func (e *HashEmbedder) bucket(feature string) int {
	h := fnv.New32a()
	h.Write([]byte(feature))
	return int(h.Sum32() % uint32(e.dims))
}
