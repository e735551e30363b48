package embeddings

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// hashProvider embeds text locally with signed feature hashing over
// character unigrams, bigrams and boundary-marked bigrams. It needs no
// network and is deterministic, which suits short entity names.
type hashProvider struct {
	dims int
}

// NewHashProvider returns the offline hashing provider.
func NewHashProvider(dims int) Provider {
	if dims <= 0 {
		dims = 384
	}
	return &hashProvider{dims: dims}
}

func (p *hashProvider) Name() string    { return "hash" }
func (p *hashProvider) Dimensions() int { return p.dims }

func (p *hashProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = p.embedOne(in)
	}
	return out, nil
}

func (p *hashProvider) embedOne(text string) []float32 {
	vec := make([]float32, p.dims)
	runes := normalizeRunes(text)
	if len(runes) == 0 {
		return vec
	}
	for _, f := range features(runes) {
		h := xxhash.Sum64String(f)
		idx := int(h % uint64(p.dims))
		if h&(1<<63) != 0 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

func normalizeRunes(text string) []rune {
	var out []rune
	for _, r := range strings.ToLower(text) {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func features(runes []rune) []string {
	feats := make([]string, 0, 3*len(runes)+2)
	for _, r := range runes {
		feats = append(feats, "u:"+string(r))
	}
	for i := 0; i+1 < len(runes); i++ {
		feats = append(feats, "b:"+string(runes[i:i+2]))
	}
	feats = append(feats, "b:^"+string(runes[0]), "b:"+string(runes[len(runes)-1])+"$")
	return feats
}
