package embedder

import (
	"hash/fnv"
	"math"
	"strings"
)

// hashEmbed projects arbitrary bytes into a fixed-width vector using
// the hashing trick (feature hashing): each whitespace-delimited
// token (or, for non-text payloads, each fixed-size byte shingle) is
// hashed into a bucket and its sign/count accumulated, then the whole
// vector is L2-normalized. This keeps the engine fully local and
// dependency-free for the embedding step itself while giving
// semantically similar inputs (shared vocabulary) nearby vectors,
// which is what the rest of the pipeline (HNSW cosine search,
// reranking) actually requires.
func hashEmbed(data []byte, dims int) []float32 {
	vec := make([]float32, dims)
	tokens := tokenize(data)
	if len(tokens) == 0 {
		return vec
	}
	for _, tok := range tokens {
		h := fnv.New64a()
		_, _ = h.Write(tok)
		sum := h.Sum64()
		bucket := int(sum % uint64(dims))
		sign := float32(1)
		if (sum>>63)&1 == 1 {
			sign = -1
		}
		vec[bucket] += sign
	}
	normalize(vec)
	return vec
}

func tokenize(data []byte) [][]byte {
	s := string(data)
	if isLikelyText(s) {
		fields := strings.Fields(strings.ToLower(s))
		out := make([][]byte, len(fields))
		for i, f := range fields {
			out[i] = []byte(f)
		}
		return out
	}

	const shingle = 8
	var out [][]byte
	for i := 0; i < len(data); i += shingle {
		end := i + shingle
		if end > len(data) {
			end = len(data)
		}
		out = append(out, data[i:end])
	}
	return out
}

func isLikelyText(s string) bool {
	if s == "" {
		return true
	}
	printable := 0
	for _, r := range s {
		if r == '\n' || r == '\t' || (r >= 0x20 && r < 0x7f) || r > 0xa0 {
			printable++
		}
	}
	return float64(printable)/float64(len([]rune(s))) > 0.9
}

func normalize(vec []float32) {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range vec {
		vec[i] /= norm
	}
}
