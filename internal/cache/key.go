package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// EmbeddingKey derives the cache key for one (model, text) pair: the hex
// SHA-256 of the model id and whitespace-normalized lowercase text,
// joined by a separator absent from either input.
func EmbeddingKey(modelID, text string) string {
	canonical := strings.ToLower(strings.Join(strings.Fields(text), " "))
	h := sha256.Sum256([]byte(modelID + "\x00" + canonical))
	return "emb:" + hex.EncodeToString(h[:])
}
