package quiz

import (
	"fmt"
	"sort"
	"strings"
)

// Signature derives a stable quiz identifier from the set of question
// texts. The texts are sorted before hashing so extraction nondeterminism
// (title phrasing, option order, question order) does not change the id:
// identical content always maps to the same cache and history bucket.
//
// Two distinct question sets that collide silently merge into one bucket.
// Known limitation, kept as-is.
func Signature(texts []string) string {
	sorted := make([]string, len(texts))
	copy(sorted, texts)
	sort.Strings(sorted)

	canonical := strings.Join(sorted, "\n")

	var h int32
	for _, b := range []byte(canonical) {
		h = h*31 + int32(b)
	}

	// Negating math.MinInt32 wraps back to itself; that edge keeps its
	// sign. Persisted ids depend on this exact arithmetic.
	n := h
	if n < 0 {
		n = -n
	}
	return fmt.Sprintf("quiz-%d", n)
}
