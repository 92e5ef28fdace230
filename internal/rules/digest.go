package rules

import (
	"hash/fnv"

	"github.com/simplesurance/mergetrain/internal/conditions"
)

// DependencyDigest hashes only the snapshot attributes a rule's condition
// tree reads. Unrelated state churn does not change the digest and
// therefore does not trigger redundant dispatch.
func DependencyDigest(rule *Rule, snapshot *conditions.Snapshot) uint64 {
	h := fnv.New64a()

	for _, attr := range rule.Condition.Attributes() {
		_, _ = h.Write([]byte(attr))
		_, _ = h.Write([]byte{0})

		for _, val := range snapshot.AttributeValues(attr) {
			_, _ = h.Write([]byte(val))
			_, _ = h.Write([]byte{1})
		}

		_, _ = h.Write([]byte{2})
	}

	return h.Sum64()
}
