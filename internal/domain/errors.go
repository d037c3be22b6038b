package domain

import (
	"fmt"
	"sort"
	"strings"
)

// DuplicateKeyError reports duplicate identity keys in a table that must be
// key-unique before the join. It is fatal: the run aborts rather than
// producing a row-multiplied or ambiguous join.
type DuplicateKeyError struct {
	Table string  // "commission" or "user_info"
	Field string  // "merchant_id" or "user_id"
	Keys  []int64 // offending key values, deduplicated
}

func (e *DuplicateKeyError) Error() string {
	keys := append([]int64(nil), e.Keys...)
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%d", k)
	}
	return fmt.Sprintf("duplicate %s in %s table: [%s]", e.Field, e.Table, strings.Join(parts, " "))
}
