package metrics

import "sort"

// StatusBucket is one protocol/code failure row.
type StatusBucket struct {
	Protocol string
	Code     string
	Count    int
}

// FlattenStatusBuckets converts a protocol->code->count map into rows sorted by
// descending count, then protocol and code.
func FlattenStatusBuckets(buckets map[string]map[string]int) []StatusBucket {
	if len(buckets) == 0 {
		return nil
	}
	var rows []StatusBucket
	for protocol, codes := range buckets {
		for code, count := range codes {
			rows = append(rows, StatusBucket{Protocol: protocol, Code: code, Count: count})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		if rows[i].Protocol != rows[j].Protocol {
			return rows[i].Protocol < rows[j].Protocol
		}
		return rows[i].Code < rows[j].Code
	})
	return rows
}
