package corpus

import (
	"sort"
	"strconv"
	"strings"
)

// CompareIDs orders document ids naturally: ids that parse as integers come
// first in numeric order, then every other id in lexicographic order. Equal
// numeric values ("7", "007") fall back to lexicographic order so the result
// is a total order.
func CompareIDs(a, b string) int {
	na, aNum := parseNumericID(a)
	nb, bNum := parseNumericID(b)
	switch {
	case aNum && bNum:
		if na < nb {
			return -1
		}
		if na > nb {
			return 1
		}
		return strings.Compare(a, b)
	case aNum:
		return -1
	case bNum:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// SortIDs sorts ids in place by CompareIDs.
func SortIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		return CompareIDs(ids[i], ids[j]) < 0
	})
}

func parseNumericID(id string) (int64, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	return n, err == nil
}
