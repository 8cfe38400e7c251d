package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const pagePrefix = "Page "

// PageName returns the display name of the page at 1-based position n.
func PageName(n int) string { return fmt.Sprintf("%s%d", pagePrefix, n) }

// ChildName returns the name of child c (1-based) of page p (1-based).
func ChildName(p, c int) string { return fmt.Sprintf("%d-%d", p, c) }

// QuestionName returns the name of question q (1-based) of page p (1-based).
func QuestionName(p, q int) string { return fmt.Sprintf("%d-%d", p, q) }

// PageIndex extracts N from "Page N". Unparseable names sort last.
func PageIndex(name string) int {
	n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(name, pagePrefix)))
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return n
}

// SortPages orders pages by the numeric suffix of their names.
func SortPages(pages []PageHierarchy) {
	sort.SliceStable(pages, func(i, j int) bool {
		return PageIndex(pages[i].Name) < PageIndex(pages[j].Name)
	})
}

// SortNodeRefs orders "{a}-{b}" names numerically; other names keep their order.
func SortNodeRefs(refs []NodeRef) {
	sort.SliceStable(refs, func(i, j int) bool { return lessDashed(refs[i].Name, refs[j].Name) })
}

func lessDashed(a, b string) bool {
	a1, a2, okA := splitDashed(a)
	b1, b2, okB := splitDashed(b)
	if !okA || !okB {
		return okA && !okB
	}
	if a1 != b1 {
		return a1 < b1
	}
	return a2 < b2
}

func splitDashed(s string) (int, int, bool) {
	left, right, found := strings.Cut(s, "-")
	if !found {
		return 0, 0, false
	}
	l, err1 := strconv.Atoi(left)
	r, err2 := strconv.Atoi(right)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return l, r, true
}
