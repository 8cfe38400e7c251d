package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageIndex(t *testing.T) {
	assert.Equal(t, 1, PageIndex("Page 1"))
	assert.Equal(t, 12, PageIndex(PageName(12)))
	assert.Greater(t, PageIndex("Cover"), 1_000_000)
}

func TestSortPages_NumericNotLexical(t *testing.T) {
	pages := []PageHierarchy{
		{Name: "Page 10"}, {Name: "Page 2"}, {Name: "Page 1"}, {Name: "Page 11"}, {Name: "Page 3"},
	}
	SortPages(pages)

	var names []string
	for _, p := range pages {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Page 1", "Page 2", "Page 3", "Page 10", "Page 11"}, names)
}

func TestSortNodeRefs(t *testing.T) {
	refs := []NodeRef{
		{Name: "2-10"},
		{Name: "2-2"},
		{Name: "1-3"},
		{Name: "odd"},
	}
	SortNodeRefs(refs)
	assert.Equal(t, "1-3", refs[0].Name)
	assert.Equal(t, "2-2", refs[1].Name)
	assert.Equal(t, "2-10", refs[2].Name)
	assert.Equal(t, "odd", refs[3].Name)
}

func TestNames(t *testing.T) {
	assert.Equal(t, "Page 3", PageName(3))
	assert.Equal(t, "3-1", ChildName(3, 1))
	assert.Equal(t, "1-2", QuestionName(1, 2))
}
