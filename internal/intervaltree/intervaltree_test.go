package intervaltree

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryOverlap(t *testing.T) {
	b := NewBuilder()
	b.Add("1", 100, 200, "ENST1")
	b.Add("1", 150, 250, "ENST2")
	b.Add("2", 100, 200, "ENST3")
	tr := b.Build()

	assert.ElementsMatch(t, []string{"ENST1"}, tr.Query("1", 100, 110))
	assert.ElementsMatch(t, []string{"ENST1", "ENST2"}, tr.Query("1", 160, 170))
	assert.ElementsMatch(t, []string{"ENST2"}, tr.Query("1", 210, 220))
	assert.Empty(t, tr.Query("1", 300, 310))
	assert.Empty(t, tr.Query("3", 100, 110))
}

func TestQueryMultipleExonsSameTranscript(t *testing.T) {
	b := NewBuilder()
	b.Add("1", 100, 150, "ENST1")
	b.Add("1", 300, 350, "ENST1")
	tr := b.Build()

	assert.ElementsMatch(t, []string{"ENST1"}, tr.Query("1", 120, 130))
	assert.ElementsMatch(t, []string{"ENST1"}, tr.Query("1", 310, 320))
	assert.Len(t, tr.Query("1", 310, 320), 1)
}

func TestEmptyTree(t *testing.T) {
	tr := New()
	assert.Empty(t, tr.Query("1", 1, 100))
}
