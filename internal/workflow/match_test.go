package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDateMatches(t *testing.T) {
	assert.True(t, dateMatches("26 Nov, Wed\nAVAILABLE-0042", "26 Nov"))
	assert.True(t, dateMatches("6 Dec, Sat", "06 Dec"))
	assert.False(t, dateMatches("27 Nov, Thu\nWL 12", "26 Nov"))
	assert.True(t, dateMatches("Tomorrow 26 Nov", "26 Nov"))
}

func TestCardTrainNumber(t *testing.T) {
	n, ok := cardTrainNumber("MUMBAI RAJDHANI (12951)")
	assert.True(t, ok)
	assert.Equal(t, "12951", n)

	_, ok = cardTrainNumber("NDLS (New Delhi) (12951)")
	assert.False(t, ok)
	_, ok = cardTrainNumber("Departs (05:30)")
	assert.False(t, ok)
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "(12951)", trainLabelFor(" 12951 "))
	assert.True(t, exactLabel(" General ", "General"))
	assert.False(t, exactLabel("Tatkal", "Premium Tatkal"))
	assert.True(t, containsLabel("MUMBAI RAJDHANI (12951)", "(12951)"))
	assert.False(t, containsLabel("anything", "()"))
	assert.Equal(t, "26 Nov, Wed", chipDate(" 26 Nov, Wed\nWL 3 "))
	assert.Equal(t, "//span[.='Female']", genderXPath("//span[.='%s']", "Female"))
}

func TestPickDate(t *testing.T) {
	chips := []string{"25 Nov, Tue\nREGRET", "26 Nov, Wed\nAVAILABLE-0042", "26 Nov, Wed"}
	assert.Equal(t, 1, pickDate(chips, "26 Nov"))
	assert.Equal(t, -1, pickDate(chips, "30 Nov"))
	assert.Equal(t, -1, pickDate(nil, "26 Nov"))
}
