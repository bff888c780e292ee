package workflow

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// trainLabelFor is the text fragment identifying a train on its card.
func trainLabelFor(number string) string {
	return "(" + strings.TrimSpace(number) + ")"
}

// exactLabel compares option labels the way the portal renders them.
func exactLabel(rendered, want string) bool {
	return strings.TrimSpace(rendered) == strings.TrimSpace(want)
}

// dateMatches reports whether a date chip's text ("26 Nov, Wed" plus an
// availability line) is the chip for label ("26 Nov").
func dateMatches(chip, label string) bool {
	first, _, _ := strings.Cut(strings.TrimSpace(chip), "\n")
	head, _, _ := strings.Cut(first, ",")
	head = strings.TrimSpace(head)
	for _, layout := range []string{"02 Jan", "2 Jan"} {
		if t, err := time.Parse(layout, head); err == nil {
			return t.Format("02 Jan") == label
		}
	}
	return strings.Contains(chip, label)
}

// pickDate returns the index of the first chip text matching label, or -1.
func pickDate(chips []string, label string) int {
	for i, c := range chips {
		if dateMatches(c, label) {
			return i
		}
	}
	return -1
}

var cardNumber = regexp.MustCompile(`\((\d{5})\)`)

// cardTrainNumber extracts the train number from a card label such as
// "RAJDHANI EXP (12951)". Labels with more than one parenthesis are not
// train titles.
func cardTrainNumber(label string) (string, bool) {
	if strings.Count(label, "(") != 1 {
		return "", false
	}
	m := cardNumber.FindStringSubmatch(label)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func genderXPath(format, label string) string {
	return fmt.Sprintf(format, label)
}

// chipDate is the date line of a chip, without the availability text.
func chipDate(chip string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(chip), "\n")
	return strings.TrimSpace(first)
}
