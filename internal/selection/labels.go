package selection

import "strings"

// IncrementLabel returns the label after the given one in the sequence
// A, B, ..., Z, AA, AB, ..., AZ, BA, ... An empty label yields "A".
func IncrementLabel(label string) string {
	label = strings.ToUpper(strings.TrimSpace(label))
	if label == "" {
		return "A"
	}
	letters := []byte(label)
	for index := len(letters) - 1; index >= 0; index-- {
		if letters[index] < 'Z' {
			letters[index]++
			return string(letters)
		}
		letters[index] = 'A'
	}
	return "A" + string(letters)
}

// LabelForColumn maps a 0-based column to its menu label (0 -> A, 26 -> AA).
func LabelForColumn(column int) string {
	if column < 0 {
		return ""
	}
	var letters []byte
	for value := column + 1; value > 0; value = (value - 1) / 26 {
		letters = append([]byte{byte('A' + (value-1)%26)}, letters...)
	}
	return string(letters)
}

// ColumnForLabel is the inverse of LabelForColumn.
func ColumnForLabel(label string) (int, bool) {
	label = strings.ToUpper(strings.TrimSpace(label))
	if label == "" {
		return 0, false
	}
	value := 0
	for index := 0; index < len(label); index++ {
		letter := label[index]
		if letter < 'A' || letter > 'Z' {
			return 0, false
		}
		value = value*26 + int(letter-'A'+1)
		if value > 1<<20 {
			return 0, false
		}
	}
	return value - 1, true
}
