package categorizer

import (
	"regexp"
	"strconv"
	"strings"

	"shipclass/internal/models"
)

// partMarker matches a row ordinal marker such as "Part 3:", "**Part 3**",
// "### Part 3" or a list item like "3. Part 3".
var partMarker = regexp.MustCompile(`(?im)^[ \t#*_>\-]*(?:\d+[.)][ \t#*_>\-]*)?part[ \t]+(\d+)`)

// ParseLabels extracts one label per row from a free-text model reply.
// It never fails: rows without a usable block get the sentinel error label.
func ParseLabels(text string, rowCount int) []models.Label {
	labels, _ := ParseReport(text, rowCount)
	return labels
}

// ParseReport is ParseLabels plus the per-row reasons for every sentinel label.
func ParseReport(text string, rowCount int) ([]models.Label, []*models.ParseError) {
	if rowCount <= 0 {
		return []models.Label{}, nil
	}

	blocks := splitBlocks(text, rowCount)

	labels := make([]models.Label, rowCount)
	var problems []*models.ParseError
	for i := range labels {
		block, ok := blocks[i]
		if !ok {
			labels[i] = models.ErrorLabel()
			problems = append(problems, &models.ParseError{Row: i, Reason: "no block for part " + strconv.Itoa(i+1)})
			continue
		}
		label, reason := parseBlock(block)
		if reason != "" {
			labels[i] = models.ErrorLabel()
			problems = append(problems, &models.ParseError{Row: i, Reason: reason})
			continue
		}
		labels[i] = label
	}
	return labels, problems
}

// splitBlocks maps 0-based row positions to the text following their marker.
// Out-of-range ordinals are dropped and the first block for an ordinal wins.
func splitBlocks(text string, rowCount int) map[int]string {
	matches := partMarker.FindAllStringSubmatchIndex(text, -1)
	blocks := make(map[int]string, len(matches))
	for i, m := range matches {
		n, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil || n < 1 || n > rowCount {
			continue
		}
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		if _, dup := blocks[n-1]; dup {
			continue
		}
		blocks[n-1] = text[m[1]:end]
	}
	return blocks
}

func parseBlock(block string) (models.Label, string) {
	var typ, category string
	for _, line := range strings.Split(block, "\n") {
		lower := strings.ToLower(line)
		switch {
		case strings.Contains(lower, "type:"):
			if typ == "" {
				typ = strings.ToLower(lastValue(line))
			}
		case strings.Contains(lower, "category:"):
			if category == "" {
				category = lastValue(line)
			}
		}
	}

	switch {
	case typ == "" && category == "":
		return models.Label{}, "missing type and category"
	case typ == "":
		return models.Label{}, "missing type"
	case category == "":
		return models.Label{}, "missing category"
	}
	return models.Label{Type: typ, Category: models.CanonicalCategory(category)}, ""
}

// lastValue returns the text after the last colon, stripped of markdown emphasis.
func lastValue(line string) string {
	v := line[strings.LastIndex(line, ":")+1:]
	return strings.Trim(v, " \t\r*`_")
}
