package categorizer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipclass/internal/models"
)

func TestParseLabels(t *testing.T) {
	errLabel := models.ErrorLabel()

	testCases := []struct {
		name     string
		text     string
		rowCount int
		expected []models.Label
	}{
		{
			name:     "Plain",
			text:     "Part 1:\ntype: component\ncategory: Hull\n\nPart 2:\ntype: Spare\ncategory: HVAC System",
			rowCount: 2,
			expected: []models.Label{
				{Type: "component", Category: "Hull"},
				{Type: "spare", Category: "HVAC System"},
			},
		},
		{
			name:     "Markdown",
			text:     "### Part 1\n- **type:** store\n- **category:** ship equipment\n**Part 2:**\n* Type: `component`\n* Category: _Ship  General_",
			rowCount: 2,
			expected: []models.Label{
				{Type: "store", Category: "Ship Equipment"},
				{Type: "component", Category: "Ship General"},
			},
		},
		{
			name:     "Numbered List",
			text:     "1. Part 1\n- **Type:** Spare\n- **Category:** Ship General\n2) **Part 2:**\n- Type: store\n- Category: Hull",
			rowCount: 2,
			expected: []models.Label{
				{Type: "spare", Category: "Ship General"},
				{Type: "store", Category: "Hull"},
			},
		},
		{
			name:     "Unknown Values Kept",
			text:     "Part 1:\ntype: Widget\ncategory: Galley",
			rowCount: 1,
			expected: []models.Label{{Type: "widget", Category: "Galley"}},
		},
		{
			name:     "Missing Category",
			text:     "Part 1:\ntype: component\nPart 2:\ntype: spare\ncategory: Hull",
			rowCount: 2,
			expected: []models.Label{errLabel, {Type: "spare", Category: "Hull"}},
		},
		{
			name:     "Empty Value",
			text:     "Part 1:\ntype:\ncategory: Hull",
			rowCount: 1,
			expected: []models.Label{errLabel},
		},
		{
			name:     "Missing Block",
			text:     "Part 1:\ntype: component\ncategory: Hull\nPart 3:\ntype: store\ncategory: Hull",
			rowCount: 3,
			expected: []models.Label{{Type: "component", Category: "Hull"}, errLabel, {Type: "store", Category: "Hull"}},
		},
		{
			name:     "Out Of Range And Duplicate Ordinals",
			text:     "Part 1:\ntype: component\ncategory: Hull\nPart 1:\ntype: spare\ncategory: Hull\nPart 9:\ntype: store\ncategory: Hull\nPart 0:\ntype: store\ncategory: Hull",
			rowCount: 2,
			expected: []models.Label{{Type: "component", Category: "Hull"}, errLabel},
		},
		{
			name:     "Preamble Ignored",
			text:     "Sure! Here are the classifications.\ntype: nonsense\n\nPart 1: \ntype: spare\ncategory: Hull",
			rowCount: 1,
			expected: []models.Label{{Type: "spare", Category: "Hull"}},
		},
		{
			name:     "Garbage",
			text:     "I cannot help with that.",
			rowCount: 2,
			expected: []models.Label{errLabel, errLabel},
		},
		{
			name:     "Empty Text",
			text:     "",
			rowCount: 1,
			expected: []models.Label{errLabel},
		},
		{
			name:     "Zero Rows",
			text:     "Part 1:\ntype: spare\ncategory: Hull",
			rowCount: 0,
			expected: []models.Label{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			labels := ParseLabels(tc.text, tc.rowCount)
			assert.Equal(t, tc.expected, labels)
		})
	}
}

func TestParseLabels_AlwaysRowCount(t *testing.T) {
	inputs := []string{"", "Part", "Part x:\ntype:", "Part 99999999999999999999:\ntype: a\ncategory: b", ":::\n:::", "Part 2:\ncategory:"}
	for _, in := range inputs {
		for n := 0; n < 5; n++ {
			assert.NotPanics(t, func() {
				assert.Len(t, ParseLabels(in, n), n)
			})
		}
	}
}

func TestParseReport(t *testing.T) {
	text := "Part 1:\ntype: component\ncategory: Hull\nPart 2:\ntype: spare\n"

	labels, problems := ParseReport(text, 3)

	require.Len(t, labels, 3)
	assert.Equal(t, models.Label{Type: "component", Category: "Hull"}, labels[0])
	assert.True(t, labels[1].IsError())
	assert.True(t, labels[2].IsError())

	require.Len(t, problems, 2)
	assert.Equal(t, 1, problems[0].Row)
	assert.Equal(t, "missing category", problems[0].Reason)
	assert.Equal(t, 2, problems[1].Row)
	assert.True(t, errors.Is(problems[1], models.ErrParse))
}
