package categorizer

import (
	"fmt"
	"strings"

	"shipclass/internal/models"
)

// Placeholders substituted into a prompt template.
const (
	PlaceholderCategories = "{{CATEGORIES}}"
	PlaceholderTypes      = "{{TYPES}}"
	PlaceholderParts      = "{{PARTS}}"
	PlaceholderFormat     = "{{FORMAT}}"
)

// DefaultPromptTemplate is used when no template file is configured.
const DefaultPromptTemplate = `
You are a classification model for ship part inventory.

Each part should be labeled with:
- **type**: {{TYPES}}
- **category**: choose *one only* from the list below.

CATEGORIES:
{{CATEGORIES}}

Now classify the following parts:
{{PARTS}}
{{FORMAT}}`

// RenderPrompt fills template with the taxonomy and the rows of batch.
// Parts are numbered from 1 in batch order.
func RenderPrompt(template string, columns []Column, batch models.Batch) string {
	if strings.TrimSpace(template) == "" {
		template = DefaultPromptTemplate
	}

	var cats strings.Builder
	for _, c := range models.Categories {
		fmt.Fprintf(&cats, "%d. %s\n", c.ID, c.Name)
	}

	var parts strings.Builder
	for i, r := range batch.Records {
		fmt.Fprintf(&parts, "\nPart %d:\n", i+1)
		for _, col := range columns {
			label := col.Label
			if label == "" {
				label = col.Name
			}
			fmt.Fprintf(&parts, "%s: %s\n", label, r.Field(col.Name))
		}
	}

	last := len(models.Types) - 1
	types := strings.Join(models.Types[:last], ", ") + ", or " + models.Types[last]

	format := "\nReply in this format:\nPart 1:\ntype: <" + strings.Join(models.Types, " | ") + ">\ncategory: <from list>\n"

	r := strings.NewReplacer(
		PlaceholderCategories, strings.TrimRight(cats.String(), "\n"),
		PlaceholderTypes, types,
		PlaceholderParts, parts.String(),
		PlaceholderFormat, format,
	)
	return r.Replace(template)
}
