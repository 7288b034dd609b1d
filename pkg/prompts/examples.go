package prompts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/askdb/askdb/pkg/models"
	sqlutil "github.com/askdb/askdb/pkg/sql"
)

// MaxExamples caps the number of worked examples embedded in one prompt.
const MaxExamples = 10

// DefaultExamplesPath is the corpus location relative to the working directory.
const DefaultExamplesPath = "data/sql_examples.yaml"

// nullLiteral replaces placeholders whose identity value is absent.
const nullLiteral = "NULL"

var knownPlaceholders = map[string]bool{
	"company_id":    true,
	"department_id": true,
	"user_id":       true,
}

// LoadExamples reads a YAML (or JSON) list of {question, sql} pairs.
// A missing file yields an empty corpus; entries lacking either field are skipped.
func LoadExamples(path string) ([]models.WorkedExample, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.WorkedExample{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read examples %s: %w", path, err)
	}
	return ParseExamples(data)
}

// ParseExamples decodes a corpus. JSON input is accepted since it is valid YAML.
// Entries using placeholders other than company_id, department_id and user_id are skipped.
func ParseExamples(data []byte) ([]models.WorkedExample, error) {
	var raw []models.WorkedExample
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse examples: %w", err)
	}

	examples := make([]models.WorkedExample, 0, len(raw))
	for _, ex := range raw {
		if strings.TrimSpace(ex.Question) == "" || strings.TrimSpace(ex.SQL) == "" {
			continue
		}
		if !placeholdersKnown(ex.SQL) {
			continue
		}
		examples = append(examples, ex)
	}
	return examples, nil
}

func placeholdersKnown(sqlText string) bool {
	for _, name := range sqlutil.ExtractParameters(sqlText) {
		if !knownPlaceholders[name] {
			return false
		}
	}
	return true
}

// RenderExamples substitutes {{company_id}}, {{department_id}} and {{user_id}} with the
// identity's values (NULL when absent) and returns at most limit examples.
// limit <= 0 or above MaxExamples is treated as MaxExamples.
func RenderExamples(examples []models.WorkedExample, identity models.Identity, limit int) []models.WorkedExample {
	if limit <= 0 || limit > MaxExamples {
		limit = MaxExamples
	}
	if len(examples) > limit {
		examples = examples[:limit]
	}

	values := map[string]string{
		"company_id":    models.PromptValue(identity.CompanyID, nullLiteral),
		"department_id": models.PromptValue(identity.DepartmentID, nullLiteral),
		"user_id":       models.PromptValue(&identity.UserID, nullLiteral),
	}

	rendered := make([]models.WorkedExample, 0, len(examples))
	for _, ex := range examples {
		rendered = append(rendered, models.WorkedExample{
			Question: ex.Question,
			SQL:      sqlutil.RenderTemplate(ex.SQL, values),
		})
	}
	return rendered
}
