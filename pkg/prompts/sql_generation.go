package prompts

import (
	"fmt"
	"strings"

	"github.com/askdb/askdb/pkg/models"
)

// absentValue is how missing identity fields are shown to the model.
const absentValue = "null"

// SQLPromptInput carries everything embedded in a generation prompt.
type SQLPromptInput struct {
	Question string
	Identity models.Identity
	// Context holds schema snippets and business rules, one per line.
	Context []string
	// Examples are already rendered for the current identity.
	Examples []models.WorkedExample
	// Scoped marks a stage-two prompt whose context lists only the selected tables.
	Scoped bool
}

// SQLGenerationSystemMessage returns the system message for SQL synthesis.
func SQLGenerationSystemMessage() string {
	return "Ты генерируешь Postgres SQL только на основе предоставленной схемы и правил. " +
		"Только SELECT, явные JOIN, не выдумывай таблицы/колонки. Ограничь результат. " +
		"Отвечай только JSON-объектом без пояснений."
}

// BuildSQLGenerationPrompt creates the user prompt for SQL synthesis.
func BuildSQLGenerationPrompt(in SQLPromptInput) string {
	var prompt strings.Builder

	if in.Scoped {
		prompt.WriteString("Схема (только релевантные таблицы):\n")
	} else {
		prompt.WriteString("Контекст:\n")
	}
	prompt.WriteString(strings.Join(in.Context, "\n"))
	prompt.WriteString("\n\n")

	if len(in.Examples) > 0 {
		prompt.WriteString("Примеры:\n")
		for _, ex := range in.Examples {
			prompt.WriteString(fmt.Sprintf("Вопрос: %s\nSQL: %s\n", ex.Question, strings.TrimSpace(ex.SQL)))
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString(fmt.Sprintf("Пользователь: user_id=%d, company_id=%s, department_id=%s, role=%s\n",
		in.Identity.UserID,
		models.PromptValue(in.Identity.CompanyID, absentValue),
		models.PromptValue(in.Identity.DepartmentID, absentValue),
		in.Identity.RoleValue(absentValue)))
	prompt.WriteString(fmt.Sprintf("Вопрос: %s\n", in.Question))
	prompt.WriteString(`Ответь в JSON: {"sql": "...", "needs_clarification": false, "clarification_question": ""}`)
	prompt.WriteString("\n")

	return prompt.String()
}

// TableSelectionSystemMessage returns the system message for relevant-table identification.
func TableSelectionSystemMessage() string {
	return "Ты помогаешь выбрать таблицы Postgres, нужные для ответа на вопрос. " +
		"Выбирай только из перечисленных таблиц и отвечай только JSON-объектом."
}

// BuildTableSelectionPrompt asks for the minimal set of tables needed to answer the question.
func BuildTableSelectionPrompt(question string, context []string) string {
	var prompt strings.Builder

	prompt.WriteString("Схема:\n")
	prompt.WriteString(strings.Join(context, "\n"))
	prompt.WriteString("\n\n")
	prompt.WriteString(fmt.Sprintf("Вопрос: %s\n", question))
	prompt.WriteString("Перечисли минимальный набор таблиц, необходимых для ответа.\n")
	prompt.WriteString(`Ответь в JSON: {"tables": ["..."]}`)
	prompt.WriteString("\n")

	return prompt.String()
}
