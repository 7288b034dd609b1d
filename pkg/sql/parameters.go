package sql

import (
	"regexp"
)

// parameterRegex matches {{parameter_name}} placeholders in SQL templates.
var parameterRegex = regexp.MustCompile(`\{\{\s*([a-zA-Z_]\w*)\s*\}\}`)

// ExtractParameters finds all {{param}} placeholders in SQL and returns
// a deduplicated list of parameter names in order of first appearance.
//
// Example:
//
//	sql := "SELECT * FROM tasks WHERE company_id = {{company_id}} AND assignee_id = {{user_id}}"
//	params := ExtractParameters(sql)
//	// params == []string{"company_id", "user_id"}
func ExtractParameters(sqlQuery string) []string {
	matches := parameterRegex.FindAllStringSubmatch(sqlQuery, -1)
	seen := make(map[string]bool)
	var params []string

	for _, match := range matches {
		name := match[1]
		if !seen[name] {
			seen[name] = true
			params = append(params, name)
		}
	}

	return params
}

// RenderTemplate replaces {{param}} placeholders with literal SQL text from values.
// Placeholders without a value are left as-is. Values are inserted verbatim, so
// callers must only pass trusted literals such as integers or NULL.
//
// Example:
//
//	sql := "SELECT * FROM tasks WHERE company_id = {{company_id}}"
//	out := RenderTemplate(sql, map[string]string{"company_id": "7"})
//	// out == "SELECT * FROM tasks WHERE company_id = 7"
func RenderTemplate(sqlQuery string, values map[string]string) string {
	return parameterRegex.ReplaceAllStringFunc(sqlQuery, func(match string) string {
		name := parameterRegex.FindStringSubmatch(match)[1]
		if v, ok := values[name]; ok {
			return v
		}
		return match
	})
}
