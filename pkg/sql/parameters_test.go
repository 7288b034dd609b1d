package sql

import (
	"reflect"
	"testing"
)

func TestExtractParameters(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		expected []string
	}{
		{
			name:     "no parameters",
			sql:      "SELECT * FROM users",
			expected: nil,
		},
		{
			name:     "single parameter",
			sql:      "SELECT * FROM users WHERE id = {{user_id}}",
			expected: []string{"user_id"},
		},
		{
			name:     "multiple parameters",
			sql:      "SELECT * FROM tasks WHERE company_id = {{company_id}} AND department_id = {{department_id}}",
			expected: []string{"company_id", "department_id"},
		},
		{
			name:     "duplicate parameter appears once",
			sql:      "SELECT * FROM tasks WHERE author_id = {{user_id}} OR assignee_id = {{user_id}}",
			expected: []string{"user_id"},
		},
		{
			name:     "spaces inside braces",
			sql:      "SELECT * FROM tasks WHERE company_id = {{ company_id }}",
			expected: []string{"company_id"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ExtractParameters(tt.sql)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("ExtractParameters() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestRenderTemplate(t *testing.T) {
	values := map[string]string{
		"company_id":    "7",
		"department_id": "NULL",
		"user_id":       "42",
	}

	tests := []struct {
		name     string
		sql      string
		expected string
	}{
		{
			name:     "all placeholders",
			sql:      "SELECT * FROM tasks WHERE company_id = {{company_id}} AND assignee_id = {{user_id}}",
			expected: "SELECT * FROM tasks WHERE company_id = 7 AND assignee_id = 42",
		},
		{
			name:     "absent value renders NULL",
			sql:      "SELECT * FROM users WHERE department_id = {{department_id}}",
			expected: "SELECT * FROM users WHERE department_id = NULL",
		},
		{
			name:     "repeated placeholder",
			sql:      "SELECT * FROM tasks WHERE author_id = {{user_id}} OR assignee_id = {{user_id}}",
			expected: "SELECT * FROM tasks WHERE author_id = 42 OR assignee_id = 42",
		},
		{
			name:     "unknown placeholder left intact",
			sql:      "SELECT * FROM tasks WHERE project_id = {{project_id}}",
			expected: "SELECT * FROM tasks WHERE project_id = {{project_id}}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderTemplate(tt.sql, values); got != tt.expected {
				t.Errorf("RenderTemplate() = %q, want %q", got, tt.expected)
			}
		})
	}
}
