// Package models contains domain types for askdb.
package models

import (
	"strconv"
)

// Query limit bounds accepted from callers.
const (
	MinQueryLimit     = 1
	MaxQueryLimit     = 10000
	DefaultQueryLimit = 200
)

// Identity is the resolved caller context used to scope and personalize generation.
// It is supplied by the caller and never persisted.
type Identity struct {
	UserID       int64   `json:"user_id"`
	CompanyID    *int64  `json:"company_id,omitempty"`
	DepartmentID *int64  `json:"department_id,omitempty"`
	Role         *string `json:"role,omitempty"`
}

// PromptValue renders an optional identity field for prompts and example templates.
// Absent values render as the given fallback.
func PromptValue(v *int64, fallback string) string {
	if v == nil {
		return fallback
	}
	return strconv.FormatInt(*v, 10)
}

// RoleValue returns the role or the given fallback when absent.
func (i Identity) RoleValue(fallback string) string {
	if i.Role == nil || *i.Role == "" {
		return fallback
	}
	return *i.Role
}

// GeneratedSQL is the output of the SQL generation pipeline.
// NeedsClarification may accompany a best-effort SQL; whether to execute it is caller policy.
type GeneratedSQL struct {
	SQL                   string `json:"sql"`
	NeedsClarification    bool   `json:"needs_clarification"`
	ClarificationQuestion string `json:"clarification_question"`
}

// WorkedExample is a (question, SQL template) pair used as a few-shot demonstration.
// Templates may contain {{company_id}}, {{department_id}} and {{user_id}} placeholders.
type WorkedExample struct {
	Question string `json:"question" yaml:"question"`
	SQL      string `json:"sql" yaml:"sql"`
}

// AskRequest is the caller-facing request for a question.
type AskRequest struct {
	Question string   `json:"question"`
	Identity Identity `json:"identity"`
	Limit    int      `json:"limit"`
}

// AskResponse carries the generated SQL, its rows and a short explanation.
type AskResponse struct {
	SQL                   string           `json:"sql"`
	NeedsClarification    bool             `json:"needs_clarification"`
	ClarificationQuestion string           `json:"clarification_question"`
	Rows                  []map[string]any `json:"rows"`
	Explanation           string           `json:"explanation"`
	Executed              bool             `json:"executed"`
}
