// Package template renders node parameters against the execution context.
package template

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/dukex/comfyflow/pkg/models"
)

// ContextData exposes the execution context under the names templates use.
func ContextData(execCtx models.ExecutionContext) map[string]any {
	results := make(map[string]any, len(execCtx.NodeResults))
	for id, result := range execCtx.NodeResults {
		results[id] = result.Data
	}

	return map[string]any{
		"nodes":        results,
		"vars":         execCtx.Variables,
		"variables":    execCtx.Variables,
		"trigger_data": execCtx.TriggerData,
		"metadata":     execCtx.Metadata,
		"env":          getEnvVars(),
		"execution": map[string]any{
			"id":          execCtx.ID,
			"workflow_id": execCtx.WorkflowID,
		},
	}
}

// NeedsTemplating reports whether input contains a template action.
func NeedsTemplating(input string) bool {
	return strings.Contains(input, "{{")
}

// RenderString renders input and returns the text as is. Strings without
// template actions are returned untouched, so JSON documents such as
// workflows pass through unparsed.
func RenderString(input string, execCtx models.ExecutionContext) (string, error) {
	if !NeedsTemplating(input) {
		return input, nil
	}

	return execute(input, ContextData(execCtx))
}

// RenderWithContext renders input and coerces the result into JSON, a
// number or a boolean when it looks like one.
func RenderWithContext(input string, execCtx models.ExecutionContext) (any, error) {
	return Render(input, ContextData(execCtx))
}

func Render(templateStr string, data any) (any, error) {
	out, err := execute(templateStr, data)
	if err != nil {
		return nil, err
	}

	result := strings.TrimSpace(out)
	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		err := json.Unmarshal([]byte(result), &jsonResult)
		if err == nil {
			return jsonResult, nil
		}

		return nil, fmt.Errorf("failed to parse json '%s': %w", templateStr, err)
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

func execute(templateStr string, data any) (string, error) {
	tmpl, err := template.
		New("param").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"rand": func(max int) int {
				if max <= 0 {
					return 0
				}

				num := make([]byte, 1)
				if _, err := rand.Read(num); err != nil {
					return 0
				}

				return int(num[0]) % max
			},
			"json": func(v any) (string, error) {
				b, err := json.Marshal(v)

				return string(b), err
			},
		}).Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	return buf.String(), nil
}

func getEnvVars() map[string]any {
	envMap := make(map[string]any)

	for _, env := range os.Environ() {
		if key, value, ok := strings.Cut(env, "="); ok {
			envMap[key] = value
		}
	}

	return envMap
}
