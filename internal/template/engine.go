package template

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// Engine renders step arguments against a scenario's data store.
//
// String values are Go text/template sources with the sprig function set.
// A string consisting of a single reference such as "{{ .reply }}" resolves
// to the referenced value itself, so maps and numbers survive templating.
type Engine struct {
	// Pattern to match a lone variable reference like {{ .variableName }}
	referencePattern *regexp.Regexp
	// Pattern to find variable references anywhere in a string
	variablePattern *regexp.Regexp
	funcs           template.FuncMap
}

// New creates a new template engine
func New() *Engine {
	return &Engine{
		referencePattern: regexp.MustCompile(`^\{\{-?\s*\.([a-zA-Z_][a-zA-Z0-9_]*)\s*-?\}\}$`),
		variablePattern:  regexp.MustCompile(`\{\{[^}]*?\.([a-zA-Z_][a-zA-Z0-9_]*)`),
		funcs:            sprig.TxtFuncMap(),
	}
}

// Replace replaces all template expressions in a value with values from the context
func (e *Engine) Replace(value interface{}, context map[string]interface{}) (interface{}, error) {
	switch v := value.(type) {
	case string:
		return e.replaceString(v, context)
	case map[string]interface{}:
		return e.replaceMapTemplates(v, context)
	case []interface{}:
		return e.replaceSliceTemplates(v, context)
	default:
		// Non-templatable types are returned as-is
		return value, nil
	}
}

func (e *Engine) replaceString(source string, context map[string]interface{}) (interface{}, error) {
	if !strings.Contains(source, "{{") {
		return source, nil
	}

	if match := e.referencePattern.FindStringSubmatch(strings.TrimSpace(source)); match != nil {
		value, exists := context[match[1]]
		if !exists {
			return nil, fmt.Errorf("missing template variables: %s", match[1])
		}
		return value, nil
	}

	tmpl, err := template.New("arg").Funcs(e.funcs).Option("missingkey=error").Parse(source)
	if err != nil {
		return nil, fmt.Errorf("invalid template %q: %w", source, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, context); err != nil {
		if missing := e.missingVariables(source, context); len(missing) > 0 {
			return nil, fmt.Errorf("missing template variables: %s", strings.Join(missing, ", "))
		}
		return nil, fmt.Errorf("failed to render template %q: %w", source, err)
	}
	return buf.String(), nil
}

// replaceMapTemplates recursively replaces templates in a map
func (e *Engine) replaceMapTemplates(m map[string]interface{}, context map[string]interface{}) (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(m))

	for key, value := range m {
		replacedValue, err := e.Replace(value, context)
		if err != nil {
			return nil, fmt.Errorf("error in key '%s': %w", key, err)
		}
		result[key] = replacedValue
	}

	return result, nil
}

// replaceSliceTemplates recursively replaces templates in a slice
func (e *Engine) replaceSliceTemplates(s []interface{}, context map[string]interface{}) ([]interface{}, error) {
	result := make([]interface{}, len(s))

	for i, value := range s {
		replacedValue, err := e.Replace(value, context)
		if err != nil {
			return nil, fmt.Errorf("error at index %d: %w", i, err)
		}
		result[i] = replacedValue
	}

	return result, nil
}

// ExtractVariables returns the sorted top-level variable names referenced by value
func (e *Engine) ExtractVariables(value interface{}) []string {
	variables := make(map[string]bool)
	e.extractVariablesRecursive(value, variables)

	result := make([]string, 0, len(variables))
	for varName := range variables {
		result = append(result, varName)
	}
	sort.Strings(result)
	return result
}

func (e *Engine) extractVariablesRecursive(value interface{}, variables map[string]bool) {
	switch v := value.(type) {
	case string:
		for _, match := range e.variablePattern.FindAllStringSubmatch(v, -1) {
			variables[match[1]] = true
		}
	case map[string]interface{}:
		for _, val := range v {
			e.extractVariablesRecursive(val, variables)
		}
	case []interface{}:
		for _, val := range v {
			e.extractVariablesRecursive(val, variables)
		}
	}
}

func (e *Engine) missingVariables(source string, context map[string]interface{}) []string {
	var missing []string
	for _, name := range e.ExtractVariables(source) {
		if _, exists := context[name]; !exists {
			missing = append(missing, name)
		}
	}
	return missing
}
