// Package template renders scenario step arguments.
//
// Arguments are walked recursively; every string containing "{{" is executed
// as a Go text/template with the sprig function library, using the
// scenario's data store as the dot value. Missing keys are errors.
//
//	args:
//	  text: "Thanks {{ .reply.user }}, ticket {{ .ticket | upper }} is open"
//	  payload: "{{ .reply }}"   # resolves to the stored map itself
package template
