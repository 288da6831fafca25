// Package template renders outbound message bodies from a fixed set of
// named variables. Two constructs are supported: `{{name}}` substitutes the
// variable's value, and `{{#name}}...{{/name}}` emits its inner content
// whole iff the variable is non-empty. Unknown variables render empty.
package template

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	blockRe = regexp.MustCompile(`(?s)\{\{#([a-zA-Z0-9_]+)\}\}(.*?)\{\{/([a-zA-Z0-9_]+)\}\}`)
	varRe   = regexp.MustCompile(`\{\{([a-zA-Z0-9_]+)\}\}`)
)

// Render substitutes vars into tpl. Blocks are resolved before plain
// variables so a block's inner content can itself contain substitutions.
func Render(tpl string, vars map[string]string) (string, error) {
	var blockErr error
	out := blockRe.ReplaceAllStringFunc(tpl, func(m string) string {
		groups := blockRe.FindStringSubmatch(m)
		open, inner, closing := groups[1], groups[2], groups[3]
		if open != closing {
			blockErr = fmt.Errorf("mismatched block markers: {{#%s}} closed by {{/%s}}", open, closing)
			return m
		}
		if strings.TrimSpace(vars[open]) == "" {
			return ""
		}
		return inner
	})
	if blockErr != nil {
		return "", blockErr
	}
	out = varRe.ReplaceAllStringFunc(out, func(m string) string {
		name := varRe.FindStringSubmatch(m)[1]
		return vars[name]
	})
	return out, nil
}
