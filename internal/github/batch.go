package github

import (
	"encoding/json"
	"fmt"
	"strings"
)

// batchTemplate describes one GraphQL mutation field that can be repeated as
// aliased sub-operations in a single compound document.
type batchTemplate struct {
	Field     string // mutation field, e.g. "createIssue"
	Alias     string // alias prefix, e.g. "create"
	InputType string // GraphQL input type, e.g. "CreateIssueInput!"
	Selection string // selection set for each sub-operation
}

// build renders the compound mutation for the given inputs. It returns the
// document, the alias keys in input order, and the variable map. The caller
// is responsible for short-circuiting on empty input.
func (t batchTemplate) build(inputs []any) (document string, aliases []string, variables map[string]any) {
	var decls, ops []string
	variables = make(map[string]any, len(inputs))
	aliases = make([]string, len(inputs))

	for i, input := range inputs {
		varName := fmt.Sprintf("input_%d", i)
		alias := fmt.Sprintf("%s_%d", t.Alias, i)
		decls = append(decls, fmt.Sprintf("$%s: %s", varName, t.InputType))
		ops = append(ops, fmt.Sprintf("  %s: %s(input: $%s) { %s }", alias, t.Field, varName, t.Selection))
		variables[varName] = input
		aliases[i] = alias
	}

	document = fmt.Sprintf("mutation(%s) {\n%s\n}", strings.Join(decls, ", "), strings.Join(ops, "\n"))
	return document, aliases, variables
}

// batchItem is the outcome of one sub-operation in a compound mutation.
// Exactly one of Payload and Err is meaningful; both unset means the server
// returned nothing for the alias, which each operation interprets itself.
type batchItem struct {
	Payload json.RawMessage
	Err     error
}

// demux splits a compound response back into per-input results, in input
// order. GraphQL errors whose path names an alias become that item's failure;
// errors without a usable path become every item's failure, since the server
// reported them against the batch as a whole.
func demux(resp *response, aliases []string) ([]batchItem, error) {
	payloads := make(map[string]json.RawMessage)
	if len(resp.Data) > 0 && string(resp.Data) != "null" {
		if err := json.Unmarshal(resp.Data, &payloads); err != nil {
			return nil, fmt.Errorf("decoding batch response: %w", err)
		}
	}

	byAlias := make(map[string]error)
	var batchWide []string
	for _, re := range resp.Errors {
		if alias, ok := errorAlias(re); ok {
			byAlias[alias] = fmt.Errorf("%s", re.Message)
		} else {
			batchWide = append(batchWide, re.Message)
		}
	}
	var batchErr error
	if len(batchWide) > 0 {
		batchErr = fmt.Errorf("%s", strings.Join(batchWide, "; "))
	}

	items := make([]batchItem, len(aliases))
	for i, alias := range aliases {
		switch {
		case byAlias[alias] != nil:
			items[i].Err = byAlias[alias]
		case batchErr != nil:
			items[i].Err = batchErr
		default:
			if p, ok := payloads[alias]; ok && string(p) != "null" {
				items[i].Payload = p
			}
		}
	}
	return items, nil
}

// errorAlias extracts the aliased sub-operation a GraphQL error applies to.
func errorAlias(re ResponseError) (string, bool) {
	if len(re.Path) == 0 {
		return "", false
	}
	alias, ok := re.Path[0].(string)
	return alias, ok
}
