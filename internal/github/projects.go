package github

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Project is a GitHub Projects v2 board.
type Project struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Number int    `json:"number"`
}

// ProjectField is one field of a project's schema. Options is populated for
// single-select fields, Iterations for iteration fields.
type ProjectField struct {
	ID         string
	Name       string
	DataType   string // e.g. SINGLE_SELECT, ITERATION, TEXT
	Options    []FieldOption
	Iterations []ProjectIteration
}

// FieldOption is one choice of a single-select field.
type FieldOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProjectIteration is one upcoming or active iteration of an iteration
// field. GitHub omits completed iterations from this list.
type ProjectIteration struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	StartDate string `json:"startDate"` // YYYY-MM-DD
	Duration  int    `json:"duration"`  // days
}

// AddProjectItemResult is the per-item outcome of AddIssuesToProjectBatch.
// ItemID is empty when the issue was already on the project, which GitHub
// reports as an error for the whole batch rather than returning the item.
type AddProjectItemResult struct {
	ItemID string
	Err    error
}

// FieldValueUpdate names one project item and the option or iteration to
// assign to it.
type FieldValueUpdate struct {
	ItemID  string
	ValueID string // single-select option ID or iteration ID
}

// FindProject resolves the configured project identifier against the
// repository's projects, then the owner's (organization or user) projects.
// A numeric identifier matches by project number first; otherwise the match
// is by case-insensitive title.
func (c *Client) FindProject(ctx context.Context, owner, name, identifier string) (*Project, error) {
	number, _ := strconv.Atoi(identifier)

	var repoOut struct {
		Repository struct {
			ProjectsV2 struct {
				Nodes []Project `json:"nodes"`
			} `json:"projectsV2"`
			Owner struct {
				Typename string `json:"__typename"`
			} `json:"owner"`
		} `json:"repository"`
	}
	query := `query($owner: String!, $name: String!) {
  repository(owner: $owner, name: $name) {
    projectsV2(first: 100) { nodes { id title number } }
    owner { __typename }
  }
}`
	if err := c.do(ctx, query, map[string]any{"owner": owner, "name": name}, &repoOut); err != nil {
		return nil, fmt.Errorf("listing repository projects: %w", err)
	}
	if p := matchProject(repoOut.Repository.ProjectsV2.Nodes, identifier, number); p != nil {
		return p, nil
	}

	// Fall back to the owner's projects. The owner query differs for
	// organizations and users.
	ownerField := "user"
	if repoOut.Repository.Owner.Typename == "Organization" {
		ownerField = "organization"
	}
	ownerQuery := fmt.Sprintf(`query($login: String!) {
  %s(login: $login) { projectsV2(first: 100) { nodes { id title number } } }
}`, ownerField)

	var ownerOut map[string]struct {
		ProjectsV2 struct {
			Nodes []Project `json:"nodes"`
		} `json:"projectsV2"`
	}
	if err := c.do(ctx, ownerQuery, map[string]any{"login": owner}, &ownerOut); err != nil {
		return nil, fmt.Errorf("listing %s projects: %w", ownerField, err)
	}
	if p := matchProject(ownerOut[ownerField].ProjectsV2.Nodes, identifier, number); p != nil {
		return p, nil
	}

	return nil, fmt.Errorf("project %q not found for %s/%s", identifier, owner, name)
}

// matchProject picks the project matching the identifier. An exact number
// match wins over a title match even when another project's title equals the
// numeric string.
func matchProject(projects []Project, identifier string, number int) *Project {
	if number > 0 {
		for i := range projects {
			if projects[i].Number == number {
				return &projects[i]
			}
		}
	}
	for i := range projects {
		if strings.EqualFold(projects[i].Title, identifier) {
			return &projects[i]
		}
	}
	return nil
}

// GetProjectFields fetches the project's field schema, including
// single-select options and iteration configurations.
func (c *Client) GetProjectFields(ctx context.Context, projectID string) ([]ProjectField, error) {
	query := `query($projectId: ID!) {
  node(id: $projectId) {
    ... on ProjectV2 {
      fields(first: 50) {
        nodes {
          ... on ProjectV2FieldCommon { id name dataType }
          ... on ProjectV2SingleSelectField { options { id name } }
          ... on ProjectV2IterationField {
            configuration { iterations { id title startDate duration } }
          }
        }
      }
    }
  }
}`

	var out struct {
		Node struct {
			Fields struct {
				Nodes []struct {
					ID            string        `json:"id"`
					Name          string        `json:"name"`
					DataType      string        `json:"dataType"`
					Options       []FieldOption `json:"options"`
					Configuration *struct {
						Iterations []ProjectIteration `json:"iterations"`
					} `json:"configuration"`
				} `json:"nodes"`
			} `json:"fields"`
		} `json:"node"`
	}
	if err := c.do(ctx, query, map[string]any{"projectId": projectID}, &out); err != nil {
		return nil, fmt.Errorf("fetching project fields: %w", err)
	}

	fields := make([]ProjectField, 0, len(out.Node.Fields.Nodes))
	for _, n := range out.Node.Fields.Nodes {
		f := ProjectField{ID: n.ID, Name: n.Name, DataType: n.DataType, Options: n.Options}
		if n.Configuration != nil {
			f.Iterations = n.Configuration.Iterations
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// AddIssuesToProjectBatch adds the given issues (by node ID) to the project
// in one mutation. When the whole batch fails because the issues are already
// on the project, every item is reported successful with an empty item ID.
func (c *Client) AddIssuesToProjectBatch(ctx context.Context, projectID string, issueIDs []string) ([]AddProjectItemResult, error) {
	if len(issueIDs) == 0 {
		return nil, nil
	}

	tmpl := batchTemplate{
		Field:     "addProjectV2ItemById",
		Alias:     "add",
		InputType: "AddProjectV2ItemByIdInput!",
		Selection: "item { id }",
	}
	inputs := make([]any, len(issueIDs))
	for i, id := range issueIDs {
		inputs[i] = map[string]any{"projectId": projectID, "contentId": id}
	}
	items, err := c.mutateBatch(ctx, tmpl, inputs)
	if err != nil {
		return nil, fmt.Errorf("adding issues to project: %w", err)
	}

	results := make([]AddProjectItemResult, len(items))
	for i, item := range items {
		switch {
		case item.Err != nil && IsIdempotentConflict(item.Err.Error()):
			// Already a member. No item ID is available for field writes.
		case item.Err != nil:
			results[i].Err = item.Err
		case item.Payload == nil:
			results[i].Err = fmt.Errorf("no response for item %d", i)
		default:
			var payload struct {
				Item *struct {
					ID string `json:"id"`
				} `json:"item"`
			}
			if json.Unmarshal(item.Payload, &payload) != nil || payload.Item == nil || payload.Item.ID == "" {
				results[i].Err = fmt.Errorf("no item ID returned for item %d", i)
				continue
			}
			results[i].ItemID = payload.Item.ID
		}
	}
	return results, nil
}

// SetItemsSingleSelectBatch assigns a single-select option to each project
// item in one mutation.
func (c *Client) SetItemsSingleSelectBatch(ctx context.Context, projectID, fieldID string, updates []FieldValueUpdate) ([]error, error) {
	return c.setItemFieldsBatch(ctx, projectID, fieldID, updates, func(optionID string) map[string]any {
		return map[string]any{"singleSelectOptionId": optionID}
	})
}

// SetItemsIterationBatch assigns an iteration to each project item in one
// mutation.
func (c *Client) SetItemsIterationBatch(ctx context.Context, projectID, fieldID string, updates []FieldValueUpdate) ([]error, error) {
	return c.setItemFieldsBatch(ctx, projectID, fieldID, updates, func(iterationID string) map[string]any {
		return map[string]any{"iterationId": iterationID}
	})
}

func (c *Client) setItemFieldsBatch(ctx context.Context, projectID, fieldID string, updates []FieldValueUpdate, value func(string) map[string]any) ([]error, error) {
	tmpl := batchTemplate{
		Field:     "updateProjectV2ItemFieldValue",
		Alias:     "set",
		InputType: "UpdateProjectV2ItemFieldValueInput!",
		Selection: "projectV2Item { id }",
	}
	inputs := make([]any, len(updates))
	for i, u := range updates {
		inputs[i] = map[string]any{
			"projectId": projectID,
			"itemId":    u.ItemID,
			"fieldId":   fieldID,
			"value":     value(u.ValueID),
		}
	}
	return c.mutateBatchErrs(ctx, tmpl, inputs, "setting project fields")
}

// GetProjectItemIDsBatch resolves project item IDs for the given issues (by
// node ID) in one round-trip, keyed by issue node ID. Issues not on the
// project are absent from the result.
func (c *Client) GetProjectItemIDsBatch(ctx context.Context, projectID string, issueIDs []string) (map[string]string, error) {
	if len(issueIDs) == 0 {
		return map[string]string{}, nil
	}

	var decls, fields []string
	variables := make(map[string]any, len(issueIDs)+1)
	for i, id := range issueIDs {
		varName := fmt.Sprintf("id_%d", i)
		decls = append(decls, fmt.Sprintf("$%s: ID!", varName))
		fields = append(fields, fmt.Sprintf(`  item_%d: node(id: $%s) {
    ... on Issue { projectItems(first: 50) { nodes { id project { id } } } }
  }`, i, varName))
		variables[varName] = id
	}
	query := fmt.Sprintf("query(%s) {\n%s\n}", strings.Join(decls, ", "), strings.Join(fields, "\n"))

	var out map[string]*struct {
		ProjectItems struct {
			Nodes []struct {
				ID      string `json:"id"`
				Project struct {
					ID string `json:"id"`
				} `json:"project"`
			} `json:"nodes"`
		} `json:"projectItems"`
	}
	if err := c.do(ctx, query, variables, &out); err != nil {
		return nil, fmt.Errorf("fetching project item IDs: %w", err)
	}

	itemIDs := make(map[string]string)
	for i, issueID := range issueIDs {
		node := out[fmt.Sprintf("item_%d", i)]
		if node == nil {
			continue
		}
		for _, item := range node.ProjectItems.Nodes {
			if item.Project.ID == projectID {
				itemIDs[issueID] = item.ID
				break
			}
		}
	}
	return itemIDs, nil
}
