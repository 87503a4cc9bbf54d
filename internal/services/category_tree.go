package services

import (
	"cmp"
	"slices"
	"strings"

	"budgetly/internal/models"
)

// MaxCategoryDepth is the number of levels a category tree may have. A root
// sits on level 1.
const MaxCategoryDepth = 10

// dropdownIndent prefixes a dropdown label once per level below the roots.
const dropdownIndent = "— "

// TreeNode is one category in the nested tree view.
type TreeNode struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Icon        string                `json:"icon"`
	Color       string                `json:"color"`
	Status      models.CategoryStatus `json:"status"`
	Description string                `json:"description"`
	Children    []*TreeNode           `json:"children"`
}

// DropdownOption is one entry of the indented parent picker.
type DropdownOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Depth int    `json:"depth"`
}

// WidgetNode is a category shaped for jsTree-style tree widgets.
type WidgetNode struct {
	ID       string       `json:"id"`
	Text     string       `json:"text"`
	Icon     string       `json:"icon"`
	State    WidgetState  `json:"state"`
	Data     WidgetData   `json:"data"`
	Children []WidgetNode `json:"children"`
}

// WidgetState holds the open/disabled flags of a widget node.
type WidgetState struct {
	Opened   bool `json:"opened"`
	Disabled bool `json:"disabled"`
}

// WidgetData carries display metadata alongside a widget node.
type WidgetData struct {
	Status      models.CategoryStatus `json:"status"`
	Color       string                `json:"color"`
	Description string                `json:"description"`
}

// categoryIndex is an adjacency view over one owner's flat category rows.
// Children are keyed by parent id; roots live under the empty key.
type categoryIndex struct {
	byID     map[string]*models.Category
	children map[string][]*models.Category
}

func newCategoryIndex(categories []models.Category) *categoryIndex {
	ix := &categoryIndex{
		byID:     make(map[string]*models.Category, len(categories)),
		children: make(map[string][]*models.Category),
	}
	for i := range categories {
		c := &categories[i]
		ix.byID[c.ID] = c
		key := parentKey(c.ParentID)
		ix.children[key] = append(ix.children[key], c)
	}
	for _, siblings := range ix.children {
		slices.SortFunc(siblings, compareCategories)
	}
	return ix
}

func compareCategories(a, b *models.Category) int {
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func parentKey(parentID *string) string {
	if parentID == nil {
		return ""
	}
	return *parentID
}

func (ix *categoryIndex) get(id string) (*models.Category, bool) {
	c, ok := ix.byID[id]
	return c, ok
}

func (ix *categoryIndex) childrenOf(id string) []*models.Category {
	return ix.children[id]
}

func (ix *categoryIndex) roots() []*models.Category {
	return ix.children[""]
}

// ancestors returns the parent chain of id, root first. The walk stops after
// MaxCategoryDepth hops, at a missing parent or at a repeated id, so corrupt
// cyclic rows cannot loop forever.
func (ix *categoryIndex) ancestors(id string) []*models.Category {
	c, ok := ix.byID[id]
	if !ok {
		return nil
	}

	var chain []*models.Category
	seen := map[string]bool{id: true}
	for hops := 0; c.ParentID != nil && hops < MaxCategoryDepth; hops++ {
		parent, ok := ix.byID[*c.ParentID]
		if !ok || seen[parent.ID] {
			break
		}
		seen[parent.ID] = true
		chain = append(chain, parent)
		c = parent
	}
	slices.Reverse(chain)
	return chain
}

// depth is the number of ancestor hops from a root; a root has depth 0.
func (ix *categoryIndex) depth(id string) int {
	return len(ix.ancestors(id))
}

// descendants returns every category below id in depth-first pre-order.
func (ix *categoryIndex) descendants(id string) []*models.Category {
	var out []*models.Category
	seen := map[string]bool{id: true}
	stack := reversed(ix.childrenOf(id))
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
		stack = append(stack, reversed(ix.childrenOf(c.ID))...)
	}
	return out
}

// height is the number of levels hanging below id; a leaf has height 0.
func (ix *categoryIndex) height(id string) int {
	rootDepth := ix.depth(id)
	h := 0
	for _, d := range ix.descendants(id) {
		if rel := ix.depth(d.ID) - rootDepth; rel > h {
			h = rel
		}
	}
	return h
}

// isDescendant reports whether candidate lies anywhere below id.
func (ix *categoryIndex) isDescendant(candidate, id string) bool {
	for _, a := range ix.ancestors(candidate) {
		if a.ID == id {
			return true
		}
	}
	return false
}

// siblingNameTaken reports whether another category under parentID already
// uses name. excludeID is ignored so a category never collides with itself.
func (ix *categoryIndex) siblingNameTaken(parentID *string, name, excludeID string) bool {
	for _, sibling := range ix.children[parentKey(parentID)] {
		if sibling.ID != excludeID && sibling.Name == name {
			return true
		}
	}
	return false
}

func reversed(in []*models.Category) []*models.Category {
	out := slices.Clone(in)
	slices.Reverse(out)
	return out
}

func ids(categories []*models.Category) []string {
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		out = append(out, c.ID)
	}
	return out
}

// buildTree nests the index starting from its roots. Categories whose parent
// is absent from the index are unreachable and left out.
func buildTree(ix *categoryIndex) []*TreeNode {
	return buildNodes(ix, ix.roots())
}

func buildNodes(ix *categoryIndex, categories []*models.Category) []*TreeNode {
	nodes := make([]*TreeNode, 0, len(categories))
	for _, c := range categories {
		nodes = append(nodes, &TreeNode{
			ID:          c.ID,
			Name:        c.Name,
			Icon:        c.Icon,
			Color:       c.Color,
			Status:      c.Status,
			Description: c.Description,
			Children:    buildNodes(ix, ix.childrenOf(c.ID)),
		})
	}
	return nodes
}

// flattenTree lists the tree in depth-first pre-order with indented labels,
// skipping excludeID and its whole subtree.
func flattenTree(nodes []*TreeNode, excludeID string) []DropdownOption {
	var out []DropdownOption
	var walk func(nodes []*TreeNode, depth int)
	walk = func(nodes []*TreeNode, depth int) {
		for _, n := range nodes {
			if excludeID != "" && n.ID == excludeID {
				continue
			}
			out = append(out, DropdownOption{
				ID:    n.ID,
				Label: strings.Repeat(dropdownIndent, depth) + n.Name,
				Depth: depth,
			})
			walk(n.Children, depth+1)
		}
	}
	walk(nodes, 0)
	if out == nil {
		out = []DropdownOption{}
	}
	return out
}

// widgetNodes projects the tree for a tree widget. Roots start opened and
// inactive categories are rendered disabled.
func widgetNodes(nodes []*TreeNode, depth int) []WidgetNode {
	out := make([]WidgetNode, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, WidgetNode{
			ID:   n.ID,
			Text: n.Name,
			Icon: n.Icon,
			State: WidgetState{
				Opened:   depth == 0,
				Disabled: n.Status != models.CategoryStatusActive,
			},
			Data: WidgetData{
				Status:      n.Status,
				Color:       n.Color,
				Description: n.Description,
			},
			Children: widgetNodes(n.Children, depth+1),
		})
	}
	return out
}
