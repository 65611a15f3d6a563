package model

// CategoryGroupType tells whether a top-level category group is a need or a want.
type CategoryGroupType string

const (
	// CategoryTypeNeed marks groups whose spending is considered essential.
	CategoryTypeNeed CategoryGroupType = "need"
	// CategoryTypeWant marks discretionary groups.
	CategoryTypeWant CategoryGroupType = "want"
)

// CategoryNode is one entry of the two-level category taxonomy.
// Top-level nodes have no parent and carry the group type; leaves point at their group.
type CategoryNode struct {
	ParentID *int64
	Name     string
	Type     CategoryGroupType
	ID       int64
}

// IsLeaf reports whether the node is a leaf category.
func (c *CategoryNode) IsLeaf() bool {
	return c.ParentID != nil
}

// IsTopLevel reports whether the node is a category group.
func (c *CategoryNode) IsTopLevel() bool {
	return c.ParentID == nil
}
