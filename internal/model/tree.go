package model

// TreeNode is the navigation view of a document, rebuilt on every request.
type TreeNode struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Weight    int         `json:"weight"`
	Active    bool        `json:"active,omitempty"`
	Published bool        `json:"published"`
	Children  []*TreeNode `json:"children,omitempty"`
	Siblings  []*TreeNode `json:"siblings,omitempty"`
	Parent    *TreeNode   `json:"parent,omitempty"`
}
