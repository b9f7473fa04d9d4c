package models

// TreeEntry is one condensed node of a repository tree listing.
type TreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"` // "blob" or "tree"
	Size int    `json:"size"`
}

// RepoTree is a condensed repository tree listing.
type RepoTree struct {
	Repo   string      `json:"repo"` // "owner/name"
	Branch string      `json:"branch"`
	Count  int         `json:"count"`
	Files  []TreeEntry `json:"files"`
}

// RepoFile is one decoded (and possibly truncated) file from a repository.
type RepoFile struct {
	Repo    string `json:"repo"`
	Branch  string `json:"branch"`
	Path    string `json:"path"`
	Size    int    `json:"size"`
	Content string `json:"content"`
}
