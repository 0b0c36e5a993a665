package history

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"
)

// Commit is an immutable snapshot of the paths staged for it.
type Commit struct {
	ID        string            `json:"id"`
	Parent    string            `json:"parent"` // empty for the first commit
	Timestamp time.Time         `json:"timestamp"`
	Message   string            `json:"message"`
	Tree      map[string]string `json:"tree"` // path -> blob hash
}

// Paths returns the tree's paths in sorted order.
func (c *Commit) Paths() []string {
	paths := make([]string, 0, len(c.Tree))
	for p := range c.Tree {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (c *Commit) ShortID() string {
	if len(c.ID) > 12 {
		return c.ID[:12]
	}
	return c.ID
}

type canonicalEntry struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
}

type canonicalCommit struct {
	Parent    string           `json:"parent"`
	Timestamp string           `json:"timestamp"`
	Message   string           `json:"message"`
	Tree      []canonicalEntry `json:"tree"`
}

// ComputeID derives a commit id from everything the commit records. The tree
// is serialized as a path-sorted list so map order never leaks into the id.
func ComputeID(parent string, ts time.Time, message string, tree map[string]string) string {
	entries := make([]canonicalEntry, 0, len(tree))
	for p, h := range tree {
		entries = append(entries, canonicalEntry{Path: p, Hash: h})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	data, _ := json.Marshal(canonicalCommit{
		Parent:    parent,
		Timestamp: ts.UTC().Format(time.RFC3339Nano),
		Message:   message,
		Tree:      entries,
	})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Verify reports whether c.ID still matches c's content.
func (c *Commit) Verify() bool {
	return c.ID == ComputeID(c.Parent, c.Timestamp, c.Message, c.Tree)
}

// summary is what the badger id index keeps per commit.
type summary struct {
	ID        string    `json:"id"`
	Parent    string    `json:"parent"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

func (s *summary) GetID() string { return s.ID }
