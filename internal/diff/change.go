package diff

// Change is the complete description of one file-level change: paths, type,
// properties, metadata and content hunks. The parser builds Changes through
// unexported setters; callers only see the read-only accessors.
type Change struct {
	oldPath     string
	currentPath string
	awayPaths   []string

	changeType ChangeType
	fileType   FileType

	oldProperties *orderedMap[string]
	newProperties *orderedMap[string]
	metadata      *orderedMap[any]

	hunks []*Hunk

	commitHash string
	oldIndex   string
	newIndex   string
}

func newChange() *Change {
	return &Change{
		changeType:    ChangeChange,
		fileType:      FileText,
		oldProperties: newOrderedMap[string](),
		newProperties: newOrderedMap[string](),
		metadata:      newOrderedMap[any](),
	}
}

// OldPath is the path before the change ("" when the file was added or
// for commit messages).
func (c *Change) OldPath() string { return c.oldPath }

// CurrentPath is the path after the change.
func (c *Change) CurrentPath() string { return c.currentPath }

// AwayPaths lists the destinations of a move or copy, in header order.
// Only the source side of a move/copy has away paths.
func (c *Change) AwayPaths() []string {
	return append([]string(nil), c.awayPaths...)
}

// Type returns the change type.
func (c *Change) Type() ChangeType { return c.changeType }

// FileType returns the file type.
func (c *Change) FileType() FileType { return c.fileType }

// OldProperties returns the VCS properties before the change.
func (c *Change) OldProperties() Properties { return Properties{m: c.oldProperties.clone()} }

// NewProperties returns the VCS properties after the change.
func (c *Change) NewProperties() Properties { return Properties{m: c.newProperties.clone()} }

// Metadata returns the value stored under key, e.g. "message" or
// "line:first".
func (c *Change) Metadata(key string) (any, bool) { return c.metadata.get(key) }

// MetadataKeys lists metadata keys in insertion order.
func (c *Change) MetadataKeys() []string { return c.metadata.keysCopy() }

// Message is shorthand for the "message" metadata of commit-message changes.
func (c *Change) Message() string {
	v, _ := c.metadata.get(MetadataMessage)
	s, _ := v.(string)
	return s
}

// Hunks returns the content hunks in file order.
func (c *Change) Hunks() []*Hunk {
	return append([]*Hunk(nil), c.hunks...)
}

// CommitHash is set for commit-message changes parsed from "git log -p",
// "git show" or "hg export" output.
func (c *Change) CommitHash() string { return c.commitHash }

// OldIndex and NewIndex hold the abbreviated blob hashes from a git
// "index abc123..def456" line.
func (c *Change) OldIndex() string { return c.oldIndex }

// NewIndex is the new-side blob hash; see OldIndex.
func (c *Change) NewIndex() string { return c.newIndex }

// Metadata keys written by the parser.
const (
	MetadataMessage   = "message"
	MetadataFirstLine = "line:first"
)

const (
	propFileMode = "unix:filemode"
)

func (c *Change) setOldPath(p string) { c.oldPath = p }
func (c *Change) setCurrentPath(p string) { c.currentPath = p }
func (c *Change) setType(t ChangeType) { c.changeType = t }
func (c *Change) setFileType(t FileType) { c.fileType = t }
func (c *Change) setOldProperty(k, v string) { c.oldProperties.set(k, v) }
func (c *Change) setNewProperty(k, v string) { c.newProperties.set(k, v) }
func (c *Change) setMetadata(k string, v any) { c.metadata.set(k, v) }
func (c *Change) setCommitHash(h string) { c.commitHash = h }
func (c *Change) addHunk(h *Hunk) { c.hunks = append(c.hunks, h) }
func (c *Change) dropHunks() { c.hunks = nil }
func (c *Change) setIndex(oldIndex, newIndex string) { c.oldIndex, c.newIndex = oldIndex, newIndex }

func (c *Change) addAwayPath(p string) {
	for _, existing := range c.awayPaths {
		if existing == p {
			return
		}
	}
	c.awayPaths = append(c.awayPaths, p)
}

// Properties is a read-only, insertion-ordered string map of VCS properties
// such as "svn:mime-type" or "unix:filemode".
type Properties struct {
	m *orderedMap[string]
}

// Get returns the value of a property.
func (p Properties) Get(name string) (string, bool) {
	if p.m == nil {
		return "", false
	}
	return p.m.get(name)
}

// Keys lists property names in the order they were first seen.
func (p Properties) Keys() []string {
	if p.m == nil {
		return nil
	}
	return p.m.keysCopy()
}

// Len returns the number of properties.
func (p Properties) Len() int {
	if p.m == nil {
		return 0
	}
	return len(p.m.keys)
}

// Map returns the properties as a plain map.
func (p Properties) Map() map[string]string {
	out := make(map[string]string, p.Len())
	if p.m != nil {
		for _, k := range p.m.keys {
			out[k] = p.m.values[k]
		}
	}
	return out
}

type orderedMap[V any] struct {
	keys   []string
	values map[string]V
}

func newOrderedMap[V any]() *orderedMap[V] {
	return &orderedMap[V]{values: make(map[string]V)}
}

func (m *orderedMap[V]) set(k string, v V) {
	if _, ok := m.values[k]; !ok {
		m.keys = append(m.keys, k)
	}
	m.values[k] = v
}

func (m *orderedMap[V]) get(k string) (V, bool) {
	v, ok := m.values[k]
	return v, ok
}

func (m *orderedMap[V]) keysCopy() []string {
	return append([]string(nil), m.keys...)
}

func (m *orderedMap[V]) clone() *orderedMap[V] {
	out := newOrderedMap[V]()
	for _, k := range m.keys {
		out.set(k, m.values[k])
	}
	return out
}
