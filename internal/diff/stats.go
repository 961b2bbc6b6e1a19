package diff

// Stats contains size metrics for a parsed diff.
type Stats struct {
	Files        int `json:"files"`
	Hunks        int `json:"hunks"`
	AddedLines   int `json:"addedLines"`
	DeletedLines int `json:"deletedLines"`
	ByteSize     int `json:"byteSize"` // total size of all hunk bodies
	BinaryFiles  int `json:"binaryFiles"`
}

// Large diff thresholds for UI warnings.
const (
	// LargeDiffByteThreshold is 1MB - diffs larger than this trigger a warning.
	LargeDiffByteThreshold = 1 * 1024 * 1024

	// LargeDiffLineThreshold is 2000 changed lines.
	LargeDiffLineThreshold = 2000
)

// CalculateStats computes size metrics for a change set. Commit messages
// and move/copy sources are not counted as files.
func CalculateStats(cs *ChangeSet) *Stats {
	stats := &Stats{}
	if cs == nil {
		return stats
	}

	for _, c := range cs.changes {
		if c.changeType == ChangeMessage || c.changeType.IsOldLocation() {
			continue
		}
		stats.Files++
		if c.fileType == FileBinary || c.fileType == FileImage {
			stats.BinaryFiles++
		}
		for _, h := range c.hunks {
			stats.Hunks++
			stats.AddedLines += h.addLines
			stats.DeletedLines += h.delLines
			stats.ByteSize += len(h.corpus)
		}
	}

	return stats
}

// IsLargeDiff checks if the given stats indicate a large diff.
// Returns true if the diff exceeds either the byte or line threshold.
func IsLargeDiff(stats *Stats) bool {
	if stats == nil {
		return false
	}
	return stats.ByteSize > LargeDiffByteThreshold ||
		stats.AddedLines+stats.DeletedLines > LargeDiffLineThreshold
}
