package diff

import (
	"fmt"
	"strings"
)

// ChangeType says what happened to a path. The numeric values are part of
// the dictionary wire format and must not be renumbered.
type ChangeType int

const (
	ChangeAdd       ChangeType = 1
	ChangeChange    ChangeType = 2
	ChangeDelete    ChangeType = 3
	ChangeMoveAway  ChangeType = 4
	ChangeCopyAway  ChangeType = 5
	ChangeMoveHere  ChangeType = 6
	ChangeCopyHere  ChangeType = 7
	ChangeMultiCopy ChangeType = 8
	ChangeMessage   ChangeType = 9
	ChangeChild     ChangeType = 10
)

var changeTypeNames = map[ChangeType]string{
	ChangeAdd:       "add",
	ChangeChange:    "change",
	ChangeDelete:    "delete",
	ChangeMoveAway:  "move_away",
	ChangeCopyAway:  "copy_away",
	ChangeMoveHere:  "move_here",
	ChangeCopyHere:  "copy_here",
	ChangeMultiCopy: "multicopy",
	ChangeMessage:   "message",
	ChangeChild:     "child",
}

func (t ChangeType) String() string {
	if name, ok := changeTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ChangeType(%d)", int(t))
}

// Valid reports whether t is one of the declared change types.
func (t ChangeType) Valid() bool {
	_, ok := changeTypeNames[t]
	return ok
}

// IsOldLocation reports whether the path no longer exists at its old
// location after the change.
func (t ChangeType) IsOldLocation() bool {
	switch t {
	case ChangeMoveAway, ChangeCopyAway, ChangeMultiCopy:
		return true
	}
	return false
}

// IsNewLocation reports whether the path was created by a move or copy.
func (t ChangeType) IsNewLocation() bool {
	switch t {
	case ChangeMoveHere, ChangeCopyHere:
		return true
	}
	return false
}

// IsDelete reports whether the path is gone after the change.
func (t ChangeType) IsDelete() bool {
	switch t {
	case ChangeMoveAway, ChangeDelete, ChangeMultiCopy:
		return true
	}
	return false
}

// SummaryCharacter returns the one-letter status used in change summaries
// ("A", "M", "D", "V", "C", "X").
func (t ChangeType) SummaryCharacter() string {
	switch t {
	case ChangeAdd:
		return "A"
	case ChangeChange:
		return "M"
	case ChangeDelete:
		return "D"
	case ChangeMoveAway:
		return "V"
	case ChangeCopyAway:
		return "P"
	case ChangeMoveHere:
		return "V"
	case ChangeCopyHere:
		return "C"
	case ChangeMultiCopy:
		return "X"
	}
	return "?"
}

// ParseChangeType maps a name produced by String back to a ChangeType.
func ParseChangeType(name string) (ChangeType, error) {
	for t, n := range changeTypeNames {
		if n == strings.ToLower(name) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown change type %q", name)
}

// FileType says what kind of object a path refers to. Like ChangeType,
// the numeric values are part of the wire format.
type FileType int

const (
	FileText      FileType = 1
	FileImage     FileType = 2
	FileBinary    FileType = 3
	FileDirectory FileType = 4
	FileSymlink   FileType = 5
	FileDeleted   FileType = 6
	FileNormal    FileType = 7
	FileSubmodule FileType = 8
)

var fileTypeNames = map[FileType]string{
	FileText:      "text",
	FileImage:     "image",
	FileBinary:    "binary",
	FileDirectory: "directory",
	FileSymlink:   "symlink",
	FileDeleted:   "deleted",
	FileNormal:    "normal",
	FileSubmodule: "submodule",
}

func (t FileType) String() string {
	if name, ok := fileTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("FileType(%d)", int(t))
}

// Valid reports whether t is one of the declared file types.
func (t FileType) Valid() bool {
	_, ok := fileTypeNames[t]
	return ok
}

// ShortName returns a human label for the file type, e.g. "file" or "dir".
func (t FileType) ShortName() string {
	switch t {
	case FileText:
		return "file"
	case FileDirectory:
		return "dir"
	case FileImage:
		return "img"
	case FileBinary:
		return "bin"
	case FileSymlink:
		return "sym"
	case FileSubmodule:
		return "sub"
	}
	return "???"
}

// ParseFileType maps a name produced by String back to a FileType.
func ParseFileType(name string) (FileType, error) {
	for t, n := range fileTypeNames {
		if n == strings.ToLower(name) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown file type %q", name)
}

// fileTypeForMode maps a git octal mode to the file type it implies, or 0
// when the mode says nothing beyond "regular file".
func fileTypeForMode(mode string) FileType {
	switch mode {
	case "120000":
		return FileSymlink
	case "160000":
		return FileSubmodule
	case "040000":
		return FileDirectory
	}
	return 0
}
