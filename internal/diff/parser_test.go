package diff

import (
	"errors"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"

	apperrors "github.com/pseudocoder/diffcore/internal/errors"
)

func mustParse(t *testing.T, raw string, opts ...Option) *ChangeSet {
	t.Helper()
	cs, err := NewParser(opts...).Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	checkHunkLengths(t, cs)
	return cs
}

// checkHunkLengths verifies every hunk's corpus agrees with its header:
// context and removed lines make up the old length, context and added
// lines the new one. "\ No newline" markers count for neither.
func checkHunkLengths(t *testing.T, cs *ChangeSet) {
	t.Helper()
	for _, c := range cs.Changes() {
		for i, h := range c.Hunks() {
			oldLines, newLines := 0, 0
			for _, l := range h.Lines() {
				if l == "" {
					t.Errorf("%s hunk %d: empty corpus line", c.CurrentPath(), i)
					continue
				}
				switch l[0] {
				case ' ':
					oldLines++
					newLines++
				case '-':
					oldLines++
				case '+':
					newLines++
				case '\\':
				default:
					t.Errorf("%s hunk %d: unexpected corpus line %q", c.CurrentPath(), i, l)
				}
			}
			if oldLines != h.OldLength() || newLines != h.NewLength() {
				t.Errorf("%s hunk %d: corpus has %d old / %d new lines, header %s",
					c.CurrentPath(), i, oldLines, newLines, h.Header())
			}
		}
	}
}

func mustGet(t *testing.T, cs *ChangeSet, key string) *Change {
	t.Helper()
	c, ok := cs.Get(key)
	if !ok {
		t.Fatalf("no change for %q; keys = %v", key, cs.Keys())
	}
	return c
}

func TestParse_EmptyInput(t *testing.T) {
	for _, raw := range []string{"", "   \n\n\t"} {
		_, err := Parse(raw)
		if !apperrors.IsCode(err, apperrors.CodeDiffEmpty) {
			t.Errorf("Parse(%q) code = %q, want %q", raw, apperrors.GetCode(err), apperrors.CodeDiffEmpty)
		}
	}
}

func TestParse_MaxBytes(t *testing.T) {
	_, err := NewParser(WithMaxBytes(10)).Parse("diff --git a/x b/x\n")
	if !apperrors.IsCode(err, apperrors.CodeDiffTooLarge) {
		t.Errorf("code = %q, want %q", apperrors.GetCode(err), apperrors.CodeDiffTooLarge)
	}
}

func TestParse_GitRenameWithoutContent(t *testing.T) {
	raw := `diff --git a/old/path b/new/path
similarity index 100%
rename from old/path
rename to new/path
`
	cs := mustParse(t, raw)

	if cs.Len() != 2 {
		t.Fatalf("Len() = %d, want 2; keys = %v", cs.Len(), cs.Keys())
	}

	here := mustGet(t, cs, "new/path")
	if here.Type() != ChangeMoveHere {
		t.Errorf("new/path type = %v, want move_here", here.Type())
	}
	if here.OldPath() != "old/path" {
		t.Errorf("new/path OldPath() = %q, want %q", here.OldPath(), "old/path")
	}
	if len(here.Hunks()) != 0 {
		t.Errorf("new/path has %d hunks, want 0", len(here.Hunks()))
	}

	away := mustGet(t, cs, "old/path")
	if away.Type() != ChangeMoveAway {
		t.Errorf("old/path type = %v, want move_away", away.Type())
	}
	if got := away.AwayPaths(); len(got) != 1 || got[0] != "new/path" {
		t.Errorf("old/path AwayPaths() = %v, want [new/path]", got)
	}
}

func TestParse_GitRenameWithContent(t *testing.T) {
	raw := `diff --git a/old.go b/new.go
similarity index 90%
rename from old.go
rename to new.go
index 1111111..2222222 100644
--- a/old.go
+++ b/new.go
@@ -1,3 +1,3 @@
 package main
-var x = 1
+var x = 2
 func main() {}
`
	cs := mustParse(t, raw)

	c := mustGet(t, cs, "new.go")
	if c.Type() != ChangeMoveHere {
		t.Errorf("Type() = %v, want move_here", c.Type())
	}
	if c.OldIndex() != "1111111" || c.NewIndex() != "2222222" {
		t.Errorf("index = %s..%s, want 1111111..2222222", c.OldIndex(), c.NewIndex())
	}
	hunks := c.Hunks()
	if len(hunks) != 1 {
		t.Fatalf("got %d hunks, want 1", len(hunks))
	}
	if hunks[0].AddLines() != 1 || hunks[0].DelLines() != 1 {
		t.Errorf("add/del = %d/%d, want 1/1", hunks[0].AddLines(), hunks[0].DelLines())
	}
	if line, _ := c.Metadata(MetadataFirstLine); line != 2 {
		t.Errorf("line:first = %v, want 2", line)
	}
}

func TestParse_GitCopyAndMulticopy(t *testing.T) {
	raw := `diff --git a/src.c b/copy1.c
similarity index 100%
copy from src.c
copy to copy1.c
diff --git a/src.c b/copy2.c
similarity index 100%
copy from src.c
copy to copy2.c
diff --git a/src.c b/moved.c
similarity index 100%
rename from src.c
rename to moved.c
`
	cs := mustParse(t, raw)

	wantKeys := []string{"copy1.c", "src.c", "copy2.c", "moved.c"}
	if got := cs.Keys(); strings.Join(got, ",") != strings.Join(wantKeys, ",") {
		t.Errorf("Keys() = %v, want %v", got, wantKeys)
	}

	for _, key := range []string{"copy1.c", "copy2.c"} {
		if c := mustGet(t, cs, key); c.Type() != ChangeCopyHere {
			t.Errorf("%s type = %v, want copy_here", key, c.Type())
		}
	}
	if c := mustGet(t, cs, "moved.c"); c.Type() != ChangeMoveHere {
		t.Errorf("moved.c type = %v, want move_here", c.Type())
	}

	src := mustGet(t, cs, "src.c")
	if src.Type() != ChangeMultiCopy {
		t.Errorf("src.c type = %v, want multicopy", src.Type())
	}
	if got := strings.Join(src.AwayPaths(), ","); got != "copy1.c,copy2.c,moved.c" {
		t.Errorf("src.c AwayPaths() = %s", got)
	}
}

func TestParse_GitNewAndDeletedFiles(t *testing.T) {
	raw := `diff --git a/new.txt b/new.txt
new file mode 100644
index 0000000..3b18e51
--- /dev/null
+++ b/new.txt
@@ -0,0 +1 @@
+hello
diff --git a/gone.txt b/gone.txt
deleted file mode 100644
index 3b18e51..0000000
--- a/gone.txt
+++ /dev/null
@@ -1 +0,0 @@
-hello
`
	cs := mustParse(t, raw)

	added := mustGet(t, cs, "new.txt")
	if added.Type() != ChangeAdd {
		t.Errorf("new.txt type = %v, want add", added.Type())
	}
	if added.OldPath() != "" {
		t.Errorf("new.txt OldPath() = %q, want empty", added.OldPath())
	}
	if mode, _ := added.NewProperties().Get("unix:filemode"); mode != "100644" {
		t.Errorf("new.txt new filemode = %q, want 100644", mode)
	}
	if h := added.Hunks(); len(h) != 1 || h[0].AddLines() != 1 || h[0].OldLength() != 0 {
		t.Errorf("new.txt hunks = %+v", h)
	}

	deleted := mustGet(t, cs, "gone.txt")
	if deleted.Type() != ChangeDelete {
		t.Errorf("gone.txt type = %v, want delete", deleted.Type())
	}
	if deleted.OldPath() != "gone.txt" {
		t.Errorf("gone.txt OldPath() = %q", deleted.OldPath())
	}
	if mode, _ := deleted.OldProperties().Get("unix:filemode"); mode != "100644" {
		t.Errorf("gone.txt old filemode = %q, want 100644", mode)
	}
}

func TestParse_GitEmptyNewFile(t *testing.T) {
	raw := `diff --git a/empty b/empty
new file mode 100644
index 0000000..e69de29
diff --git a/next.txt b/next.txt
index 1111111..2222222 100644
--- a/next.txt
+++ b/next.txt
@@ -1 +1 @@
-a
+b
`
	cs := mustParse(t, raw)

	if cs.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", cs.Len())
	}
	if c := mustGet(t, cs, "empty"); c.Type() != ChangeAdd || len(c.Hunks()) != 0 {
		t.Errorf("empty: type %v, %d hunks", c.Type(), len(c.Hunks()))
	}
	if c := mustGet(t, cs, "next.txt"); len(c.Hunks()) != 1 {
		t.Errorf("next.txt: %d hunks, want 1", len(c.Hunks()))
	}
}

func TestParse_GitModeChange(t *testing.T) {
	raw := `diff --git a/run.sh b/run.sh
old mode 100644
new mode 100755
`
	c := mustGet(t, mustParse(t, raw), "run.sh")

	if c.Type() != ChangeChange {
		t.Errorf("Type() = %v, want change", c.Type())
	}
	if mode, _ := c.OldProperties().Get("unix:filemode"); mode != "100644" {
		t.Errorf("old filemode = %q", mode)
	}
	if mode, _ := c.NewProperties().Get("unix:filemode"); mode != "100755" {
		t.Errorf("new filemode = %q", mode)
	}
}

func TestParse_GitSymlinkAndSubmodule(t *testing.T) {
	raw := `diff --git a/link b/link
new file mode 120000
index 0000000..1de5659
--- /dev/null
+++ b/link
@@ -0,0 +1 @@
+target
\ No newline at end of file
diff --git a/sub b/sub
index 1234567..89abcde 160000
--- a/sub
+++ b/sub
@@ -1 +1 @@
-Subproject commit 1234567890123456789012345678901234567890
+Subproject commit 89abcdef89abcdef89abcdef89abcdef89abcdef
`
	cs := mustParse(t, raw)

	link := mustGet(t, cs, "link")
	if link.FileType() != FileSymlink {
		t.Errorf("link FileType() = %v, want symlink", link.FileType())
	}
	if h := link.Hunks(); len(h) != 1 || !h[0].IsMissingNewNewline() || h[0].IsMissingOldNewline() {
		t.Errorf("link hunk newline flags wrong: %+v", h)
	}

	sub := mustGet(t, cs, "sub")
	if sub.FileType() != FileSubmodule {
		t.Errorf("sub FileType() = %v, want submodule", sub.FileType())
	}
}

func TestParse_GitBinary(t *testing.T) {
	raw := `diff --git a/img.png b/img.png
new file mode 100644
index 0000000..d1e2f3a
Binary files /dev/null and b/img.png differ
diff --git a/data.bin b/data.bin
index 1111111..2222222 100644
GIT binary patch
literal 10
RcmZQzU|?ckU|?ck000310RR91

literal 0
HcmV?d00001

diff --git a/after.txt b/after.txt
index 1111111..2222222 100644
--- a/after.txt
+++ b/after.txt
@@ -1 +1 @@
-x
+y
`
	cs := mustParse(t, raw)

	img := mustGet(t, cs, "img.png")
	if img.Type() != ChangeAdd || img.FileType() != FileBinary || len(img.Hunks()) != 0 {
		t.Errorf("img.png: type %v, file type %v, %d hunks", img.Type(), img.FileType(), len(img.Hunks()))
	}

	data := mustGet(t, cs, "data.bin")
	if data.FileType() != FileBinary || len(data.Hunks()) != 0 {
		t.Errorf("data.bin: file type %v, %d hunks", data.FileType(), len(data.Hunks()))
	}

	after := mustGet(t, cs, "after.txt")
	if after.FileType() != FileText || len(after.Hunks()) != 1 {
		t.Errorf("after.txt: file type %v, %d hunks", after.FileType(), len(after.Hunks()))
	}
}

func TestParse_UnifiedMultipleHunks(t *testing.T) {
	raw := `--- left	2010-01-01 00:00:00.000000000 -0800
+++ right	2010-01-01 00:00:01.000000000 -0800
@@ -1,3 +1,3 @@
 a
-b
+B
 c
@@ -10,3 +10,3 @@
 j
-k
+K
 l
@@ -20,3 +20,3 @@
 t
-u
+U
 v
@@ -30,3 +30,3 @@
 x
-y
+Y
 z
`
	cs := mustParse(t, raw)

	if cs.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", cs.Len())
	}
	c := cs.Changes()[0]
	if c.OldPath() != "left" || c.CurrentPath() != "right" {
		t.Errorf("paths = %q -> %q, want left -> right", c.OldPath(), c.CurrentPath())
	}
	hunks := c.Hunks()
	if len(hunks) != 4 {
		t.Fatalf("got %d hunks, want 4", len(hunks))
	}
	wantOffsets := []int{1, 10, 20, 30}
	for i, h := range hunks {
		if h.OldOffset() != wantOffsets[i] || h.NewOffset() != wantOffsets[i] {
			t.Errorf("hunk %d offsets = %d/%d, want %d", i, h.OldOffset(), h.NewOffset(), wantOffsets[i])
		}
		if h.OldLength() != 3 || h.NewLength() != 3 {
			t.Errorf("hunk %d lengths = %d/%d, want 3/3", i, h.OldLength(), h.NewLength())
		}
	}
	if got := hunks[1].Corpus(); got != " j\n-k\n+K\n l\n" {
		t.Errorf("hunk 1 corpus = %q", got)
	}
}

func TestParse_UnifiedAddFromDevNull(t *testing.T) {
	raw := `--- /dev/null	2010-01-01 00:00:00.000000000 -0800
+++ created.txt	2010-01-01 00:00:01.000000000 -0800
@@ -0,0 +1,2 @@
+one
+two
`
	c := mustGet(t, mustParse(t, raw), "created.txt")
	if c.Type() != ChangeAdd {
		t.Errorf("Type() = %v, want add", c.Type())
	}
	if c.OldPath() != "" {
		t.Errorf("OldPath() = %q, want empty", c.OldPath())
	}
}

func TestParse_MissingNewlineFlags(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantOld bool
		wantNew bool
	}{
		{
			name: "old side only",
			raw: `diff --git a/f b/f
index 1111111..2222222 100644
--- a/f
+++ b/f
@@ -1 +1 @@
-a
\ No newline at end of file
+a
`,
			wantOld: true,
		},
		{
			name: "new side only",
			raw: `diff --git a/f b/f
index 1111111..2222222 100644
--- a/f
+++ b/f
@@ -1 +1 @@
-a
+a
\ No newline at end of file
`,
			wantNew: true,
		},
		{
			name: "both sides",
			raw: `diff --git a/f b/f
index 1111111..2222222 100644
--- a/f
+++ b/f
@@ -1 +1 @@
-a
\ No newline at end of file
+b
\ No newline at end of file
`,
			wantOld: true,
			wantNew: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hunks := mustGet(t, mustParse(t, tt.raw), "f").Hunks()
			if len(hunks) != 1 {
				t.Fatalf("got %d hunks, want 1", len(hunks))
			}
			if got := hunks[0].IsMissingOldNewline(); got != tt.wantOld {
				t.Errorf("IsMissingOldNewline() = %v, want %v", got, tt.wantOld)
			}
			if got := hunks[0].IsMissingNewNewline(); got != tt.wantNew {
				t.Errorf("IsMissingNewNewline() = %v, want %v", got, tt.wantNew)
			}
		})
	}
}

func TestParse_MissingNewlineDoesNotBleed(t *testing.T) {
	raw := `diff --git a/f b/f
index 1111111..2222222 100644
--- a/f
+++ b/f
@@ -1 +1 @@
-a
\ No newline at end of file
+a
diff --git a/g b/g
index 1111111..2222222 100644
--- a/g
+++ b/g
@@ -1,2 +1,2 @@
-x
+y
 z
`
	cs := mustParse(t, raw)

	f := mustGet(t, cs, "f").Hunks()[0]
	if !f.IsMissingOldNewline() || f.IsMissingNewNewline() {
		t.Errorf("f flags = old %v new %v, want old only", f.IsMissingOldNewline(), f.IsMissingNewNewline())
	}

	g := mustGet(t, cs, "g").Hunks()[0]
	if g.IsMissingOldNewline() || g.IsMissingNewNewline() {
		t.Errorf("g flags = old %v new %v, want neither", g.IsMissingOldNewline(), g.IsMissingNewNewline())
	}
}

func TestParse_WhitespaceOnlyHunks(t *testing.T) {
	svn := strings.Join([]string{
		"Index: file.txt",
		"===================================================================",
		"--- file.txt\t(revision 1)",
		"+++ file.txt\t(working copy)",
		"@@ -1,3 +1,3 @@",
		" a",
		"-b",
		"+b   ",
		" c",
		"",
	}, "\n")

	c := mustGet(t, mustParse(t, svn), "file.txt")
	if len(c.Hunks()) != 0 {
		t.Errorf("svn whitespace-only change kept %d hunks, want 0", len(c.Hunks()))
	}
	if _, ok := c.Metadata(MetadataFirstLine); ok {
		t.Error("line:first should not be set without hunks")
	}

	git := strings.Join([]string{
		"diff --git a/file.txt b/file.txt",
		"index 1111111..2222222 100644",
		"--- a/file.txt",
		"+++ b/file.txt",
		"@@ -1,3 +1,3 @@",
		" a",
		"-b",
		"+b\t",
		" c",
		"",
	}, "\n")

	if n := len(mustGet(t, mustParse(t, git), "file.txt").Hunks()); n != 1 {
		t.Errorf("git whitespace change without option kept %d hunks, want 1", n)
	}
	if n := len(mustGet(t, mustParse(t, git, WithIgnoreWhitespace(true)), "file.txt").Hunks()); n != 0 {
		t.Errorf("git whitespace change with option kept %d hunks, want 0", n)
	}
}

func TestParse_SameFileTwiceKeepsLastBlock(t *testing.T) {
	raw := `diff --git a/x b/x
index 1111111..2222222 100644
--- a/x
+++ b/x
@@ -1 +1 @@
-first
+FIRST
diff --git a/x b/x
index 2222222..3333333 100644
--- a/x
+++ b/x
@@ -5 +5 @@
-second
+SECOND
`
	cs := mustParse(t, raw)

	if cs.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", cs.Len())
	}
	hunks := mustGet(t, cs, "x").Hunks()
	if len(hunks) != 1 || hunks[0].OldOffset() != 5 {
		t.Errorf("hunks = %+v, want only the second block", hunks)
	}
}

func TestParse_GitLogMessage(t *testing.T) {
	raw := `commit 59bcc3ad6775562f845953cf01624225
Author: Alice <alice@example.com>
Date:   Mon Jan 1 00:00:00 2024 +0000

    Fix the frobnicator

    Reviewed By: bob
    git-svn-id: svn+ssh://example.com/trunk@123 abc

diff --git a/x b/x
index 1111111..2222222 100644
--- a/x
+++ b/x
@@ -1 +1 @@
-old
+new
`
	cs := mustParse(t, raw)

	if cs.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", cs.Len())
	}
	msg := mustGet(t, cs, "commit:59bcc3ad6775562f845953cf01624225")
	if msg.Type() != ChangeMessage {
		t.Errorf("Type() = %v, want message", msg.Type())
	}
	if msg.CommitHash() != "59bcc3ad6775562f845953cf01624225" {
		t.Errorf("CommitHash() = %q", msg.CommitHash())
	}
	want := "Fix the frobnicator\n\nReviewed By: bob\ngit-svn-id: svn+ssh://example.com/trunk@123 abc"
	if got := msg.Message(); got != want {
		t.Errorf("Message() = %q, want %q", got, want)
	}
}

func TestParse_GitLogMissingAuthor(t *testing.T) {
	raw := "commit 59bcc3ad6775562f845953cf01624225\nDate: now\n"
	_, err := Parse(raw)
	if !apperrors.IsCode(err, apperrors.CodeDiffParseFailed) {
		t.Fatalf("code = %q, want %q", apperrors.GetCode(err), apperrors.CodeDiffParseFailed)
	}
}

func TestParse_FormatPatch(t *testing.T) {
	raw := strings.Join([]string{
		"From 0123456789abcdef0123456789abcdef01234567 Mon Sep 17 00:00:00 2001",
		"From: Alice <alice@example.com>",
		"Date: Mon, 1 Jan 2024 00:00:00 +0000",
		"Subject: [PATCH] Add feature",
		"",
		"Longer description.",
		"---",
		" x | 2 +-",
		" 1 file changed, 1 insertion(+), 1 deletion(-)",
		"",
		"diff --git a/x b/x",
		"index 1111111..2222222 100644",
		"--- a/x",
		"+++ b/x",
		"@@ -1 +1 @@",
		"-old",
		"+new",
		"-- ",
		"2.39.0",
		"",
		"",
	}, "\n")

	cs := mustParse(t, raw)

	if cs.Len() != 2 {
		t.Fatalf("Len() = %d, want 2; keys = %v", cs.Len(), cs.Keys())
	}
	msg := cs.Changes()[0]
	if msg.Type() != ChangeMessage {
		t.Fatalf("first change type = %v, want message", msg.Type())
	}
	if msg.CommitHash() != "0123456789abcdef0123456789abcdef01234567" {
		t.Errorf("CommitHash() = %q", msg.CommitHash())
	}
	if got, want := msg.Message(), "Add feature\n\nLonger description."; got != want {
		t.Errorf("Message() = %q, want %q", got, want)
	}

	hunks := mustGet(t, cs, "x").Hunks()
	if len(hunks) != 1 || hunks[0].Corpus() != "-old\n+new\n" {
		t.Errorf("x hunks = %+v", hunks)
	}
}

func TestParse_HgDiff(t *testing.T) {
	raw := `diff -r 0123456789ab -r ba9876543210 file.txt
--- a/file.txt	Thu Jan 01 00:00:00 1970 +0000
+++ b/file.txt	Thu Jan 01 00:00:01 1970 +0000
@@ -1,1 +1,2 @@
 one
+two
diff -r 0123456789ab new.txt
--- /dev/null	Thu Jan 01 00:00:00 1970 +0000
+++ b/new.txt	Thu Jan 01 00:00:01 1970 +0000
@@ -0,0 +1,1 @@
+hello
diff -r 0123456789ab logo.png
Binary file logo.png has changed
`
	cs := mustParse(t, raw)

	file := mustGet(t, cs, "file.txt")
	if file.Type() != ChangeChange || file.OldPath() != "file.txt" {
		t.Errorf("file.txt: type %v, old path %q", file.Type(), file.OldPath())
	}
	if len(file.Hunks()) != 1 {
		t.Errorf("file.txt: %d hunks, want 1", len(file.Hunks()))
	}

	if c := mustGet(t, cs, "new.txt"); c.Type() != ChangeAdd {
		t.Errorf("new.txt type = %v, want add", c.Type())
	}

	if c := mustGet(t, cs, "logo.png"); c.FileType() != FileBinary {
		t.Errorf("logo.png file type = %v, want binary", c.FileType())
	}
}

func TestParse_HgExport(t *testing.T) {
	raw := `# HG changeset patch
# User Alice <alice@example.com>
# Date 1700000000 0
# Node ID 0123456789abcdef0123456789abcdef01234567
# Parent  fedcba9876543210fedcba9876543210fedcba98
Add a greeting

diff -r fedcba987654 -r 0123456789ab hello.txt
--- a/hello.txt	Thu Jan 01 00:00:00 1970 +0000
+++ b/hello.txt	Thu Jan 01 00:00:01 1970 +0000
@@ -1,1 +1,1 @@
-hi
+hello
`
	cs := mustParse(t, raw)

	if cs.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", cs.Len())
	}
	msg := cs.Changes()[0]
	if msg.Type() != ChangeMessage {
		t.Fatalf("first change type = %v, want message", msg.Type())
	}
	if msg.CommitHash() != "0123456789abcdef0123456789abcdef01234567" {
		t.Errorf("CommitHash() = %q", msg.CommitHash())
	}
	if msg.Message() != "Add a greeting" {
		t.Errorf("Message() = %q", msg.Message())
	}
}

func TestParse_ColorizedDiff(t *testing.T) {
	const (
		bold  = "\x1b[1m"
		red   = "\x1b[31m"
		green = "\x1b[32m"
		cyan  = "\x1b[36m"
		reset = "\x1b[m"
	)
	raw := bold + "diff --git a/x b/x" + reset + "\n" +
		bold + "index 1111111..2222222 100644" + reset + "\n" +
		bold + "--- a/x" + reset + "\n" +
		bold + "+++ b/x" + reset + "\n" +
		cyan + "@@ -1 +1 @@" + reset + "\n" +
		red + "-old" + reset + "\n" +
		green + "+new" + reset + "\n"

	hunks := mustGet(t, mustParse(t, raw), "x").Hunks()
	if len(hunks) != 1 || hunks[0].Corpus() != "-old\n+new\n" {
		t.Errorf("hunks = %+v", hunks)
	}
}

func TestParse_CRLF(t *testing.T) {
	raw := "diff --git a/x b/x\r\nindex 1111111..2222222 100644\r\n--- a/x\r\n+++ b/x\r\n@@ -1 +1 @@\r\n-old\r\n+new\r\n"

	hunks := mustGet(t, mustParse(t, raw), "x").Hunks()
	if len(hunks) != 1 || hunks[0].Corpus() != "-old\n+new\n" {
		t.Errorf("hunks = %+v", hunks)
	}
}

func TestParse_QuotedUnicodePath(t *testing.T) {
	raw := `diff --git "a/\303\244.txt" "b/\303\244.txt"
index 1111111..2222222 100644
--- "a/\303\244.txt"
+++ "b/\303\244.txt"
@@ -1 +1 @@
-a
+b
`
	c := mustGet(t, mustParse(t, raw), "ä.txt")
	if c.OldPath() != "ä.txt" {
		t.Errorf("OldPath() = %q, want %q", c.OldPath(), "ä.txt")
	}
}

func TestParse_PreambleIsSkipped(t *testing.T) {
	raw := `Some notes from the author
that are not part of the diff.

diff --git a/x b/x
index 1111111..2222222 100644
--- a/x
+++ b/x
@@ -1 +1 @@
-old
+new
`
	cs := mustParse(t, raw)
	if cs.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cs.Len())
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		code     string
		wantLine int
	}{
		{
			name:     "missing svn divider",
			raw:      "Index: foo\nnot a divider\n",
			code:     apperrors.CodeDiffParseFailed,
			wantLine: 2,
		},
		{
			name: "too few hunk lines",
			raw:  "--- a\n+++ b\n@@ -1,3 +1,3 @@\n a\n-b\n+c\n",
			code: apperrors.CodeDiffParseFailed,
		},
		{
			name:     "unparseable hunk numbers",
			raw:      "--- a\n+++ b\n@@ -99999999999999999999999,1 +1,1 @@\n-a\n+b\n",
			code:     apperrors.CodeDiffParseFailed,
			wantLine: 3,
		},
		{
			name:     "bad no-newline marker",
			raw:      "--- a\n+++ b\n@@ -1 +1 @@\n-a\n\\ something else\n+b\n",
			code:     apperrors.CodeDiffParseFailed,
			wantLine: 5,
		},
		{
			name: "no diff at all",
			raw:  "hello world\n",
			code: apperrors.CodeDiffParseFailed,
		},
		{
			name: "ambiguous git paths",
			raw:  "diff --git old file.c new file.c\n",
			code: apperrors.CodeDiffAmbiguousPaths,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs, err := Parse(tt.raw)
			if err == nil {
				t.Fatalf("expected error, got %d changes", cs.Len())
			}
			if cs != nil {
				t.Error("expected no partial result on error")
			}
			if code := apperrors.GetCode(err); code != tt.code {
				t.Errorf("code = %q, want %q (%v)", code, tt.code, err)
			}

			if tt.wantLine == 0 {
				return
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("error %v does not wrap *ParseError", err)
			}
			if perr.Line != tt.wantLine {
				t.Errorf("Line = %d, want %d", perr.Line, tt.wantLine)
			}
			if !strings.Contains(perr.Context, ">>>") {
				t.Errorf("Context missing marker:\n%s", perr.Context)
			}
		})
	}
}

func TestParse_WriteDiffOnFailure(t *testing.T) {
	dir := t.TempDir()
	raw := "Index: foo\nnot a divider\n"

	_, err := NewParser(WithWriteDiffOnFailure(dir)).Parse(raw)

	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("error %v does not wrap *ParseError", err)
	}
	if perr.DiffFile == "" {
		t.Fatal("DiffFile not set")
	}
	data, err := os.ReadFile(perr.DiffFile)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != raw {
		t.Errorf("written diff = %q, want %q", data, raw)
	}
}

func TestParse_DetectBinary(t *testing.T) {
	raw := "--- a.bin\n+++ a.bin\n@@ -1 +1 @@\n-\xff\xfe\x00\x01\n+\xff\xfe\x00\x02\n"

	plain := mustGet(t, mustParse(t, raw), "a.bin")
	if plain.FileType() != FileText || len(plain.Hunks()) != 1 {
		t.Errorf("without detection: file type %v, %d hunks", plain.FileType(), len(plain.Hunks()))
	}

	detected := mustGet(t, mustParse(t, raw, WithDetectBinary(true)), "a.bin")
	if detected.FileType() != FileBinary || len(detected.Hunks()) != 0 {
		t.Errorf("with detection: file type %v, %d hunks", detected.FileType(), len(detected.Hunks()))
	}

	// A NUL byte means binary even when an encoding is offered.
	withEnc := mustGet(t, mustParse(t, raw, WithDetectBinary(true), WithTryEncoding("latin1")), "a.bin")
	if withEnc.FileType() != FileBinary {
		t.Errorf("with encoding: file type %v, want binary", withEnc.FileType())
	}
}

func TestParse_TryEncoding(t *testing.T) {
	raw := "--- menu.txt\n+++ menu.txt\n@@ -1 +1 @@\n-cafe\n+caf\xe9\n"

	c := mustGet(t, mustParse(t, raw, WithDetectBinary(true), WithTryEncoding("latin1")), "menu.txt")
	if c.FileType() != FileText {
		t.Errorf("FileType() = %v, want text", c.FileType())
	}
	hunks := c.Hunks()
	if len(hunks) != 1 || hunks[0].Corpus() != "-cafe\n+café\n" {
		t.Errorf("hunks = %+v", hunks)
	}

	_, err := NewParser(WithDetectBinary(true), WithTryEncoding("no-such-encoding")).Parse(raw)
	if !apperrors.IsCode(err, apperrors.CodeDiffEncodingFailed) {
		t.Errorf("code = %q, want %q", apperrors.GetCode(err), apperrors.CodeDiffEncodingFailed)
	}
}

func TestParser_ConcurrentUse(t *testing.T) {
	p := NewParser()
	raw := "--- a\n+++ b\n@@ -1 +1 @@\n-x\n+y\n"

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cs, err := p.Parse(raw)
			if err == nil && cs.Len() != 1 {
				err = errors.New("unexpected change count")
			}
			if err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestHunk_HeaderAndID(t *testing.T) {
	raw := "--- a\n+++ b\n@@ -3,2 +3,3 @@\n x\n+y\n z\n"
	h1 := mustGet(t, mustParse(t, raw), "b").Hunks()[0]
	h2 := mustGet(t, mustParse(t, raw), "b").Hunks()[0]

	if got := h1.Header(); got != "@@ -3,2 +3,3 @@" {
		t.Errorf("Header() = %q", got)
	}
	if h1.ID() != h2.ID() || len(h1.ID()) != 12 {
		t.Errorf("ID() not stable: %q vs %q", h1.ID(), h2.ID())
	}
	if got := h1.Lines(); len(got) != 3 || got[1] != "+y" {
		t.Errorf("Lines() = %q", got)
	}
}

func TestParse_HunkLengthsMatchHeaders(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{
			name: "blank context lines",
			raw:  "--- f\n+++ f\n@@ -1,4 +1,4 @@\n a\n\n-b\n+B\n\n",
		},
		{
			name: "no newline both sides",
			raw:  "--- f\n+++ f\n@@ -1,2 +1,2 @@\n a\n-b\n\\ No newline at end of file\n+c\n\\ No newline at end of file\n",
		},
		{
			name: "pure addition then next file",
			raw: "--- /dev/null\n+++ n\n@@ -0,0 +1,2 @@\n+x\n+y\n" +
				"--- g\n+++ g\n@@ -3,2 +3,1 @@\n ctx\n-gone\n",
		},
		{
			name: "omitted lengths",
			raw:  "--- f\n+++ f\n@@ -7 +7 @@\n-a\n+b\n",
		},
		{
			name: "svn",
			raw: "Index: s.c\n===================================================================\n" +
				"--- s.c\t(revision 1)\n+++ s.c\t(working copy)\n@@ -1,3 +1,3 @@\n x\n-y\n+Y\n z\n",
		},
		{
			name: "hg",
			raw:  "diff -r 0123456789ab h.txt\n--- a/h.txt\n+++ b/h.txt\n@@ -1,2 +1,3 @@\n a\n+b\n c\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := mustParse(t, tt.raw)
			hunks := 0
			for _, c := range cs.Changes() {
				hunks += len(c.Hunks())
			}
			if hunks == 0 {
				t.Fatalf("no hunks parsed; keys = %v", cs.Keys())
			}
		})
	}
}

func TestParse_DiffRU(t *testing.T) {
	raw := `Only in old: removed-dir
diff -ru old/f.c new/f.c
--- old/f.c	2024-01-01 00:00:00.000000000 +0000
+++ new/f.c	2024-01-02 00:00:00.000000000 +0000
@@ -1,2 +1,2 @@
-a
+b
 c
Only in new: extra.txt
diff -ru old/g.c new/g.c
--- old/g.c	2024-01-01 00:00:00.000000000 +0000
+++ new/g.c	2024-01-02 00:00:00.000000000 +0000
@@ -3 +3 @@
-x
+y
diff -ru old/img.png new/img.png
Binary files old/img.png and new/img.png differ
`
	cs := mustParse(t, raw)

	want := []string{"new/f.c", "new/g.c", "new/img.png"}
	if got := cs.Keys(); !slices.Equal(got, want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}

	f := mustGet(t, cs, "new/f.c")
	if f.OldPath() != "old/f.c" || f.Type() != ChangeChange {
		t.Errorf("f.c: oldPath %q, type %v", f.OldPath(), f.Type())
	}
	if h := f.Hunks(); len(h) != 1 || h[0].Corpus() != "-a\n+b\n c\n" {
		t.Errorf("f.c hunks = %+v", h)
	}
	if g := mustGet(t, cs, "new/g.c"); len(g.Hunks()) != 1 || g.Hunks()[0].OldOffset() != 3 {
		t.Errorf("g.c hunks = %+v", g.Hunks())
	}
	if img := mustGet(t, cs, "new/img.png"); img.FileType() != FileBinary {
		t.Errorf("img.png FileType() = %v, want binary", img.FileType())
	}
}

func TestParse_UnifiedGitPrefixes(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		key      string
		wantOld  string
		wantType ChangeType
	}{
		{
			name:     "both sides prefixed",
			raw:      "--- a/foo.c\n+++ b/foo.c\n@@ -1 +1 @@\n-a\n+b\n",
			key:      "foo.c",
			wantOld:  "foo.c",
			wantType: ChangeChange,
		},
		{
			name:     "added from dev null",
			raw:      "--- /dev/null\n+++ b/new.c\n@@ -0,0 +1 @@\n+a\n",
			key:      "new.c",
			wantType: ChangeAdd,
		},
		{
			name:     "deleted to dev null",
			raw:      "--- a/old.c\n+++ /dev/null\n@@ -1 +0,0 @@\n-a\n",
			key:      "old.c",
			wantOld:  "old.c",
			wantType: ChangeDelete,
		},
		{
			name:     "unpaired prefixes kept",
			raw:      "--- a/foo.c\n+++ c/foo.c\n@@ -1 +1 @@\n-a\n+b\n",
			key:      "c/foo.c",
			wantOld:  "a/foo.c",
			wantType: ChangeChange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := mustGet(t, mustParse(t, tt.raw), tt.key)
			if c.OldPath() != tt.wantOld {
				t.Errorf("OldPath() = %q, want %q", c.OldPath(), tt.wantOld)
			}
			if c.Type() != tt.wantType {
				t.Errorf("Type() = %v, want %v", c.Type(), tt.wantType)
			}
		})
	}
}
