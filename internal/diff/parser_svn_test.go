package diff

import "testing"

func TestParse_SVNBinaryAdd(t *testing.T) {
	raw := `Index: logo.png
===================================================================
Cannot display: file marked as a binary type.
svn:mime-type = application/octet-stream

Property changes on: logo.png
___________________________________________________________________
Added: svn:mime-type
   + application/octet-stream

`
	cs := mustParse(t, raw)

	if cs.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", cs.Len())
	}
	c := mustGet(t, cs, "logo.png")
	if c.FileType() != FileBinary {
		t.Errorf("FileType() = %v, want binary", c.FileType())
	}
	if len(c.Hunks()) != 0 {
		t.Errorf("got %d hunks, want 0", len(c.Hunks()))
	}
	if mime, _ := c.NewProperties().Get("svn:mime-type"); mime != "application/octet-stream" {
		t.Errorf("svn:mime-type = %q, want application/octet-stream", mime)
	}
}

func TestParse_SVNImageMimeType(t *testing.T) {
	raw := `Property changes on: photo.jpg
___________________________________________________________________
Added: svn:mime-type
## -0,0 +1 ##
+image/jpeg
\ No newline at end of property
`
	c := mustGet(t, mustParse(t, raw), "photo.jpg")
	if c.FileType() != FileImage {
		t.Errorf("FileType() = %v, want image", c.FileType())
	}
}

func TestParse_SVNAddAndDelete(t *testing.T) {
	raw := `Index: new.txt
===================================================================
--- new.txt	(revision 0)
+++ new.txt	(working copy)
@@ -0,0 +1,2 @@
+one
+two
Index: gone.txt
===================================================================
--- gone.txt	(revision 3)
+++ gone.txt	(nonexistent)
@@ -1 +0,0 @@
-bye
`
	cs := mustParse(t, raw)

	added := mustGet(t, cs, "new.txt")
	if added.Type() != ChangeAdd {
		t.Errorf("new.txt type = %v, want add", added.Type())
	}
	if added.OldPath() != "" {
		t.Errorf("new.txt OldPath() = %q, want empty", added.OldPath())
	}
	if h := added.Hunks(); len(h) != 1 || h[0].AddLines() != 2 {
		t.Errorf("new.txt hunks = %+v", h)
	}

	deleted := mustGet(t, cs, "gone.txt")
	if deleted.Type() != ChangeDelete {
		t.Errorf("gone.txt type = %v, want delete", deleted.Type())
	}
}

func TestParse_SVN17PropertyOnlyChange(t *testing.T) {
	raw := `Index: script.sh
===================================================================
--- script.sh	(revision 5)
+++ script.sh	(working copy)

Property changes on: script.sh
___________________________________________________________________
Added: svn:executable
## -0,0 +1 ##
+*
\ No newline at end of property
`
	cs := mustParse(t, raw)

	if cs.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", cs.Len())
	}
	c := mustGet(t, cs, "script.sh")
	if v, _ := c.NewProperties().Get("svn:executable"); v != "*" {
		t.Errorf("svn:executable = %q, want *", v)
	}
	if c.OldProperties().Len() != 0 {
		t.Errorf("old properties = %v, want none", c.OldProperties().Map())
	}
}

func TestParse_SVN16PropertyBlocks(t *testing.T) {
	raw := `Property changes on: dir
___________________________________________________________________
Modified: svn:ignore
   - *.o

   + *.o
*.a

Deleted: svn:keywords
   - Id
Added: svn:mergeinfo
   Merged /trunk:r10-20
Name: svn:eol-style
   + native

`
	c := mustGet(t, mustParse(t, raw), "dir")

	if v, _ := c.OldProperties().Get("svn:ignore"); v != "*.o" {
		t.Errorf("old svn:ignore = %q, want %q", v, "*.o")
	}
	if v, _ := c.NewProperties().Get("svn:ignore"); v != "*.o\n*.a" {
		t.Errorf("new svn:ignore = %q, want %q", v, "*.o\n*.a")
	}
	if v, _ := c.OldProperties().Get("svn:keywords"); v != "Id" {
		t.Errorf("old svn:keywords = %q, want Id", v)
	}
	if _, ok := c.NewProperties().Get("svn:keywords"); ok {
		t.Error("deleted property should have no new value")
	}
	if _, ok := c.NewProperties().Get("svn:mergeinfo"); ok {
		t.Error("mergeinfo summaries should not become property values")
	}
	if v, _ := c.NewProperties().Get("svn:eol-style"); v != "native" {
		t.Errorf("svn:eol-style = %q, want native", v)
	}
}

func TestParse_SVNContentThenProperties(t *testing.T) {
	raw := `Index: main.c
===================================================================
--- main.c	(revision 7)
+++ main.c	(working copy)
@@ -1,2 +1,2 @@
 int main() {
-  return 1;
+  return 0;

Property changes on: main.c
___________________________________________________________________
Added: svn:eol-style
   + native

`
	c := mustGet(t, mustParse(t, raw), "main.c")

	if len(c.Hunks()) != 1 {
		t.Errorf("got %d hunks, want 1", len(c.Hunks()))
	}
	if v, _ := c.NewProperties().Get("svn:eol-style"); v != "native" {
		t.Errorf("svn:eol-style = %q, want native", v)
	}
}

func TestParse_SVNPropertyErrors(t *testing.T) {
	tests := map[string]string{
		"missing divider": "Property changes on: x\nnot underscores\n",
		"unknown op":      "Property changes on: x\n____\nRenamed: svn:foo\n",
		"plus in delete":  "Property changes on: x\n____\nDeleted: svn:foo\n   + bar\n",
		"minus in add":    "Property changes on: x\n____\nAdded: svn:foo\n   - bar\n",
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse(raw); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestParse_SvnlookCopied(t *testing.T) {
	raw := `Copied: branches/b/file.txt (from rev 10, trunk/file.txt)

Modified: trunk/other.txt
===================================================================
--- trunk/other.txt	2024-01-01 00:00:00 UTC (rev 10)
+++ trunk/other.txt	2024-01-02 00:00:00 UTC (txn 11-b)
@@ -1 +1 @@
-a
+b
`
	cs := mustParse(t, raw)

	copied := mustGet(t, cs, "branches/b/file.txt")
	if copied.Type() != ChangeCopyHere || copied.OldPath() != "trunk/file.txt" {
		t.Errorf("copy: type %v, old path %q", copied.Type(), copied.OldPath())
	}
	src := mustGet(t, cs, "trunk/file.txt")
	if src.Type() != ChangeCopyAway {
		t.Errorf("source type = %v, want copy_away", src.Type())
	}

	other := mustGet(t, cs, "trunk/other.txt")
	if len(other.Hunks()) != 1 {
		t.Errorf("other.txt: %d hunks, want 1", len(other.Hunks()))
	}
}
