package gitcore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	out := "## main...origin/main [ahead 1]\n" +
		"M  staged.go\n" +
		" M unstaged.go\n" +
		"MM both.go\n" +
		"R  old.go -> new.go\n" +
		"?? \"with space.txt\"\n" +
		"?? notes.md\n"

	status := parseStatus(out)
	assert.Equal(t, "main", status.BranchName)
	assert.Equal(t, []GitFileStatus{
		{Path: "staged.go", Status: "M"},
		{Path: "unstaged.go", Status: "M"},
		{Path: "both.go", Status: "M"},
		{Path: "new.go", Status: "R"},
		{Path: "with space.txt", Status: "A"},
		{Path: "notes.md", Status: "A"},
	}, status.Files)
	assert.Equal(t, []GitFileStatus{
		{Path: "staged.go", Status: "M"},
		{Path: "both.go", Status: "M"},
		{Path: "new.go", Status: "R"},
	}, status.StagedFiles)
	assert.Len(t, status.UnstagedFiles, 4)
}

func TestParseStatusEmpty(t *testing.T) {
	status := parseStatus("")
	assert.NotNil(t, status.Files)
	assert.NotNil(t, status.StagedFiles)
	assert.NotNil(t, status.UnstagedFiles)
	assert.Empty(t, status.BranchName)
}

func TestParseBranchHeader(t *testing.T) {
	tests := []struct{ header, want string }{
		{"main", "main"},
		{"main...origin/main", "main"},
		{"feature/x...origin/feature/x [behind 2]", "feature/x"},
		{"No commits yet on trunk", "trunk"},
		{"Initial commit on master", "master"},
		{"HEAD (no branch)", "HEAD"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseBranchHeader(tt.header), tt.header)
	}
}

func TestParseLog(t *testing.T) {
	out := "abc\x1fFix bug\x1fAda\x1f1700000000\n" +
		"def\x1fAdd feature\x1fGrace\x1f1700000100\n" +
		"garbage line\n"
	entries := parseLog(out)
	require.Len(t, entries, 2)
	assert.Equal(t, GitLogEntry{Sha: "abc", Summary: "Fix bug", Author: "Ada", Timestamp: 1700000000}, entries[0])
	assert.Equal(t, "Grace", entries[1].Author)

	assert.NotNil(t, parseLog(""))
}

func TestSplitUnifiedDiff(t *testing.T) {
	patch := "diff --git a/main.go b/main.go\n" +
		"index 1..2 100644\n" +
		"--- a/main.go\n+++ b/main.go\n@@ -1 +1 @@\n-a\n+b\n" +
		"diff --git a/new.txt b/new.txt\n" +
		"new file mode 100644\n" +
		"--- /dev/null\n+++ b/new.txt\n@@ -0,0 +1 @@\n+hi\n" +
		"diff --git a/gone.txt b/gone.txt\n" +
		"deleted file mode 100644\n" +
		"diff --git a/a.txt b/b.txt\n" +
		"similarity index 100%\nrename from a.txt\nrename to b.txt\n"

	diffs := splitUnifiedDiff(patch)
	require.Len(t, diffs, 4)
	assert.Equal(t, "main.go", diffs[0].Path)
	assert.Equal(t, "M", diffs[0].Status)
	assert.Contains(t, diffs[0].Diff, "+b\n")
	assert.NotContains(t, diffs[0].Diff, "new.txt")
	assert.Equal(t, "A", diffs[1].Status)
	assert.Equal(t, "D", diffs[2].Status)
	assert.Equal(t, "b.txt", diffs[3].Path)
	assert.Equal(t, "R", diffs[3].Status)

	assert.Empty(t, splitUnifiedDiff(""))
}

func TestValidateRef(t *testing.T) {
	assert.NoError(t, validateRef("branch", "feature/x"))
	assert.ErrorContains(t, validateRef("branch", "  "), "branch is required")
	assert.ErrorContains(t, validateRef("sha", "--output=/tmp/x"), "invalid sha")
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "Add docs/guide.md", summarize([]changedFile{{path: "docs/guide.md", status: "A"}}))

	msg := summarize([]changedFile{
		{path: "internal/api/a.go", status: "M", additions: 3, deletions: 1},
		{path: "internal/api/b.go", status: "M", additions: 1},
	})
	assert.Equal(t, "Update 2 files in internal/api\n\n"+
		"- Update internal/api/a.go (+3 -1)\n"+
		"- Update internal/api/b.go (+1 -0)", msg)

	msg = summarize([]changedFile{
		{path: "a.go", status: "A"},
		{path: "cmd/b.go", status: "D"},
	})
	assert.Contains(t, msg, "Update 2 files\n")
}

func TestParseNumstat(t *testing.T) {
	out := "3\t1\tmain.go\n" +
		"2\t0\tsrc/{a => b}.go\n" +
		"0\t0\t{old => new}/file.txt\n" +
		"1\t1\tdir/{ => sub}/x.go\n" +
		"4\t2\tdir/{sub => }/y.go\n" +
		"5\t0\tnotes.md => docs/notes.md\n" +
		"-\t-\tlogo.png\n"

	assert.Equal(t, map[string][2]int{
		"main.go":       {3, 1},
		"src/b.go":      {2, 0},
		"new/file.txt":  {0, 0},
		"dir/sub/x.go":  {1, 1},
		"dir/y.go":      {4, 2},
		"docs/notes.md": {5, 0},
		"logo.png":      {0, 0},
	}, parseNumstat(out))
}

func TestCountLines(t *testing.T) {
	assert.Equal(t, 0, countLines(nil))
	assert.Equal(t, 1, countLines([]byte("one")))
	assert.Equal(t, 2, countLines([]byte("one\ntwo\n")))
	assert.Equal(t, 3, countLines([]byte("one\n\nthree")))
}

func TestCommonDir(t *testing.T) {
	assert.Equal(t, "internal", commonDir([]changedFile{{path: "internal/a/x.go"}, {path: "internal/b/y.go"}}))
	assert.Equal(t, "", commonDir([]changedFile{{path: "a.go"}, {path: "b/c.go"}}))
	assert.Equal(t, "pkg/sub", commonDir([]changedFile{{path: "pkg/sub/x.go"}}))
}

func TestTemplatePrefix(t *testing.T) {
	home := t.TempDir()
	s := &Service{codexHome: home}
	assert.Equal(t, "", s.templatePrefix())

	file := filepath.Join(home, commitTemplateFile)
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0755))
	require.NoError(t, os.WriteFile(file, []byte("\n  chore:  \nignored\n"), 0644))
	assert.Equal(t, "chore: ", s.templatePrefix())

	assert.Equal(t, "", (&Service{}).templatePrefix())
}

func TestCommandError(t *testing.T) {
	err := &commandError{name: "git", args: []string{"push"}, exitCode: 1, stderr: "rejected"}
	assert.Equal(t, "git push failed: rejected", err.Error())

	err = &commandError{name: "gh", exitCode: 4}
	assert.Equal(t, "gh failed with exit code 4", err.Error())
}
