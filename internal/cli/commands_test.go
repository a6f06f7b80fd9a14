package cli_test

import (
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/fshandle/internal/cli"
)

func Test_Ls_Lists_Children_Sorted_With_Directory_Suffix(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("b.txt", "b")
	c.WriteFile("a.txt", "a")
	c.WriteFile("sub/inner.txt", "i")

	assert.Equal(t, "a.txt\nb.txt\nsub/", c.MustRun("ls"))
	assert.Equal(t, "inner.txt", c.MustRun("ls", "sub"))
	assert.Equal(t, c.Path("sub/inner.txt"), c.MustRun("ls", "--abs", "sub"))
}

func Test_Ls_Fails_When_Directory_Missing(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	assert.Contains(t, c.MustFail("ls", "missing"), "directory not found")
}

func Test_Cat_Prints_Files_In_Order(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("one.txt", "one\n")
	c.WriteFile("two.txt", "two\n")

	stdout, stderr, code := c.Run("cat", "one.txt", "two.txt")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "one\ntwo\n", stdout)

	assert.Contains(t, c.MustFail("cat", "nope.txt"), "file not found")
	assert.Contains(t, c.MustFail("cat", "."), "path is not a file")
}

func Test_Write_Replaces_Appends_And_Reads_Stdin(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	c.MustRun("write", "note.txt", "hello", "world")
	assert.Equal(t, "hello world", c.ReadFile("note.txt"))

	c.MustRun("write", "--append", "note.txt", "!")
	assert.Equal(t, "hello world!", c.ReadFile("note.txt"))

	c.MustRun("write", "note.txt", "replaced")
	assert.Equal(t, "replaced", c.ReadFile("note.txt"))

	_, stderr, code := c.RunWithInput("piped\ncontent\n", "write", "stdin.txt")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "piped\ncontent\n", c.ReadFile("stdin.txt"))

	c.MustRun("write", "--atomic", "atomic.txt", "all", "or", "nothing")
	assert.Equal(t, "all or nothing", c.ReadFile("atomic.txt"))
}

func Test_Write_Fails_On_Bad_Input(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	assert.Contains(t, c.MustFail("write", "x.txt"), "no text given and no stdin")
	assert.Contains(t, c.MustFail("write", "-a", "--atomic", "x.txt", "t"), "mutually exclusive")
	assert.Contains(t, c.MustFail("write", "missing/x.txt", "t"), "no such file or directory")
	assert.False(t, c.Exists("x.txt"))
}

func Test_Mkdir_Creates_Directories(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	c.MustRun("mkdir", "-p", "a/b/c")
	assert.True(t, c.Exists("a/b/c"))

	// Existing directories are left alone.
	c.MustRun("mkdir", "a")

	assert.Contains(t, c.MustFail("mkdir", "x/y"), "no such file or directory")
	assert.False(t, c.Exists("x"))

	c.WriteFile("file", "f")
	assert.Contains(t, c.MustFail("mkdir", "file"), "path is not a directory")
}

func Test_Rm_Removes_Files_And_Trees(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("a.txt", "a")
	c.WriteFile("tree/sub/deep.txt", "d")
	c.WriteFile("tree/top.txt", "t")

	c.MustRun("rm", "a.txt")
	assert.False(t, c.Exists("a.txt"))

	assert.Contains(t, c.MustFail("rm", "tree"), "directory is not empty")
	assert.True(t, c.Exists("tree/sub/deep.txt"))

	c.MustRun("rm", "-r", "tree")
	assert.False(t, c.Exists("tree"))

	assert.Contains(t, c.MustFail("rm", "a.txt"), "file not found")
}

func Test_Mv_Renames_And_Refuses_Existing_Destination(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("a.txt", "a")
	c.WriteFile("b.txt", "b")

	assert.Contains(t, c.MustFail("mv", "a.txt", "b.txt"), "destination file already exists")
	assert.Equal(t, "b", c.ReadFile("b.txt"))

	c.MustRun("mv", "-f", "a.txt", "b.txt")
	assert.False(t, c.Exists("a.txt"))
	assert.Equal(t, "a", c.ReadFile("b.txt"))

	c.WriteFile("dir/x.txt", "x")
	c.MustRun("mv", "dir", "moved")
	assert.False(t, c.Exists("dir"))
	assert.Equal(t, "x", c.ReadFile("moved/x.txt"))
}

func Test_Cp_Copies_Trees_And_Refuses_Copy_Into_Itself(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("src/a.txt", "a")
	c.WriteFile("src/sub/b.txt", "b")

	c.MustRun("cp", "src", "dst")
	assert.Equal(t, "a", c.ReadFile("dst/a.txt"))
	assert.Equal(t, "b", c.ReadFile("dst/sub/b.txt"))
	assert.Equal(t, "a", c.ReadFile("src/a.txt"))

	assert.Contains(t, c.MustFail("cp", "src", "dst"), "destination directory already exists")
	assert.Contains(t, c.MustFail("cp", "src", "src/inner"), "cannot copy a directory into itself")
	assert.False(t, c.Exists("src/inner"))

	c.WriteFile("src/a.txt", "changed")
	c.MustRun("cp", "-f", "src", "dst")
	assert.Equal(t, "changed", c.ReadFile("dst/a.txt"))

	c.MustRun("cp", "src/a.txt", "single.txt")
	assert.Equal(t, "changed", c.ReadFile("single.txt"))
}

func Test_Stat_Reports_Type_And_Mime(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("img.png", "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	c.WriteFile("dir/x", "x")

	stdout := c.MustRun("stat", "img.png")
	assert.Contains(t, stdout, "path="+c.Path("img.png"))
	assert.Contains(t, stdout, "type=file")
	assert.Contains(t, stdout, "size=16")
	assert.Contains(t, stdout, "mime=image/png")

	stdout = c.MustRun("stat", "dir")
	assert.Contains(t, stdout, "type=directory")
	assert.NotContains(t, stdout, "mime=")

	assert.Contains(t, c.MustFail("stat", "nothing"), "file not found")
}

func Test_Hash_Prints_Stable_Digest_Per_File(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("a.txt", "same")
	c.WriteFile("b.txt", "same")
	c.WriteFile("c.txt", "different")

	lines := strings.Split(c.MustRun("hash", "a.txt", "b.txt", "c.txt"), "\n")
	require.Len(t, lines, 3)

	digest := regexp.MustCompile(`^([0-9a-f]{32})  (\S+)$`)

	sums := make([]string, 0, len(lines))

	for i, line := range lines {
		m := digest.FindStringSubmatch(line)
		require.NotNil(t, m, "line %d: %q", i, line)

		sums = append(sums, m[1])
	}

	assert.Equal(t, sums[0], sums[1])
	assert.NotEqual(t, sums[0], sums[2])
	assert.True(t, strings.HasSuffix(lines[2], "  c.txt"))
}

func Test_Find_Matches_Glob_Recursively(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("img/a.png", "a")
	c.WriteFile("img/thumbs/b.png", "b")
	c.WriteFile("img/c.jpg", "c")
	c.WriteFile("doc.txt", "d")

	assert.Equal(t, "img/a.png\nimg/thumbs/b.png", c.MustRun("find", ".", "**/*.png"))
	assert.Equal(t, "a.png\nc.jpg\nthumbs/", c.MustRun("find", "img", "*"))
	assert.Equal(t, "thumbs/b.png", c.MustRun("find", "--workers", "2", "img", "thumbs/*.png"))

	stdout, stderr, code := c.Run("find", ".", "*.gif")
	require.Equal(t, 0, code, stderr)
	assert.Empty(t, stdout)

	assert.Contains(t, c.MustFail("find", ".", "[unclosed"), "syntax error in pattern")
	assert.Contains(t, c.MustFail("find", "nowhere", "*"), "directory not found")
}

func Test_Run_Prints_Script_Result(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("exports.js", "module.exports = {sum: 1 + 2, names: ['a', 'b']};")
	c.WriteFile("value.js", "'root is ' + root;")
	c.WriteFile("logs.js", "console.log('side', 'effect');")

	assert.JSONEq(t, `{"sum": 3, "names": ["a", "b"]}`, c.MustRun("run", "exports.js"))
	assert.Equal(t, "root is "+c.Dir+string(filepath.Separator), c.MustRun("run", "value.js"))
	assert.Equal(t, "side effect", c.MustRun("run", "logs.js"))
}

func Test_Run_Fails_On_Bad_Scripts(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("script.txt", "1")
	c.WriteFile("throws.js", "throw new Error('boom');")
	c.WriteFile(".fsh.json", `{"script_timeout": "50ms"}`)
	c.WriteFile("spin.js", "while (true) {}")

	assert.Contains(t, c.MustFail("run", "script.txt"), "file extension not allowed")
	assert.Contains(t, c.MustFail("run", "missing.js"), "file not found")
	assert.Contains(t, c.MustFail("run", "throws.js"), "boom")
	assert.Contains(t, c.MustFail("run", "spin.js"), "script interrupted")
}

func Test_Resolve_Substitutes_Aliases(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile(".fsh.json", `{"aliases": {"uploads": "user/uploads", "up": "short"}}`)

	stdout := c.MustRun("resolve", "{uploads}/a.png", "{up}/b", "{unknown}/c", "plain.txt")

	want := strings.Join([]string{
		c.Path("user/uploads/a.png"),
		c.Path("short/b"),
		c.Path("{unknown}/c"),
		c.Path("plain.txt"),
	}, "\n")

	assert.Equal(t, want, stdout)
}

func Test_Shell_Runs_Commands_Until_Exit(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	script := strings.Join([]string{
		"# comments and blank lines are skipped",
		"",
		"mkdir -p a/b",
		"write a/note.txt hi",
		"ls a",
		"bogus",
		"shell",
		"write a/empty.txt",
		"exit",
		"ls",
	}, "\n")

	stdout, stderr, code := c.RunWithInput(script, "shell")
	require.Equal(t, 0, code, stderr)

	assert.Equal(t, "b/\nnote.txt\n", stdout)
	assert.Equal(t, "hi", c.ReadFile("a/note.txt"))
	assert.False(t, c.Exists("a/empty.txt"))

	assert.Contains(t, stderr, "unknown command: bogus")
	assert.Contains(t, stderr, "already in a shell")
	assert.Contains(t, stderr, "no text given and no stdin")
}

func Test_Shell_Help_And_End_Of_Input(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	stdout, stderr, code := c.RunWithInput("help\n", "shell")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Commands:")

	stdout, _, code = c.Run("shell")
	require.Equal(t, 0, code)
	assert.Empty(t, stdout)
}
