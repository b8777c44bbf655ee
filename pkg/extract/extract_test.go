package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMarkdown = "# Setup\n" +
	"\n" +
	"Install the package first:\n" +
	"\n" +
	"```bash\ngo install ./...\n```\n" +
	"\n" +
	"## Usage\n" +
	"\n" +
	"```go\npackage main\n\nfunc main() {}\n```\n" +
	"\n" +
	"And some closing prose.\n"

func TestCodeBlocks(t *testing.T) {
	blocks, err := CodeBlocks(sampleMarkdown)
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	assert.Equal(t, "bash", blocks[0].Language)
	assert.Equal(t, "go install ./...\n", blocks[0].Code)

	assert.Equal(t, "go", blocks[1].Language)
	assert.Equal(t, "package main\n\nfunc main() {}\n", blocks[1].Code)
}

func TestCodeBlocksNoBlocks(t *testing.T) {
	blocks, err := CodeBlocks("just prose, no code")
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestCodeBlocksEmptyBlock(t *testing.T) {
	blocks, err := CodeBlocks("```go\n```\n")
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "", blocks[0].Code)
}

func TestHeadings(t *testing.T) {
	headings, err := Headings(sampleMarkdown)
	require.NoError(t, err)
	require.Len(t, headings, 2)

	assert.Equal(t, Heading{Level: 1, Text: "Setup"}, headings[0])
	assert.Equal(t, Heading{Level: 2, Text: "Usage"}, headings[1])
}

func TestWriteCodeBlocks(t *testing.T) {
	dir := t.TempDir()
	blocks := []CodeBlock{
		{Language: "go", Code: "package main\n"},
		{Language: "weird-lang", Code: "???\n"},
	}

	paths, err := WriteCodeBlocks(filepath.Join(dir, "export"), blocks)
	require.NoError(t, err)
	require.Len(t, paths, 2)

	assert.Equal(t, "block-001.go", filepath.Base(paths[0]))
	assert.Equal(t, "block-002.txt", filepath.Base(paths[1]))

	content, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(content))
}
