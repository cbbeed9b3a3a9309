package skillpkg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

func TestParseFrontmatter(t *testing.T) {
	content := `---
name: changelog-writer
description: Keeps CHANGELOG.md up to date
---

# Changelog Writer
`
	metadata, err := ParseFrontmatter([]byte(content))
	require.NoError(t, err)
	assert.Equal(t, "changelog-writer", metadata.Name)
	assert.Equal(t, "Keeps CHANGELOG.md up to date", metadata.Description)
}

func TestParseFrontmatterMissing(t *testing.T) {
	_, err := ParseFrontmatter([]byte("# Just a heading\n"))
	assert.Error(t, err)
}

func TestParseFrontmatterMissingName(t *testing.T) {
	_, err := ParseFrontmatter([]byte("---\ndescription: no name here\n---\n\n# Body\n"))
	assert.Error(t, err)
}

func TestSlug(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Monitor a website for changes", "monitor-a-website-for-changes"},
		{"  PR Review!!  ", "pr-review"},
		{"___", "skill"},
		{"", "skill"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, Slug(tc.input), "input: %q", tc.input)
	}
}

func TestEnsureFrontmatterKeepsValid(t *testing.T) {
	files := []skill.SkillFile{{
		Path:    "SKILL.md",
		Content: "---\nname: my-skill\n---\n\n# My Skill\n",
	}}
	out, err := EnsureFrontmatter(files, "a skill")
	require.NoError(t, err)
	assert.Equal(t, files[0].Content, out[0].Content)
}

func TestEnsureFrontmatterSynthesizes(t *testing.T) {
	files := []skill.SkillFile{{
		Path:    "SKILL.md",
		Content: "# My Skill\n\nInstructions.\n",
	}}
	out, err := EnsureFrontmatter(files, "Monitor a website for changes")
	require.NoError(t, err)

	metadata, err := ParseFrontmatter([]byte(out[0].Content))
	require.NoError(t, err)
	assert.Equal(t, "monitor-a-website-for-changes", metadata.Name)
	assert.Contains(t, out[0].Content, "# My Skill")
}

func TestEnsureFrontmatterNoSkillFile(t *testing.T) {
	_, err := EnsureFrontmatter([]skill.SkillFile{{Path: "scripts/run.sh", Content: "#!/bin/sh"}}, "x")
	assert.Error(t, err)
}

func TestInstall(t *testing.T) {
	baseDir := t.TempDir()
	files := []skill.SkillFile{
		{Path: "SKILL.md", Content: "---\nname: monitor\n---\n\n# Monitor\n"},
		{Path: "scripts/check.sh", Content: "#!/bin/sh\ncurl -s https://example.com\n"},
	}

	skillDir, err := Install(baseDir, "monitor", files)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(baseDir, "monitor"), skillDir)

	data, err := os.ReadFile(filepath.Join(skillDir, "SKILL.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Monitor")

	data, err = os.ReadFile(filepath.Join(skillDir, "scripts", "check.sh"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "curl")
}

func TestInstallRejectsUnsafePaths(t *testing.T) {
	baseDir := t.TempDir()

	_, err := Install(baseDir, "evil", []skill.SkillFile{{Path: "../outside.md", Content: "x"}})
	assert.Error(t, err)

	_, err = Install(baseDir, "evil", []skill.SkillFile{{Path: "/etc/passwd", Content: "x"}})
	assert.Error(t, err)
}

func TestInstallEmpty(t *testing.T) {
	_, err := Install(t.TempDir(), "empty", nil)
	assert.Error(t, err)
}
