// Package skillpkg handles the generated skill package as a unit: SKILL.md
// frontmatter validation and synthesis, and installation of the file set
// into an agent's skill directory.
package skillpkg

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
	"gopkg.in/yaml.v3"

	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

// Metadata is the YAML frontmatter of a SKILL.md file.
type Metadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// ParseFrontmatter extracts the frontmatter of a SKILL.md document.
func ParseFrontmatter(content []byte) (Metadata, error) {
	md := goldmark.New(
		goldmark.WithExtensions(meta.Meta),
	)

	var buf bytes.Buffer
	pctx := parser.NewContext()
	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return Metadata{}, errors.Wrap(err, "failed to parse markdown")
	}

	metaData := meta.Get(pctx)
	if metaData == nil {
		return Metadata{}, errors.New("missing frontmatter")
	}

	name, _ := metaData["name"].(string)
	description, _ := metaData["description"].(string)
	if name == "" {
		return Metadata{}, errors.New("frontmatter missing name")
	}

	return Metadata{Name: name, Description: description}, nil
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slug derives a directory-safe skill name from free text.
func Slug(text string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(text), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "skill"
	}
	const maxLen = 60
	if len(slug) > maxLen {
		slug = strings.Trim(slug[:maxLen], "-")
	}
	return slug
}

// EnsureFrontmatter returns files with the SKILL.md guaranteed to carry
// valid frontmatter, synthesizing a default block from the capability
// description when the model omitted or mangled it.
func EnsureFrontmatter(files []skill.SkillFile, description string) ([]skill.SkillFile, error) {
	out := append([]skill.SkillFile(nil), files...)
	for i, f := range out {
		if f.Path != skill.SkillFileName {
			continue
		}
		if _, err := ParseFrontmatter([]byte(f.Content)); err == nil {
			return out, nil
		}

		block, err := frontmatterBlock(Metadata{
			Name:        Slug(description),
			Description: strings.TrimSpace(description),
		})
		if err != nil {
			return nil, err
		}
		out[i].Content = block + f.Content
		return out, nil
	}
	return out, errors.Errorf("package has no %s file", skill.SkillFileName)
}

func frontmatterBlock(metadata Metadata) (string, error) {
	encoded, err := yaml.Marshal(metadata)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal frontmatter")
	}
	return fmt.Sprintf("---\n%s---\n\n", encoded), nil
}

// DefaultInstallDir returns the conventional skill directory for a target
// agent. Unknown agents install under the skillforge home.
func DefaultInstallDir(targetAgent string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	switch targetAgent {
	case "claude-code":
		return filepath.Join(home, ".claude", "skills"), nil
	default:
		return filepath.Join(home, ".skillforge", "skills"), nil
	}
}

// Install writes the package under baseDir/<name>/, creating subdirectories
// as needed, and returns the skill directory. File paths must stay inside
// the skill directory; absolute or traversing paths are rejected.
func Install(baseDir, name string, files []skill.SkillFile) (string, error) {
	if len(files) == 0 {
		return "", errors.New("no files to install")
	}

	skillDir := filepath.Join(baseDir, name)
	if err := os.MkdirAll(skillDir, 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create skill directory")
	}

	for _, f := range files {
		cleaned := filepath.Clean(filepath.FromSlash(f.Path))
		if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
			return "", errors.Errorf("unsafe file path: %s", f.Path)
		}

		target := filepath.Join(skillDir, cleaned)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return "", errors.Wrapf(err, "failed to create directory for %s", f.Path)
		}
		if err := os.WriteFile(target, []byte(f.Content), 0o644); err != nil {
			return "", errors.Wrapf(err, "failed to write %s", f.Path)
		}
	}

	return skillDir, nil
}
