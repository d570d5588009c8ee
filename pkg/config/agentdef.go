package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// AgentDefinition is one parsed agent definition file: YAML
// front-matter plus Markdown level-2 sections.
type AgentDefinition struct {
	Name         string
	DisplayName  string
	Model        string
	Role         string
	Instruction  string
	OutputFormat string
	FocusAreas   []string
	Skills       []SkillDefinition
}

// SkillDefinition is one parsed skill definition file.
type SkillDefinition struct {
	Name        string
	Description string
	Content     string
}

// frontMatter mirrors the YAML keys of an agent definition file.
type frontMatter struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Model       string   `yaml:"model"`
	Skills      []string `yaml:"skills"`
}

// GenericFocusArea labels agents whose definition declares no focus
// areas.
const GenericFocusArea = "General code quality"

var ErrNoFrontMatter = fmt.Errorf("definition file has no front-matter block")

// LoadAgentDefinitions parses every *.md file in agentsDir. Skill
// references are resolved against skillsDir; a missing skill file fails
// the referencing agent. Definitions are returned sorted by file name
// so run order is deterministic.
func LoadAgentDefinitions(agentsDir, skillsDir, defaultOutputFormat string) ([]AgentDefinition, error) {
	entries, err := os.ReadDir(agentsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read agents directory %s: %w", agentsDir, err)
	}

	skills, err := loadSkillDefinitions(skillsDir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	defs := make([]AgentDefinition, 0, len(names))
	for _, name := range names {
		path := filepath.Join(agentsDir, name)
		def, err := parseAgentDefinition(path, defaultOutputFormat)
		if err != nil {
			return nil, fmt.Errorf("agent definition %s: %w", path, err)
		}
		for _, ref := range def.skillRefs {
			skill, ok := skills[ref]
			if !ok {
				return nil, fmt.Errorf("agent definition %s references unknown skill %q", path, ref)
			}
			def.Skills = append(def.Skills, skill)
		}
		defs = append(defs, def.AgentDefinition)
		slog.Debug("Loaded agent definition",
			"file", name, "agent", def.Name, "skills", len(def.Skills))
	}
	return defs, nil
}

type parsedAgent struct {
	AgentDefinition
	skillRefs []string
}

func parseAgentDefinition(path, defaultOutputFormat string) (*parsedAgent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	fm, body, err := splitFrontMatter(string(data))
	if err != nil {
		return nil, err
	}
	var meta frontMatter
	if err := yaml.Unmarshal([]byte(fm), &meta); err != nil {
		return nil, fmt.Errorf("invalid front-matter: %w", err)
	}
	if meta.Name == "" {
		return nil, fmt.Errorf("front-matter is missing required key: name")
	}

	sections := splitSections(body)

	role := sections["Role"]
	if strings.TrimSpace(role) == "" {
		// Definitions without an explicit role use the whole body.
		role = body
	}

	outputFormat := normalizeOutputFormat(sections["Output Format"], defaultOutputFormat)

	focusAreas := parseBulletList(sections["Focus Areas"])
	if len(focusAreas) == 0 {
		focusAreas = []string{GenericFocusArea}
	}

	return &parsedAgent{
		AgentDefinition: AgentDefinition{
			Name:         meta.Name,
			DisplayName:  meta.Description,
			Model:        meta.Model,
			Role:         strings.TrimSpace(role),
			Instruction:  strings.TrimSpace(sections["Instruction"]),
			OutputFormat: outputFormat,
			FocusAreas:   focusAreas,
		},
		skillRefs: meta.Skills,
	}, nil
}

func loadSkillDefinitions(dir string) (map[string]SkillDefinition, error) {
	skills := make(map[string]SkillDefinition)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return skills, nil
		}
		return nil, fmt.Errorf("failed to read skills directory %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read skill %s: %w", path, err)
		}
		fm, body, err := splitFrontMatter(string(data))
		if err != nil {
			return nil, fmt.Errorf("skill definition %s: %w", path, err)
		}
		var meta frontMatter
		if err := yaml.Unmarshal([]byte(fm), &meta); err != nil {
			return nil, fmt.Errorf("skill definition %s: invalid front-matter: %w", path, err)
		}
		if meta.Name == "" {
			return nil, fmt.Errorf("skill definition %s: front-matter is missing required key: name", path)
		}
		skills[meta.Name] = SkillDefinition{
			Name:        meta.Name,
			Description: meta.Description,
			Content:     strings.TrimSpace(body),
		}
	}
	return skills, nil
}

// splitFrontMatter separates the leading "---" delimited YAML block
// from the Markdown body.
func splitFrontMatter(content string) (frontMatter, body string, err error) {
	trimmed := strings.TrimLeft(content, "\uFEFF\n\r ")
	if !strings.HasPrefix(trimmed, "---") {
		return "", "", ErrNoFrontMatter
	}
	rest := trimmed[len("---"):]
	idx := strings.Index(rest, "\n---")
	if idx < 0 {
		return "", "", fmt.Errorf("front-matter block is not terminated")
	}
	fm := rest[:idx]
	body = rest[idx+len("\n---"):]
	if nl := strings.Index(body, "\n"); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = ""
	}
	return fm, body, nil
}

var sectionHeading = regexp.MustCompile(`(?m)^##\s+(.+?)\s*$`)

// splitSections maps level-2 heading titles to their section bodies.
func splitSections(body string) map[string]string {
	sections := make(map[string]string)
	matches := sectionHeading.FindAllStringSubmatchIndex(body, -1)
	for i, m := range matches {
		title := body[m[2]:m[3]]
		start := m[1]
		end := len(body)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		sections[title] = strings.TrimSpace(body[start:end])
	}
	return sections
}

var bulletItem = regexp.MustCompile(`(?m)^\s*[-*]\s+(.+?)\s*$`)

func parseBulletList(section string) []string {
	matches := bulletItem.FindAllStringSubmatch(section, -1)
	items := make([]string, 0, len(matches))
	for _, m := range matches {
		items = append(items, m[1])
	}
	return items
}

// builtinOutputFormat is the fallback findings format when neither the
// definition nor the configuration provides one. Finding tables use the
// canonical Japanese field headers consumed by the merger.
const builtinOutputFormat = `## Output Format

Report each finding as a numbered level-3 section:

### <N>. <Title>

| Item | Value |
|------|-------|
| **Priority** | Critical|High|Medium|Low |
| **指摘の概要** | <summary> |
| **該当箇所** | <location> |

**推奨対応** <recommended action>
**効果** <expected effect>

Separate findings with ` + "`---`" + `. If the review finds nothing, write the single line 指摘事項なし.`

// normalizeOutputFormat guarantees the output format starts with a
// level-2 heading.
func normalizeOutputFormat(section, configured string) string {
	format := strings.TrimSpace(section)
	if format == "" {
		format = strings.TrimSpace(configured)
	}
	if format == "" {
		return builtinOutputFormat
	}
	if strings.HasPrefix(format, "## ") {
		return format
	}
	return "## Output Format\n\n" + format
}
