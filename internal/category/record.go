package category

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RecordFileName is the metadata record kept in every category folder.
const RecordFileName = ".category_info.md"

// TimeLayout is the timestamp layout used inside metadata records.
const TimeLayout = "2006-01-02 15:04:05"

// Tier classifies a category.
type Tier string

const (
	TierCore     Tier = "Core"
	TierSpecial  Tier = "Special"
	TierExtended Tier = "Extended"
)

// Record is the frontmatter of a category metadata record.
type Record struct {
	Category    string `yaml:"category"`
	Description string `yaml:"description"`
	Tier        Tier   `yaml:"tier"`
	Created     string `yaml:"created"`
	LastUpdated string `yaml:"last_updated"`
}

var lastUpdatedLine = regexp.MustCompile(`Last Updated: .*`)

// ToMarkdown renders the record as YAML frontmatter followed by a readable body.
func (r *Record) ToMarkdown() (string, error) {
	var buf bytes.Buffer

	buf.WriteString("---\n")
	data, err := yaml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to marshal frontmatter: %w", err)
	}
	buf.Write(data)
	buf.WriteString("---\n\n")

	fmt.Fprintf(&buf, "# %s\n\n", r.Category)
	fmt.Fprintf(&buf, "%s\n\n", r.Description)
	buf.WriteString("## Metadata\n\n")
	fmt.Fprintf(&buf, "* Type: %s\n", r.Tier)
	fmt.Fprintf(&buf, "* Created: %s\n", r.Created)
	fmt.Fprintf(&buf, "* Last Updated: %s\n", r.LastUpdated)

	return buf.String(), nil
}

// ParseRecord parses a metadata record. Records written before frontmatter
// was introduced return a nil Record and no error.
func ParseRecord(content string) (*Record, error) {
	frontmatter, _, err := splitFrontmatter(content)
	if err != nil {
		return nil, err
	}
	if frontmatter == "" {
		return nil, nil
	}

	var r Record
	if err := yaml.Unmarshal([]byte(frontmatter), &r); err != nil {
		return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
	}
	return &r, nil
}

// touch returns content with its last-updated timestamp set to now. Only the
// timestamp changes; everything else in the record is preserved.
func touch(content string, now time.Time) (string, error) {
	stamp := now.Format(TimeLayout)

	record, err := ParseRecord(content)
	if err != nil {
		return "", err
	}
	if record == nil {
		if lastUpdatedLine.MatchString(content) {
			return lastUpdatedLine.ReplaceAllString(content, "Last Updated: "+stamp), nil
		}
		if !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		return content + "Last Updated: " + stamp + "\n", nil
	}

	record.LastUpdated = stamp
	_, body, err := splitFrontmatter(content)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	data, err := yaml.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to marshal frontmatter: %w", err)
	}
	buf.Write(data)
	buf.WriteString("---\n")
	buf.WriteString(lastUpdatedLine.ReplaceAllString(body, "Last Updated: "+stamp))
	return buf.String(), nil
}

// splitFrontmatter splits content into frontmatter and body. Content without
// a leading delimiter has no frontmatter.
func splitFrontmatter(content string) (string, string, error) {
	if !strings.HasPrefix(content, "---\n") {
		return "", content, nil
	}

	rest := content[len("---\n"):]
	end := strings.Index(rest, "\n---\n")
	if end == -1 {
		if strings.HasSuffix(rest, "\n---") {
			return rest[:len(rest)-len("\n---")], "", nil
		}
		return "", content, fmt.Errorf("frontmatter not properly closed")
	}

	return rest[:end], rest[end+len("\n---\n"):], nil
}
