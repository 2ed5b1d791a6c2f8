package entity

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// TagList is an ordered list of free-text tags. Storage uses a comma-joined
// string; the delimiter never leaks past the Scan/Value boundary.
type TagList []string

var _ driver.Valuer = TagList(nil)

// Value joins the tags for storage, dropping empty entries.
func (t TagList) Value() (driver.Value, error) {
	if len(t) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(t))
	for _, tag := range t {
		if tag = strings.TrimSpace(tag); tag != "" {
			parts = append(parts, tag)
		}
	}
	return strings.Join(parts, ","), nil
}

// Scan splits a stored comma-joined string back into an ordered list.
func (t *TagList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = nil
		return nil
	case string:
		*t = ParseTags(v)
		return nil
	case []byte:
		*t = ParseTags(string(v))
		return nil
	default:
		return fmt.Errorf("unsupported tags column type %T", src)
	}
}

// ParseTags splits a delimited tag string, trimming whitespace and
// filtering empty segments while preserving order.
func ParseTags(s string) TagList {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make(TagList, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			tags = append(tags, part)
		}
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}
