package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// TagSet is an unordered set of tags compared case-insensitively.
// The first spelling added wins.
type TagSet struct {
	items map[string]string // lowercased -> original spelling
}

// NewTagSet builds a set from tags, dropping blanks and case-duplicates.
func NewTagSet(tags ...string) TagSet {
	var s TagSet
	s.Add(tags...)
	return s
}

func (s *TagSet) Add(tags ...string) {
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if s.items == nil {
			s.items = make(map[string]string)
		}
		key := strings.ToLower(t)
		if _, ok := s.items[key]; !ok {
			s.items[key] = t
		}
	}
}

func (s TagSet) Has(tag string) bool {
	_, ok := s.items[strings.ToLower(strings.TrimSpace(tag))]
	return ok
}

func (s TagSet) Len() int { return len(s.items) }

// Slice returns the tags sorted case-insensitively.
func (s TagSet) Slice() []string {
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = s.items[k]
	}
	return out
}

// Equal reports whether both sets hold the same tags, ignoring case.
func (s TagSet) Equal(o TagSet) bool {
	if len(s.items) != len(o.items) {
		return false
	}
	for k := range s.items {
		if _, ok := o.items[k]; !ok {
			return false
		}
	}
	return true
}

func (s TagSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

func (s *TagSet) UnmarshalJSON(b []byte) error {
	var tags []string
	if err := json.Unmarshal(b, &tags); err != nil {
		return err
	}
	*s = NewTagSet(tags...)
	return nil
}

// Value encodes the set as a JSON array for storage.
func (s TagSet) Value() (driver.Value, error) {
	b, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *TagSet) Scan(src any) error {
	raw, err := scanText(src)
	if err != nil {
		return fmt.Errorf("tag set: %w", err)
	}
	if raw == "" {
		*s = TagSet{}
		return nil
	}
	return s.UnmarshalJSON([]byte(raw))
}

// StringList is an ordered list of strings, such as match patterns.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(src any) error {
	raw, err := scanText(src)
	if err != nil {
		return fmt.Errorf("string list: %w", err)
	}
	if raw == "" {
		*l = nil
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return fmt.Errorf("string list: %w", err)
	}
	*l = items
	return nil
}

func scanText(src any) (string, error) {
	switch v := src.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("unsupported column type %T", src)
	}
}
