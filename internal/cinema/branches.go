package cinema

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

var branches = map[string]int{
	"Ayalon":          1025,
	"Haifa":           1070,
	"Rishon LeZion":   1072,
	"Jerusalem":       1073,
	"Be'er Sheva":     1074,
	"Zikhron Ya'akov": 1075,
}

// Branch is a named cinema location and its feed code.
type Branch struct {
	Name string
	Code int
}

// Branches returns the known cinema branches sorted by name.
func Branches() []Branch {
	out := make([]Branch, 0, len(branches))
	for name, code := range branches {
		out = append(out, Branch{Name: name, Code: code})
	}
	slices.SortFunc(out, func(a, b Branch) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// LookupBranch resolves a branch by name (case-insensitive) or numeric code.
func LookupBranch(value string) (Branch, error) {
	value = strings.TrimSpace(value)
	if code, err := strconv.Atoi(value); err == nil {
		for name, known := range branches {
			if known == code {
				return Branch{Name: name, Code: code}, nil
			}
		}
		return Branch{}, fmt.Errorf("unknown cinema code %d", code)
	}
	for name, code := range branches {
		if strings.EqualFold(name, value) {
			return Branch{Name: name, Code: code}, nil
		}
	}
	return Branch{}, fmt.Errorf("unknown cinema %q", value)
}
