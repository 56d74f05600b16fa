package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Faculty is an entry of the authoritative faculty list.
type Faculty struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Faculties is the authoritative list. Users may have registered with the
// code, the display name, "Name (CODE)" or one of the historical aliases.
var Faculties = []Faculty{
	{Code: "FCI", Name: "Faculty of Computing & Informatics"},
	{Code: "FOE", Name: "Faculty of Engineering"},
	{Code: "FET", Name: "Faculty of Engineering & Technology"},
	{Code: "FOM", Name: "Faculty of Management"},
	{Code: "FOB", Name: "Faculty of Business"},
	{Code: "FCM", Name: "Faculty of Creative Multimedia"},
	{Code: "FCA", Name: "Faculty of Cinematic Arts"},
	{Code: "FAC", Name: "Faculty of Applied Communication"},
	{Code: "FIST", Name: "Faculty of Information Science & Technology"},
	{Code: "FOL", Name: "Faculty of Law"},
}

// DefaultFacultyAliases are spellings seen in older registrations.
var DefaultFacultyAliases = map[string][]string{
	"FCI":  {"Faculty of Computing", "Faculty of Computing and Informatics"},
	"FET":  {"Faculty of Engineering and Technology"},
	"FIST": {"Faculty of Information Science and Technology"},
}

// FacultyFilter matches stored faculty values case-insensitively. Exact
// holds lower-cased full spellings; Contains holds lower-cased fragments.
type FacultyFilter struct {
	Label    string
	Exact    []string
	Contains []string
}

// Matches reports whether a stored faculty value belongs to the filter.
func (f FacultyFilter) Matches(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	for _, e := range f.Exact {
		if v == e {
			return true
		}
	}
	for _, c := range f.Contains {
		if strings.Contains(v, c) {
			return true
		}
	}
	return false
}

// FacultyDirectory resolves a faculty identifier to its equivalent spellings.
type FacultyDirectory struct {
	byKey map[string]FacultyFilter
}

// NewFacultyDirectory builds the directory from the authoritative list plus
// aliases keyed by code. Aliases for codes outside the list are rejected.
func NewFacultyDirectory(faculties []Faculty, aliases map[string][]string) (*FacultyDirectory, error) {
	known := make(map[string]Faculty, len(faculties))
	for _, f := range faculties {
		known[strings.ToUpper(f.Code)] = f
	}

	var unknown []string
	for code := range aliases {
		if _, ok := known[strings.ToUpper(code)]; !ok {
			unknown = append(unknown, code)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, Validation("faculty aliases reference unknown codes: %s", strings.Join(unknown, ", "))
	}

	dir := &FacultyDirectory{byKey: make(map[string]FacultyFilter)}
	for code, f := range known {
		filter := FacultyFilter{
			Label: f.Code,
			Exact: []string{
				strings.ToLower(f.Code),
				strings.ToLower(f.Name),
				strings.ToLower(fmt.Sprintf("%s (%s)", f.Name, f.Code)),
			},
			// "(fci)" only; bare names overlap (Engineering vs Engineering & Technology)
			Contains: []string{"(" + strings.ToLower(f.Code) + ")"},
		}
		for c, list := range aliases {
			if strings.ToUpper(c) != code {
				continue
			}
			for _, a := range list {
				filter.Exact = append(filter.Exact, strings.ToLower(strings.TrimSpace(a)))
			}
		}
		dir.byKey[strings.ToLower(f.Code)] = filter
		dir.byKey[strings.ToLower(f.Name)] = filter
	}
	return dir, nil
}

// Resolve returns the filter for a code or display name. Unknown identifiers
// fall back to a literal case-insensitive match.
func (d *FacultyDirectory) Resolve(id string) FacultyFilter {
	key := strings.ToLower(strings.TrimSpace(id))
	if d != nil {
		if f, ok := d.byKey[key]; ok {
			return f
		}
	}
	return FacultyFilter{Label: strings.TrimSpace(id), Exact: []string{key}}
}
