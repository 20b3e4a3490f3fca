package profile

import "sort"

// ChangeSet maps the name of each canonical field that differs between a stored
// profile and a freshly-fetched one to its new value. An empty ChangeSet means
// there is no drift.
type ChangeSet map[string]any

// field describes a single canonical profile attribute that participates in
// diffing. Identity (TwitchID) is deliberately absent.
type field struct {
	name string
	get  func(p *Profile) any
}

var diffFields = []field{
	{"loginName", func(p *Profile) any { return p.Login }},
	{"displayName", func(p *Profile) any { return p.DisplayName }},
	{"description", func(p *Profile) any { return p.Description }},
	{"userType", func(p *Profile) any { return p.UserType }},
	{"broadcasterType", func(p *Profile) any { return p.BroadcasterType }},
	{"avatarUrl", func(p *Profile) any { return p.AvatarURL }},
	{"offlineImageUrl", func(p *Profile) any { return p.OfflineImageURL }},
	{"viewCount", func(p *Profile) any { return p.ViewCount }},
}

// Diff compares stored against fresh over every canonical field and returns the new
// value of each field that differs. It has no side effects.
func Diff(stored, fresh *Profile) ChangeSet {
	changes := make(ChangeSet)
	for _, f := range diffFields {
		next := f.get(fresh)
		if f.get(stored) != next {
			changes[f.name] = next
		}
	}
	return changes
}

// Empty reports whether the ChangeSet records no drift
func (c ChangeSet) Empty() bool {
	return len(c) == 0
}

// Previous returns the value that each changed field held in the stored profile
func (c ChangeSet) Previous(stored *Profile) map[string]any {
	previous := make(map[string]any, len(c))
	for _, f := range diffFields {
		if _, ok := c[f.name]; ok {
			previous[f.name] = f.get(stored)
		}
	}
	return previous
}

// Fields returns the names of all changed fields in sorted order
func (c ChangeSet) Fields() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
