package services

import "boardgame-tracker/models"

// roleSet is an ordered set of role references compared with Ref.Equal, so an
// original role id and a shared role id never collapse into one entry even if
// the raw ids happen to coincide.
type roleSet []models.Ref

func (s roleSet) contains(r models.Ref) bool {
	for _, x := range s {
		if x.Equal(r) {
			return true
		}
	}
	return false
}

// union returns s with every element of o not already present appended.
func (s roleSet) union(o roleSet) roleSet {
	out := append(roleSet(nil), s...)
	for _, r := range o {
		if !out.contains(r) {
			out = append(out, r)
		}
	}
	return out
}

// minus returns the elements of s absent from o.
func (s roleSet) minus(o roleSet) roleSet {
	var out roleSet
	for _, r := range s {
		if !o.contains(r) {
			out = append(out, r)
		}
	}
	return out
}

// intersectAll returns the roles present in every set. No sets means no roles.
func intersectAll(sets []roleSet) roleSet {
	if len(sets) == 0 {
		return nil
	}
	out := append(roleSet(nil), sets[0]...)
	for _, s := range sets[1:] {
		var next roleSet
		for _, r := range out {
			if s.contains(r) {
				next = append(next, r)
			}
		}
		out = next
	}
	return out
}

// firstDuplicate reports the first reference that appears twice.
func firstDuplicate(refs []models.Ref) (models.Ref, bool) {
	for i := range refs {
		for j := i + 1; j < len(refs); j++ {
			if refs[i].Equal(refs[j]) {
				return refs[i], true
			}
		}
	}
	return models.Ref{}, false
}

func originalRoles(ids []string) roleSet {
	out := make(roleSet, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.OriginalRef(id))
	}
	return out
}

func (s roleSet) ids() []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, r.ID)
	}
	return out
}
