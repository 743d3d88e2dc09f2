// Package permission computes the capability set a principal holds over a
// document. It is pure: the result depends only on the input snapshot, so
// calling features can reason about access as invariants instead of
// per-endpoint checks.
package permission

import "labdocs/internal/model"

// Capability is a single action a principal may perform on a document.
type Capability string

const (
	View     Capability = "view"
	Download Capability = "download"
	Edit     Capability = "edit"
	Delete   Capability = "delete"
	Share    Capability = "share"
	Unlink   Capability = "unlink"

	// Restore and PermanentDelete are the privileged pair available to the
	// owner and administrators; PermanentDelete applies from either state,
	// Restore only to trashed documents.
	Restore         Capability = "restore"
	PermanentDelete Capability = "permanent_delete"
)

// Set is the capability set resulting from evaluation.
type Set map[Capability]bool

// Has reports whether the capability is granted.
func (s Set) Has(c Capability) bool { return s[c] }

// Empty reports whether no capability is granted.
func (s Set) Empty() bool {
	for _, v := range s {
		if v {
			return false
		}
	}
	return true
}

// MembershipFunc answers whether a user is an active member (or creator/
// assignee) of a context entity. It is supplied per call by the feature
// that owns the entity; a nil func means no membership information.
type MembershipFunc func(kind model.ContextKind, entityID, userID string) bool

// Input is the snapshot the engine evaluates. Responsible is a fact only
// the calling feature knows (e.g. activity responsible, project creator)
// and only influences Unlink.
type Input struct {
	Doc         *model.Document
	Grants      []model.ShareGrant
	Principal   model.Principal
	Membership  MembershipFunc
	Responsible bool
}

// Compute evaluates every capability independently; a capability is granted
// if any of its rules matches.
func Compute(in Input) Set {
	s := Set{}
	if in.Doc == nil || in.Principal.ID == "" {
		return s
	}

	owner := in.Doc.OwnerID == in.Principal.ID
	admin := in.Principal.Admin()

	// Trashed documents are invisible to everyone but the owner and
	// administrators, who keep just enough to inspect, restore or purge.
	if in.Doc.Trashed() {
		if owner || admin {
			s[View] = true
			s[Restore] = true
			s[PermanentDelete] = true
		}
		return s
	}

	var grant *model.ShareGrant
	for i := range in.Grants {
		if in.Grants[i].DocumentID == in.Doc.ID && in.Grants[i].GranteeID == in.Principal.ID {
			grant = &in.Grants[i]
			break
		}
	}

	view := owner || admin || in.Doc.IsPublic || grant != nil
	if !view && in.Membership != nil {
		for kind, entityID := range in.Doc.Links {
			if in.Membership(kind, entityID, in.Principal.ID) {
				view = true
				break
			}
		}
	}
	s[View] = view
	s[Download] = view

	s[Edit] = owner || admin || (grant != nil && grant.CanEdit)
	s[Delete] = owner || admin || (grant != nil && grant.CanDelete)
	s[Share] = owner || admin
	s[Unlink] = owner || admin || in.Responsible

	s[PermanentDelete] = owner || admin

	return s
}
