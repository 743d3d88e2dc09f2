package permission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"labdocs/internal/model"
)

const (
	ownerID   = "owner-1"
	adminID   = "admin-1"
	userID    = "user-1"
	strangerID = "stranger-1"
)

func activeDoc() *model.Document {
	return &model.Document{
		ID:      "doc-1",
		OwnerID: ownerID,
		State:   model.StateActive,
	}
}

func trashedDoc() *model.Document {
	now := time.Now().UTC()
	d := activeDoc()
	d.State = model.StateTrashed
	d.DeletedAt = &now
	return d
}

func grant(grantee string, canEdit, canDelete bool) model.ShareGrant {
	return model.ShareGrant{DocumentID: "doc-1", GranteeID: grantee, CanEdit: canEdit, CanDelete: canDelete}
}

func TestComputeOwner(t *testing.T) {
	s := Compute(Input{Doc: activeDoc(), Principal: model.Principal{ID: ownerID, Role: model.RoleUser}})

	for _, c := range []Capability{View, Download, Edit, Delete, Share, Unlink, PermanentDelete} {
		assert.True(t, s.Has(c), "owner should hold %s", c)
	}
	assert.False(t, s.Has(Restore), "restore only applies to trashed documents")
}

func TestComputeAdmin(t *testing.T) {
	s := Compute(Input{Doc: activeDoc(), Principal: model.Principal{ID: adminID, Role: model.RoleAdmin}})

	for _, c := range []Capability{View, Download, Edit, Delete, Share, Unlink, PermanentDelete} {
		assert.True(t, s.Has(c), "admin should hold %s", c)
	}
}

func TestComputeStranger(t *testing.T) {
	s := Compute(Input{Doc: activeDoc(), Principal: model.Principal{ID: strangerID, Role: model.RoleUser}})
	assert.True(t, s.Empty())
}

func TestComputePublicDocument(t *testing.T) {
	d := activeDoc()
	d.IsPublic = true

	s := Compute(Input{Doc: d, Principal: model.Principal{ID: strangerID, Role: model.RoleUser}})

	assert.True(t, s.Has(View))
	assert.True(t, s.Has(Download))
	assert.False(t, s.Has(Edit))
	assert.False(t, s.Has(Delete))
	assert.False(t, s.Has(Share))
}

func TestComputeGrants(t *testing.T) {
	tests := []struct {
		name       string
		grant      model.ShareGrant
		wantEdit   bool
		wantDelete bool
	}{
		{"view-only grant", grant(userID, false, false), false, false},
		{"edit grant", grant(userID, true, false), true, false},
		{"delete grant", grant(userID, false, true), false, true},
		{"full grant", grant(userID, true, true), true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Compute(Input{
				Doc:       activeDoc(),
				Grants:    []model.ShareGrant{tt.grant},
				Principal: model.Principal{ID: userID, Role: model.RoleUser},
			})
			assert.True(t, s.Has(View), "any grant implies view")
			assert.True(t, s.Has(Download), "any grant implies download")
			assert.Equal(t, tt.wantEdit, s.Has(Edit))
			assert.Equal(t, tt.wantDelete, s.Has(Delete))
			assert.False(t, s.Has(Share), "grants are never delegable")
		})
	}
}

func TestComputeGrantForOtherUserDoesNotApply(t *testing.T) {
	s := Compute(Input{
		Doc:       activeDoc(),
		Grants:    []model.ShareGrant{grant("someone-else", true, true)},
		Principal: model.Principal{ID: userID, Role: model.RoleUser},
	})
	assert.True(t, s.Empty())
}

func TestComputeMembershipOracle(t *testing.T) {
	d := activeDoc()
	d.Links = map[model.ContextKind]string{model.KindActivity: "act-9"}

	member := func(kind model.ContextKind, entityID, uid string) bool {
		return kind == model.KindActivity && entityID == "act-9" && uid == userID
	}

	s := Compute(Input{Doc: d, Principal: model.Principal{ID: userID, Role: model.RoleUser}, Membership: member})
	assert.True(t, s.Has(View))
	assert.True(t, s.Has(Download))
	assert.False(t, s.Has(Edit), "membership grants view only")

	// A non-member of the linked entity gets nothing.
	s = Compute(Input{Doc: d, Principal: model.Principal{ID: strangerID, Role: model.RoleUser}, Membership: member})
	assert.False(t, s.Has(View))
}

func TestComputeResponsibleUnlink(t *testing.T) {
	d := activeDoc()
	d.Links = map[model.ContextKind]string{model.KindActivity: "act-9"}

	s := Compute(Input{Doc: d, Principal: model.Principal{ID: userID, Role: model.RoleUser}, Responsible: true})
	assert.True(t, s.Has(Unlink))
	assert.False(t, s.Has(Edit), "responsible does not imply edit")
	assert.False(t, s.Has(View), "responsible does not imply view")
}

func TestComputeTrashed(t *testing.T) {
	d := trashedDoc()

	t.Run("owner retains view, restore and permanent delete", func(t *testing.T) {
		s := Compute(Input{Doc: d, Principal: model.Principal{ID: ownerID, Role: model.RoleUser}})
		assert.True(t, s.Has(View))
		assert.True(t, s.Has(Restore))
		assert.True(t, s.Has(PermanentDelete))
		assert.False(t, s.Has(Edit))
		assert.False(t, s.Has(Delete))
		assert.False(t, s.Has(Share))
	})

	t.Run("admin retains view, restore and permanent delete", func(t *testing.T) {
		s := Compute(Input{Doc: d, Principal: model.Principal{ID: adminID, Role: model.RoleAdmin}})
		assert.True(t, s.Has(View))
		assert.True(t, s.Has(Restore))
		assert.True(t, s.Has(PermanentDelete))
	})

	t.Run("trashed yields empty set for every grant configuration", func(t *testing.T) {
		pub := trashedDoc()
		pub.IsPublic = true
		grants := []model.ShareGrant{grant(userID, true, true)}
		member := func(model.ContextKind, string, string) bool { return true }

		s := Compute(Input{Doc: pub, Grants: grants, Principal: model.Principal{ID: userID, Role: model.RoleUser}, Membership: member, Responsible: true})
		assert.True(t, s.Empty())
	})
}

func TestComputeDeterministic(t *testing.T) {
	d := activeDoc()
	d.IsPublic = true
	d.Links = map[model.ContextKind]string{model.KindProject: "p-1"}
	in := Input{
		Doc:       d,
		Grants:    []model.ShareGrant{grant(userID, true, false)},
		Principal: model.Principal{ID: userID, Role: model.RoleUser},
	}

	first := Compute(in)
	second := Compute(in)
	assert.Equal(t, first, second)
}

func TestComputeEmptyInputs(t *testing.T) {
	assert.True(t, Compute(Input{}).Empty())
	assert.True(t, Compute(Input{Doc: activeDoc()}).Empty(), "empty principal gets nothing")
}
