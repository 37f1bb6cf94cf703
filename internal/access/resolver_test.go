package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/campuslab/lab-reservation/internal/model"
)

func TestCanAccessNormal(t *testing.T) {
	r := &model.Resource{Number: 1, AccessLevel: model.AccessNormal}
	assert.True(t, CanAccess(r, "student"))
	assert.True(t, CanAccess(r, "anything-at-all"))
}

func TestCanAccessSpecialAllowList(t *testing.T) {
	r := &model.Resource{
		Number:           2,
		AccessLevel:      model.AccessSpecial,
		AllowedUserTypes: []string{"staff", "researcher"},
	}
	assert.True(t, CanAccess(r, "staff"))
	assert.False(t, CanAccess(r, "student"))
}

func TestSpecialEmptyAllowListLocksOutEveryone(t *testing.T) {
	r := &model.Resource{Number: 3, AccessLevel: model.AccessSpecial}
	for _, ut := range []string{"student", "staff", "", "guest"} {
		assert.False(t, CanAccess(r, ut), "user type %q must be locked out", ut)
	}
}

func TestFilterVisibleOmitsIneligible(t *testing.T) {
	resources := []model.Resource{
		{Number: 1, AccessLevel: model.AccessNormal},
		{Number: 2, AccessLevel: model.AccessSpecial, AllowedUserTypes: []string{"staff"}},
		{Number: 3, AccessLevel: model.AccessSpecial},
	}

	visible := FilterVisible(resources, "student")
	if assert.Len(t, visible, 1) {
		assert.Equal(t, uint32(1), visible[0].Number)
	}

	visible = FilterVisible(resources, "staff")
	assert.Len(t, visible, 2)
}

func TestUserTypeResolve(t *testing.T) {
	assert.Equal(t, "staff", UserType{Known: "staff"}.Resolve())
	assert.Equal(t, "visiting lecturer", UserType{Other: "  visiting lecturer "}.Resolve())
	// Known always wins over stray free text.
	assert.Equal(t, "staff", UserType{Known: "staff", Other: "x"}.Resolve())
}

func TestSnapshotIsKnown(t *testing.T) {
	s := Snapshot{Version: 4, KnownTypes: []string{"student", "staff"}}
	assert.True(t, s.IsKnown("student"))
	assert.False(t, s.IsKnown("alumni"))
}
