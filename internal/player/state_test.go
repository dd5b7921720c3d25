package player

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cory-johannsen/sotamapper/internal/mapdata"
)

func TestState_EqualTreatsAbsentAsEqual(t *testing.T) {
	assert.True(t, State{}.Equal(State{}))
	a := State{AreaName: Some("Novia"), Loc: Some(mapdata.Coord3{X: 1})}
	b := State{AreaName: Some("Novia"), Loc: Some(mapdata.Coord3{X: 1})}
	assert.True(t, a.Equal(b))

	b.MapName = Some("")
	assert.False(t, a.Equal(b), "an empty name is not an absent one")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "Area=null, Map=null, Loc=null", State{}.String())
	s := State{AreaName: Some("Novia"), MapName: Some("Brittany"), Loc: Some(mapdata.Coord3{X: 1.5, Y: 0, Z: -2})}
	assert.Equal(t, "Area=Novia, Map=Brittany, Loc=1.5, 0, -2", s.String())
}

func TestField_String(t *testing.T) {
	assert.Equal(t, "none", FieldNone.String())
	assert.Equal(t, "area|map|loc", FieldAll.String())
	assert.Equal(t, "map", FieldMap.String())
}

func TestField_HasNoneIsFalse(t *testing.T) {
	assert.False(t, FieldAll.Has(FieldNone))
	assert.True(t, FieldAll.Has(FieldArea|FieldLoc))
	assert.False(t, FieldArea.Has(FieldArea|FieldMap))
}

func TestOpt(t *testing.T) {
	assert.Equal(t, "x", None[string]().OrElse("x"))
	assert.Equal(t, "y", Some("y").OrElse("x"))
	v, ok := None[int]().Get()
	assert.False(t, ok)
	assert.Zero(t, v)
	assert.Equal(t, None[int](), Opt[int]{})
}
