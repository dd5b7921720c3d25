package feed

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/sotamapper/internal/mapdata"
	"github.com/cory-johannsen/sotamapper/internal/player"
)

// Payload keys.
const (
	keyArea  = "area"
	keyMap   = "map"
	keyLoc   = "loc"
	keyName  = "name"
	keyItems = "items"
)

// StateToStruct encodes s with absent fields as null.
//
// Postcondition: Returns a Struct with the keys area, map and loc.
func StateToStruct(s player.State) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		keyArea: optString(s.AreaName),
		keyMap:  optString(s.MapName),
		keyLoc:  optCoord(s.Loc),
	}}
}

func optString(o player.Opt[string]) *structpb.Value {
	if v, ok := o.Get(); ok {
		return structpb.NewStringValue(v)
	}
	return structpb.NewNullValue()
}

func optCoord(o player.Opt[mapdata.Coord3]) *structpb.Value {
	c, ok := o.Get()
	if !ok {
		return structpb.NewNullValue()
	}
	return structpb.NewStructValue(coordStruct(c))
}

func coordStruct(c mapdata.Coord3) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"x": structpb.NewNumberValue(c.X),
		"y": structpb.NewNumberValue(c.Y),
		"z": structpb.NewNumberValue(c.Z),
	}}
}

// StateFromStruct decodes a Struct produced by StateToStruct. Missing keys
// and nulls decode as absent fields.
//
// Postcondition: Returns the decoded State or an error naming the bad key.
func StateFromStruct(st *structpb.Struct) (player.State, error) {
	var s player.State
	if st == nil {
		return s, nil
	}
	var err error
	if s.AreaName, err = stringField(st, keyArea); err != nil {
		return player.State{}, err
	}
	if s.MapName, err = stringField(st, keyMap); err != nil {
		return player.State{}, err
	}

	v, ok := st.GetFields()[keyLoc]
	if !ok || isNull(v) {
		return s, nil
	}
	loc := v.GetStructValue()
	if loc == nil {
		return player.State{}, fmt.Errorf("field %q: expected object", keyLoc)
	}
	c, err := coordFromStruct(loc)
	if err != nil {
		return player.State{}, fmt.Errorf("field %q: %w", keyLoc, err)
	}
	s.Loc = player.Some(c)
	return s, nil
}

func stringField(st *structpb.Struct, key string) (player.Opt[string], error) {
	v, ok := st.GetFields()[key]
	if !ok || isNull(v) {
		return player.None[string](), nil
	}
	sv, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return player.None[string](), fmt.Errorf("field %q: expected string", key)
	}
	return player.Some(sv.StringValue), nil
}

func coordFromStruct(st *structpb.Struct) (mapdata.Coord3, error) {
	var vals [3]float64
	for i, axis := range []string{"x", "y", "z"} {
		v, ok := st.GetFields()[axis]
		if !ok {
			return mapdata.Coord3{}, fmt.Errorf("missing %q", axis)
		}
		nv, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return mapdata.Coord3{}, fmt.Errorf("%q: expected number", axis)
		}
		vals[i] = nv.NumberValue
	}
	return mapdata.Coord3{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}

func isNull(v *structpb.Value) bool {
	_, ok := v.GetKind().(*structpb.Value_NullValue)
	return ok
}
