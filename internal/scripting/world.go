package scripting

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// WorldBuilder places entities on the tile grid. Every add returns the new
// storage index, 0 when storage is full.
type WorldBuilder interface {
	AddHero(tx, ty, tz int32) uint32
	AddWall(tx, ty, tz int32) uint32
	AddStairs(tx, ty, tz int32) uint32
	AddMonster(tx, ty, tz int32) uint32
	AddFamiliar(tx, ty, tz int32) uint32
	AddSpace(tx, ty, tz int32) uint32
	GenerateRooms(rooms int, seed int64) uint32
	TileSide() float64
}

// BuildWorld calls the Lua build_world(api) function. It reports false
// when no script defines build_world, so the caller can fall back to its
// own generator.
func (e *Engine) BuildWorld(b WorldBuilder) (bool, error) {
	fn := e.vm.GetGlobal("build_world")
	if fn == lua.LNil {
		return false, nil
	}

	api := e.vm.NewTable()
	for name, add := range map[string]func(tx, ty, tz int32) uint32{
		"add_hero":     b.AddHero,
		"add_wall":     b.AddWall,
		"add_stairs":   b.AddStairs,
		"add_monster":  b.AddMonster,
		"add_familiar": b.AddFamiliar,
		"add_space":    b.AddSpace,
	} {
		api.RawSetString(name, e.vm.NewFunction(tileAdder(add)))
	}
	api.RawSetString("generate_rooms", e.vm.NewFunction(func(L *lua.LState) int {
		rooms := L.CheckInt(1)
		seed := L.OptInt64(2, 0)
		L.Push(lua.LNumber(b.GenerateRooms(rooms, seed)))
		return 1
	}))
	api.RawSetString("tile_side", e.vm.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(b.TileSide()))
		return 1
	}))
	api.RawSetString("log", e.vm.NewFunction(func(L *lua.LState) int {
		e.log.Info("lua: " + L.CheckString(1))
		return 0
	}))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, api); err != nil {
		return true, fmt.Errorf("lua build_world: %w", err)
	}
	e.log.Debug("world built by script")
	return true, nil
}

func tileAdder(add func(tx, ty, tz int32) uint32) lua.LGFunction {
	return func(L *lua.LState) int {
		tx := int32(L.CheckInt(1))
		ty := int32(L.CheckInt(2))
		tz := int32(L.OptInt(3, 0))
		L.Push(lua.LNumber(add(tx, ty, tz)))
		return 1
	}
}
