package scripting

import (
	"github.com/go-gl/mathgl/mgl64"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/tilesim/server/internal/game"
)

// ScriptController drives the hero from the Lua hero_input(tick) function,
// which returns a table {ax, ay, sx, sy}. Without the function, or on a
// script error, the hero stands still.
type ScriptController struct {
	e      *Engine
	warned bool
}

var _ game.Controller = (*ScriptController)(nil)

func NewScriptController(e *Engine) *ScriptController {
	return &ScriptController{e: e}
}

func (c *ScriptController) Poll(tick uint64) game.Input {
	vm := c.e.vm
	fn := vm.GetGlobal("hero_input")
	if fn == lua.LNil {
		if !c.warned {
			c.e.log.Debug("lua function hero_input not found, hero idle")
			c.warned = true
		}
		return game.Input{}
	}

	if err := vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LNumber(tick)); err != nil {
		c.e.log.Error("lua hero_input error", zap.Error(err))
		return game.Input{}
	}

	result := vm.Get(-1)
	vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		return game.Input{}
	}
	return game.Input{
		Accel: mgl64.Vec2{lNum(rt, "ax"), lNum(rt, "ay")},
		Sword: mgl64.Vec2{lNum(rt, "sx"), lNum(rt, "sy")},
	}
}
