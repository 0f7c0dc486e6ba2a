// Package policy implements the scripted GOT-override policy (§11.3):
// a user-supplied JavaScript file exposing a resolve(symbolName,
// objectPath) function is consulted for jump-relocation entries the
// Linker left unresolved, driving link.OverrideGOT.
package policy

import (
	"fmt"
	"math"
	"os"

	"github.com/dop251/goja"
)

// Policy wraps a compiled override script and its resolve callable.
type Policy struct {
	vm      *goja.Runtime
	resolve goja.Callable
}

// Load compiles the script at path and binds its top-level resolve
// function. The script must define:
//
//	function resolve(symbolName, objectPath) { ... }
//
// returning a numeric address, or undefined/null to decline.
func Load(path string) (*Policy, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read override policy script: %w", err)
	}

	vm := goja.New()
	if _, err := vm.RunScript(path, string(src)); err != nil {
		return nil, fmt.Errorf("compile override policy script %s: %w", path, err)
	}

	fnVal := vm.Get("resolve")
	if fnVal == nil || goja.IsUndefined(fnVal) {
		return nil, fmt.Errorf("override policy script %s does not define resolve(symbolName, objectPath)", path)
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return nil, fmt.Errorf("override policy script %s: resolve is not callable", path)
	}

	return &Policy{vm: vm, resolve: fn}, nil
}

// Resolve calls the script's resolve(symbolName, objectPath) and
// returns the address it provides, or found == false if it returned
// undefined/null or wasn't a finite number.
func (p *Policy) Resolve(symbolName, objectPath string) (addr uint64, found bool) {
	result, err := p.resolve(goja.Undefined(), p.vm.ToValue(symbolName), p.vm.ToValue(objectPath))
	if err != nil || result == nil || goja.IsUndefined(result) || goja.IsNull(result) {
		return 0, false
	}
	f := result.ToFloat()
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, false
	}
	return uint64(f), true
}
