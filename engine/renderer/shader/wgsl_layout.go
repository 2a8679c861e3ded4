package shader

import (
	"strconv"
	"strings"
)

// typeLayout is the host-shareable size and alignment of a WGSL type.
type typeLayout struct {
	size  uint64
	align uint64
}

// scalarLayouts covers the scalar, vector, matrix and atomic types trail structs use.
var scalarLayouts = map[string]typeLayout{
	"f32": {4, 4}, "i32": {4, 4}, "u32": {4, 4}, "bool": {4, 4},
	"atomic<u32>": {4, 4}, "atomic<i32>": {4, 4},

	"vec2<f32>": {8, 8}, "vec2f": {8, 8},
	"vec2<u32>": {8, 8}, "vec2u": {8, 8},
	"vec2<i32>": {8, 8}, "vec2i": {8, 8},
	"vec3<f32>": {12, 16}, "vec3f": {12, 16},
	"vec3<u32>": {12, 16}, "vec3u": {12, 16},
	"vec3<i32>": {12, 16}, "vec3i": {12, 16},
	"vec4<f32>": {16, 16}, "vec4f": {16, 16},
	"vec4<u32>": {16, 16}, "vec4u": {16, 16},
	"vec4<i32>": {16, 16}, "vec4i": {16, 16},

	"mat3x3<f32>": {48, 16}, "mat3x3f": {48, 16},
	"mat4x4<f32>": {64, 16}, "mat4x4f": {64, 16},
}

func alignUp(align, v uint64) uint64 {
	if align == 0 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

// resolveLayout returns the layout of typeName. A runtime-sized array resolves to one element
// stride, the smallest size a binding of it can have.
func resolveLayout(typeName string, structs map[string]typeLayout) (typeLayout, bool) {
	typeName = strings.TrimSpace(typeName)
	if l, ok := scalarLayouts[typeName]; ok {
		return l, true
	}
	if l, ok := structs[typeName]; ok {
		return l, true
	}
	inner, ok := strings.CutPrefix(typeName, "array<")
	if !ok || !strings.HasSuffix(inner, ">") {
		return typeLayout{}, false
	}
	inner = strings.TrimSuffix(inner, ">")

	elemType, count := inner, uint64(1)
	if i := strings.LastIndex(inner, ","); i >= 0 && !strings.Contains(inner[i:], ">") {
		n, err := strconv.ParseUint(strings.TrimSpace(inner[i+1:]), 10, 64)
		if err != nil {
			return typeLayout{}, false
		}
		elemType, count = inner[:i], n
	}
	elem, ok := resolveLayout(elemType, structs)
	if !ok {
		return typeLayout{}, false
	}
	return typeLayout{size: count * alignUp(elem.align, elem.size), align: elem.align}, true
}

// structLayouts lays out every struct whose members resolve, including structs nested in
// other structs regardless of declaration order. Builtin members are not part of the layout.
func structLayouts(structs []wgslStruct) map[string]typeLayout {
	out := make(map[string]typeLayout, len(structs))
	pending := structs
	for len(pending) > 0 {
		var next []wgslStruct
		for _, s := range pending {
			if l, ok := layoutStruct(s, out); ok {
				out[s.name] = l
			} else {
				next = append(next, s)
			}
		}
		if len(next) == len(pending) {
			break
		}
		pending = next
	}
	return out
}

func layoutStruct(s wgslStruct, known map[string]typeLayout) (typeLayout, bool) {
	var offset uint64
	align := uint64(1)
	for _, m := range s.members {
		if m.builtin {
			continue
		}
		l, ok := resolveLayout(m.typeName, known)
		if !ok {
			return typeLayout{}, false
		}
		offset = alignUp(l.align, offset) + l.size
		align = max(align, l.align)
	}
	return typeLayout{size: alignUp(align, offset), align: align}, true
}
