package shader

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// Trail kernels and ribbon materials only bind buffers: node rings, trail state, index lists,
// draw arguments and uniforms. Ribbon vertices are pulled from storage by vertex_index, so no
// vertex buffer layouts or texture bindings are reflected.

var (
	structRegex = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)

	// memberRegex captures name and type of a struct member after any attributes
	memberRegex = regexp.MustCompile(`^\s*(?:@\w+(?:\([^)]*\))?\s*)*(\w+)\s*:\s*(.+?)\s*$`)

	entryRegexes = map[ShaderType]*regexp.Regexp{
		ShaderTypeVertex:   regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`),
		ShaderTypeFragment: regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`),
		ShaderTypeCompute:  regexp.MustCompile(`(?s)@compute\b.*?\bfn\s+(\w+)`),
	}

	workgroupRegex = regexp.MustCompile(`@workgroup_size\(\s*(\d+)\s*(?:,\s*(\d+)\s*(?:,\s*(\d+)\s*)?)?\)`)

	// bindingRegex matches @group(G) @binding(B) var<space> name: type;
	bindingRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
)

// wgslStruct is a struct declaration with its members in declaration order.
type wgslStruct struct {
	name    string
	members []wgslMember
}

type wgslMember struct {
	name     string
	typeName string
	builtin  bool
}

// reflectBindings builds one layout descriptor per bind group from the buffer declarations in
// source. Entries are sorted by binding and carry the byte size of one element of the bound
// type as MinBindingSize where it can be resolved.
//
// Parameters:
//   - source: pre-processed WGSL source
//   - visibility: the stage every entry is visible to
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group
//   - map[int]map[int]string: variable names keyed by group then binding
//   - error: if a binding is not a uniform or storage buffer
func reflectBindings(source string, visibility wgpu.ShaderStage) (map[int]wgpu.BindGroupLayoutDescriptor, map[int]map[int]string, error) {
	src := stripComments(source)
	layouts := structLayouts(parseStructs(src))

	entries := make(map[int][]wgpu.BindGroupLayoutEntry)
	names := make(map[int]map[int]string)
	for _, m := range bindingRegex.FindAllStringSubmatch(src, -1) {
		group, _ := strconv.Atoi(m[1])
		binding, _ := strconv.Atoi(m[2])
		space, name, typeName := strings.TrimSpace(m[3]), m[4], strings.TrimSpace(m[5])

		bindingType, ok := bufferBindingType(space)
		if !ok {
			return nil, nil, fmt.Errorf("@group(%d) @binding(%d) %s: %q is not a buffer binding", group, binding, name, typeName)
		}
		entry := wgpu.BindGroupLayoutEntry{
			Binding:    uint32(binding),
			Visibility: visibility,
			Buffer:     wgpu.BufferBindingLayout{Type: bindingType},
		}
		if l, ok := resolveLayout(typeName, layouts); ok {
			entry.Buffer.MinBindingSize = l.size
		}
		entries[group] = append(entries[group], entry)

		if names[group] == nil {
			names[group] = make(map[int]string)
		}
		names[group][binding] = name
	}

	out := make(map[int]wgpu.BindGroupLayoutDescriptor, len(entries))
	for group, es := range entries {
		slices.SortFunc(es, func(a, b wgpu.BindGroupLayoutEntry) int {
			return cmp.Compare(a.Binding, b.Binding)
		})
		out[group] = wgpu.BindGroupLayoutDescriptor{Entries: es}
	}
	return out, names, nil
}

// bufferBindingType maps a var address space to its binding type. Storage without an access
// mode is read-only.
func bufferBindingType(space string) (wgpu.BufferBindingType, bool) {
	switch {
	case space == "uniform":
		return wgpu.BufferBindingTypeUniform, true
	case strings.HasPrefix(space, "storage"):
		if strings.HasSuffix(space, "read_write") {
			return wgpu.BufferBindingTypeStorage, true
		}
		return wgpu.BufferBindingTypeReadOnlyStorage, true
	default:
		return wgpu.BufferBindingTypeUndefined, false
	}
}

// reflectWorkgroupSize returns the @workgroup_size of source. Missing dimensions are 1.
func reflectWorkgroupSize(source string) [3]uint32 {
	size := [3]uint32{1, 1, 1}
	m := workgroupRegex.FindStringSubmatch(stripComments(source))
	if m == nil {
		return size
	}
	for i, dim := range m[1:] {
		if v, err := strconv.ParseUint(dim, 10, 32); err == nil {
			size[i] = uint32(v)
		}
	}
	return size
}

// reflectEntryPoint returns the name of the first function tagged for the given stage, or ""
// when source has none.
func reflectEntryPoint(source string, shaderType ShaderType) string {
	re, ok := entryRegexes[shaderType]
	if !ok {
		return ""
	}
	if m := re.FindStringSubmatch(stripComments(source)); m != nil {
		return m[1]
	}
	return ""
}

func parseStructs(source string) []wgslStruct {
	var structs []wgslStruct
	for _, m := range structRegex.FindAllStringSubmatch(source, -1) {
		s := wgslStruct{name: m[1]}
		for _, decl := range splitTopLevel(m[2]) {
			mm := memberRegex.FindStringSubmatch(decl)
			if mm == nil {
				continue
			}
			s.members = append(s.members, wgslMember{
				name:     mm[1],
				typeName: mm[2],
				builtin:  strings.Contains(decl, "@builtin("),
			})
		}
		structs = append(structs, s)
	}
	return structs
}

// splitTopLevel splits a struct body on commas outside angle brackets, so array<T, N> stays whole.
func splitTopLevel(body string) []string {
	var parts []string
	depth, start := 0, 0
	for i, c := range body {
		switch c {
		case '<':
			depth++
		case '>':
			depth = max(depth-1, 0)
		case ',':
			if depth == 0 {
				parts = append(parts, body[start:i])
				start = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(body[start:]); rest != "" {
		parts = append(parts, rest)
	}
	return parts
}

// stripComments removes line comments and nested block comments.
func stripComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	for i := 0; i < len(source); i++ {
		switch {
		case i+1 < len(source) && source[i] == '/' && source[i+1] == '*':
			depth++
			i++
		case i+1 < len(source) && source[i] == '*' && source[i+1] == '/' && depth > 0:
			depth--
			i++
		case depth > 0:
		case i+1 < len(source) && source[i] == '/' && source[i+1] == '/':
			for i < len(source) && source[i] != '\n' {
				i++
			}
			if i < len(source) {
				sb.WriteByte('\n')
			}
		default:
			sb.WriteByte(source[i])
		}
	}
	return sb.String()
}
