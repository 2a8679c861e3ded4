// annotations.go defines the annotation types, argument constants, and parser for the
// Oxy WGSL shader pre-processor. Annotations are single-line WGSL comments prefixed
// with @oxy: that drive automatic struct injection, bind group declaration, and resource
// provider registration. The parsed results are stored as Annotation values and consumed
// by the PreProcessor and the trail backend to wire GPU resources without manual low-level plumbing.
package shader

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// annotationPrefix is the marker that identifies an Oxy annotation within a WGSL comment line.
// Every annotation must appear on a line beginning with "//" followed by this prefix.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
// Each type corresponds to a distinct pre-processor action and produces different
// fields on the resulting Annotation struct.
type AnnotationType string

const (
	// annotationTypeInclude injects the WGSL source of a registered struct definition
	// into the shader at the annotation site. The struct source is embedded from the
	// corresponding Go GPU type's .wgsl asset file. This annotation does not produce
	// a declaration and is consumed entirely during pre-processing.
	//
	// Syntax: //@oxy:include <struct_type>
	//
	// Example: //@oxy:include camera
	annotationTypeInclude AnnotationType = "include"

	// AnnotationTypeBindingGroup generates a WGSL @group/@binding variable declaration
	// and appends an Annotation to the PreProcessor's declarations list. The declaration
	// carries the group index, binding index, and the resolved struct type, enabling the
	// backend to semantically match bindings to resource providers without string lookups.
	//
	// Syntax: //@oxy:group <group> <binding> <address_space> <var_name> <type>
	//
	// Example: //@oxy:group 0 1 storage_read trails array<trail_state>
	AnnotationTypeBindingGroup AnnotationType = "group"

	// AnnotationTypeProvider registers a resource provider identity for a group and binding
	// without generating any WGSL output. The WGSL binding declaration remains hand-written
	// in the shader source directly below the annotation. This is used for bindings that
	// contain raw WGSL types (flat arrays of primitives) which have no corresponding
	// registered struct in the pre-processor's struct registry.
	//
	// An optional binding role can be appended after the provider identity to declare the
	// semantic purpose of an individual binding within a multi-binding provider group.
	// This allows the backend to resolve binding indices from declarations instead of
	// relying on variable-name string matching.
	//
	// Syntax:
	//   //@oxy:provider <group> <binding> <provider_identity>
	//   //@oxy:provider <group> <binding> <provider_identity> <binding_role>
	//
	// Examples:
	//   //@oxy:provider 0 4 trail_input input_counts
	//   //@oxy:provider 0 6 trail_lod trail_lod
	AnnotationTypeProvider AnnotationType = "provider"
)

// Annotation represents a single parsed @oxy: annotation from a WGSL shader source line.
// It carries the annotation type, its arguments, the source line number, and optional
// group/binding indices. Annotations of type AnnotationTypeBindingGroup and
// AnnotationTypeProvider are appended to the PreProcessor's declarations list for
// consumption by the trail backend during resource wiring.
type Annotation struct {
	// Type identifies which annotation was parsed (include, group, or provider).
	Type AnnotationType

	// Args holds the annotation's arguments. The contents depend on Type:
	//   - include:  [0] = struct type key (e.g. "camera")
	//   - group:    [0] = address space, [1] = var name, [2] = WGSL type key
	//   - provider: [0] = provider identity (e.g. "trail_lod"), [1] = binding role (optional, e.g. "lod_distances")
	Args []AnnotationArg

	// Line is the 1-based line number in the original WGSL source where this annotation
	// was found. Used for error reporting.
	Line int

	// Group is the @group index for group and provider annotations. Nil for include annotations.
	Group *int

	// Binding is the @binding index for group and provider annotations. Nil for include annotations.
	Binding *int
}

// AnnotationArg is a typed string constant used as an argument in annotations.
// Arguments fall into three categories: struct type keys (used with include and group),
// address space identifiers (used with group), and provider identity keys (used with provider).
type AnnotationArg string

// ── Struct type arguments ──────────────────────────────────────────────────────
// These identify registered WGSL struct types. They can appear in @oxy:include annotations
// (to inject the struct source) and in @oxy:group annotations (as the type field, optionally
// wrapped in array<>). Each maps to a Go GPU type with an embedded .wgsl asset file.

const (
	// AnnotationArgCamera identifies the CameraUniform struct.
	// Source: engine/camera/assets/camera_uniform.wgsl
	AnnotationArgCamera AnnotationArg = "camera"

	// AnnotationArgNode identifies the Node struct stored in the per-trail ring history.
	// Source: engine/trail/assets/node.wgsl
	AnnotationArgNode AnnotationArg = "node"

	// AnnotationArgTrailState identifies the TrailState struct (ring head and total written).
	// Source: engine/trail/assets/trail_state.wgsl
	AnnotationArgTrailState AnnotationArg = "trail_state"

	// AnnotationArgTrailVertex identifies the ribbon Vertex struct written by UpdateVertex.
	// Source: engine/trail/assets/vertex.wgsl
	AnnotationArgTrailVertex AnnotationArg = "trail_vertex"

	// AnnotationArgIndirectArgs identifies the IndirectArgs struct matching WebGPU's DrawIndexedIndirect layout.
	// Source: engine/trail/assets/indirect_args.wgsl
	AnnotationArgIndirectArgs AnnotationArg = "indirect_args"

	// AnnotationArgDispatchArgs identifies the DispatchArgs struct matching WebGPU's DispatchWorkgroupsIndirect layout.
	// Source: engine/trail/assets/dispatch_args.wgsl
	AnnotationArgDispatchArgs AnnotationArg = "dispatch_args"

	// AnnotationArgTrailParams identifies the per-frame TrailParams uniform.
	// Source: engine/trail/assets/trail_params.wgsl
	AnnotationArgTrailParams AnnotationArg = "trail_params"

	// AnnotationArgCullParams identifies the CullParams uniform (frustum side planes and trail width).
	// Source: engine/trail/assets/cull_params.wgsl
	AnnotationArgCullParams AnnotationArg = "cull_params"

	// AnnotationArgLodParams identifies the LodParams uniform.
	// Source: engine/trail/assets/lod_params.wgsl
	AnnotationArgLodParams AnnotationArg = "lod_params"

	// AnnotationArgBucketParams identifies the BucketParams uniform used by the LOD bucket pass.
	// Source: engine/trail/assets/bucket_params.wgsl
	AnnotationArgBucketParams AnnotationArg = "bucket_params"

	// AnnotationArgRibbonParams identifies the RibbonParams uniform used by UpdateVertex.
	// Source: engine/trail/assets/ribbon_params.wgsl
	AnnotationArgRibbonParams AnnotationArg = "ribbon_params"

	// AnnotationArgDrawParams identifies the DrawParams uniform read by the ribbon vertex shader.
	// Source: engine/trail/assets/draw_params.wgsl
	AnnotationArgDrawParams AnnotationArg = "draw_params"

	// AnnotationArgTrailIndexList identifies the atomic TrailIndexList struct. Including it also
	// injects the read-only TrailIndexListView.
	// Source: engine/trail/assets/trail_index_list.wgsl
	AnnotationArgTrailIndexList AnnotationArg = "trail_index_list"

	// annotationArgTrailIndexListView identifies the read-only TrailIndexListView struct. It is
	// only valid as a group type, its source arrives with trail_index_list.
	annotationArgTrailIndexListView AnnotationArg = "trail_index_list_view"
)

// ── Address space arguments ────────────────────────────────────────────────────
// These specify the WGSL variable address space in @oxy:group annotations.
// They map to WGSL var<> declarations.

const (
	// annotationArgStorageTypeUniform maps to var<uniform> in WGSL.
	annotationArgStorageTypeUniform AnnotationArg = "storage_uniform"

	// annotationArgStorageTypeRead maps to var<storage, read> in WGSL.
	annotationArgStorageTypeRead AnnotationArg = "storage_read"

	// annotationArgStorageTypeReadWrite maps to var<storage, read_write> in WGSL.
	annotationArgStorageTypeReadWrite AnnotationArg = "storage_read_write"
)

// ── Provider identity arguments ────────────────────────────────────────────────
// These identify which resource provider owns a binding whose WGSL declaration is
// hand-written (flat arrays of primitives). Used in @oxy:provider annotations and
// matched by the trail backend when it builds kernel bind groups.

const (
	// AnnotationArgTrailInput identifies the per-frame input provider (samples queued by the host).
	AnnotationArgTrailInput AnnotationArg = "trail_input"

	// AnnotationArgTrailLod identifies the LOD provider (distance thresholds and per-trail LOD indices).
	AnnotationArgTrailLod AnnotationArg = "trail_lod"
)

// ── Binding role arguments ─────────────────────────────────────────────────────
// These qualify individual bindings within a provider group. They appear as the
// optional fourth argument of an @oxy:provider annotation.

const (
	// AnnotationArgInputCounts identifies the array<u32> of per-trail sample counts.
	AnnotationArgInputCounts AnnotationArg = "input_counts"

	// AnnotationArgLodDistances identifies the array<f32> of ascending LOD distance thresholds.
	AnnotationArgLodDistances AnnotationArg = "lod_distances"

	// AnnotationArgTrailLodIndices identifies the array<u32> holding each trail's LOD index.
	AnnotationArgTrailLodIndices AnnotationArg = "trail_lod"
)

// validStructTypes lists all AnnotationArg values that are accepted as struct type
// arguments in @oxy:include and @oxy:group annotations. Each entry must have a
// corresponding registryEntry in the PreProcessor's structRegistry.
var validStructTypes = []AnnotationArg{
	AnnotationArgCamera,
	AnnotationArgNode,
	AnnotationArgTrailState,
	AnnotationArgTrailVertex,
	AnnotationArgIndirectArgs,
	AnnotationArgDispatchArgs,
	AnnotationArgTrailParams,
	AnnotationArgCullParams,
	AnnotationArgLodParams,
	AnnotationArgBucketParams,
	AnnotationArgRibbonParams,
	AnnotationArgDrawParams,
	AnnotationArgTrailIndexList,
	annotationArgTrailIndexListView,
}

// includableStructTypes is the subset of validStructTypes that may appear in @oxy:include.
var includableStructTypes = slices.DeleteFunc(slices.Clone(validStructTypes), func(a AnnotationArg) bool {
	return a == annotationArgTrailIndexListView
})

// validAddressSpaces lists all AnnotationArg values that are accepted as address
// space arguments in @oxy:group annotations. Each maps to a WGSL var<> declaration.
var validAddressSpaces = []AnnotationArg{
	annotationArgStorageTypeUniform,
	annotationArgStorageTypeRead,
	annotationArgStorageTypeReadWrite,
}

// validProviderIdentities lists all AnnotationArg values that are accepted as
// provider identity arguments in @oxy:provider annotations.
var validProviderIdentities = []AnnotationArg{
	AnnotationArgCamera,
	AnnotationArgTrailInput,
	AnnotationArgTrailLod,
}

// validBindingRoles lists all AnnotationArg values that are accepted as binding
// role qualifiers in @oxy:provider annotations.
var validBindingRoles = []AnnotationArg{
	AnnotationArgInputCounts,
	AnnotationArgLodDistances,
	AnnotationArgTrailLodIndices,
}

// parseAnnotation attempts to parse a single line of WGSL source as an @oxy: annotation.
// Returns nil with no error for lines that do not contain the annotation prefix. Returns
// a populated Annotation for valid annotations, or an error describing the problem for
// malformed annotations with correct prefix but invalid syntax or unknown arguments.
//
// Parameters:
//   - line: the raw WGSL source line to parse
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch args[0] {
	case string(annotationTypeInclude):
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy include annotation requires exactly one argument", lineNum)
		}
		if !slices.Contains(includableStructTypes, AnnotationArg(args[1])) {
			return nil, fmt.Errorf("line %d: unknown struct type %q in @oxy include annotation", lineNum, args[1])
		}
		return &Annotation{
			Type: annotationTypeInclude,
			Args: []AnnotationArg{AnnotationArg(args[1])},
			Line: lineNum,
		}, nil
	case string(AnnotationTypeBindingGroup):
		if len(args) != 6 {
			return nil, fmt.Errorf("line %d: @oxy group annotation requires exactly four arguments (group number, binding number, address space, struct type)", lineNum)
		}
		groupInt, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid group number %q in @oxy group annotation: %v", lineNum, args[1], err)
		}
		bindingInt, err := strconv.Atoi(args[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid binding number %q in @oxy group annotation: %v", lineNum, args[2], err)
		}
		if !slices.Contains(validAddressSpaces, AnnotationArg(args[3])) {
			return nil, fmt.Errorf("line %d: unknown address space %q in @oxy group annotation", lineNum, args[3])
		}
		typeArg := args[5]
		if inner, ok := strings.CutPrefix(typeArg, "array<"); ok {
			inner = strings.TrimSuffix(inner, ">")
			if !slices.Contains(validStructTypes, AnnotationArg(inner)) {
				return nil, fmt.Errorf("line %d: unknown array element type %q in @oxy group annotation", lineNum, inner)
			}
		} else {
			if !slices.Contains(validStructTypes, AnnotationArg(typeArg)) {
				return nil, fmt.Errorf("line %d: unknown struct type %q in @oxy group annotation", lineNum, typeArg)
			}
		}
		return &Annotation{
			Type:    AnnotationTypeBindingGroup,
			Args:    []AnnotationArg{AnnotationArg(args[3]), AnnotationArg(args[4]), AnnotationArg(args[5])},
			Line:    lineNum,
			Group:   &groupInt,
			Binding: &bindingInt,
		}, nil
	case string(AnnotationTypeProvider):
		if len(args) < 4 || len(args) > 5 {
			return nil, fmt.Errorf("line %d: @oxy provider annotation requires three or four arguments (group, binding, provider identity[, binding role])", lineNum)
		}
		groupInt, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid group number %q: %v", lineNum, args[1], err)
		}
		bindingInt, err := strconv.Atoi(args[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid binding number %q in @oxy provider annotation: %v", lineNum, args[2], err)
		}
		if !slices.Contains(validProviderIdentities, AnnotationArg(args[3])) {
			return nil, fmt.Errorf("line %d: unknown provider identity %q in @oxy provider annotation", lineNum, args[3])
		}
		providerArgs := []AnnotationArg{AnnotationArg(args[3])}
		if len(args) == 5 {
			if !slices.Contains(validBindingRoles, AnnotationArg(args[4])) {
				return nil, fmt.Errorf("line %d: unknown binding role %q in @oxy provider annotation", lineNum, args[4])
			}
			providerArgs = append(providerArgs, AnnotationArg(args[4]))
		}
		return &Annotation{
			Type:    AnnotationTypeProvider,
			Args:    providerArgs,
			Line:    lineNum,
			Group:   &groupInt,
			Binding: &bindingInt,
		}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @oxy annotation type %q", lineNum, args[0])
	}
}
