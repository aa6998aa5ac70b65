package build

// Mode is the compilation mode.
type Mode string

const (
	// ModePrecompile emits a module exporting a render function.
	ModePrecompile Mode = "precompile"

	// ModeDirectRender emits the rendered output as a string module.
	ModeDirectRender Mode = "direct-render"
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	return string(m)
}

// SelectMode returns ModeDirectRender when a render context is supplied and
// ModePrecompile otherwise. An empty, non-nil context still selects direct
// render.
func SelectMode(renderContext map[string]any) Mode {
	if renderContext != nil {
		return ModeDirectRender
	}
	return ModePrecompile
}
