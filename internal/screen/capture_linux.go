//go:build linux

package screen

// Wayland first, then X11 tools.
var linuxTools = []tool{
	{"grim", func(p string) []string { return []string{p} }},
	{"gnome-screenshot", func(p string) []string { return []string{"-f", p} }},
	{"scrot", func(p string) []string { return []string{"-o", p} }},
	{"import", func(p string) []string { return []string{"-window", "root", p} }},
}

// New creates the platform capturer.
func New() (Capturer, error) {
	return newFileCapturer(toolBackend{tools: linuxTools})
}
