//go:build darwin

package screen

// -x: no sound, -m: main display only.
var darwinTools = []tool{
	{"screencapture", func(p string) []string { return []string{"-x", "-t", "png", "-m", p} }},
}

// New creates the platform capturer.
func New() (Capturer, error) {
	return newFileCapturer(toolBackend{tools: darwinTools})
}
