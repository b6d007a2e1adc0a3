//go:build windows

package screen

import "strings"

const psCapture = `Add-Type -AssemblyName System.Windows.Forms,System.Drawing;` +
	`$b=[System.Windows.Forms.Screen]::PrimaryScreen.Bounds;` +
	`$bmp=New-Object System.Drawing.Bitmap $b.Width,$b.Height;` +
	`$g=[System.Drawing.Graphics]::FromImage($bmp);` +
	`$g.CopyFromScreen($b.Location,[System.Drawing.Point]::Empty,$b.Size);` +
	`$bmp.Save('%s',[System.Drawing.Imaging.ImageFormat]::Png);` +
	`$g.Dispose();$bmp.Dispose()`

var windowsTools = []tool{
	{"powershell", func(p string) []string {
		script := strings.Replace(psCapture, "%s", strings.ReplaceAll(p, "'", "''"), 1)
		return []string{"-NoProfile", "-NonInteractive", "-Command", script}
	}},
}

// New creates the platform capturer.
func New() (Capturer, error) {
	return newFileCapturer(toolBackend{tools: windowsTools})
}
