// Package paths centralizes filesystem path resolution for qbak.
//
// Configuration lives under the XDG config home
// (~/.config/qbak/config.ini on Linux), resolved through the xdg package
// so platform differences are handled in one place.
package paths
