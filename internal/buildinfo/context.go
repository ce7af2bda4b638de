// Package buildinfo carries build-time metadata, injected at link time and
// kept separate from user configuration.
package buildinfo

// UnknownValue is reported for metadata the build did not set.
const UnknownValue = "unknown"

// Set with -ldflags "-X github.com/Project-OSmOSE/osmose-app-sub000/internal/buildinfo.version=...".
var (
	version   string
	buildDate string
)

// Context contains build-time metadata that is not user-configurable.
type Context struct {
	// Version holds the Git version tag from build
	Version string

	// BuildDate is the time when the binary was built
	BuildDate string
}

// NewContext creates a Context from explicit values.
func NewContext(version, buildDate string) *Context {
	return &Context{Version: version, BuildDate: buildDate}
}

// Current returns the metadata linked into the binary.
func Current() *Context {
	return NewContext(version, buildDate)
}

// GetVersion returns the version, or UnknownValue.
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return UnknownValue
	}
	return c.Version
}

// GetBuildDate returns the build date, or UnknownValue.
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return UnknownValue
	}
	return c.BuildDate
}

// String formats the metadata for `aplose version`.
func (c *Context) String() string {
	return "aplose " + c.GetVersion() + " (built " + c.GetBuildDate() + ")"
}
