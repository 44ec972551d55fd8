package stt

// Capability is the result of probing for a recognition platform. It is
// resolved once at startup and is either Available with a platform handle or
// Unavailable.
type Capability struct {
	platform Platform
}

// Available wraps a usable platform. A nil platform yields Unavailable.
func Available(p Platform) Capability {
	return Capability{platform: p}
}

// Unavailable reports that this host has no recognition platform.
func Unavailable() Capability {
	return Capability{}
}

// Supported reports whether a platform is present.
func (c Capability) Supported() bool {
	return c.platform != nil
}

// Platform returns the platform handle and whether it exists.
func (c Capability) Platform() (Platform, bool) {
	return c.platform, c.platform != nil
}

// Name returns the platform name, or "none".
func (c Capability) Name() string {
	if c.platform == nil {
		return "none"
	}
	return c.platform.Name()
}
