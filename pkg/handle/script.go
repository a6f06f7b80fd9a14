package handle

// ScriptRunner executes trusted script files for [File.Import].
//
// It is the only way the package runs code from disk; callers opt in by
// passing a runner. See package script for a JavaScript implementation.
type ScriptRunner interface {
	// Extension is the file extension (without dot) the runner accepts.
	Extension() string

	// Run executes source, read from path, and returns its result.
	Run(path string, source []byte) (any, error)
}
