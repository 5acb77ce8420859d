package library

// Reveal asks the host desktop to open a file manager window focused on
// nativePath. It is an optional convenience entirely outside the
// search/index path: nothing in Library calls it, and a platform where it
// isn't supported simply reports that back to the caller.
func (l *Library) Reveal(nativePath string) error {
	return reveal(nativePath)
}
