// Filesystem provides a common interface for reading the attribute trees the kernel exposes under
// sysfs and for writing the few attributes that accept input (such as error clear registers). It
// allows applications to seamlessly mock sysfs for testing.
//
// Example choosing a real or mock file system:
//
//	var fsys filesystem.Provider = filesystem.OSFS{}
//	if testing {
//	    fsys = filesystem.NewMockFS()
//	}
package filesystem
