//go:build windows

package preflight

import "os"

// Windows ACLs are not reflected in mode bits; probe with a scratch file.
func accessWrite(path string) error {
	f, err := os.CreateTemp(path, ".reel-access-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func accessReadWrite(path string) error {
	if _, err := os.ReadDir(path); err != nil {
		return err
	}
	return accessWrite(path)
}
