//go:build !unix

package pathaccess

import "os"

func writable(dir string) bool {
	probe, err := os.CreateTemp(dir, ".blob-installer-probe-*")
	if err != nil {
		return false
	}

	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)

	return true
}
