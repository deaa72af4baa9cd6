package benchmark

import (
	"fmt"
	"os/exec"
)

// FindExecutable resolves binName against $PATH and returns its absolute
// path. Real experiments should prefer pinned absolute interpreter paths;
// $PATH lookup is a convenience for development setups.
func FindExecutable(binName string) (string, error) {
	path, err := exec.LookPath(binName)
	if err != nil {
		return "", fmt.Errorf("could not find %s on $PATH: %w", binName, err)
	}
	return path, nil
}
