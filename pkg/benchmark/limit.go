package benchmark

import "fmt"

// Limit is a memory size limit in bytes.
type Limit uint64

// KiB returns a limit of n kibibytes.
func KiB(n uint64) Limit { return Limit(n << 10) }

// MiB returns a limit of n mebibytes.
func MiB(n uint64) Limit { return Limit(n << 20) }

// GiB returns a limit of n gibibytes.
func GiB(n uint64) Limit { return Limit(n << 30) }

// Bytes returns the limit in bytes.
func (l Limit) Bytes() uint64 { return uint64(l) }

func (l Limit) String() string {
	switch {
	case l >= 1<<30 && l%(1<<30) == 0:
		return fmt.Sprintf("%dGiB", uint64(l)>>30)
	case l >= 1<<20 && l%(1<<20) == 0:
		return fmt.Sprintf("%dMiB", uint64(l)>>20)
	case l >= 1<<10 && l%(1<<10) == 0:
		return fmt.Sprintf("%dKiB", uint64(l)>>10)
	default:
		return fmt.Sprintf("%dB", uint64(l))
	}
}
