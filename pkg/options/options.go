// Package options defines reusable configuration blocks, one per external
// concern, each carrying defaults, validation and pflag bindings.
package options

import (
	"fmt"
	"net"

	"github.com/spf13/pflag"
)

// IOptions is implemented by every option block.
type IOptions interface {
	// Validate parses and validates the user-supplied parameters.
	Validate() []error

	// AddFlags adds the block's flags to the given flag set.
	AddFlags(fs *pflag.FlagSet)
}

// ValidateAddress checks that addr is a host:port string.
func ValidateAddress(addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}
	return nil
}
