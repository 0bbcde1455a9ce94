package flags

import (
	"flag"
	"strings"

	"github.com/urfave/cli"
	"github.com/veritas-l2/hextrie/pkg/util"
)

// Uint256 is a wrapper for a util.Uint256 with flag.Value methods.
type Uint256 struct {
	IsSet bool
	Value util.Uint256
}

// Uint256Flag is a flag with type util.Uint256.
type Uint256Flag struct {
	Name  string
	Usage string
	Value Uint256
}

var (
	_ flag.Value = (*Uint256)(nil)
	_ cli.Flag   = Uint256Flag{}
)

// String implements the fmt.Stringer interface.
func (u Uint256) String() string {
	return "0x" + u.Value.StringLE()
}

// Set implements the flag.Value interface.
func (u *Uint256) Set(s string) error {
	h, err := ParseUint256(s)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	u.IsSet = true
	u.Value = h
	return nil
}

// Uint256 casts the wrapper to util.Uint256.
func (u *Uint256) Uint256() util.Uint256 {
	return u.Value
}

// String returns a readable representation of this value
// (for usage defaults).
func (f Uint256Flag) String() string {
	var names []string
	eachName(f.Name, func(name string) {
		names = append(names, getNameHelp(name))
	})

	return strings.Join(names, ", ") + "\t" + f.Usage
}

// GetName returns the name of the flag.
func (f Uint256Flag) GetName() string {
	return f.Name
}

// Apply populates the flag given the flag set and environment.
// Ignores errors.
func (f Uint256Flag) Apply(set *flag.FlagSet) {
	eachName(f.Name, func(name string) {
		set.Var(&f.Value, name, f.Usage)
	})
}

// Uint256FromContext returns a parsed util.Uint256 value for the given flag
// name.
func Uint256FromContext(ctx *cli.Context, name string) Uint256 {
	return *ctx.Generic(name).(*Uint256)
}

// ParseUint256 parses a root hash from a hex string, with or without the 0x
// prefix.
func ParseUint256(s string) (util.Uint256, error) {
	return util.Uint256DecodeStringLE(strings.TrimPrefix(s, "0x"))
}
