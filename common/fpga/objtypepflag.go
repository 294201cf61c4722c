package fpga

import (
	"fmt"
	"strings"
)

// Used for reading in an ObjType from cobra or pflag Flag. Implements pflag.Value.
type ObjTypePFlag struct {
	into     *ObjType
	accepted []ObjType
}

// The returned pointer can be passed to cobra.Command.Flags().Var() to read in an ObjType from the
// user. into specifies where the parsed input shall be written to and also provides the default
// value (none if InvalidObjType).
func NewObjTypePFlag(into *ObjType, accepted ...ObjType) *ObjTypePFlag {
	return &ObjTypePFlag{
		into:     into,
		accepted: accepted,
	}
}

// Implement pflag.Value
func (o *ObjTypePFlag) Type() string {
	return "objType"
}

// Implement pflag.Value
func (o *ObjTypePFlag) String() string {
	if o.into != nil && *o.into != InvalidObjType {
		return (*o.into).String()
	}
	return ""
}

// Implement pflag.Value
func (o *ObjTypePFlag) Set(v string) error {
	*o.into = ObjTypeFromString(v)

	acceptedList := []string{}
	for _, a := range o.accepted {
		if *o.into == a {
			return nil
		}
		acceptedList = append(acceptedList, fmt.Sprintf("'%s'", a))
	}
	return fmt.Errorf("invalid object type '%s' - allowed are %s", v, strings.Join(acceptedList, ", "))
}
