package registry

import "fmt"

// GlobalImplID identifies one Implementation across every module.
type GlobalImplID uint32

// AssocValueID identifies one AssociatedTypeValue across every module.
type AssocValueID uint32

// Invalid ID constants (zero is sentinel).
const (
	NoImplID       GlobalImplID = 0
	NoAssocValueID AssocValueID = 0
)

// IsValid returns true if the ID is valid (non-zero).
func (id GlobalImplID) IsValid() bool { return id != NoImplID }
func (id AssocValueID) IsValid() bool { return id != NoAssocValueID }

func (id GlobalImplID) String() string { return fmt.Sprintf("impl#%d", uint32(id)) }
func (id AssocValueID) String() string { return fmt.Sprintf("assoc#%d", uint32(id)) }

// ImplKey is the declaring-scope identity of a user implementation: the
// module that declared it and its index within that module. Keys are only
// locally meaningful; GlobalImplID is the flat handle.
type ImplKey struct {
	Module string
	Local  int
}

func (k ImplKey) String() string { return fmt.Sprintf("%s#%d", k.Module, k.Local) }
