package models

// SourceType tells how a row reached the caller.
type SourceType string

const (
	SourceOriginal SourceType = "original"
	SourceShared   SourceType = "shared"
)

// Permission is the access level carried by a share grant.
type Permission string

const (
	PermissionView Permission = "view"
	PermissionEdit Permission = "edit"
)

// CanEdit reports whether the permission allows writes.
func (p Permission) CanEdit() bool { return p == PermissionEdit }

// Valid reports whether p is a known permission.
func (p Permission) Valid() bool { return p == PermissionView || p == PermissionEdit }

// Provenance is the origin of a resource as seen by one user: either the user
// owns it, or it was shared with them and may have been linked to a local copy.
//
// The interface is sealed; Original and Shared are the only implementations.
type Provenance interface {
	Source() SourceType
	provenance()
}

// Original marks a resource owned by the viewing user.
type Original struct{}

func (Original) Source() SourceType { return SourceOriginal }
func (Original) provenance()        {}

// Shared marks a resource owned by OwnerID and granted to the viewing user.
// LocalLinkID is set once the recipient has linked it to a row of their own.
type Shared struct {
	OwnerID     string
	LocalLinkID *string
}

func (Shared) Source() SourceType { return SourceShared }
func (Shared) provenance()        {}

// Ref addresses a resource in one of the two id namespaces a user can see.
type Ref struct {
	Kind SourceType `json:"kind" validate:"required,oneof=original shared"`
	ID   string     `json:"id" validate:"required"`
}

// OriginalRef builds a ref into the caller's own namespace.
func OriginalRef(id string) Ref { return Ref{Kind: SourceOriginal, ID: id} }

// SharedRef builds a ref to a share row held by the caller.
func SharedRef(id string) Ref { return Ref{Kind: SourceShared, ID: id} }

// Equal compares kind and id. Ids from different namespaces never match.
func (r Ref) Equal(o Ref) bool { return r.Kind == o.Kind && r.ID == o.ID }

func (r Ref) String() string { return string(r.Kind) + ":" + r.ID }
