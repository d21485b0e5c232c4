/*

Package `metastore` declares the client interfaces of the hierarchical object
store that holds research folders.  The store itself is an external service;
this package only fixes the contract that the lifecycle subsystem relies on:
key-value metadata on objects, recursive tree traversal, and access-control
grants.

Metadata attributes come in two flavors.  Single-valued attributes, such as
the folder status, are written with `SetAttr()`, which replaces any previous
value.  Multi-valued attributes, such as lock markers and action log entries,
are written with `AddAttr()`, which accumulates values; the store keeps them
in insertion order and deduplicates identical `(name, value)` pairs.

*/
package metastore

// `WalkFunc` is invoked once per tree item with the parent path, the item
// name, and whether the item is a collection.  A non-nil error stops the
// walk; the walker returns that error unchanged.
type WalkFunc func(parent, name string, isCollection bool) error

// `AttrStore` reads and writes object metadata.
type AttrStore interface {
	// `GetAttr()` returns the first value of the attribute.  `ok` is
	// false if the attribute is absent.
	GetAttr(obj, name string) (value string, ok bool, err error)

	// `SetAttr()` replaces the attribute with a single value.
	SetAttr(obj, name, value string) error

	// `AddAttr()` adds one value to a multi-valued attribute.
	AddAttr(obj, name, value string) error

	// `RemoveAttr()` removes only the value that equals `value`.  It
	// fails with `CodeNoSuchAttr` if the value is not present.
	RemoveAttr(obj, name, value string) error

	// `RemoveAttrAll()` removes the attribute with all its values in one
	// operation.
	RemoveAttrAll(obj, name string) error

	// `ListAttr()` returns all values of the attribute in storage order.
	ListAttr(obj, name string) ([]string, error)

	// `QueryByAttr()` returns the paths of all objects that carry the
	// attribute value.
	QueryByAttr(name, value string) ([]string, error)

	// `IsCollection()` discriminates collections from data objects.
	IsCollection(obj string) (bool, error)
}

// `TreeWalker` traverses the subtree below a root, including the root
// itself.  Forward order visits an item before its children; reverse order
// visits children first.
type TreeWalker interface {
	Walk(root string, reverse bool, fn WalkFunc) error
}

// `AccessControl` manages scoped access grants on objects.  `tag` identifies
// the grant for audit; it usually contains the acting user.
type AccessControl interface {
	// `Grant()` gives `group` the capability on `obj`.
	Grant(group, obj, capability, tag string) error

	// `Revoke()` reduces the group's access on `obj` back to read-only.
	Revoke(group, obj, tag string) error
}

// Access capabilities for `AccessControl.Grant()`.
const (
	CapRead  = "read"
	CapWrite = "write"
)
