package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/nogdb/nogdb/pkg/codec"
	"github.com/nogdb/nogdb/pkg/errs"
	"github.com/nogdb/nogdb/pkg/kv"
)

// Catalog is the schema half of a transaction: class/property/index
// definitions over a single-inheritance class forest with typed,
// home-scoped properties.
type Catalog struct {
	txn  *kv.Txn
	mode Mode
}

func newCatalog(txn *kv.Txn, mode Mode) *Catalog {
	return &Catalog{txn: txn, mode: mode}
}

// Secondary name-lookup sub-maps: class name -> classID, and
// (classID, propName) -> propertyID, so AddClass/AddProperty/lookups don't
// need a full catalog scan for the common case.
const (
	subMapClassNames    = "catalog::class_names"
	subMapPropertyNames = "catalog::property_names"
	subMapIndexByProp   = "catalog::index_by_prop"
)

func propNameKey(classID uint16, name string) []byte {
	b := make([]byte, 2, 2+len(name))
	binary.BigEndian.PutUint16(b, classID)
	return append(b, name...)
}

func indexByPropKey(classID, propertyID uint16) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint16(b[0:2], classID)
	binary.BigEndian.PutUint16(b[2:4], propertyID)
	return b
}

func requireWritable(mode Mode) error {
	if !mode.writable() {
		return errs.New(errs.ClosedTransaction, "transaction is read-only")
	}
	return nil
}

// --- Class encoding ---

func encodeClass(c Class) []byte {
	out := make([]byte, 0, 1+2+2+len(c.Name))
	out = append(out, byte(c.Kind))
	out = binary.BigEndian.AppendUint16(out, c.ParentID)
	out = binary.BigEndian.AppendUint16(out, uint16(len(c.Name)))
	out = append(out, c.Name...)
	return out
}

func decodeClass(id uint16, b []byte) (Class, error) {
	if len(b) < 5 {
		return Class{}, fmt.Errorf("storage: truncated class record")
	}
	kind := ClassKind(b[0])
	parentID := binary.BigEndian.Uint16(b[1:3])
	nameLen := binary.BigEndian.Uint16(b[3:5])
	if len(b) < 5+int(nameLen) {
		return Class{}, fmt.Errorf("storage: truncated class name")
	}
	name := string(b[5 : 5+nameLen])
	return Class{ID: id, Name: name, Kind: kind, ParentID: parentID}, nil
}

// --- Property encoding ---

func encodeProperty(p Property) []byte {
	out := make([]byte, 0, 2+1+2+len(p.Name))
	out = binary.BigEndian.AppendUint16(out, p.ClassID)
	out = append(out, byte(p.Type))
	out = binary.BigEndian.AppendUint16(out, uint16(len(p.Name)))
	out = append(out, p.Name...)
	return out
}

func decodeProperty(id uint16, b []byte) (Property, error) {
	if len(b) < 5 {
		return Property{}, fmt.Errorf("storage: truncated property record")
	}
	classID := binary.BigEndian.Uint16(b[0:2])
	typ := codec.PropertyType(b[2])
	nameLen := binary.BigEndian.Uint16(b[3:5])
	if len(b) < 5+int(nameLen) {
		return Property{}, fmt.Errorf("storage: truncated property name")
	}
	name := string(b[5 : 5+nameLen])
	return Property{ID: id, ClassID: classID, Name: name, Type: typ}, nil
}

// --- Index encoding ---

func encodeIndex(ix Index) []byte {
	out := make([]byte, 5)
	binary.BigEndian.PutUint16(out[0:2], ix.ClassID)
	binary.BigEndian.PutUint16(out[2:4], ix.PropertyID)
	if ix.Unique {
		out[4] = 1
	}
	return out
}

func decodeIndex(id uint32, b []byte) (Index, error) {
	if len(b) < 5 {
		return Index{}, fmt.Errorf("storage: truncated index record")
	}
	return Index{
		ID:         id,
		ClassID:    binary.BigEndian.Uint16(b[0:2]),
		PropertyID: binary.BigEndian.Uint16(b[2:4]),
		Unique:     b[4] == 1,
	}, nil
}

// --- Classes ---

// AddClass registers a new class. parentName is "" for a base class.
func (c *Catalog) AddClass(name string, kind ClassKind, parentName string) (Class, error) {
	if err := requireWritable(c.mode); err != nil {
		return Class{}, err
	}
	if name == "" {
		return Class{}, errs.New(errs.InvalidClassName, "class name must not be empty")
	}
	if kind != Vertex && kind != Edge {
		return Class{}, errs.New(errs.InvalidClassType, "unknown class kind %d", kind)
	}
	if _, ok, err := c.txn.Get(subMapClassNames, []byte(name)); err != nil {
		return Class{}, err
	} else if ok {
		return Class{}, errs.New(errs.DuplicateClass, "class %q already exists", name)
	}

	var parentID uint16
	if parentName != "" {
		parent, err := c.GetClass(parentName)
		if err != nil {
			return Class{}, err
		}
		if parent.Kind != kind {
			return Class{}, errs.New(errs.InvalidClassType, "class %q cannot extend %q of a different kind", name, parentName)
		}
		parentID = parent.ID
	}

	id, err := nextSeq(c.txn, counterClassID)
	if err != nil {
		return Class{}, err
	}
	cls := Class{ID: uint16(id), Name: name, Kind: kind, ParentID: parentID}
	if err := c.txn.Put(subMapClasses, classKey(cls.ID), encodeClass(cls)); err != nil {
		return Class{}, err
	}
	if err := c.txn.Put(subMapClassNames, []byte(name), classKey(cls.ID)); err != nil {
		return Class{}, err
	}
	return cls, nil
}

// AddSubClass registers a new class extending baseName; its kind is
// inherited from the base.
func (c *Catalog) AddSubClass(baseName, name string) (Class, error) {
	if err := requireWritable(c.mode); err != nil {
		return Class{}, err
	}
	base, err := c.GetClass(baseName)
	if err != nil {
		return Class{}, err
	}
	return c.AddClass(name, base.Kind, baseName)
}

// GetClass resolves a class by name.
func (c *Catalog) GetClass(name string) (Class, error) {
	raw, ok, err := c.txn.Get(subMapClassNames, []byte(name))
	if err != nil {
		return Class{}, err
	}
	if !ok {
		return Class{}, errs.New(errs.NoExistClass, "class %q does not exist", name)
	}
	return c.GetClassByID(decodeClassKey(raw))
}

// GetClassByID resolves a class by its numeric ID.
func (c *Catalog) GetClassByID(id uint16) (Class, error) {
	raw, ok, err := c.txn.Get(subMapClasses, classKey(id))
	if err != nil {
		return Class{}, err
	}
	if !ok {
		return Class{}, errs.New(errs.NoExistClass, "class id %d does not exist", id)
	}
	return decodeClass(id, raw)
}

// ListClasses returns every class in the catalog, ordered by ID.
func (c *Catalog) ListClasses() ([]Class, error) {
	it := c.txn.ScanPrefix(subMapClasses, nil)
	defer it.Close()

	var out []Class
	for ; it.Valid(); it.Next() {
		id := decodeClassKey(it.Key())
		v, err := it.Value()
		if err != nil {
			return nil, err
		}
		cls, err := decodeClass(id, v)
		if err != nil {
			return nil, err
		}
		out = append(out, cls)
	}
	return out, nil
}

// ancestors returns classID's base classes, nearest first, excluding classID
// itself.
func (c *Catalog) ancestors(classID uint16) ([]uint16, error) {
	var out []uint16
	cur := classID
	for {
		cls, err := c.GetClassByID(cur)
		if err != nil {
			return nil, err
		}
		if !cls.HasParent() {
			return out, nil
		}
		out = append(out, cls.ParentID)
		cur = cls.ParentID
	}
}

// descendants returns every class transitively extending classID, in no
// particular order, excluding classID itself.
func (c *Catalog) descendants(classID uint16) ([]uint16, error) {
	all, err := c.ListClasses()
	if err != nil {
		return nil, err
	}
	children := make(map[uint16][]uint16, len(all))
	for _, cls := range all {
		if cls.HasParent() {
			children[cls.ParentID] = append(children[cls.ParentID], cls.ID)
		}
	}
	var out []uint16
	queue := append([]uint16{}, children[classID]...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		out = append(out, id)
		queue = append(queue, children[id]...)
	}
	return out, nil
}

// DropClass removes a class, its directly-declared properties, and its
// catalog row. It removes no index: if any of the class's own properties is
// indexed, the call fails with CTX_IN_USED_PROPERTY (see dropClassPrecheck)
// and nothing is dropped. Dropping a class with live subclasses does not fail:
// its direct children survive as parent-less classes (they lose the dropped
// base but are not themselves removed).
// Cascading removal of this class's (and its descendants') *records* is a
// storage.Txn-level composite operation (see storage.Txn.DropClass) since
// Catalog alone has no access to RecordStore; this method only updates
// schema state.
func (c *Catalog) DropClass(name string) error {
	if err := requireWritable(c.mode); err != nil {
		return err
	}
	cls, err := c.GetClass(name)
	if err != nil {
		return err
	}

	if err := c.dropClassPrecheck(cls); err != nil {
		return err
	}
	props, err := c.ownProperties(cls.ID)
	if err != nil {
		return err
	}

	all, err := c.ListClasses()
	if err != nil {
		return err
	}
	for _, child := range all {
		if child.ParentID == cls.ID {
			child.ParentID = noParent
			if err := c.txn.Put(subMapClasses, classKey(child.ID), encodeClass(child)); err != nil {
				return err
			}
		}
	}

	for _, p := range props {
		if err := c.txn.Delete(subMapProperties, propertyKey(p.ID)); err != nil {
			return err
		}
		if err := c.txn.Delete(subMapPropertyNames, propNameKey(cls.ID, p.Name)); err != nil {
			return err
		}
	}
	if err := c.txn.Delete(subMapClasses, classKey(cls.ID)); err != nil {
		return err
	}
	return c.txn.Delete(subMapClassNames, []byte(name))
}

// dropClassPrecheck is the schema-level rejection shared by Catalog.DropClass
// and the record-cascading storage.Txn.DropClass: a class whose property is
// still indexed cannot be dropped. An index created through a descendant on
// an inherited property lives on the property's home class, so this also
// catches the indexed-by-descendant case.
func (c *Catalog) dropClassPrecheck(cls Class) error {
	props, err := c.ownProperties(cls.ID)
	if err != nil {
		return err
	}
	for _, p := range props {
		if _, ok, err := c.getIndexByProp(p.ClassID, p.ID); err != nil {
			return err
		} else if ok {
			return errs.New(errs.InUsedProperty, "property %q is indexed; drop the index first", p.Name)
		}
	}
	return nil
}

// RenameClass gives an existing class a new, unused name. Renaming a class
// to its current name is a no-op, not a duplicate-name error.
func (c *Catalog) RenameClass(oldName, newName string) (Class, error) {
	if err := requireWritable(c.mode); err != nil {
		return Class{}, err
	}
	if newName == "" {
		return Class{}, errs.New(errs.InvalidClassName, "class name must not be empty")
	}
	cls, err := c.GetClass(oldName)
	if err != nil {
		return Class{}, err
	}
	if oldName == newName {
		return cls, nil
	}
	if _, ok, err := c.txn.Get(subMapClassNames, []byte(newName)); err != nil {
		return Class{}, err
	} else if ok {
		return Class{}, errs.New(errs.DuplicateClass, "class %q already exists", newName)
	}
	cls.Name = newName
	if err := c.txn.Put(subMapClasses, classKey(cls.ID), encodeClass(cls)); err != nil {
		return Class{}, err
	}
	if err := c.txn.Delete(subMapClassNames, []byte(oldName)); err != nil {
		return Class{}, err
	}
	if err := c.txn.Put(subMapClassNames, []byte(newName), classKey(cls.ID)); err != nil {
		return Class{}, err
	}
	return cls, nil
}

// --- Properties ---

// ownProperties returns the properties declared directly on classID (not
// inherited).
func (c *Catalog) ownProperties(classID uint16) ([]Property, error) {
	it := c.txn.ScanPrefix(subMapProperties, nil)
	defer it.Close()

	var out []Property
	for ; it.Valid(); it.Next() {
		id := decodePropertyKey(it.Key())
		v, err := it.Value()
		if err != nil {
			return nil, err
		}
		p, err := decodeProperty(id, v)
		if err != nil {
			return nil, err
		}
		if p.ClassID == classID {
			out = append(out, p)
		}
	}
	return out, nil
}

// findOwnProperty looks up a property declared directly on classID by name.
func (c *Catalog) findOwnProperty(classID uint16, name string) (Property, bool, error) {
	raw, ok, err := c.txn.Get(subMapPropertyNames, propNameKey(classID, name))
	if err != nil || !ok {
		return Property{}, false, err
	}
	p, err := c.getPropertyByID(decodePropertyKey(raw))
	if err != nil {
		return Property{}, false, err
	}
	return p, true, nil
}

func (c *Catalog) getPropertyByID(id uint16) (Property, error) {
	raw, ok, err := c.txn.Get(subMapProperties, propertyKey(id))
	if err != nil {
		return Property{}, err
	}
	if !ok {
		return Property{}, errs.New(errs.NoExistProperty, "property id %d does not exist", id)
	}
	return decodeProperty(id, raw)
}

// checkNameConflict enforces that name is unique across classID's entire
// ancestor/descendant chain. Any such collision is rejected regardless of
// whether the colliding declarations use the same property type.
func (c *Catalog) checkNameConflict(classID uint16, name string) error {
	ancestors, err := c.ancestors(classID)
	if err != nil {
		return err
	}
	for _, aid := range ancestors {
		if _, ok, err := c.findOwnProperty(aid, name); err != nil {
			return err
		} else if ok {
			return errs.New(errs.OverrideProperty, "property %q conflicts with an ancestor class", name)
		}
	}
	descendants, err := c.descendants(classID)
	if err != nil {
		return err
	}
	for _, did := range descendants {
		if _, ok, err := c.findOwnProperty(did, name); err != nil {
			return err
		} else if ok {
			return errs.New(errs.OverrideProperty, "property %q conflicts with a descendant class", name)
		}
	}
	return nil
}

// AddProperty declares a new property directly on className.
func (c *Catalog) AddProperty(className, propName string, typ codec.PropertyType) (Property, error) {
	if err := requireWritable(c.mode); err != nil {
		return Property{}, err
	}
	if codec.IsReserved(propName) {
		return Property{}, errs.New(errs.InvalidPropertyName, "property name %q is reserved", propName)
	}
	cls, err := c.GetClass(className)
	if err != nil {
		return Property{}, err
	}
	if _, ok, err := c.findOwnProperty(cls.ID, propName); err != nil {
		return Property{}, err
	} else if ok {
		return Property{}, errs.New(errs.DuplicateProperty, "property %q already declared on %q", propName, className)
	}
	if err := c.checkNameConflict(cls.ID, propName); err != nil {
		return Property{}, err
	}

	id, err := nextSeq(c.txn, counterPropertyID)
	if err != nil {
		return Property{}, err
	}
	p := Property{ID: uint16(id), ClassID: cls.ID, Name: propName, Type: typ}
	if err := c.txn.Put(subMapProperties, propertyKey(p.ID), encodeProperty(p)); err != nil {
		return Property{}, err
	}
	if err := c.txn.Put(subMapPropertyNames, propNameKey(cls.ID, propName), propertyKey(p.ID)); err != nil {
		return Property{}, err
	}
	return p, nil
}

// DropProperty removes a property declared directly on className. It is an
// error to name an inherited property here; drop it from the class that
// declares it.
func (c *Catalog) DropProperty(className, propName string) error {
	if err := requireWritable(c.mode); err != nil {
		return err
	}
	cls, err := c.GetClass(className)
	if err != nil {
		return err
	}
	p, ok, err := c.findOwnProperty(cls.ID, propName)
	if err != nil {
		return err
	}
	if !ok {
		return errs.New(errs.NoExistProperty, "property %q is not declared on %q", propName, className)
	}
	if _, ok, err := c.getIndexByProp(cls.ID, p.ID); err != nil {
		return err
	} else if ok {
		return errs.New(errs.InUsedProperty, "property %q is indexed; drop the index first", propName)
	}
	if err := c.txn.Delete(subMapProperties, propertyKey(p.ID)); err != nil {
		return err
	}
	return c.txn.Delete(subMapPropertyNames, propNameKey(cls.ID, propName))
}

// RenameProperty gives a directly-declared property a new, conflict-free
// name.
func (c *Catalog) RenameProperty(className, oldName, newName string) (Property, error) {
	if err := requireWritable(c.mode); err != nil {
		return Property{}, err
	}
	cls, err := c.GetClass(className)
	if err != nil {
		return Property{}, err
	}
	p, ok, err := c.findOwnProperty(cls.ID, oldName)
	if err != nil {
		return Property{}, err
	}
	if !ok {
		return Property{}, errs.New(errs.NoExistProperty, "property %q is not declared on %q", oldName, className)
	}
	if codec.IsReserved(newName) {
		return Property{}, errs.New(errs.InvalidPropertyName, "property name %q is reserved", newName)
	}
	if err := c.checkNameConflict(cls.ID, newName); err != nil {
		return Property{}, err
	}
	if _, ok, err := c.findOwnProperty(cls.ID, newName); err != nil {
		return Property{}, err
	} else if ok {
		return Property{}, errs.New(errs.DuplicateProperty, "property %q already declared on %q", newName, className)
	}

	p.Name = newName
	if err := c.txn.Put(subMapProperties, propertyKey(p.ID), encodeProperty(p)); err != nil {
		return Property{}, err
	}
	if err := c.txn.Delete(subMapPropertyNames, propNameKey(cls.ID, oldName)); err != nil {
		return Property{}, err
	}
	if err := c.txn.Put(subMapPropertyNames, propNameKey(cls.ID, newName), propertyKey(p.ID)); err != nil {
		return Property{}, err
	}
	return p, nil
}

// GetProperties returns every property visible on className: its own plus
// every ancestor's, each tagged with whether it was inherited.
func (c *Catalog) GetProperties(className string) ([]ResolvedProperty, error) {
	cls, err := c.GetClass(className)
	if err != nil {
		return nil, err
	}
	var out []ResolvedProperty
	own, err := c.ownProperties(cls.ID)
	if err != nil {
		return nil, err
	}
	for _, p := range own {
		out = append(out, ResolvedProperty{Property: p, Inherited: false})
	}
	ancestors, err := c.ancestors(cls.ID)
	if err != nil {
		return nil, err
	}
	for _, aid := range ancestors {
		aprops, err := c.ownProperties(aid)
		if err != nil {
			return nil, err
		}
		for _, p := range aprops {
			out = append(out, ResolvedProperty{Property: p, Inherited: true})
		}
	}
	return out, nil
}

// resolveProperty finds the property named name as visible from classID,
// walking up the ancestor chain if it isn't declared directly on classID.
func (c *Catalog) resolveProperty(classID uint16, name string) (ResolvedProperty, bool, error) {
	if p, ok, err := c.findOwnProperty(classID, name); err != nil {
		return ResolvedProperty{}, false, err
	} else if ok {
		return ResolvedProperty{Property: p, Inherited: false}, true, nil
	}
	ancestors, err := c.ancestors(classID)
	if err != nil {
		return ResolvedProperty{}, false, err
	}
	for _, aid := range ancestors {
		if p, ok, err := c.findOwnProperty(aid, name); err != nil {
			return ResolvedProperty{}, false, err
		} else if ok {
			return ResolvedProperty{Property: p, Inherited: true}, true, nil
		}
	}
	return ResolvedProperty{}, false, nil
}

// ResolveProperty finds the property named propName as visible from
// className, walking up the ancestor chain if className doesn't declare it
// directly. Exported for the query engine's filter evaluator.
func (c *Catalog) ResolveProperty(className, propName string) (ResolvedProperty, bool, error) {
	cls, err := c.GetClass(className)
	if err != nil {
		return ResolvedProperty{}, false, err
	}
	return c.resolveProperty(cls.ID, propName)
}

// GetProperty is ResolveProperty with an absent property reported as
// CTX_NOEXST_PROPERTY instead of an ok flag.
func (c *Catalog) GetProperty(className, propName string) (ResolvedProperty, error) {
	p, ok, err := c.ResolveProperty(className, propName)
	if err != nil {
		return ResolvedProperty{}, err
	}
	if !ok {
		return ResolvedProperty{}, errs.New(errs.NoExistProperty, "property %q is not visible on %q", propName, className)
	}
	return p, nil
}

// Subclasses returns every class transitively extending className (not
// including className itself). Exported for find_subclass_of and cascading
// drop/traverse operations in the query engine.
func (c *Catalog) Subclasses(className string) ([]Class, error) {
	cls, err := c.GetClass(className)
	if err != nil {
		return nil, err
	}
	ids, err := c.descendants(cls.ID)
	if err != nil {
		return nil, err
	}
	out := make([]Class, 0, len(ids))
	for _, id := range ids {
		child, err := c.GetClassByID(id)
		if err != nil {
			return nil, err
		}
		out = append(out, child)
	}
	return out, nil
}

// --- Indexes ---

func (c *Catalog) getIndexByProp(classID, propertyID uint16) (Index, bool, error) {
	raw, ok, err := c.txn.Get(subMapIndexByProp, indexByPropKey(classID, propertyID))
	if err != nil || !ok {
		return Index{}, false, err
	}
	ix, err := c.getIndexByID(decodeIndexKey(raw))
	if err != nil {
		return Index{}, false, err
	}
	return ix, true, nil
}

func (c *Catalog) getIndexByID(id uint32) (Index, error) {
	raw, ok, err := c.txn.Get(subMapIndexes, indexKey(id))
	if err != nil {
		return Index{}, err
	}
	if !ok {
		return Index{}, errs.New(errs.NoExistIndex, "index id %d does not exist", id)
	}
	return decodeIndex(id, raw)
}

// AddIndex creates the catalog entry for a secondary index over className's
// propName. propName may be inherited: the index is always keyed by the
// property's home class, so a subtree of classes sharing an inherited
// property also share one index — consulted from any of them and populated
// regardless of which subclass instance wrote the value. This method only
// creates the catalog row; scanning and populating existing records (with
// the uniqueness pre-population check) is the composite operation at
// storage.Txn.AddIndex, which wraps this plus RecordStore/IndexEngine.
func (c *Catalog) AddIndex(className, propName string, unique bool) (Index, error) {
	if err := requireWritable(c.mode); err != nil {
		return Index{}, err
	}
	cls, err := c.GetClass(className)
	if err != nil {
		return Index{}, err
	}
	p, ok, err := c.resolveProperty(cls.ID, propName)
	if err != nil {
		return Index{}, err
	}
	if !ok {
		return Index{}, errs.New(errs.NoExistProperty, "property %q is not declared on %q", propName, className)
	}
	if _, ok, err := c.getIndexByProp(p.ClassID, p.ID); err != nil {
		return Index{}, err
	} else if ok {
		return Index{}, errs.New(errs.DuplicateIndex, "property %q is already indexed", propName)
	}
	if !p.Type.IsNumeric() && p.Type != codec.Text {
		return Index{}, errs.New(errs.InvalidPropTypeIndex, "property type %s is not indexable", p.Type)
	}

	id, err := nextSeq(c.txn, counterIndexID)
	if err != nil {
		return Index{}, err
	}
	ix := Index{ID: uint32(id), ClassID: p.ClassID, PropertyID: p.ID, Unique: unique}
	if err := c.txn.Put(subMapIndexes, indexKey(ix.ID), encodeIndex(ix)); err != nil {
		return Index{}, err
	}
	if err := c.txn.Put(subMapIndexByProp, indexByPropKey(p.ClassID, p.ID), indexKey(ix.ID)); err != nil {
		return Index{}, err
	}
	return ix, nil
}

// DropIndex removes the secondary index reachable from className's propName
// (own or inherited).
func (c *Catalog) DropIndex(className, propName string) (Index, error) {
	if err := requireWritable(c.mode); err != nil {
		return Index{}, err
	}
	cls, err := c.GetClass(className)
	if err != nil {
		return Index{}, err
	}
	p, ok, err := c.resolveProperty(cls.ID, propName)
	if err != nil {
		return Index{}, err
	}
	if !ok {
		return Index{}, errs.New(errs.NoExistProperty, "property %q is not declared on %q", propName, className)
	}
	ix, ok, err := c.getIndexByProp(p.ClassID, p.ID)
	if err != nil {
		return Index{}, err
	}
	if !ok {
		return Index{}, errs.New(errs.NoExistIndex, "property %q is not indexed", propName)
	}
	if err := c.txn.Delete(subMapIndexes, indexKey(ix.ID)); err != nil {
		return Index{}, err
	}
	if err := c.txn.Delete(subMapIndexByProp, indexByPropKey(p.ClassID, p.ID)); err != nil {
		return Index{}, err
	}
	return ix, nil
}

// GetIndex looks up the index reachable from className's propName (own or
// inherited), if any.
func (c *Catalog) GetIndex(className, propName string) (Index, bool, error) {
	cls, err := c.GetClass(className)
	if err != nil {
		return Index{}, false, err
	}
	p, ok, err := c.resolveProperty(cls.ID, propName)
	if err != nil || !ok {
		return Index{}, false, err
	}
	return c.getIndexByProp(p.ClassID, p.ID)
}

// ListProperties returns every property in the catalog, regardless of
// owning class. Used by DBInfo's NumProperty.
func (c *Catalog) ListProperties() ([]Property, error) {
	it := c.txn.ScanPrefix(subMapProperties, nil)
	defer it.Close()
	var out []Property
	for ; it.Valid(); it.Next() {
		id := decodePropertyKey(it.Key())
		v, err := it.Value()
		if err != nil {
			return nil, err
		}
		p, err := decodeProperty(id, v)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// ListIndexes returns every index in the catalog. Used by DBInfo's
// NumIndex.
func (c *Catalog) ListIndexes() ([]Index, error) {
	it := c.txn.ScanPrefix(subMapIndexes, nil)
	defer it.Close()
	var out []Index
	for ; it.Valid(); it.Next() {
		id := decodeIndexKey(it.Key())
		v, err := it.Value()
		if err != nil {
			return nil, err
		}
		ix, err := decodeIndex(id, v)
		if err != nil {
			return nil, err
		}
		out = append(out, ix)
	}
	return out, nil
}
