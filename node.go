package flint

// nodeIDCounter is a plain counter (no atomic — flint is single-threaded).
var nodeIDCounter uint32

func nextNodeID() uint32 {
	nodeIDCounter++
	return nodeIDCounter
}

// Node is the fundamental scene graph element. A single flat struct is used
// for every drawable kind to avoid interface dispatch on the hot path; Kind
// selects the rendering behavior.
type Node struct {
	// Identity
	ID   uint32
	Name string
	Kind NodeKind

	// Hierarchy
	Parent   *Node
	children []*Node

	// Local transform state and cached local matrix.
	Transform

	// Computed during traversal.
	worldTransform Matrix
	worldAlpha     float64
	worldDirty     bool

	// Visibility
	Alpha      float64
	Visible    bool
	Renderable bool

	// Ordering
	ZIndex      int
	RenderLayer uint8
	GlobalOrder int

	// Metadata
	UserData any

	// Geometry (KindQuad, KindMesh, KindGlyphRun). Containers leave these nil.
	Geometry *VertexBuffer
	Indices  []uint16
	Style    MeshStyle
	Blend    BlendMode
	Tint     Color

	// Filters
	Filters          []Filter
	FilterResolution float64

	// Cache fields. The cache is sticky: visual changes do not clear it,
	// only InvalidateCache (or toggling SetCached) does.
	cacheEnabled bool
	cacheDirty   bool
	cacheTexture *Texture
	cacheOffset  Vec2

	// Mask
	mask *Node

	// Internal
	disposed       bool
	childrenSorted bool
	sortedChildren []*Node // reused buffer for ZIndex-sorted traversal order
}

// nodeDefaults sets the common default field values shared by all constructors.
func nodeDefaults(n *Node) {
	n.ID = nextNodeID()
	n.initTransform()
	n.Alpha = 1
	n.Tint = ColorWhite
	n.Visible = true
	n.Renderable = true
	n.FilterResolution = 1
	n.worldDirty = true
	n.childrenSorted = true
}

// NewContainer creates a container node with no visual representation.
func NewContainer(name string) *Node {
	n := &Node{Name: name, Kind: KindContainer}
	nodeDefaults(n)
	return n
}

// NewQuad creates a solid-color rectangle of the given size. The quad's
// geometry is four vertices with premultiplied colors and two triangles.
func NewQuad(name string, width, height float64, c Color) *Node {
	n := &Node{Name: name, Kind: KindQuad}
	nodeDefaults(n)
	n.Geometry, n.Indices = buildQuad(width, height)
	n.Geometry.SetColorAll(c, c.A)
	return n
}

// NewImage creates a quad node displaying a texture region at its natural
// logical size.
func NewImage(name string, tex *Texture) *Node {
	n := &Node{Name: name, Kind: KindQuad}
	nodeDefaults(n)
	n.Geometry, n.Indices = buildTexturedQuad(tex)
	n.Style = MeshStyle{Texture: tex}
	return n
}

// NewMesh creates a node rendering arbitrary indexed triangles.
func NewMesh(name string, geom *VertexBuffer, indices []uint16, style MeshStyle) *Node {
	n := &Node{Name: name, Kind: KindMesh, Geometry: geom, Indices: indices, Style: style}
	nodeDefaults(n)
	return n
}

// NewGlyphRun creates a node for externally laid-out glyph quads: a vertex
// buffer of positioned glyph rectangles referencing a glyph atlas texture.
// Layout itself happens outside this package.
func NewGlyphRun(name string, geom *VertexBuffer, indices []uint16, atlas *Texture) *Node {
	n := &Node{Name: name, Kind: KindGlyphRun, Geometry: geom, Indices: indices}
	nodeDefaults(n)
	n.Style = MeshStyle{Texture: atlas, Smoothing: SmoothingLinear}
	return n
}

// --- Transform setters ---
// These shadow the embedded Transform setters so that changing an attribute
// also invalidates the cached world transforms of the whole subtree.

// SetPosition sets the node's position and invalidates world transforms.
func (n *Node) SetPosition(x, y float64) {
	n.Transform.SetPosition(x, y)
	markSubtreeDirty(n)
}

// SetScale sets the node's scale and invalidates world transforms.
func (n *Node) SetScale(sx, sy float64) {
	n.Transform.SetScale(sx, sy)
	markSubtreeDirty(n)
}

// SetRotation sets the node's rotation and invalidates world transforms.
func (n *Node) SetRotation(r float64) {
	n.Transform.SetRotation(r)
	markSubtreeDirty(n)
}

// SetSkew sets the node's skew and invalidates world transforms.
func (n *Node) SetSkew(sx, sy float64) {
	n.Transform.SetSkew(sx, sy)
	markSubtreeDirty(n)
}

// SetPivot sets the node's pivot and invalidates world transforms.
func (n *Node) SetPivot(px, py float64) {
	n.Transform.SetPivot(px, py)
	markSubtreeDirty(n)
}

// SetLocalMatrix assigns the local matrix directly and invalidates world
// transforms. See Transform.SetLocalMatrix for decomposition semantics.
func (n *Node) SetLocalMatrix(m Matrix) {
	n.Transform.SetLocalMatrix(m)
	markSubtreeDirty(n)
}

// MarkDirty invalidates both the local matrix and the subtree's world
// transforms. Call after writing transform fields directly.
func (n *Node) MarkDirty() {
	n.Transform.MarkDirty()
	markSubtreeDirty(n)
}

// --- Tree manipulation ---

// AddChild appends child to this node's children.
// If child already has a parent, it is removed from that parent first.
// Panics if child is nil or child is an ancestor of this node (cycle).
func (n *Node) AddChild(child *Node) {
	if child == nil {
		panic("flint: cannot add nil child")
	}
	if debugEnabled() {
		debugCheckDisposed(n, "AddChild (parent)")
		debugCheckDisposed(child, "AddChild (child)")
	}
	if isAncestor(child, n) {
		panic("flint: adding child would create a cycle")
	}
	if child.Parent != nil {
		child.Parent.removeChildByPtr(child)
	}
	child.Parent = n
	n.children = append(n.children, child)
	n.childrenSorted = false
	markSubtreeDirty(child)
	if debugEnabled() {
		debugCheckTreeDepth(child)
	}
}

// AddChildAt inserts child at the given index.
// Same reparenting and cycle-check behavior as AddChild.
func (n *Node) AddChildAt(child *Node, index int) {
	if child == nil {
		panic("flint: cannot add nil child")
	}
	if debugEnabled() {
		debugCheckDisposed(n, "AddChildAt (parent)")
		debugCheckDisposed(child, "AddChildAt (child)")
	}
	if isAncestor(child, n) {
		panic("flint: adding child would create a cycle")
	}
	if index < 0 || index > len(n.children) {
		panic("flint: child index out of range")
	}
	if child.Parent != nil {
		child.Parent.removeChildByPtr(child)
	}
	child.Parent = n
	n.children = append(n.children, nil)
	copy(n.children[index+1:], n.children[index:])
	n.children[index] = child
	n.childrenSorted = false
	markSubtreeDirty(child)
	if debugEnabled() {
		debugCheckTreeDepth(child)
	}
}

// RemoveChild detaches child from this node.
// Panics if child.Parent != n.
func (n *Node) RemoveChild(child *Node) {
	if debugEnabled() {
		debugCheckDisposed(n, "RemoveChild (parent)")
		debugCheckDisposed(child, "RemoveChild (child)")
	}
	if child.Parent != n {
		panic("flint: child's parent is not this node")
	}
	n.removeChildByPtr(child)
	child.Parent = nil
	n.childrenSorted = false
	markSubtreeDirty(child)
}

// RemoveChildAt removes and returns the child at the given index.
func (n *Node) RemoveChildAt(index int) *Node {
	if debugEnabled() {
		debugCheckDisposed(n, "RemoveChildAt")
	}
	if index < 0 || index >= len(n.children) {
		panic("flint: child index out of range")
	}
	child := n.children[index]
	copy(n.children[index:], n.children[index+1:])
	n.children[len(n.children)-1] = nil
	n.children = n.children[:len(n.children)-1]
	child.Parent = nil
	n.childrenSorted = false
	markSubtreeDirty(child)
	return child
}

// RemoveFromParent detaches this node from its parent.
// No-op if this node has no parent.
func (n *Node) RemoveFromParent() {
	if n.Parent == nil {
		return
	}
	n.Parent.RemoveChild(n)
}

// RemoveChildren detaches all children from this node.
// Children are NOT disposed.
func (n *Node) RemoveChildren() {
	for _, child := range n.children {
		child.Parent = nil
		markSubtreeDirty(child)
	}
	n.children = n.children[:0]
	n.childrenSorted = true
}

// Children returns the child list. The returned slice MUST NOT be mutated by
// the caller.
func (n *Node) Children() []*Node {
	return n.children
}

// NumChildren returns the number of children.
func (n *Node) NumChildren() int {
	return len(n.children)
}

// ChildAt returns the child at the given index.
func (n *Node) ChildAt(index int) *Node {
	return n.children[index]
}

// SetChildIndex moves child to a new index among its siblings.
func (n *Node) SetChildIndex(child *Node, index int) {
	if child.Parent != n {
		panic("flint: child's parent is not this node")
	}
	if index < 0 || index >= len(n.children) {
		panic("flint: child index out of range")
	}
	oldIndex := -1
	for i, c := range n.children {
		if c == child {
			oldIndex = i
			break
		}
	}
	if oldIndex == index {
		return
	}
	// Shift elements to fill the gap and open the target slot.
	if oldIndex < index {
		copy(n.children[oldIndex:], n.children[oldIndex+1:index+1])
	} else {
		copy(n.children[index+1:], n.children[index:oldIndex])
	}
	n.children[index] = child
	n.childrenSorted = false
}

// SetZIndex sets the node's ZIndex and marks the parent's children as unsorted.
func (n *Node) SetZIndex(z int) {
	if n.ZIndex == z {
		return
	}
	n.ZIndex = z
	if n.Parent != nil {
		n.Parent.childrenSorted = false
	}
}

// --- Masks and caching ---

// SetMask assigns a mask node: when rendering, the subtree is clipped to the
// mask's alpha. The mask is not part of the tree and is not rendered on its
// own. Pass nil to remove the mask.
func (n *Node) SetMask(mask *Node) {
	n.mask = mask
}

// Mask returns the node's mask, or nil.
func (n *Node) Mask() *Node {
	return n.mask
}

// SetCached enables or disables the sticky result cache for this node's
// filter/mask output. While enabled, the cached texture is reused every frame
// until InvalidateCache is called; visual changes beneath the node do NOT
// invalidate it. Disabling releases the cached texture.
func (n *Node) SetCached(enabled bool) {
	if enabled == n.cacheEnabled {
		return
	}
	n.cacheEnabled = enabled
	n.cacheDirty = enabled
	if !enabled {
		n.releaseCache()
	}
}

// IsCached reports whether the sticky cache is enabled.
func (n *Node) IsCached() bool {
	return n.cacheEnabled
}

// InvalidateCache forces the cached result to be re-rendered on the next
// frame. No-op when caching is disabled.
func (n *Node) InvalidateCache() {
	if n.cacheEnabled {
		n.cacheDirty = true
	}
}

func (n *Node) releaseCache() {
	if n.cacheTexture != nil {
		n.cacheTexture.Dispose()
		n.cacheTexture = nil
	}
	n.cacheDirty = false
}

// --- Disposal ---

// Dispose removes this node from its parent, marks it as disposed,
// and recursively disposes all descendants. The mask node is not disposed;
// masks may be shared.
func (n *Node) Dispose() {
	if n.disposed {
		return
	}
	n.RemoveFromParent()
	n.dispose()
}

func (n *Node) dispose() {
	n.disposed = true
	n.ID = 0
	for _, child := range n.children {
		child.Parent = nil
		child.dispose()
	}
	n.children = nil
	n.sortedChildren = nil
	n.Parent = nil
	n.Filters = nil
	n.cacheEnabled = false
	n.releaseCache()
	n.mask = nil
	n.Geometry = nil
	n.Indices = nil
	n.Style = MeshStyle{}
	n.UserData = nil
}

// IsDisposed returns true if this node has been disposed.
func (n *Node) IsDisposed() bool {
	return n.disposed
}

// --- Helpers ---

// isAncestor reports whether candidate is an ancestor of node.
func isAncestor(candidate, node *Node) bool {
	for p := node; p != nil; p = p.Parent {
		if p == candidate {
			return true
		}
	}
	return false
}

// removeChildByPtr removes child from n.children without clearing child.Parent.
// Uses copy+nil to avoid retaining a dangling pointer in the backing array.
func (n *Node) removeChildByPtr(child *Node) {
	for i, c := range n.children {
		if c == child {
			copy(n.children[i:], n.children[i+1:])
			n.children[len(n.children)-1] = nil
			n.children = n.children[:len(n.children)-1]
			return
		}
	}
}

// markSubtreeDirty sets worldDirty on node and all its descendants.
func markSubtreeDirty(node *Node) {
	node.worldDirty = true
	for _, child := range node.children {
		markSubtreeDirty(child)
	}
}

// sortedChildrenList returns the children ordered by ZIndex (stable within
// equal ZIndex), resorting lazily into a reused buffer. Insertion sort keeps
// the common already-sorted case cheap.
func (n *Node) sortedChildrenList() []*Node {
	if n.childrenSorted && len(n.sortedChildren) == len(n.children) {
		return n.sortedChildren
	}
	n.sortedChildren = append(n.sortedChildren[:0], n.children...)
	s := n.sortedChildren
	for i := 1; i < len(s); i++ {
		c := s[i]
		j := i - 1
		for j >= 0 && s[j].ZIndex > c.ZIndex {
			s[j+1] = s[j]
			j--
		}
		s[j+1] = c
	}
	n.childrenSorted = true
	return s
}
