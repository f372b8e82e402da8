package scene

import "github.com/go-gl/mathgl/mgl64"

// Object is implemented by all scene graph nodes that can take part in a
// raycast. Leaf types embed Node and override Raycast.
type Object interface {
	Base() *Node
	Layers() Layers
	Children() []Object

	// Append any hits between the raycaster ray and the object to
	// intersects and return the updated slice.
	Raycast(rc *Raycaster, intersects []Intersection) []Intersection
}

// Node is the embeddable scene graph base. A bare node only groups its
// children and never produces hits.
type Node struct {
	Name string

	// Transform relative to the parent node.
	Matrix mgl64.Mat4

	layers   Layers
	parent   *Node
	children []Object
}

// Create a new group node assigned to the content layer.
func NewNode(name string) *Node {
	n := &Node{}
	n.Init(name)
	return n
}

// Initialize an embedded node. The node is assigned to the content layer
// and gets an identity transform.
func (n *Node) Init(name string) {
	n.Name = name
	n.Matrix = mgl64.Ident4()
	n.layers = LayersOf(LayerContent)
}

func (n *Node) Base() *Node {
	return n
}

func (n *Node) Layers() Layers {
	return n.layers
}

// Replace the layer mask of the node.
func (n *Node) SetLayers(layers Layers) {
	n.layers = layers
}

func (n *Node) Children() []Object {
	return n.children
}

func (n *Node) Parent() *Node {
	return n.parent
}

// Attach children to this node, detaching them from any previous parent.
func (n *Node) Add(children ...Object) {
	for _, child := range children {
		base := child.Base()
		if base.parent != nil {
			base.parent.Remove(child)
		}
		base.parent = n
		n.children = append(n.children, child)
	}
}

// Detach a child from this node.
func (n *Node) Remove(child Object) {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.Base().parent = nil
			return
		}
	}
}

// Compose the node matrix with the matrices of all its ancestors.
func (n *Node) MatrixWorld() mgl64.Mat4 {
	m := n.Matrix
	for p := n.parent; p != nil; p = p.parent {
		m = p.Matrix.Mul4(m)
	}
	return m
}

// Nodes without geometry never produce hits.
func (n *Node) Raycast(rc *Raycaster, intersects []Intersection) []Intersection {
	return intersects
}

// Visit root and all its descendants depth first.
func Traverse(root Object, fn func(Object)) {
	fn(root)
	for _, child := range root.Children() {
		Traverse(child, fn)
	}
}
