package mesh

import (
	"github.com/achilleasa/raypick/geom"
	"github.com/achilleasa/raypick/scene"
	"github.com/go-gl/mathgl/mgl64"
)

// Material carries the surface properties that affect raycasting.
type Material struct {
	Name string
	Side geom.Side
}

// Skeleton is a set of bones and the inverse of their bind pose world
// matrices.
type Skeleton struct {
	Bones        []*scene.Node
	BoneInverses []mgl64.Mat4
}

// Create a skeleton whose bind pose is the current bone pose.
func NewSkeleton(bones ...*scene.Node) *Skeleton {
	s := &Skeleton{Bones: bones}
	for _, bone := range bones {
		s.BoneInverses = append(s.BoneInverses, bone.MatrixWorld().Inv())
	}
	return s
}

// Skin binds a mesh to a skeleton.
type Skin struct {
	Skeleton          *Skeleton
	BindMatrix        mgl64.Mat4
	BindMatrixInverse mgl64.Mat4
}

func NewSkin(skeleton *Skeleton, bindMatrix mgl64.Mat4) *Skin {
	return &Skin{
		Skeleton:          skeleton,
		BindMatrix:        bindMatrix,
		BindMatrixInverse: bindMatrix.Inv(),
	}
}

// Apply the weighted bone transforms of a vertex to its bind pose position.
func (s *Skin) BoneTransform(g *Geometry, vertex int, v mgl64.Vec3) mgl64.Vec3 {
	if g.SkinIndex == nil || g.SkinWeight == nil {
		return v
	}

	base := mgl64.TransformCoordinate(v, s.BindMatrix)
	var out mgl64.Vec3
	for i := 0; i < 4; i++ {
		weight := g.SkinWeight.Component(vertex, i)
		if weight == 0 {
			continue
		}

		boneIndex := int(g.SkinIndex.Component(vertex, i))
		boneMatrix := s.Skeleton.Bones[boneIndex].MatrixWorld().Mul4(s.Skeleton.BoneInverses[boneIndex])
		out = out.Add(mgl64.TransformCoordinate(base, boneMatrix).Mul(weight))
	}
	return mgl64.TransformCoordinate(out, s.BindMatrixInverse)
}
