package scene

import (
	"fmt"

	"github.com/achilleasa/raypick/geom"
	"github.com/go-gl/mathgl/mgl64"
)

// Stores the ray directions at the four corners of the camera frustum. It is
// used as a shortcut for generating per pixel rays via interpolation of the
// corner rays. Corners are ordered TL, TR, BL, BR.
type CornerRays [4]mgl64.Vec3

func (cr CornerRays) String() string {
	return fmt.Sprintf(
		"Corner Rays:\nTL : (%3.3f, %3.3f, %3.3f)\nTR : (%3.3f, %3.3f, %3.3f)\nBL : (%3.3f, %3.3f, %3.3f)\nBR : (%3.3f, %3.3f, %3.3f)",
		cr[0][0], cr[0][1], cr[0][2],
		cr[1][0], cr[1][1], cr[1][2],
		cr[2][0], cr[2][1], cr[2][2],
		cr[3][0], cr[3][1], cr[3][2],
	)
}

// The camera type controls the picking camera.
type Camera struct {
	Position mgl64.Vec3
	LookAt   mgl64.Vec3
	Up       mgl64.Vec3

	// Rotations in radians applied by the next call to Update.
	Pitch float64
	Yaw   float64

	ViewMat    mgl64.Mat4
	ProjMat    mgl64.Mat4
	CornerRays CornerRays

	// Vertical FOV in degrees.
	FOV float64

	// Clip planes.
	Near float64
	Far  float64

	// Flip the corner rays so that Y points down.
	InvertY bool
}

func NewCamera(fov float64) *Camera {
	return &Camera{
		ViewMat:  mgl64.Ident4(),
		ProjMat:  mgl64.Ident4(),
		Position: mgl64.Vec3{0, 0, 0},
		LookAt:   mgl64.Vec3{0, 0, -1},
		Up:       mgl64.Vec3{0, 1, 0},
		FOV:      fov,
		Near:     1,
		Far:      1000,
	}
}

// Setup camera projection matrix.
func (c *Camera) SetupProjection(aspect float64) {
	c.ProjMat = mgl64.Perspective(mgl64.DegToRad(c.FOV), aspect, c.Near, c.Far)
	c.Update()
}

// Update camera. Any pending pitch and yaw rotations are applied to the
// look direction and reset.
func (c *Camera) Update() {
	dir := c.LookAt.Sub(c.Position).Normalize()
	if c.Pitch != 0 || c.Yaw != 0 {
		pitchQuat := mgl64.QuatIdent()
		if pitchAxis := dir.Cross(c.Up); pitchAxis.Len() > 0 {
			pitchQuat = mgl64.QuatRotate(c.Pitch, pitchAxis.Normalize())
		}
		yawQuat := mgl64.QuatRotate(c.Yaw, c.Up.Normalize())

		orientQuat := pitchQuat.Mul(yawQuat).Normalize()

		// Update direction
		dir = orientQuat.Rotate(dir)
		c.LookAt = c.Position.Add(dir)
		c.Pitch, c.Yaw = 0, 0
	}

	c.ViewMat = mgl64.LookAtV(c.Position, c.LookAt, c.Up)
	c.updateCornerRays()
}

func (c *Camera) InvViewProjMat() mgl64.Mat4 {
	return c.ProjMat.Mul4(c.ViewMat).Inv()
}

// Get the view frustum planes.
func (c *Camera) Frustum() geom.Frustum {
	return geom.FrustumFromMatrix(c.ProjMat.Mul4(c.ViewMat))
}

// Get the ray through a point of the image plane. The u and v coordinates
// are in the [0, 1] range with (0, 0) mapping to the top-left corner.
func (c *Camera) Ray(u, v float64) geom.Ray {
	top := c.CornerRays[0].Mul(1 - u).Add(c.CornerRays[1].Mul(u))
	bottom := c.CornerRays[2].Mul(1 - u).Add(c.CornerRays[3].Mul(u))
	return geom.NewRay(c.Position, top.Mul(1-v).Add(bottom.Mul(v)))
}

// Generate a ray vector for each corner of the camera frustum by
// multiplying clip space vectors for each corner with the inv proj/view
// matrix, applying perspective and subtracting the camera eye position.
func (c *Camera) updateCornerRays() {
	invProjViewMat := c.InvViewProjMat()

	var yUp = 1.0
	if c.InvertY {
		yUp = -1.0
	}

	corners := [4]mgl64.Vec2{{-1, yUp}, {1, yUp}, {-1, -yUp}, {1, -yUp}}
	for i, corner := range corners {
		v := invProjViewMat.Mul4x1(mgl64.Vec4{corner[0], corner[1], -1, 1})
		c.CornerRays[i] = v.Mul(1.0 / v[3]).Vec3().Sub(c.Position)
	}
}
