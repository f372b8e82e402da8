package reader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/achilleasa/raypick/asset"
	"github.com/achilleasa/raypick/batch"
	"github.com/achilleasa/raypick/geom"
	"github.com/achilleasa/raypick/mesh"
	"github.com/achilleasa/raypick/scene"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func mockResource(payload string) *asset.Resource {
	return asset.NewResourceFromStream("embedded", strings.NewReader(payload))
}

const singleFace = `
o testObj
v 0 0 0
v 1 0 0
v 0 1 0
vn 1 0 0
vt 0 0
vn 0 1 0
vt 0 1
vn 0 1 0
vt 1 0
vn 0 0 1
# Comment
f 1/1/1 2/2/2 -1/-1/-1
`

func TestFloatParser(t *testing.T) {
	expError := `unsupported syntax for "v"; expected 1 argument; got 0`
	_, err := parseFloat([]string{"v"})
	if err == nil || err.Error() != expError {
		t.Fatalf("expected to get %s; got %v", expError, err)
	}

	if _, err = parseFloat([]string{"v", "not-a-float"}); err == nil {
		t.Fatal("expected to get a parse error")
	}

	v, err := parseFloat([]string{"v", "3.14"})
	if err != nil {
		t.Fatal(err)
	}
	if v != 3.14 {
		t.Fatalf("expected parsed value to be 3.14; got %f", v)
	}
}

func TestVec3Parser(t *testing.T) {
	expError := `unsupported syntax for "v"; expected 3 arguments; got 0`
	_, err := parseVec3([]string{"v"})
	if err == nil || err.Error() != expError {
		t.Fatalf("expected to get %s; got %v", expError, err)
	}

	if _, err = parseVec3([]string{"v", "not-a-float", "2", "3"}); err == nil {
		t.Fatal("expected to get a parse error")
	}

	// Coordinates keep their full precision
	v, err := parseVec3([]string{"v", "4500000.123456789", "0", "0.4"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(mgl64.Vec3{4500000.123456789, 0, 0.4}, v); diff != "" {
		t.Fatalf("unexpected parsed value (-want +got):\n%s", diff)
	}
}

func TestSelectFaceCoordinate(t *testing.T) {
	expError := "index out of bounds"
	specs := []struct {
		in        string
		listLen   int
		relOffset int
		out       int
		expError  string
	}{
		{"2", 1, 0, -1, expError},
		{"-2", 1, 0, -1, expError},
		{"1", 10, 0, 0, ""}, // indices are 1-based
		{"-1", 10, 0, 9, ""},
		{"1", 10, 4, 4, ""},
	}

	for idx, s := range specs {
		v, err := selectFaceCoordIndex(s.in, s.listLen, s.relOffset)
		if s.expError != "" {
			if err == nil || err.Error() != s.expError {
				t.Fatalf("[spec %d] expected error %s; got %v", idx, s.expError, err)
			}
			continue
		}
		if v != s.out {
			t.Fatalf("[spec %d] expected index to be %d; got %d", idx, s.out, v)
		}
	}
}

func TestParseSingleFacedObject(t *testing.T) {
	model, err := ReadOBJ(mockResource(singleFace))
	if err != nil {
		t.Fatal(err)
	}

	if len(model.Objects) != 1 {
		t.Fatalf("expected 1 object to be parsed; got %d", len(model.Objects))
	}
	obj := model.Objects[0]
	if obj.Name != "testObj" {
		t.Fatalf("expected object name to be 'testObj'; got %s", obj.Name)
	}

	if diff := cmp.Diff([]float64{0, 0, 0, 1, 0, 0, 0, 1, 0}, obj.Positions); diff != "" {
		t.Fatalf("unexpected positions (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float32{0, 0, 0, 1, 1, 0}, obj.UVs); diff != "" {
		t.Fatalf("unexpected uvs (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]uint32{0, 1, 2}, obj.Indices); diff != "" {
		t.Fatalf("unexpected indices (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(geom.Box3{Min: mgl64.Vec3{0, 0, 0}, Max: mgl64.Vec3{1, 1, 0}}, obj.Bounds); diff != "" {
		t.Fatalf("unexpected bounds (-want +got):\n%s", diff)
	}

	// A default material and a default instance are generated
	if len(model.Materials) != 1 || model.Materials[0].Side != geom.FrontSide {
		t.Fatalf("expected a single front side default material; got %v", model.Materials)
	}
	if len(model.Instances) != 1 || model.Instances[0].Transform != mgl64.Ident4() {
		t.Fatalf("expected a single identity instance; got %v", model.Instances)
	}
	if model.Camera != nil {
		t.Fatal("expected no camera")
	}
}

func TestQuadsAndVertexReuse(t *testing.T) {
	payload := `
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
f 1 2 3 4
f -4 -2 -1
`
	model, err := ReadOBJ(mockResource(payload))
	if err != nil {
		t.Fatal(err)
	}

	obj := model.Objects[0]
	if obj.Name != "default" {
		t.Fatalf("expected faces without an object to be added to the default object; got %s", obj.Name)
	}
	if diff := cmp.Diff([]uint32{0, 1, 2, 0, 2, 3, 0, 2, 3}, obj.Indices); diff != "" {
		t.Fatalf("unexpected indices (-want +got):\n%s", diff)
	}
	if obj.UVs != nil {
		t.Fatalf("expected no uvs for an object without texture coordinates; got %v", obj.UVs)
	}
	if diff := cmp.Diff([]mesh.Group{{Start: 0, Count: 9, MaterialIndex: 0}}, obj.Groups); diff != "" {
		t.Fatalf("unexpected groups (-want +got):\n%s", diff)
	}
}

func TestEmptyObjectsAreDropped(t *testing.T) {
	payload := `
o empty
o full
v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 3
g trailing
`
	model, err := ReadOBJ(mockResource(payload))
	if err != nil {
		t.Fatal(err)
	}
	if len(model.Objects) != 1 || model.Objects[0].Name != "full" {
		t.Fatalf("expected only the 'full' object to be kept; got %d objects", len(model.Objects))
	}
}

func TestInstancing(t *testing.T) {
	payload := singleFace + `
# Instances
instance testObj 	1 0 1	0 0 0 	1 1 1
instance testObj 	0 0 0	0 90 0 	1 1 1
instance testObj 	0 1 0	90 0 0	10 10 10
`
	model, err := ReadOBJ(mockResource(payload))
	if err != nil {
		t.Fatal(err)
	}

	if len(model.Instances) != 3 {
		t.Fatalf("expected 3 instances; got %d", len(model.Instances))
	}

	specs := []struct {
		instance   int
		in, expOut mgl64.Vec3
	}{
		{0, mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 1}},
		{0, mgl64.Vec3{-1, 0, -1}, mgl64.Vec3{0, 0, 0}},
		{1, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 0, -1}},
		{1, mgl64.Vec3{0, 0, -1}, mgl64.Vec3{-1, 0, 0}},
		{2, mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, 1, 10}},
	}
	for idx, s := range specs {
		out := mgl64.TransformCoordinate(s.in, model.Instances[s.instance].Transform)
		if diff := cmp.Diff(s.expOut, out, approx); diff != "" {
			t.Fatalf("[spec %d] unexpected transformed point for instance %d (-want +got):\n%s", idx, s.instance, diff)
		}
	}

	expBounds := geom.Box3{Min: mgl64.Vec3{1, 0, 1}, Max: mgl64.Vec3{2, 1, 1}}
	if diff := cmp.Diff(expBounds, model.Instances[0].Bounds, approx); diff != "" {
		t.Fatalf("unexpected instance bounds (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	specs := []struct {
		payload  string
		expError string
	}{
		{"v 1 2", `[embedded: 1] error: unsupported syntax for "v"; expected 3 arguments; got 2`},
		{"v 0 0 0\nf 1 2", `[embedded: 2] error: unsupported syntax for "f"; expected 3 arguments for triangular face or 4 arguments for a quad face; got 2. Select the triangulation option in your exporter`},
		{"v 0 0 0\nf 1 1 4", `[embedded: 2] error: could not parse vertex coord for face argument 2: index out of bounds`},
		{"usemtl foo", `[embedded: 1] error: undefined material with name "foo"`},
		{"instance foo 0 0 0 0 0 0 1 1 1", `[embedded: 1] error: unknown object with name "foo"`},
		{"camera_fov", `[embedded: 1] error: unsupported syntax for "camera_fov"; expected 1 argument; got 0`},
	}

	for idx, s := range specs {
		_, err := ReadOBJ(mockResource(s.payload))
		if err == nil || err.Error() != s.expError {
			t.Fatalf("[spec %d] expected error:\n%s\ngot:\n%v", idx, s.expError, err)
		}
	}
}

func TestMaterialLoaderMissingNewMaterialCommand(t *testing.T) {
	err := newOBJReader().parseMaterials(mockResource(`side double`))

	expError := `[embedded: 1] error: got "side" without a "newmtl"`
	if err == nil || err.Error() != expError {
		t.Fatalf("expected to get error: %s; got %v", expError, err)
	}
}

func TestMaterialLoaderInvalidSide(t *testing.T) {
	payload := `
newmtl foo
side sideways`
	err := newOBJReader().parseMaterials(mockResource(payload))

	expError := `[embedded: 3] error: unknown side "sideways"; expected one of front, back or double`
	if err == nil || err.Error() != expError {
		t.Fatalf("expected to get error: %s; got %v", expError, err)
	}
}

func TestIncludedFiles(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"scene.obj": `
mtllib materials.mtl
call part.obj
camera_eye 0 0 10
camera_fov 60
`,
		"materials.mtl": `
newmtl glass
side double
newmtl glass2
include glass
`,
		"part.obj": `
o part
v 0 0 0
v 1 0 0
v 0 1 0
usemtl glass2
f 1 2 3
`,
	}
	for name, contents := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	model, err := ReadModel(filepath.Join(dir, "scene.obj"))
	if err != nil {
		t.Fatal(err)
	}

	if len(model.Materials) != 2 || model.Materials[1].Name != "glass2" || model.Materials[1].Side != geom.DoubleSide {
		t.Fatalf("expected included material to inherit its side; got %v", model.Materials)
	}
	if len(model.Objects) != 1 || model.Objects[0].Groups[0].MaterialIndex != 1 {
		t.Fatal("expected the part object to use material 1")
	}
	if model.Camera == nil || model.Camera.FOV != 60 || model.Camera.Eye != (mgl64.Vec3{0, 0, 10}) {
		t.Fatalf("unexpected camera %v", model.Camera)
	}

	// Errors in included files carry the include stack
	if err = os.WriteFile(filepath.Join(dir, "part.obj"), []byte("v 0 0"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = ReadModel(filepath.Join(dir, "scene.obj"))
	if err == nil || !strings.Contains(err.Error(), "part.obj: 1] error") || !strings.Contains(err.Error(), "scene.obj:3 [call]") {
		t.Fatalf("expected error with include stack; got %v", err)
	}

	if _, err = ReadModel(filepath.Join(dir, "scene.fbx")); err == nil {
		t.Fatal("expected an error for an unsupported model format")
	}
}

func TestBatchAndMergedGeometry(t *testing.T) {
	payload := singleFace + `
instance testObj 	0 0 0	0 0 0 	1 1 1
instance testObj 	5 0 0	0 0 0 	1 1 1
`
	model, err := ReadOBJ(mockResource(payload))
	if err != nil {
		t.Fatal(err)
	}

	views := model.BatchViews()
	if len(views) != 2 || views[1].VertStart != 3 || views[1].IndexStart != 3 || views[1].ID != "testObj#1" {
		t.Fatalf("unexpected batch views %v", views)
	}

	index, err := model.BuildBatch(batch.BuildOptions{Concurrency: 2})
	if err != nil {
		t.Fatal(err)
	}
	geometry, err := model.MergedGeometry()
	if err != nil {
		t.Fatal(err)
	}
	if geometry.VertexCount() != 6 || geometry.Index.Len() != 6 {
		t.Fatalf("expected merged geometry with 6 vertices and indices; got %d, %d", geometry.VertexCount(), geometry.Index.Len())
	}

	m := mesh.NewBatchMesh("batch", index, geometry, model.MeshMaterials()...)
	rc := scene.NewRaycaster(mgl64.Vec3{5.25, 0.25, 10}, mgl64.Vec3{0, 0, -1}, 0, 0)
	got := rc.IntersectObject(m, false, nil)
	if len(got) != 1 {
		t.Fatalf("expected 1 hit; got %d", len(got))
	}
	if got[0].BatchObject.RenderView.ID != "testObj#1" || got[0].FaceIndex != 1 {
		t.Fatalf("expected a hit on the second instance; got member %s face %d", got[0].BatchObject.RenderView.ID, got[0].FaceIndex)
	}
	if got[0].UV == nil {
		t.Fatal("expected interpolated uv from the merged geometry")
	}
	// uv(p) = (y, x) on the test face
	if diff := cmp.Diff(mgl64.Vec2{0.25, 0.25}, *got[0].UV, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
		t.Fatalf("unexpected uv (-want +got):\n%s", diff)
	}
}
