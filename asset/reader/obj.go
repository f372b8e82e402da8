package reader

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/achilleasa/raypick/asset"
	"github.com/achilleasa/raypick/geom"
	"github.com/achilleasa/raypick/log"
	"github.com/go-gl/mathgl/mgl64"
)

type objReader struct {
	logger log.Logger

	// The parsed model.
	model *Model

	// A map of material names to model material indices.
	matNameToIndex map[string]int

	// Currently selected material or -1 if none is selected.
	curMaterial int

	// Vertex positions and uv coordinates shared by all objects.
	vertexList []mgl64.Vec3
	uvList     []mgl64.Vec2

	// Number of parsed normals; normals are only tracked so face indices
	// can be validated.
	normalCount int

	// An error stack that provides additional error information when
	// model files include other files (models, mat libs e.t.c)
	errStack []string
}

func newOBJReader() *objReader {
	return &objReader{
		logger:         log.New("obj reader"),
		model:          &Model{},
		matNameToIndex: make(map[string]int),
		curMaterial:    -1,
	}
}

// Read a Wavefront OBJ model. Vertex coordinates are parsed at full
// precision. If the model does not define any instances, an instance with
// an identity transform is created for each object.
func ReadOBJ(res *asset.Resource) (*Model, error) {
	r := newOBJReader()
	r.logger.Noticef(`parsing model from "%s"`, res.Path())
	start := time.Now()

	if err := r.parse(res); err != nil {
		return nil, err
	}

	if len(r.model.Instances) == 0 {
		for _, obj := range r.model.Objects {
			r.model.Instances = append(r.model.Instances, &Instance{
				Object:    obj,
				Transform: mgl64.Ident4(),
				Bounds:    obj.Bounds,
			})
		}
	}

	for _, obj := range r.model.Objects {
		obj.finalize()
	}

	r.logger.Noticef(
		"parsed %d objects and %d instances in %d ms",
		len(r.model.Objects), len(r.model.Instances), time.Since(start).Nanoseconds()/1e6,
	)
	return r.model, nil
}

// Generate an error message that also includes any data in the error stack.
func (r *objReader) emitError(file string, line int, msgFormat string, args ...interface{}) error {
	msg := fmt.Sprintf(msgFormat, args...)

	var errMsg string
	if file != "" {
		errMsg = fmt.Sprintf("[%s: %d] error: %s\n%s", file, line, msg, strings.Join(r.errStack, "\n"))
	} else {
		errMsg = fmt.Sprintf("error: %s\n%s", msg, strings.Join(r.errStack, "\n"))
	}

	return errors.New(strings.Trim(errMsg, "\n"))
}

// Push a frame to the error stack.
func (r *objReader) pushFrame(msg string) {
	r.errStack = append([]string{msg}, r.errStack...)
}

// Pop a frame from the error stack.
func (r *objReader) popFrame() {
	r.errStack = r.errStack[1:]
}

// Select the default material for faces not using one, creating it on
// first use.
func (r *objReader) defaultMaterial() int {
	matIndex, exists := r.matNameToIndex[""]
	if !exists {
		r.model.Materials = append(r.model.Materials, &Material{Side: geom.FrontSide})
		matIndex = len(r.model.Materials) - 1
		r.matNameToIndex[""] = matIndex
	}
	return matIndex
}

func (r *objReader) currentObject() *Object {
	if len(r.model.Objects) == 0 {
		r.model.Objects = append(r.model.Objects, newObject("default"))
	}
	return r.model.Objects[len(r.model.Objects)-1]
}

func (r *objReader) parse(res *asset.Resource) error {
	var lineNum int
	var err error

	// The main obj file may include (call) several other object files. Each
	// object file contains 1-based indices (when they are positive). By
	// tracking the current vertex/uv/normal offsets we can apply them
	// while parsing faces to select the correct coordinates.
	relVertexOffset := len(r.vertexList)
	relUvOffset := len(r.uvList)
	relNormalOffset := r.normalCount

	scanner := bufio.NewScanner(res)
	for scanner.Scan() {
		lineNum++
		lineTokens := strings.Fields(scanner.Text())
		if len(lineTokens) == 0 || strings.HasPrefix(lineTokens[0], "#") {
			continue
		}

		switch lineTokens[0] {
		case "call", "mtllib":
			if len(lineTokens) != 2 {
				return r.emitError(res.Path(), lineNum, `unsupported syntax for "%s"; expected 1 argument; got %d`, lineTokens[0], len(lineTokens)-1)
			}

			r.pushFrame(fmt.Sprintf("referenced from %s:%d [%s]", res.Path(), lineNum, lineTokens[0]))

			incRes, err := asset.NewResource(lineTokens[1], res)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err)
			}

			switch lineTokens[0] {
			case "call":
				err = r.parse(incRes)
			case "mtllib":
				err = r.parseMaterials(incRes)
			}
			incRes.Close()

			if err != nil {
				return err
			}
			r.popFrame()
		case "usemtl":
			if len(lineTokens) != 2 {
				return r.emitError(res.Path(), lineNum, `unsupported syntax for "usemtl"; expected 1 argument; got %d`, len(lineTokens)-1)
			}

			matIndex, exists := r.matNameToIndex[lineTokens[1]]
			if !exists {
				return r.emitError(res.Path(), lineNum, `undefined material with name "%s"`, lineTokens[1])
			}
			r.curMaterial = matIndex
		case "v":
			v, err := parseVec3(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err)
			}
			r.vertexList = append(r.vertexList, v)
		case "vn":
			if _, err := parseVec3(lineTokens); err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err)
			}
			r.normalCount++
		case "vt":
			v, err := parseVec2(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err)
			}
			r.uvList = append(r.uvList, v)
		case "g", "o":
			if len(lineTokens) < 2 {
				return r.emitError(res.Path(), lineNum, `unsupported syntax for "%s"; expected 1 argument for object name; got %d`, lineTokens[0], len(lineTokens)-1)
			}

			r.verifyLastParsedObject()
			r.model.Objects = append(r.model.Objects, newObject(lineTokens[1]))
		case "f":
			if err := r.parseFace(lineTokens, relVertexOffset, relUvOffset, relNormalOffset); err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err)
			}
		case "camera_fov":
			r.camera().FOV, err = parseFloat(lineTokens)
		case "camera_eye":
			r.camera().Eye, err = parseVec3(lineTokens)
		case "camera_look":
			r.camera().Look, err = parseVec3(lineTokens)
		case "camera_up":
			r.camera().Up, err = parseVec3(lineTokens)
		case "instance":
			instance, err := r.parseInstance(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err)
			}
			r.model.Instances = append(r.model.Instances, instance)
		}

		if err != nil {
			return r.emitError(res.Path(), lineNum, "%s", err)
		}
	}

	if err = scanner.Err(); err != nil {
		return r.emitError(res.Path(), lineNum, "%s", err)
	}

	r.verifyLastParsedObject()
	return nil
}

func (r *objReader) camera() *Camera {
	if r.model.Camera == nil {
		r.model.Camera = &Camera{
			FOV:  45,
			Look: mgl64.Vec3{0, 0, -1},
			Up:   mgl64.Vec3{0, 1, 0},
		}
	}
	return r.model.Camera
}

// Drop the last parsed object if it contains no faces.
func (r *objReader) verifyLastParsedObject() {
	lastIndex := len(r.model.Objects) - 1
	if lastIndex >= 0 && len(r.model.Objects[lastIndex].Indices) == 0 {
		r.logger.Warningf(`dropping object "%s" as it contains no faces`, r.model.Objects[lastIndex].Name)
		r.model.Objects = r.model.Objects[:lastIndex]
	}
}

// Parse instance definition. Definitions use the following format:
// instance object_name tX tY tZ yaw pitch roll sX sY sZ
// where:
// - tX, tY, tZ       : translation vector
// - yaw, pitch, roll : rotation angles in degrees around the X, Y and Z axis
// - sX, sY, sZ	      : scale
func (r *objReader) parseInstance(lineTokens []string) (*Instance, error) {
	if len(lineTokens) != 11 {
		return nil, fmt.Errorf(`unsupported syntax for "instance"; expected 10 arguments: object_name tX tY tZ yaw pitch roll sX sY sZ; got %d`, len(lineTokens)-1)
	}

	var obj *Object
	for _, candidate := range r.model.Objects {
		if candidate.Name == lineTokens[1] {
			obj = candidate
			break
		}
	}
	if obj == nil {
		return nil, fmt.Errorf(`unknown object with name "%s"`, lineTokens[1])
	}

	var args [9]float64
	for index := range args {
		v, err := strconv.ParseFloat(lineTokens[index+2], 64)
		if err != nil {
			return nil, err
		}
		args[index] = v
	}

	// Generate final matrix: M = T * R * S
	deg := math.Pi / 180.0
	rotMat := mgl64.HomogRotate3DZ(args[5] * deg).
		Mul4(mgl64.HomogRotate3DY(args[4] * deg)).
		Mul4(mgl64.HomogRotate3DX(args[3] * deg))
	transform := mgl64.Translate3D(args[0], args[1], args[2]).
		Mul4(rotMat).
		Mul4(mgl64.Scale3D(args[6], args[7], args[8]))

	return &Instance{
		Object:    obj,
		Transform: transform,
		Bounds:    obj.Bounds.ApplyMatrix4(transform),
	}, nil
}

// Parse face definition. Each face definition consists of 3 or 4 arguments,
// one for each vertex. Each vertex argument is comprised of 1, 2 or 3
// indices separated by a slash character:
// - vertexIndex
// - vertexIndex/uvIndex
// - vertexIndex//normalIndex
// - vertexIndex/uvIndex/normalIndex
//
// Indices start from 1 and may be negative to indicate an offset off the end
// of the vertex/uv list. Quads are split into two triangles.
func (r *objReader) parseFace(lineTokens []string, relVertexOffset, relUvOffset, relNormalOffset int) error {
	if len(lineTokens) < 4 || len(lineTokens) > 5 {
		return fmt.Errorf(`unsupported syntax for "f"; expected 3 arguments for triangular face or 4 arguments for a quad face; got %d. Select the triangulation option in your exporter`, len(lineTokens)-1)
	}

	var (
		positions [4]int
		uvs       = [4]int{-1, -1, -1, -1}
	)
	expIndices := 0
	for arg := 0; arg < len(lineTokens)-1; arg++ {
		vTokens := strings.Split(lineTokens[arg+1], "/")

		// The first arg defines the format for the following args
		if arg == 0 {
			expIndices = len(vTokens)
		} else if len(vTokens) != expIndices {
			return fmt.Errorf("expected each face argument to contain %d indices; arg %d contains %d indices", expIndices, arg, len(vTokens))
		}

		// Faces must at least define a vertex coord
		if vTokens[0] == "" {
			return fmt.Errorf("face argument %d does not include a vertex index", arg)
		}

		offset, err := selectFaceCoordIndex(vTokens[0], len(r.vertexList), relVertexOffset)
		if err != nil {
			return fmt.Errorf("could not parse vertex coord for face argument %d: %w", arg, err)
		}
		positions[arg] = offset

		if expIndices > 1 && vTokens[1] != "" {
			if uvs[arg], err = selectFaceCoordIndex(vTokens[1], len(r.uvList), relUvOffset); err != nil {
				return fmt.Errorf("could not parse tex coord for face argument %d: %w", arg, err)
			}
		}

		if expIndices > 2 && vTokens[2] != "" {
			if _, err = selectFaceCoordIndex(vTokens[2], r.normalCount, relNormalOffset); err != nil {
				return fmt.Errorf("could not parse normal coord for face argument %d: %w", arg, err)
			}
		}
	}

	if r.curMaterial == -1 {
		r.curMaterial = r.defaultMaterial()
	}

	obj := r.currentObject()
	indiceList := [][3]int{{0, 1, 2}}
	if len(lineTokens) == 5 {
		indiceList = append(indiceList, [3]int{0, 2, 3})
	}
	for _, tri := range indiceList {
		for _, corner := range tri {
			obj.addVertex(positions[corner], uvs[corner], r.vertexList, r.uvList)
		}
		obj.extendGroup(r.curMaterial)
	}
	return nil
}

// Parse a material library. Besides "newmtl" and "include", the
// non-standard "side front|back|double" directive selects the faces that
// can be hit. All other directives are ignored.
func (r *objReader) parseMaterials(res *asset.Resource) error {
	var lineNum int

	r.logger.Infof(`parsing material library "%s"`, res.Path())

	var (
		curMaterial *Material
		matName     string
	)

	scanner := bufio.NewScanner(res)
	for scanner.Scan() {
		lineNum++
		lineTokens := strings.Fields(scanner.Text())
		if len(lineTokens) == 0 || strings.HasPrefix(lineTokens[0], "#") {
			continue
		}

		switch lineTokens[0] {
		case "newmtl":
			if len(lineTokens) != 2 {
				return r.emitError(res.Path(), lineNum, `unsupported syntax for "newmtl"; expected 1 argument; got %d`, len(lineTokens)-1)
			}

			matName = lineTokens[1]
			if _, exists := r.matNameToIndex[matName]; exists {
				return r.emitError(res.Path(), lineNum, `material "%s" already defined`, matName)
			}

			curMaterial = &Material{Name: matName, Side: geom.FrontSide}
			r.model.Materials = append(r.model.Materials, curMaterial)
			r.matNameToIndex[matName] = len(r.model.Materials) - 1
		default:
			if curMaterial == nil {
				return r.emitError(res.Path(), lineNum, `got "%s" without a "newmtl"`, lineTokens[0])
			}

			switch lineTokens[0] {
			case "include":
				if len(lineTokens) < 2 {
					return r.emitError(res.Path(), lineNum, `unsupported syntax for "%s"; expected 1 argument; got %d`, lineTokens[0], len(lineTokens)-1)
				}

				baseMaterialIndex, exists := r.matNameToIndex[lineTokens[1]]
				if !exists {
					return r.emitError(res.Path(), lineNum, `could not include unknown material "%s"`, lineTokens[1])
				}

				// Overwrite material but keep the original name
				*curMaterial = *r.model.Materials[baseMaterialIndex]
				curMaterial.Name = matName
			case "side":
				if len(lineTokens) != 2 {
					return r.emitError(res.Path(), lineNum, `unsupported syntax for "side"; expected 1 argument; got %d`, len(lineTokens)-1)
				}

				side, err := parseSide(lineTokens[1])
				if err != nil {
					return r.emitError(res.Path(), lineNum, "%s", err)
				}
				curMaterial.Side = side
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return r.emitError(res.Path(), lineNum, "%s", err)
	}
	return nil
}

func parseSide(value string) (geom.Side, error) {
	for _, side := range []geom.Side{geom.FrontSide, geom.BackSide, geom.DoubleSide} {
		if side.String() == value {
			return side, nil
		}
	}
	return 0, fmt.Errorf(`unknown side "%s"; expected one of front, back or double`, value)
}

// Given an index for a face coord type (vertex, normal, tex) calculate the
// proper offset into the coord list. Wavefront format can also use negative
// indices to reference elements from the end of the coord list.
func selectFaceCoordIndex(indexToken string, coordListLen int, relOffset int) (int, error) {
	index, err := strconv.ParseInt(indexToken, 10, 32)
	if err != nil {
		return -1, err
	}

	var offset int
	if index < 0 {
		offset = coordListLen + int(index)
	} else {
		offset = relOffset + int(index-1)
	}
	if offset < 0 || offset >= coordListLen {
		return -1, fmt.Errorf("index out of bounds")
	}
	return offset, nil
}

// Parse a float scalar value.
func parseFloat(lineTokens []string) (float64, error) {
	if len(lineTokens) < 2 {
		return 0, fmt.Errorf(`unsupported syntax for "%s"; expected 1 argument; got %d`, lineTokens[0], len(lineTokens)-1)
	}
	return strconv.ParseFloat(lineTokens[1], 64)
}

// Parse a Vec3 row at full precision.
func parseVec3(lineTokens []string) (mgl64.Vec3, error) {
	if len(lineTokens) < 4 {
		return mgl64.Vec3{}, fmt.Errorf(`unsupported syntax for "%s"; expected 3 arguments; got %d`, lineTokens[0], len(lineTokens)-1)
	}

	v := mgl64.Vec3{}
	for tokIdx := 1; tokIdx <= 3; tokIdx++ {
		coord, err := strconv.ParseFloat(lineTokens[tokIdx], 64)
		if err != nil {
			return v, err
		}
		v[tokIdx-1] = coord
	}
	return v, nil
}

// Parse a Vec2 row.
func parseVec2(lineTokens []string) (mgl64.Vec2, error) {
	if len(lineTokens) < 3 {
		return mgl64.Vec2{}, fmt.Errorf(`unsupported syntax for "%s"; expected 2 arguments; got %d`, lineTokens[0], len(lineTokens)-1)
	}

	v := mgl64.Vec2{}
	for tokIdx := 1; tokIdx <= 2; tokIdx++ {
		coord, err := strconv.ParseFloat(lineTokens[tokIdx], 32)
		if err != nil {
			return v, err
		}
		v[tokIdx-1] = coord
	}
	return v, nil
}
