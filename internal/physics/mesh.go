package physics

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/kuraysdev/Vint/internal/data"
)

// Triangle is one face of a map's static collision mesh.
type Triangle struct {
	A, B, C data.Vec3
}

// Mesh is a static triangle soup queried for coarse collision only.
// Precision gameplay physics is out of scope; the battle core uses this
// solely to decide ground height under a point.
type Mesh struct {
	triangles []Triangle
}

func NewMesh(triangles []Triangle) *Mesh {
	return &Mesh{triangles: triangles}
}

// LoadMesh reads a mesh file: [4 bytes BE triangle count] followed by
// 9 big-endian float64 per triangle.
func LoadMesh(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mesh %s: %w", path, err)
	}
	defer f.Close()

	var count uint32
	if err := binary.Read(f, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("read mesh header %s: %w", path, err)
	}

	triangles := make([]Triangle, 0, count)
	coords := make([]float64, 9)
	for i := uint32(0); i < count; i++ {
		if err := binary.Read(f, binary.BigEndian, &coords); err != nil {
			if err == io.ErrUnexpectedEOF || err == io.EOF {
				return nil, fmt.Errorf("truncated mesh %s at triangle %d", path, i)
			}
			return nil, fmt.Errorf("read mesh %s: %w", path, err)
		}
		triangles = append(triangles, Triangle{
			A: data.Vec3{X: coords[0], Y: coords[1], Z: coords[2]},
			B: data.Vec3{X: coords[3], Y: coords[4], Z: coords[5]},
			C: data.Vec3{X: coords[6], Y: coords[7], Z: coords[8]},
		})
	}
	return NewMesh(triangles), nil
}

// TriangleCount returns the number of faces in the mesh.
func (m *Mesh) TriangleCount() int {
	return len(m.triangles)
}

// GroundHeight casts a vertical ray down through (x, z) and returns the
// highest intersection below the given start height. The second return is
// false when no face lies under the point.
func (m *Mesh) GroundHeight(x, z, startY float64) (float64, bool) {
	best := math.Inf(-1)
	found := false
	for _, t := range m.triangles {
		y, ok := verticalHit(t, x, z)
		if ok && y <= startY && y > best {
			best = y
			found = true
		}
	}
	return best, found
}

// verticalHit intersects a vertical line at (x, z) with one triangle,
// using barycentric coordinates in the XZ plane.
func verticalHit(t Triangle, x, z float64) (float64, bool) {
	v0x, v0z := t.C.X-t.A.X, t.C.Z-t.A.Z
	v1x, v1z := t.B.X-t.A.X, t.B.Z-t.A.Z
	v2x, v2z := x-t.A.X, z-t.A.Z

	dot00 := v0x*v0x + v0z*v0z
	dot01 := v0x*v1x + v0z*v1z
	dot02 := v0x*v2x + v0z*v2z
	dot11 := v1x*v1x + v1z*v1z
	dot12 := v1x*v2x + v1z*v2z

	denom := dot00*dot11 - dot01*dot01
	if math.Abs(denom) < 1e-12 {
		return 0, false // degenerate face
	}

	inv := 1 / denom
	u := (dot11*dot02 - dot01*dot12) * inv
	v := (dot00*dot12 - dot01*dot02) * inv
	if u < 0 || v < 0 || u+v > 1 {
		return 0, false
	}

	y := t.A.Y + u*(t.C.Y-t.A.Y) + v*(t.B.Y-t.A.Y)
	return y, true
}
