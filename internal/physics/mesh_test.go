package physics

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/kuraysdev/Vint/internal/data"
	"github.com/stretchr/testify/require"
)

func flatTriangle(y float64) Triangle {
	return Triangle{
		A: data.Vec3{X: -10, Y: y, Z: -10},
		B: data.Vec3{X: 10, Y: y, Z: -10},
		C: data.Vec3{X: 0, Y: y, Z: 10},
	}
}

func TestGroundHeight(t *testing.T) {
	t.Run("hit inside a face", func(t *testing.T) {
		m := NewMesh([]Triangle{flatTriangle(5)})
		y, ok := m.GroundHeight(0, 0, 100)
		require.True(t, ok)
		require.Equal(t, 5.0, y)
	})

	t.Run("miss outside every face", func(t *testing.T) {
		m := NewMesh([]Triangle{flatTriangle(5)})
		_, ok := m.GroundHeight(50, 50, 100)
		require.False(t, ok)
	})

	t.Run("faces above the start height are ignored", func(t *testing.T) {
		m := NewMesh([]Triangle{flatTriangle(5), flatTriangle(20)})
		y, ok := m.GroundHeight(0, 0, 10)
		require.True(t, ok)
		require.Equal(t, 5.0, y)
	})

	t.Run("highest face under the point wins", func(t *testing.T) {
		m := NewMesh([]Triangle{flatTriangle(-3), flatTriangle(5)})
		y, ok := m.GroundHeight(0, 0, 100)
		require.True(t, ok)
		require.Equal(t, 5.0, y)
	})

	t.Run("sloped face interpolates", func(t *testing.T) {
		slope := Triangle{
			A: data.Vec3{X: -10, Y: 0, Z: -10},
			B: data.Vec3{X: 10, Y: 10, Z: -10},
			C: data.Vec3{X: 0, Y: 0, Z: 10},
		}
		m := NewMesh([]Triangle{slope})
		y, ok := m.GroundHeight(10, -10, 100)
		require.True(t, ok)
		require.InDelta(t, 10.0, y, 1e-9)
	})

	t.Run("degenerate face never hits", func(t *testing.T) {
		line := Triangle{
			A: data.Vec3{X: 0, Y: 0, Z: 0},
			B: data.Vec3{X: 1, Y: 0, Z: 0},
			C: data.Vec3{X: 2, Y: 0, Z: 0},
		}
		m := NewMesh([]Triangle{line})
		_, ok := m.GroundHeight(1, 0, 100)
		require.False(t, ok)
	})
}

func TestLoadMesh(t *testing.T) {
	writeMesh := func(t *testing.T, count uint32, triangles ...Triangle) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "test.mesh")
		f, err := os.Create(path)
		require.NoError(t, err)
		defer f.Close()
		require.NoError(t, binary.Write(f, binary.BigEndian, count))
		for _, tri := range triangles {
			coords := []float64{
				tri.A.X, tri.A.Y, tri.A.Z,
				tri.B.X, tri.B.Y, tri.B.Z,
				tri.C.X, tri.C.Y, tri.C.Z,
			}
			require.NoError(t, binary.Write(f, binary.BigEndian, coords))
		}
		return path
	}

	t.Run("round trip", func(t *testing.T) {
		path := writeMesh(t, 2, flatTriangle(1), flatTriangle(2))
		m, err := LoadMesh(path)
		require.NoError(t, err)
		require.Equal(t, 2, m.TriangleCount())

		y, ok := m.GroundHeight(0, 0, 100)
		require.True(t, ok)
		require.Equal(t, 2.0, y)
	})

	t.Run("truncated file", func(t *testing.T) {
		path := writeMesh(t, 3, flatTriangle(1))
		_, err := LoadMesh(path)
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadMesh(filepath.Join(t.TempDir(), "nope.mesh"))
		require.Error(t, err)
	})
}
