// meshcheck - triangle mesh diagnostics and repair
//
// Check a mesh for printability defects (holes, non-manifold edges,
// incoherent orientation, inverted normals, self-intersections), repair
// what can be repaired, and emit a flat JSON report.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"fortio.org/log"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/printready/meshcheck/mesh"
)

var (
	mergeTolerance   float32
	maxHoleSize      int
	requireZeroHoles bool
)

func main() {
	cmd := &cobra.Command{
		Use:   "meshcheck <input> <repaired-output> [<report>]",
		Short: "Check and repair triangle meshes",
		Long: `meshcheck - triangle mesh diagnostics and repair

Loads a mesh (STL, OBJ, PLY, GLB), evaluates watertightness, orientation
coherence, volume sign, shells, holes, non-manifold edges and
self-intersections, repairs what it can, and writes a flat JSON report.
The repaired mesh is only written when a repair actually ran.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			reportPath := ""
			if len(args) > 2 {
				reportPath = args[2]
			}
			return run(args[0], args[1], reportPath)
		},
	}
	cmd.Flags().Float32Var(&mergeTolerance, "tolerance", mesh.DefaultMergeTolerance,
		"Vertex merge tolerance (0 = bit-exact positions)")
	cmd.Flags().IntVar(&maxHoleSize, "hole-size", mesh.DefaultMaxHoleSize,
		"Maximum border edges per hole loop considered for filling")
	cmd.Flags().BoolVar(&requireZeroHoles, "require-zero-holes", false,
		"Additionally require zero post-repair holes for a good repair")

	infoCmd := &cobra.Command{
		Use:   "info <model.stl|model.obj|model.ply|model.glb>",
		Short: "Display mesh information and diagnostics",
		Long:  "Load a mesh and print its geometry statistics and the full diagnostic record without repairing.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(args[0])
		},
	}
	cmd.AddCommand(infoCmd)

	if err := fang.Execute(context.Background(), cmd); err != nil {
		os.Exit(1)
	}
}

func run(inputPath, repairedPath, reportPath string) error {
	report, err := mesh.CheckRepairFile(inputPath, repairedPath, mesh.Options{
		MergeTolerance:   mergeTolerance,
		MaxHoleSize:      maxHoleSize,
		RequireZeroHoles: requireZeroHoles,
		Progress: func(percent int, msg string) bool {
			log.LogVf("%s: %d%%", msg, percent)
			return true
		},
	})
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if reportPath == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(reportPath, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func runInfo(modelPath string) error {
	info, err := os.Stat(modelPath)
	if err != nil {
		return fmt.Errorf("cannot access file: %w", err)
	}
	m, err := mesh.Load(modelPath)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}

	r := m.Check(mesh.CheckOptions{MergeTolerance: mergeTolerance})

	fmt.Printf("File:       %s\n", filepath.Base(modelPath))
	fmt.Printf("Size:       %.2f KB\n", float64(info.Size())/1024)
	fmt.Println()
	fmt.Printf("Vertices:   %d\n", r.NumVertices)
	fmt.Printf("Triangles:  %d\n", r.NumFaces)
	fmt.Printf("Shells:     %d\n", r.Shells)
	fmt.Println()
	fmt.Printf("Bounds Min: (%.3f, %.3f, %.3f)\n", r.MinX, r.MinY, r.MinZ)
	fmt.Printf("Bounds Max: (%.3f, %.3f, %.3f)\n", r.MaxX, r.MaxY, r.MaxZ)
	fmt.Printf("Area:       %.3f\n", r.Area)
	fmt.Printf("Volume:     %.3f\n", r.Volume)
	fmt.Println()
	fmt.Printf("Watertight:          %v\n", r.IsWatertight)
	fmt.Printf("Coherently oriented: %v\n", r.IsCoherentlyOriented)
	fmt.Printf("Positive volume:     %v\n", r.IsPositiveVolume)
	fmt.Printf("Non-manifold edges:  %d\n", r.NonManifoldEdges)
	if r.Holes >= 0 {
		fmt.Printf("Holes:               %d\n", r.Holes)
	} else {
		fmt.Printf("Holes:               n/a (non-manifold edges present)\n")
	}
	fmt.Printf("Intersecting faces:  %d\n", r.IntersectingFaces)
	fmt.Printf("Good mesh:           %v\n", r.IsGoodMesh)
	return nil
}
