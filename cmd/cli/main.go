package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/benholden/tdoasolve/internal/tdoa"
	"github.com/benholden/tdoasolve/pkg/diagnostic"
)

const version = "1.0.0"

var (
	serverAddr string
	authToken  string
	timeout    time.Duration
)

func main() {
	if len(os.Args) < 2 {
		showUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "solve":
		handleSolve(os.Args[2:])
	case "residual":
		handleResidual(os.Args[2:])
	case "render":
		handleRender(os.Args[2:])
	case "health":
		handleHealth(os.Args[2:])
	case "version":
		fmt.Printf("tdoa-cli version %s\n", version)
	case "help", "-h", "--help":
		showUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		showUsage()
		os.Exit(1)
	}
}

// anchorFlag collects -anchor x,y,z,dt specs on the command line.
type anchorFlag []anchorSpec

type anchorSpec struct {
	X, Y, Z, TimeDifference float64
}

func (a *anchorFlag) String() string {
	return fmt.Sprintf("%d anchors", len(*a))
}

func (a *anchorFlag) Set(value string) error {
	var x, y, z, dt float64
	n, err := fmt.Sscanf(value, "%f,%f,%f,%f", &x, &y, &z, &dt)
	if err != nil || n != 4 {
		return fmt.Errorf("anchor must be x,y,z,dt (got %q)", value)
	}
	*a = append(*a, anchorSpec{X: x, Y: y, Z: z, TimeDifference: dt})
	return nil
}

func handleSolve(args []string) {
	fs := flag.NewFlagSet("solve", flag.ExitOnError)
	var anchors anchorFlag
	fs.Var(&anchors, "anchor", "anchor spec x,y,z,dt (repeatable)")
	speed := fs.Float64("speed", 343.0, "signal propagation speed, metres/second")
	cycles := fs.Int("cycles", 0, "multi-start cycle count (0 uses server default)")
	fs.StringVar(&serverAddr, "server", "http://localhost:8088", "REST API base URL")
	fs.StringVar(&authToken, "token", "", "bearer auth token")
	fs.DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
	fs.Parse(args)

	if len(anchors) < 3 {
		fmt.Println("Error: at least 3 -anchor specs are required")
		fs.Usage()
		os.Exit(1)
	}

	body := map[string]interface{}{
		"anchors": anchors,
		"speed":   *speed,
	}
	if *cycles > 0 {
		body["cycles"] = *cycles
	}

	resp, err := postJSON("/v1/solve", body)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	var decoded struct {
		Estimates []struct {
			X, Y, Z float64
			Weight  float64
		}
		Stats struct {
			AnchorCount  int     `json:"anchor_count"`
			Descents     int     `json:"descents"`
			ClusterCount int     `json:"cluster_count"`
			ResultCount  int     `json:"result_count"`
			ElapsedMS    float64 `json:"elapsed_ms"`
		}
		Cached bool
	}
	if err := json.Unmarshal(resp, &decoded); err != nil {
		fmt.Printf("Error decoding response: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Solve complete in %.2fms (%d descents, %d clusters, %d estimates, cached=%v)\n\n",
		decoded.Stats.ElapsedMS, decoded.Stats.Descents, decoded.Stats.ClusterCount, decoded.Stats.ResultCount, decoded.Cached)

	if len(decoded.Estimates) == 0 {
		fmt.Println("No confident estimate.")
		return
	}

	for i, e := range decoded.Estimates {
		fmt.Printf("Estimate %d: (%.3f, %.3f, %.3f)  weight=%.4f\n", i+1, e.X, e.Y, e.Z, e.Weight)
	}
}

func handleResidual(args []string) {
	fs := flag.NewFlagSet("residual", flag.ExitOnError)
	var anchors anchorFlag
	fs.Var(&anchors, "anchor", "anchor spec x,y,z,dt (repeatable)")
	speed := fs.Float64("speed", 343.0, "signal propagation speed, metres/second")
	x := fs.Float64("x", 0, "point X coordinate")
	y := fs.Float64("y", 0, "point Y coordinate")
	z := fs.Float64("z", 0, "point Z coordinate")
	fs.StringVar(&serverAddr, "server", "http://localhost:8088", "REST API base URL")
	fs.StringVar(&authToken, "token", "", "bearer auth token")
	fs.DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
	fs.Parse(args)

	if len(anchors) < 1 {
		fmt.Println("Error: at least one -anchor spec is required")
		fs.Usage()
		os.Exit(1)
	}

	body := map[string]interface{}{
		"anchors": anchors,
		"speed":   *speed,
		"point":   anchorSpec{X: *x, Y: *y, Z: *z},
	}

	resp, err := postJSON("/v1/residual", body)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	var decoded struct {
		Cost float64 `json:"cost"`
	}
	if err := json.Unmarshal(resp, &decoded); err != nil {
		fmt.Printf("Error decoding response: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Residual at (%.3f, %.3f, %.3f): %.6f\n", *x, *y, *z, decoded.Cost)
}

func handleRender(args []string) {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	var anchors anchorFlag
	fs.Var(&anchors, "anchor", "anchor spec x,y,z,dt (repeatable)")
	speed := fs.Float64("speed", 343.0, "signal propagation speed, metres/second")
	z := fs.Float64("z", 0, "slice height")
	minX := fs.Float64("min-x", -100, "bounding box min X")
	maxX := fs.Float64("max-x", 100, "bounding box max X")
	minY := fs.Float64("min-y", -100, "bounding box min Y")
	maxY := fs.Float64("max-y", 100, "bounding box max Y")
	resolution := fs.Int("resolution", 512, "slice resolution in pixels per side")
	exposure := fs.Float64("exposure", 1.0, "cost at which the color gradient saturates")
	out := fs.String("out", "residual.png", "output PNG path")
	fs.Parse(args)

	if len(anchors) < 1 {
		fmt.Println("Error: at least one -anchor spec is required")
		fs.Usage()
		os.Exit(1)
	}

	tdoaAnchors := make([]tdoa.Anchor, len(anchors))
	for i, a := range anchors {
		tdoaAnchors[i] = tdoa.Anchor{
			Position:       tdoa.Vec3{X: a.X, Y: a.Y, Z: a.Z},
			TimeDifference: a.TimeDifference,
		}
	}
	normalized, err := tdoa.Normalize(tdoaAnchors)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	err = diagnostic.RenderResidualSlice(diagnostic.SliceOptions{
		Anchors:    normalized,
		Speed:      *speed,
		Z:          *z,
		MinX:       *minX,
		MaxX:       *maxX,
		MinY:       *minY,
		MaxY:       *maxY,
		Resolution: *resolution,
		Exposure:   *exposure,
	}, *out)
	if err != nil {
		fmt.Printf("Error rendering slice: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote residual slice to %s\n", *out)
}

func handleHealth(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	fs.StringVar(&serverAddr, "server", "http://localhost:8088", "REST API base URL")
	fs.DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	fs.Parse(args)

	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(serverAddr + "/v1/health")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Server unhealthy: status %d\n", resp.StatusCode)
		os.Exit(1)
	}
	fmt.Println("Status: ok")
}

func postJSON(path string, body interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, serverAddr+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(data))
	}

	return data, nil
}

func showUsage() {
	fmt.Println(`tdoasolve CLI - client for the localization REST API

Usage:
  tdoa-cli <command> [options]

Commands:
  solve       Run a localization solve over a set of anchors
  residual    Evaluate the residual cost at a single point
  render      Render a residual cost slice to a PNG image (runs locally, no server)
  health      Check server health
  version     Show version
  help        Show this help message

Global Options:
  -server URL       REST API base URL (default: http://localhost:8088)
  -token TOKEN      Bearer auth token
  -timeout DURATION Request timeout (default: 30s; 5s for health)

Render Options:
  -anchor X,Y,Z,DT  Anchor spec (repeatable)
  -speed N          Signal propagation speed, metres/second (default: 343)
  -z N              Slice height (default: 0)
  -min-x, -max-x    Bounding box X range (default: -100, 100)
  -min-y, -max-y    Bounding box Y range (default: -100, 100)
  -resolution N     Slice resolution in pixels per side (default: 512)
  -exposure N       Cost at which the color gradient saturates (default: 1.0)
  -out PATH         Output PNG path (default: residual.png)

Examples:

  # Solve with four anchors
  tdoa-cli solve \
    -anchor -50,-50,0,0 \
    -anchor 50,-50,0,0.05 \
    -anchor 50,50,0,0.08 \
    -anchor -50,50,0,0.03 \
    -speed 343

  # Evaluate the residual at a point
  tdoa-cli residual \
    -anchor -50,-50,0,0 \
    -anchor 50,-50,0,0.05 \
    -anchor 50,50,0,0.08 \
    -x 0 -y 0 -z 0

  # Render a residual cost slice
  tdoa-cli render \
    -anchor -50,-50,0,0 \
    -anchor 50,-50,0,0.05 \
    -anchor 50,50,0,0.08 \
    -anchor -50,50,0,0.03 \
    -out slice.png

  # Check server health
  tdoa-cli health -server http://localhost:8088`)
}
