package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kinemo/motionrec/internal/config"
	"github.com/kinemo/motionrec/pkg/core"
	"github.com/kinemo/motionrec/pkg/motion"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

type env struct {
	dir       string
	configDir string
}

func newEnv(t *testing.T, cfg map[string]any) *env {
	t.Helper()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	if cfg == nil {
		cfg = map[string]any{}
	}
	cfg["logsDir"] = filepath.Join(dir, "logs")

	e := &env{dir: dir, configDir: dir}
	e.writeConfig(t, cfg)
	return e
}

func (e *env) writeConfig(t *testing.T, cfg map[string]any) {
	t.Helper()
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(e.configDir, config.FileName), data, 0644))
}

func (e *env) run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	viper.Reset()
	var stdout, stderr bytes.Buffer
	args = append(args, "--config", e.configDir)
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

const frames = `{"time":500,"joints":{"Spine":{"x":0,"y":1.1,"z":0},"ShoulderCenter":{"x":0,"y":1.5,"z":0},"Head":{"x":0,"y":1.7,"z":0}}}
{"time":700,"joints":{"Spine":{"x":0,"y":1.1,"z":0},"ShoulderCenter":{"x":0,"y":1.5,"z":0},"Head":{"x":0,"y":1.7,"z":0.1}}}
`

func (e *env) writeFrames(t *testing.T) string {
	t.Helper()
	path := filepath.Join(e.dir, "nod.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(frames), 0644))
	return path
}

func TestRun_Usage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run(context.Background(), nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Usage: motionrec <command>")
	for name := range commands {
		assert.Contains(t, stderr.String(), name)
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run(context.Background(), []string{"dance"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), `unknown command "dance"`)
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, run(context.Background(), []string{"version"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "motionrec "+Version)
}

func TestRun_BadFlag(t *testing.T) {
	e := newEnv(t, nil)
	code, _, stderr := e.run(t, "solve", "--no-such-flag")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "no-such-flag")
}

func TestSolveAndInspect(t *testing.T) {
	e := newEnv(t, nil)
	input := e.writeFrames(t)

	code, stdout, stderr := e.run(t, "solve", "--interval", "100", input)
	require.Equal(t, 0, code, stderr)
	out := filepath.Join(e.dir, "nod.xml")
	assert.Equal(t, out+"\n", stdout)

	code, stdout, stderr = e.run(t, "inspect", out)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "interval:  100 ms")
	assert.Contains(t, stdout, "duration:  0.200 s")
	assert.Contains(t, stdout, "keyframes: 2")
	assert.Contains(t, stdout, "JOINT")
	assert.Contains(t, stdout, "Left Shoulder")

	logs, err := os.ReadDir(filepath.Join(e.dir, "logs"))
	require.NoError(t, err)
	assert.NotEmpty(t, logs)
}

func TestSolve_NoInput(t *testing.T) {
	e := newEnv(t, nil)
	code, _, stderr := e.run(t, "solve")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "no input files")
}

func TestInspect_Malformed(t *testing.T) {
	e := newEnv(t, nil)
	path := filepath.Join(e.dir, "bad.xml")
	require.NoError(t, os.WriteFile(path, []byte(`<Data Interval="x"/>`), 0644))

	code, _, stderr := e.run(t, "inspect", path)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "malformed interchange document")
}

func TestImportListExport(t *testing.T) {
	for _, backend := range []string{"file", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			e := newEnv(t, nil)
			cfg := map[string]any{
				"logsDir": filepath.Join(e.dir, "logs"),
				"storage": map[string]any{
					"type":   backend,
					"file":   map[string]any{"outputDir": filepath.Join(e.dir, "recordings"), "compress": true},
					"sqlite": map[string]any{"path": filepath.Join(e.dir, "motionrec.db")},
				},
			}
			e.writeConfig(t, cfg)

			input := e.writeFrames(t)
			code, _, stderr := e.run(t, "solve", input)
			require.Equal(t, 0, code, stderr)

			code, stdout, stderr := e.run(t, "import", "--as", "nod", "--subject", "alice", filepath.Join(e.dir, "nod.xml"))
			require.Equal(t, 0, code, stderr)
			id := strings.TrimSpace(stdout)
			require.NotEmpty(t, id)

			code, stdout, stderr = e.run(t, "list")
			require.Equal(t, 0, code, stderr)
			assert.Contains(t, stdout, "ID")
			assert.Contains(t, stdout, id)
			assert.Contains(t, stdout, "nod")
			assert.Contains(t, stdout, "alice")

			exported := filepath.Join(e.dir, "exported.xml.gz")
			code, stdout, stderr = e.run(t, "export", id, exported)
			require.Equal(t, 0, code, stderr)
			assert.Equal(t, exported+"\n", stdout)

			data, err := os.ReadFile(exported)
			require.NoError(t, err)
			assert.Equal(t, []byte{0x1f, 0x8b}, data[:2])
		})
	}
}

func TestExport_NotFound(t *testing.T) {
	e := newEnv(t, nil)
	code, _, stderr := e.run(t, "export", "--out", filepath.Join(e.dir, "recordings"), "missing.xml", filepath.Join(e.dir, "x.xml"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "recording not found")
}

func TestRecord_FromFile(t *testing.T) {
	e := newEnv(t, nil)

	// 60 ms between frames, recorded at 50 ms keyframes
	var lines []string
	for i := 0; i < 6; i++ {
		lines = append(lines, fmt.Sprintf(
			`{"time":%d,"joints":{"Spine":{"x":0,"y":1.1,"z":0},"Neck":{"x":0,"y":1.5,"z":0},"Head":{"x":0,"y":1.7,"z":0}}}`, i*60))
	}
	input := filepath.Join(e.dir, "live.jsonl")
	require.NoError(t, os.WriteFile(input, []byte(strings.Join(lines, "\n")+"\n"), 0644))

	out := filepath.Join(e.dir, "recordings")
	code, stdout, stderr := e.run(t, "record",
		"--input", input, "--realtime", "--interval", "50",
		"--name", "live", "--subject", "bob", "--out", out)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "saved live_")

	clips, err := filepath.Glob(filepath.Join(out, "live_*.xml"))
	require.NoError(t, err)
	require.Len(t, clips, 1)
	assert.FileExists(t, clips[0]+".json")
}

func TestSummarize(t *testing.T) {
	clip := motion.NewClip(200)
	for i, z := range []float64{0, 0.1} {
		var p core.Pose
		p.Time = float64(i) * 200
		p.SetPosition(core.Spine, r3.Vec{Y: 1.1})
		p.SetPosition(core.Neck, r3.Vec{Y: 1.5})
		p.SetPosition(core.Head, r3.Vec{Y: 1.7, Z: z})
		clip.AddKeyframe(p)
	}
	require.NoError(t, clip.Finalize())

	ranges := summarize(clip)
	require.Len(t, ranges, core.JointCount)

	byName := map[string]jointRange{}
	for _, r := range ranges {
		byName[r.Name] = r
	}
	head := byName["Head"]
	assert.NotEqual(t, "-", head.Roll)
	assert.NotEqual(t, "-", head.Pitch)
	assert.Equal(t, "-", byName["Left Shoulder"].Roll)
	assert.Equal(t, "-", byName["Pelvis"].Roll)
}

func TestClipName(t *testing.T) {
	assert.Equal(t, "nod", clipName(filepath.Join("a", "nod.xml")))
	assert.Equal(t, "nod", clipName("nod.xml.gz"))
}
