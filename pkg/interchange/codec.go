package interchange

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/kinemo/motionrec/pkg/core"
	"github.com/kinemo/motionrec/pkg/motion"
	"gonum.org/v1/gonum/spatial/r3"
)

// Option configures decoding.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger that receives skipped-joint and count mismatch
// reports, and that the decoded clip logs through.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Encode builds the document for a finalized clip. Joints are written in
// core.AllJoints order. It fails only with motion.ErrNotFinalized.
func Encode(clip *motion.Clip) (*Document, error) {
	if !clip.Finalized() {
		return nil, motion.ErrNotFinalized
	}

	doc := &Document{
		Interval:  strconv.Itoa(clip.Interval()),
		Length:    formatFloat(clip.Duration()),
		Keyframes: strconv.Itoa(clip.KeyframeCount()),
		Frames:    make([]Frame, 0, clip.KeyframeCount()),
	}

	for _, pose := range clip.Keyframes() {
		frame := Frame{
			Time:   formatFloat(pose.Time),
			Joints: make([]JointData, 0, core.JointCount),
		}
		for _, k := range core.AllJoints() {
			j := pose.Joint(k)
			pos := j.Position
			if k == core.Pelvis {
				pos = r3.Vec{Y: pose.PelvisPitch, Z: pose.PelvisYaw}
			}
			frame.Joints = append(frame.Joints, JointData{
				Name: k.String(),
				Position: Position{
					X: text(pos.X),
					Y: text(pos.Y),
					Z: text(pos.Z),
				},
				Angles: Angles{
					Roll:  text(j.Orientation.Roll),
					Yaw:   text(j.Orientation.Yaw),
					Pitch: text(j.Orientation.Pitch),
				},
			})
		}
		doc.Frames = append(doc.Frames, frame)
	}
	return doc, nil
}

// Decode builds a finalized clip from doc. The clip's duration is the Length
// attribute and its keyframe count is the number of frames present.
//
// Joint entries with an unrecognized name are skipped, leaving that slot at
// its zero value. Joints read from the document get confidence 1.
func Decode(doc *Document, opts ...Option) (*motion.Clip, error) {
	o := buildOptions(opts)

	interval, err := parseInt("Data@Interval", doc.Interval)
	if err != nil {
		return nil, err
	}
	length, err := parseFloat("Data@Length", doc.Length)
	if err != nil {
		return nil, err
	}
	declared, err := parseInt("Data@Keyframes", doc.Keyframes)
	if err != nil {
		return nil, err
	}

	poses := make([]core.Pose, 0, len(doc.Frames))
	for i := range doc.Frames {
		pose, err := decodeFrame(o.logger, i, &doc.Frames[i])
		if err != nil {
			return nil, err
		}
		poses = append(poses, pose)
	}

	if declared != len(poses) {
		o.logger.Warn("Keyframe count does not match frames",
			"declared", declared,
			"frames", len(poses))
	}

	return motion.Restore(interval, length, poses, motion.WithLogger(o.logger)), nil
}

func decodeFrame(logger *slog.Logger, i int, f *Frame) (core.Pose, error) {
	var pose core.Pose

	framePath := fmt.Sprintf("Data/Frame[%d]", i)
	t, err := parseFloat(framePath+"@Time", f.Time)
	if err != nil {
		return pose, err
	}
	pose.Time = t

	for j := range f.Joints {
		jd := &f.Joints[j]
		path := fmt.Sprintf("%s/JointData[%d]", framePath, j)

		var pos r3.Vec
		var ori core.Orientation
		for _, c := range []struct {
			name string
			src  *string
			dst  *float64
		}{
			{"Position/X", jd.Position.X, &pos.X},
			{"Position/Y", jd.Position.Y, &pos.Y},
			{"Position/Z", jd.Position.Z, &pos.Z},
			{"Angles/Roll", jd.Angles.Roll, &ori.Roll},
			{"Angles/Yaw", jd.Angles.Yaw, &ori.Yaw},
			{"Angles/Pitch", jd.Angles.Pitch, &ori.Pitch},
		} {
			if c.src == nil {
				continue
			}
			v, err := parseFloat(path+"/"+c.name, *c.src)
			if err != nil {
				return pose, err
			}
			*c.dst = v
		}

		name := strings.TrimSpace(jd.Name)
		k, ok := core.ParseJointKind(name)
		if !ok {
			logger.Debug("Skipping unknown joint", "frame", i, "name", name)
			continue
		}

		sample := core.JointSample{Position: pos, Orientation: ori, Confidence: 1}
		if k == core.Pelvis {
			pose.PelvisPitch = pos.Y
			pose.PelvisYaw = pos.Z
			sample.Position = r3.Vec{}
		}
		pose.SetJoint(k, sample)
	}
	return pose, nil
}

// Marshal encodes a finalized clip as an indented XML document.
func Marshal(clip *motion.Clip) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, clip); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes the first <Data> element found in data.
func Unmarshal(data []byte, opts ...Option) (*motion.Clip, error) {
	return Read(bytes.NewReader(data), opts...)
}

// Write encodes a finalized clip to w.
func Write(w io.Writer, clip *motion.Clip) error {
	doc, err := Encode(clip)
	if err != nil {
		return err
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode clip: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return fmt.Errorf("flush clip: %w", err)
	}
	_, err = io.WriteString(w, "\n")
	return err
}

// Read decodes the first <Data> element in r. The element may be the document
// root or nested at any depth.
func Read(r io.Reader, opts ...Option) (*motion.Clip, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil, malformed("Data", errNotFound)
		}
		if err != nil {
			return nil, malformed("document", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "Data" {
			continue
		}

		var doc Document
		if err := dec.DecodeElement(&doc, &start); err != nil {
			return nil, malformed("Data", err)
		}
		return Decode(&doc, opts...)
	}
}

// replaced in tests
var createFile = os.Create

// WriteFile writes a finalized clip to path, gzip compressed when path ends
// in ".gz". A failed write leaves no file behind.
func WriteFile(path string, clip *motion.Clip) (err error) {
	if !clip.Finalized() {
		return motion.ErrNotFinalized
	}
	f, err := createFile(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	if !strings.HasSuffix(path, ".gz") {
		return Write(f, clip)
	}

	gz := gzip.NewWriter(f)
	if err := Write(gz, clip); err != nil {
		gz.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("close gzip writer: %w", err)
	}
	return nil
}

// ReadFile reads a clip from path. Gzip input is detected from its header,
// not the file name.
func ReadFile(path string, opts ...Option) (*motion.Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	magic, _ := br.Peek(2)
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open gzip %s: %w", path, err)
		}
		defer gz.Close()
		return Read(gz, opts...)
	}
	return Read(br, opts...)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func text(v float64) *string {
	s := formatFloat(v)
	return &s
}

func parseFloat(path, s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, malformed(path, errMissing)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, malformed(path, err)
	}
	return v, nil
}

func parseInt(path, s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, malformed(path, errMissing)
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, malformed(path, err)
	}
	return v, nil
}
