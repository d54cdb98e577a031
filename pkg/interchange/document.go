// Package interchange reads and writes motion clips in the XML interchange
// format:
//
//	<Data Interval="200" Length="3.397" Keyframes="18">
//	  <Frame Time="0">
//	    <JointData>
//	      <Name>Head</Name>
//	      <Position><X>0.06443969</X><Y>0.8475291</Y><Z>1.98863149</Z></Position>
//	      <Angles><Roll>0</Roll><Yaw>0</Yaw><Pitch>19.868578</Pitch></Angles>
//	    </JointData>
//	    ...
//	  </Frame>
//	  ...
//	</Data>
//
// Length is the clip duration in seconds. The Pelvis entry carries derived
// body angles in its Position element: Y is pelvis pitch and Z is pelvis yaw.
package interchange

import "encoding/xml"

// Document is the parsed form of a <Data> element. Numeric values are kept as
// text so that decoding can report exactly which field was malformed.
type Document struct {
	XMLName   xml.Name `xml:"Data"`
	Interval  string   `xml:"Interval,attr"`
	Length    string   `xml:"Length,attr"`
	Keyframes string   `xml:"Keyframes,attr"`
	Frames    []Frame  `xml:"Frame"`
}

// Frame is one keyframe.
type Frame struct {
	Time   string      `xml:"Time,attr"`
	Joints []JointData `xml:"JointData"`
}

// JointData is one joint entry inside a frame.
type JointData struct {
	Name     string   `xml:"Name"`
	Position Position `xml:"Position"`
	Angles   Angles   `xml:"Angles"`
}

// Position holds the X, Y and Z components. A nil component was absent from
// the document and reads as zero.
type Position struct {
	X *string `xml:"X"`
	Y *string `xml:"Y"`
	Z *string `xml:"Z"`
}

// Angles holds roll, yaw and pitch in document order.
type Angles struct {
	Roll  *string `xml:"Roll"`
	Yaw   *string `xml:"Yaw"`
	Pitch *string `xml:"Pitch"`
}
