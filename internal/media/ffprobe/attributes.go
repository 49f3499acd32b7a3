package ffprobe

import "fmt"

// Attributes are the stream properties that must match for a stream-copy
// concatenation to succeed.
type Attributes struct {
	Codec  string `json:"codec"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	PixFmt string `json:"pix_fmt"`
}

// Diff lists the attribute names whose values differ from other.
func (a Attributes) Diff(other Attributes) []string {
	var fields []string
	if a.Codec != other.Codec {
		fields = append(fields, "codec")
	}
	if a.Width != other.Width {
		fields = append(fields, "width")
	}
	if a.Height != other.Height {
		fields = append(fields, "height")
	}
	if a.PixFmt != other.PixFmt {
		fields = append(fields, "pix_fmt")
	}
	return fields
}

func (a Attributes) String() string {
	return fmt.Sprintf("%s %dx%d %s", a.Codec, a.Width, a.Height, a.PixFmt)
}
