package link

import "bytes"

// KISS framing bytes.
const (
	kissFEND  = 0xC0
	kissFESC  = 0xDB
	kissTFEND = 0xDC
	kissTFESC = 0xDD

	kissCmdData = 0x00
)

// kissEscape escapes any KISS special bytes so that framing is preserved.
func kissEscape(data []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(data) + 8)
	for _, b := range data {
		switch b {
		case kissFEND:
			out.Write([]byte{kissFESC, kissTFEND})
		case kissFESC:
			out.Write([]byte{kissFESC, kissTFESC})
		default:
			out.WriteByte(b)
		}
	}
	return out.Bytes()
}

// kissUnescape reverses kissEscape. A dangling or invalid escape is kept literally.
func kissUnescape(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		b := data[i]
		if b == kissFESC && i+1 < len(data) {
			switch data[i+1] {
			case kissTFEND:
				out = append(out, kissFEND)
				i++
				continue
			case kissTFESC:
				out = append(out, kissFESC)
				i++
				continue
			}
		}
		out = append(out, b)
	}
	return out
}

// kissEncode wraps payload in a KISS data frame for the given TNC port.
func kissEncode(port uint8, payload []byte) []byte {
	escaped := kissEscape(payload)
	frame := make([]byte, 0, len(escaped)+3)
	frame = append(frame, kissFEND, (port&0x0F)<<4|kissCmdData)
	frame = append(frame, escaped...)
	return append(frame, kissFEND)
}

// kissDecoder accumulates a byte stream and yields unescaped data frames.
type kissDecoder struct {
	buf []byte
}

// feed appends data and returns every complete data frame it closes.
// Non-data KISS commands and empty frames are skipped.
func (d *kissDecoder) feed(data []byte) [][]byte {
	d.buf = append(d.buf, data...)

	var frames [][]byte
	for {
		start := bytes.IndexByte(d.buf, kissFEND)
		if start == -1 {
			d.buf = d.buf[:0]
			break
		}
		end := bytes.IndexByte(d.buf[start+1:], kissFEND)
		if end == -1 {
			d.buf = append(d.buf[:0], d.buf[start:]...)
			break
		}
		end += start + 1
		inner := d.buf[start+1 : end]
		d.buf = d.buf[end:] // closing FEND may open the next frame

		if len(inner) < 2 || inner[0]&0x0F != kissCmdData {
			continue
		}
		frames = append(frames, kissUnescape(inner[1:]))
	}
	return frames
}
