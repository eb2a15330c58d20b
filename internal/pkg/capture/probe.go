package capture

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"
)

// Prober tries to read media duration metadata.
// A probe failure is not fatal - the controller accepts the file anyway.
type Prober interface {
	Duration(ctx context.Context, data []byte, mime string) (time.Duration, error)
}

// MP4Prober reads duration from the mvhd box of an MP4 container
type MP4Prober struct{}

// Duration implements Prober
func (p MP4Prober) Duration(ctx context.Context, data []byte, mime string) (time.Duration, error) {
	if mime != "video/mp4" {
		return 0, fmt.Errorf("unsupported container '%s'", mime)
	}
	moov, err := findBox(data, "moov")
	if err != nil {
		return 0, err
	}
	mvhd, err := findBox(moov, "mvhd")
	if err != nil {
		return 0, err
	}
	return mvhdDuration(mvhd)
}

func findBox(data []byte, name string) ([]byte, error) {
	for len(data) >= 8 {
		size := int64(binary.BigEndian.Uint32(data))
		boxName := string(data[4:8])
		head := int64(8)
		if size == 1 { // 64-bit box size
			if len(data) < 16 {
				break
			}
			size = int64(binary.BigEndian.Uint64(data[8:16]))
			head = 16
		}
		if size < head || size > int64(len(data)) {
			return nil, fmt.Errorf("malformed box '%s'", boxName)
		}
		if boxName == name {
			return data[head:size], nil
		}
		data = data[size:]
	}
	return nil, fmt.Errorf("no '%s' box", name)
}

func mvhdDuration(b []byte) (time.Duration, error) {
	if len(b) < 20 {
		return 0, fmt.Errorf("mvhd too short")
	}
	version := b[0]
	var timescale, duration uint64
	if version == 1 {
		if len(b) < 32 {
			return 0, fmt.Errorf("mvhd too short")
		}
		timescale = uint64(binary.BigEndian.Uint32(b[20:24]))
		duration = binary.BigEndian.Uint64(b[24:32])
	} else {
		timescale = uint64(binary.BigEndian.Uint32(b[12:16]))
		duration = uint64(binary.BigEndian.Uint32(b[16:20]))
	}
	if timescale == 0 {
		return 0, fmt.Errorf("no timescale")
	}
	return time.Duration(duration) * time.Second / time.Duration(timescale), nil
}
