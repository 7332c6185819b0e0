package library

import (
	"fmt"
	"strings"
)

// ExportM3U renders the library as an extended M3U playlist with absolute
// paths, in library order.
//
//	#EXTM3U
//	#EXTINF:150,track1.mp3
//	/music/track1.mp3
func (l *Library) ExportM3U() string {
	var sb strings.Builder
	sb.WriteString("#EXTM3U\n")
	for _, t := range l.Tracks() {
		secs := -1 // unknown, per the M3U convention
		if d, err := t.Duration(); err == nil {
			secs = int(d.Seconds())
		}
		sb.WriteString(fmt.Sprintf("#EXTINF:%d,%s\n", secs, t.FileName))
		sb.WriteString(t.Path + "\n")
	}
	return sb.String()
}
