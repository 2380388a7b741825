package geometry

import (
	"fmt"
	"math"
	"sync"
	"unicode/utf16"
)

// ColorForAppellation derives a stable HSL color from an appellation name so
// parcels sharing a name are grouped visually without a server-side palette.
//
// The hash is the classic 32-bit "h = c + (h << 5) - h" over UTF-16 code
// units, with the shift applied to the value truncated to int32 as browsers do.
// Hue, saturation and lightness are taken from the hash modulo 360 / 20 / 20.
func ColorForAppellation(nom string) string {
	var h float64
	for _, c := range utf16.Encode([]rune(nom)) {
		shifted := int32(int64(h)) << 5
		h = float64(c) + (float64(shifted) - h)
	}

	hue := math.Abs(math.Mod(h, 360))
	sat := 60 + math.Mod(math.Abs(h), 20)
	light := 40 + math.Mod(math.Abs(h), 20)
	return fmt.Sprintf("hsl(%d, %d%%, %d%%)", int(hue), int(sat), int(light))
}

// Palette memoizes ColorForAppellation for one session.
type Palette struct {
	mu     sync.Mutex
	colors map[string]string
}

func NewPalette() *Palette {
	return &Palette{colors: make(map[string]string)}
}

// Color returns the color for nom, computing it on first use.
func (p *Palette) Color(nom string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.colors[nom]; ok {
		return c
	}
	c := ColorForAppellation(nom)
	p.colors[nom] = c
	return c
}
