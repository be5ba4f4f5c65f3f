package watch

import (
	"strings"
	"time"
)

// Pulse shows event activity with a decaying dot pattern. It lights up when
// an agent event arrives and fades while the fleet is quiet.
type Pulse struct {
	dots      int
	lastEvent time.Time
}

func (p *Pulse) OnEvent() {
	p.dots = 5
	p.lastEvent = time.Now()
}

// Decay fades the dots based on time since the last event.
func (p *Pulse) Decay() {
	if p.dots == 0 {
		return
	}
	elapsed := time.Since(p.lastEvent)
	switch {
	case elapsed > 10*time.Second:
		p.dots = 0
	case elapsed > 8*time.Second:
		p.dots = 1
	case elapsed > 6*time.Second:
		p.dots = 2
	case elapsed > 4*time.Second:
		p.dots = 3
	case elapsed > 2*time.Second:
		p.dots = 4
	}
}

func (p Pulse) Render(theme Theme) string {
	var b strings.Builder
	for i := 0; i < 5; i++ {
		if i < p.dots {
			b.WriteString(theme.PulseActive.Render("●"))
		} else {
			b.WriteString(theme.PulseInactive.Render("○"))
		}
	}
	return b.String()
}

func (p Pulse) LastEvent() time.Time {
	return p.lastEvent
}
