package game

import (
	"hash/fnv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/pixil98/go-plaza/internal/geom"
	"github.com/pixil98/go-plaza/internal/protocol"
)

const (
	maxNameRunes   = 24
	maxRoomIdLen   = 32
	maxReasonRunes = 280
)

const (
	AnimIdle = "idle"
	AnimWalk = "walk"
	AnimRun  = "run"
)

type VoiceState struct {
	Connected  bool
	Speaking   bool
	Muted      bool
	Deafened   bool
	PushToTalk bool
}

// Merge applies the fields set in u.
func (v *VoiceState) Merge(u protocol.VoiceState) {
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&v.Connected, u.Connected)
	set(&v.Speaking, u.Speaking)
	set(&v.Muted, u.Muted)
	set(&v.Deafened, u.Deafened)
	set(&v.PushToTalk, u.PushToTalk)
}

// Player is the authoritative state of one connection. Fields are only
// touched with the world lock held.
type Player struct {
	Id        string
	AccountId string
	RoomId    string
	Name      string
	Color     string
	Cosmetic  string

	Pos    geom.Vec
	Vel    geom.Vec
	Intent geom.Vec
	Anim   string
	ZoneId string

	Voice VoiceState

	distAcc    float64
	voiceAcc   float64
	lastActive time.Time
	kicked     bool
	done       chan struct{}
}

// Done is closed when the server evicts the player.
func (p *Player) Done() <-chan struct{} {
	return p.done
}

// Kick closes the done channel. Later calls are no-ops.
func (p *Player) Kick() {
	select {
	case <-p.done:
	default:
		close(p.done)
	}
}

func (p *Player) View() protocol.PlayerView {
	v := protocol.PlayerView{
		Id:       p.Id,
		Name:     p.Name,
		Color:    p.Color,
		Cosmetic: p.Cosmetic,
		X:        p.Pos.X,
		Y:        p.Pos.Y,
		Vx:       p.Vel.X,
		Vy:       p.Vel.Y,
		Anim:     p.Anim,
	}
	if p.ZoneId != "" {
		zone := p.ZoneId
		v.ZoneId = &zone
	}
	return v
}

// animFor derives the animation label from the current speed.
func animFor(speed, maxSpeed float64) string {
	switch {
	case maxSpeed <= 0:
		return AnimIdle
	case speed >= maxSpeed*runThreshold:
		return AnimRun
	case speed > maxSpeed*walkThreshold:
		return AnimWalk
	default:
		return AnimIdle
	}
}

// SanitizeRoomId lowercases id and strips everything outside [a-z0-9_-].
func SanitizeRoomId(id string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(id)) {
		if b.Len() >= maxRoomIdLen {
			break
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return DefaultRoomId
	}
	return b.String()
}

// SanitizeName trims name, drops control characters and caps its length.
// An empty result becomes a guest name derived from playerId.
func SanitizeName(name, playerId string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(name))

	if utf8.RuneCountInString(name) > maxNameRunes {
		name = strings.TrimSpace(string([]rune(name)[:maxNameRunes]))
	}
	if name == "" {
		suffix := playerId
		if len(suffix) > 4 {
			suffix = suffix[:4]
		}
		return "Guest-" + suffix
	}
	return name
}

// SanitizeReason trims a report reason and caps its length.
func SanitizeReason(reason string) string {
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) > maxReasonRunes {
		reason = string([]rune(reason)[:maxReasonRunes])
	}
	return reason
}

func pickCosmetic(choice string, allowed []string, fallback string) string {
	for _, c := range allowed {
		if c == choice {
			return c
		}
	}
	return fallback
}

func pickColor(playerId string, palette []string) string {
	if len(palette) == 0 {
		return ""
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(playerId))
	return palette[h.Sum32()%uint32(len(palette))]
}
