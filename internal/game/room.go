package game

import (
	"bytes"
	"slices"
	"strings"

	"github.com/pixil98/go-plaza/internal/minigame"
	"github.com/pixil98/go-plaza/internal/protocol"
)

// Room is one independent simulation partition. It owns its players'
// presence cache and one runtime per mini-game definition, and is discarded
// when the last player leaves.
type Room struct {
	Id      string
	players map[string]*Player

	// presence maps zone id to the comma joined sorted occupant ids last
	// announced for it.
	presence map[string]string
	engines  []minigame.Engine
	// lastState holds the last minigame_state frame sent per game id.
	lastState map[string][]byte
}

func newRoom(id string, engines []minigame.Engine) *Room {
	return &Room{
		Id:        id,
		players:   map[string]*Player{},
		presence:  map[string]string{},
		engines:   engines,
		lastState: map[string][]byte{},
	}
}

// sortedPlayers returns the room's players ordered by id.
func (r *Room) sortedPlayers() []*Player {
	out := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b *Player) int { return strings.Compare(a.Id, b.Id) })
	return out
}

func (r *Room) occupants(zoneId string) []minigame.Occupant {
	var out []minigame.Occupant
	for _, p := range r.sortedPlayers() {
		if p.ZoneId == zoneId {
			out = append(out, minigame.Occupant{
				PlayerId:  p.Id,
				AccountId: p.AccountId,
				X:         p.Pos.X,
				Y:         p.Pos.Y,
			})
		}
	}
	return out
}

// presenceChanged records the occupant ids of zoneId and reports whether
// they differ from what was last announced.
func (r *Room) presenceChanged(zoneId string, ids []string) bool {
	fp := strings.Join(ids, ",")
	if r.presence[zoneId] == fp {
		return false
	}
	r.presence[zoneId] = fp
	return true
}

// stateChanged records frame as the latest state of gameId and reports
// whether it differs from the previous one.
func (r *Room) stateChanged(gameId string, frame []byte) bool {
	if bytes.Equal(r.lastState[gameId], frame) {
		return false
	}
	r.lastState[gameId] = frame
	return true
}

func (r *Room) views() []protocol.PlayerView {
	players := r.sortedPlayers()
	out := make([]protocol.PlayerView, 0, len(players))
	for _, p := range players {
		out = append(out, p.View())
	}
	return out
}
