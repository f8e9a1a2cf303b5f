// Package protocol defines the JSON messages exchanged with clients. Every
// frame is an Envelope whose payload shape is selected by Type.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/pixil98/go-plaza/internal/geom"
	"github.com/pixil98/go-plaza/internal/minigame"
)

// Client to server.
const (
	TypeJoin         = "join"
	TypeIntent       = "intent"
	TypeAction       = "action"
	TypeVoiceState   = "voice_state"
	TypeReportPlayer = "report_player"
)

// Server to client.
const (
	TypeWelcome        = "welcome"
	TypeJoinError      = "join_error"
	TypeState          = "state"
	TypeZonePresence   = "zone_presence"
	TypeMiniGameState  = "minigame_state"
	TypeActionResult   = "action_result"
	TypeEmote          = "emote"
	TypeVoicePresence  = "voice_presence"
	TypePlayerLeft     = "player_left"
	TypeQuestProgress  = "quest_progress"
	TypeCurrencyGrant  = "currency_grant"
	TypeUnlockGrant    = "unlock_grant"
	TypeMiniGameReward = "minigame_reward"
	TypeKicked         = "kicked"
)

// Join error codes.
const (
	ErrCodeRoomFull      = "room_full"
	ErrCodeAuthRequired  = "auth_required"
	ErrCodeAlreadyJoined = "already_joined"
)

type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode wraps payload in an envelope of the given type.
func Encode(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshalling %s payload: %w", msgType, err)
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

// Decode parses a frame into its envelope. The payload is left raw for the
// handler registered for the type.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("decoding envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("decoding envelope: missing type")
	}
	return env, nil
}

type ClientMeta struct {
	ResumeId string `json:"resumeId,omitempty"`
	Platform string `json:"platform,omitempty"`
	Version  string `json:"version,omitempty"`
}

type Join struct {
	AuthToken      string     `json:"authToken,omitempty"`
	RoomId         string     `json:"roomId"`
	DisplayName    string     `json:"displayName"`
	CosmeticChoice string     `json:"cosmeticChoice"`
	ClientMeta     ClientMeta `json:"clientMeta"`
}

type Intent struct {
	Ix float64 `json:"ix"`
	Iy float64 `json:"iy"`
}

type Action struct {
	Type string `json:"type"`
}

// VoiceState is a partial update; nil fields keep their previous value.
type VoiceState struct {
	Connected  *bool `json:"connected,omitempty"`
	Speaking   *bool `json:"speaking,omitempty"`
	Muted      *bool `json:"muted,omitempty"`
	Deafened   *bool `json:"deafened,omitempty"`
	PushToTalk *bool `json:"pushToTalk,omitempty"`
}

type ReportPlayer struct {
	TargetPlayerId string `json:"targetPlayerId"`
	Reason         string `json:"reason"`
}

type PlayerView struct {
	Id       string  `json:"id"`
	Name     string  `json:"name"`
	Color    string  `json:"color"`
	Cosmetic string  `json:"cosmetic"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Vx       float64 `json:"vx"`
	Vy       float64 `json:"vy"`
	Anim     string  `json:"anim"`
	ZoneId   *string `json:"zoneId"`
}

type ZoneView struct {
	Id       string `json:"id"`
	Name     string `json:"name"`
	MiniGame string `json:"minigame,omitempty"`
}

type MiniGameView struct {
	Id     string `json:"id"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	ZoneId string `json:"zoneId"`
}

type ProfileView struct {
	AccountId   string            `json:"accountId"`
	DisplayName string            `json:"displayName"`
	Balance     int               `json:"balance"`
	Unlocks     map[string]string `json:"unlocks"`
}

type Progression struct {
	Level   int `json:"level"`
	TotalXP int `json:"totalXp"`
	NextXP  int `json:"nextXp"`
}

type QuestView struct {
	QuestId   string `json:"questId"`
	Title     string `json:"title"`
	Type      string `json:"type"`
	Value     int    `json:"value"`
	Target    int    `json:"target"`
	Status    string `json:"status"`
	Completed bool   `json:"completed"`
}

type Welcome struct {
	SelfId       string         `json:"selfId"`
	RoomId       string         `json:"roomId"`
	World        geom.Bounds    `json:"world"`
	Players      []PlayerView   `json:"players"`
	Zones        []ZoneView     `json:"zones"`
	MiniGames    []MiniGameView `json:"miniGames"`
	Profile      *ProfileView   `json:"profile,omitempty"`
	Progression  *Progression   `json:"progression,omitempty"`
	Quests       []QuestView    `json:"quests"`
	VoiceEnabled bool           `json:"voiceEnabled"`
}

type JoinError struct {
	Code       string `json:"code"`
	RoomId     string `json:"roomId,omitempty"`
	MaxPlayers int    `json:"maxPlayers,omitempty"`
}

type State struct {
	Players []PlayerView `json:"players"`
}

type ZonePresence struct {
	ZoneId  string   `json:"zoneId"`
	Players []string `json:"players"`
}

// MiniGameState is the runtime's public state, sent as is.
type MiniGameState = minigame.State

type ActionResult struct {
	GameId     string `json:"gameId"`
	PlayerId   string `json:"playerId"`
	Action     string `json:"action"`
	Success    bool   `json:"success"`
	ScoreDelta int    `json:"scoreDelta"`
	Combo      int    `json:"combo"`
}

type Emote struct {
	Id   string `json:"id"`
	Type string `json:"type"`
	Ts   int64  `json:"ts"`
}

type VoicePresence struct {
	Id       string `json:"id"`
	Speaking bool   `json:"speaking"`
	Muted    bool   `json:"muted"`
}

type PlayerLeft struct {
	Id string `json:"id"`
}

type QuestProgress struct {
	QuestId   string `json:"questId"`
	Value     int    `json:"value"`
	Completed bool   `json:"completed"`
}

type CurrencyGrant struct {
	Amount  int    `json:"amount"`
	Source  string `json:"source"`
	Balance int    `json:"balance"`
}

type UnlockGrant struct {
	UnlockId string `json:"unlockId"`
	Category string `json:"category"`
}

type MiniGameReward struct {
	Id        string `json:"id"`
	PlayerId  string `json:"playerId"`
	Stars     int    `json:"stars"`
	XP        int    `json:"xp"`
	SourceRef string `json:"sourceRef"`
	Balance   int    `json:"balance"`
	Level     int    `json:"level"`
	TotalXP   int    `json:"totalXp"`
}

type Kicked struct {
	Reason string `json:"reason"`
}
