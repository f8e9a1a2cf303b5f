package game

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"
)

// Report is a player complaint kept for moderators.
type Report struct {
	Id              string    `json:"id"`
	ReporterId      string    `json:"reporter_id"`
	ReporterAccount string    `json:"reporter_account,omitempty"`
	TargetId        string    `json:"target_id"`
	TargetAccount   string    `json:"target_account,omitempty"`
	RoomId          string    `json:"room_id"`
	Reason          string    `json:"reason"`
	CreatedAt       time.Time `json:"created_at"`
}

func (r *Report) Validate() error {
	el := errors.NewErrorList()

	if r.ReporterId == "" {
		el.Add(fmt.Errorf("reporter_id is required"))
	}
	if r.TargetId == "" {
		el.Add(fmt.Errorf("target_id is required"))
	}
	if r.CreatedAt.IsZero() {
		el.Add(fmt.Errorf("created_at is required"))
	}

	return el.Err()
}
