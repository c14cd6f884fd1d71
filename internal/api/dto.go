package api

import (
	"time"

	"github.com/zulandar/partline/internal/models"
)

type userDTO struct {
	ID        uint        `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
	Active    bool        `json:"active"`
	CreatedAt time.Time   `json:"created_at"`
}

func toUser(u *models.User) userDTO {
	return userDTO{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		Active:    u.Active,
		CreatedAt: u.CreatedAt.UTC(),
	}
}

type stationDTO struct {
	ID   uint               `json:"id"`
	Name string             `json:"name"`
	Type models.StationType `json:"type"`
	Line string             `json:"line"`
}

func toStation(s *models.Station) stationDTO {
	return stationDTO{ID: s.ID, Name: s.Name, Type: s.Type, Line: s.Line}
}

type partDTO struct {
	ID                string            `json:"id"`
	PartType          string            `json:"part_type"`
	Lot               string            `json:"lot"`
	Status            models.PartStatus `json:"status"`
	CreatedAt         time.Time         `json:"created_at"`
	ReworkCount       int               `json:"rework_count"`
	CumulativeSeconds float64           `json:"cumulative_seconds"`
	LastStationID     *uint             `json:"last_station_id"`
}

func toPart(p *models.Part) partDTO {
	return partDTO{
		ID:                p.ID,
		PartType:          p.PartType,
		Lot:               p.Lot,
		Status:            p.Status,
		CreatedAt:         p.CreatedAt.UTC(),
		ReworkCount:       p.ReworkCount,
		CumulativeSeconds: p.CumulativeSeconds,
		LastStationID:     p.LastStationID,
	}
}

type eventDTO struct {
	ID              uint           `json:"id"`
	PartID          string         `json:"part_id"`
	StationID       uint           `json:"station_id"`
	EnteredAt       time.Time      `json:"entered_at"`
	ExitedAt        time.Time      `json:"exited_at"`
	DurationSeconds float64        `json:"duration_seconds"`
	Outcome         models.Outcome `json:"outcome"`
	OperatorID      *uint          `json:"operator_id"`
	Notes           string         `json:"notes,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

func toEvent(ev *models.TraceEvent) eventDTO {
	return eventDTO{
		ID:              ev.ID,
		PartID:          ev.PartID,
		StationID:       ev.StationID,
		EnteredAt:       ev.EnteredAt.UTC(),
		ExitedAt:        ev.ExitedAt.UTC(),
		DurationSeconds: ev.DurationSeconds,
		Outcome:         ev.Outcome,
		OperatorID:      ev.OperatorID,
		Notes:           ev.Notes,
		CreatedAt:       ev.CreatedAt.UTC(),
	}
}

func toEvents(evs []models.TraceEvent) []eventDTO {
	out := make([]eventDTO, len(evs))
	for i := range evs {
		out[i] = toEvent(&evs[i])
	}
	return out
}
