// Package httpsrc talks to a remote leaderboard over a small JSON protocol:
//
//	GET  /top?social=&time=     -> {"cursor": "..."}
//	GET  /page?cursor=&size=    -> {"rows": [...], "next": "...", "previous": "..."}
//	GET  /players/{id}          -> {"display_name": "...", "avatar_ref": "..."}
//	GET  /me                    -> {"player_id": "...", "display_name": "..."}
//	GET  /me/summary?social=&time= -> one row
//	POST /scores {"value": n}   -> 202
//
// An empty cursor string means "no cursor". The requesting player is carried
// in the X-Player-Id header.
package httpsrc

import "github.com/okian/ladder/internal/domain/model"

// PlayerHeader carries the requesting player's id.
const PlayerHeader = "X-Player-Id"

type topResponse struct {
	Cursor string `json:"cursor"`
}

type rowDTO struct {
	Rank        int    `json:"rank"`
	Value       int64  `json:"value"`
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name,omitempty"`
	IsSelf      bool   `json:"is_self,omitempty"`
}

type pageResponse struct {
	Rows     []rowDTO `json:"rows"`
	Next     string   `json:"next,omitempty"`
	Previous string   `json:"previous,omitempty"`
}

type detailResponse struct {
	DisplayName string `json:"display_name"`
	AvatarRef   string `json:"avatar_ref,omitempty"`
}

type selfResponse struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
}

type scoreRequest struct {
	Value int64 `json:"value"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func toCursor(token string) model.PageCursor {
	if token == "" {
		return model.PageCursor{}
	}
	return model.NewCursor(token)
}

func fromCursor(c model.PageCursor) string {
	if !c.Valid {
		return ""
	}
	return c.Token
}

func toRow(row rowDTO) model.RawRow {
	return model.RawRow{
		Rank:        row.Rank,
		Value:       row.Value,
		PlayerID:    row.PlayerID,
		DisplayName: row.DisplayName,
		IsSelf:      row.IsSelf,
	}
}

func fromRow(row model.RawRow) rowDTO {
	return rowDTO{
		Rank:        row.Rank,
		Value:       row.Value,
		PlayerID:    row.PlayerID,
		DisplayName: row.DisplayName,
		IsSelf:      row.IsSelf,
	}
}

func toPage(r pageResponse) model.Page {
	rows := make([]model.RawRow, len(r.Rows))
	for i, row := range r.Rows {
		rows[i] = toRow(row)
	}
	return model.Page{Rows: rows, Next: toCursor(r.Next), Previous: toCursor(r.Previous)}
}

func fromPage(p model.Page) pageResponse {
	rows := make([]rowDTO, len(p.Rows))
	for i, row := range p.Rows {
		rows[i] = fromRow(row)
	}
	return pageResponse{Rows: rows, Next: fromCursor(p.Next), Previous: fromCursor(p.Previous)}
}
