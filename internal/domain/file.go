package domain

import "time"

// File файл, прикрепленный к сущности под логической группой
type File struct {
	ID              string    `json:"id"` // UUID
	OwnerID         int64     `json:"owner_id"`
	Group           string    `json:"group"`
	Name            string    `json:"name"`
	Path            string    `json:"-"` // путь внутри хранилища
	MimeType        string    `json:"mime_type"`
	Size            int64     `json:"size"`
	CreateTimestamp time.Time `json:"create_timestamp"`
}
