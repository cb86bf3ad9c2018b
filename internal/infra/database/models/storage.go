package models

import (
	"time"
)

type Attachment struct {
	ID                      string    `json:"id" gorm:"primaryKey;type:text"`
	Filename                string    `json:"filename" gorm:"type:text"`
	FileMetadataDescription string    `json:"fileMetadataDescription" gorm:"type:text"`
	Size                    int64     `json:"size"`
	Checksum                string    `json:"checksum" gorm:"type:text"`
	Content                 []byte    `json:"-" gorm:"type:bytea"`
	CDate                   time.Time `json:"cdate" gorm:"autoCreateTime"`
}

// Counter is a named monotonic sequence.
type Counter struct {
	Name  string `json:"name" gorm:"primaryKey;type:text"`
	Value int64  `json:"value" gorm:"not null;default:0"`
}
