package models

import (
	"time"
)

type Tag struct {
	Name  string    `json:"name" gorm:"primaryKey;type:text"`
	State string    `json:"state" gorm:"type:text;not null;default:'Active';index"`
	CDate time.Time `json:"cdate" gorm:"autoCreateTime"`
	MDate time.Time `json:"mdate" gorm:"autoUpdateTime"`
}

type Logbook struct {
	Name  string    `json:"name" gorm:"primaryKey;type:text"`
	Owner string    `json:"owner" gorm:"type:text"`
	State string    `json:"state" gorm:"type:text;not null;default:'Active';index"`
	CDate time.Time `json:"cdate" gorm:"autoCreateTime"`
	MDate time.Time `json:"mdate" gorm:"autoUpdateTime"`
}

type Property struct {
	Name       string              `json:"name" gorm:"primaryKey;type:text"`
	Owner      string              `json:"owner" gorm:"type:text"`
	State      string              `json:"state" gorm:"type:text;not null;default:'Active';index"`
	Attributes []PropertyAttribute `json:"attributes" gorm:"foreignKey:PropertyName;references:Name;constraint:OnDelete:CASCADE;"`
	CDate      time.Time           `json:"cdate" gorm:"autoCreateTime"`
	MDate      time.Time           `json:"mdate" gorm:"autoUpdateTime"`
}

type PropertyAttribute struct {
	PropertyName string    `json:"propertyName" gorm:"primaryKey;type:text"`
	Name         string    `json:"name" gorm:"primaryKey;type:text"`
	Value        string    `json:"value" gorm:"type:text"`
	State        string    `json:"state" gorm:"type:text;not null;default:'Active'"`
	Position     int       `json:"position" gorm:"not null;default:0"`
	MDate        time.Time `json:"mdate" gorm:"autoUpdateTime"`
}
